// Package openrouter provides a client for the OpenRouter
// chat-completions API, used for anomaly analysis and the chat feature.
package openrouter

// chatMessage is one message in a chat-completions conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionRequest is the body of a chat-completions call.
type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// completionResponse is the subset of the chat-completions response the
// client reads.
type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// apiError is the provider's error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
