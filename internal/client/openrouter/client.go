// Package openrouter provides a client for the OpenRouter
// chat-completions API, used for anomaly analysis and the chat feature.
package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"device-monitor/internal/config"
	"device-monitor/internal/model"
)

// jsonBlobPattern finds the first JSON object embedded in a completion,
// tolerating models that wrap their answer in prose or code fences.
var jsonBlobPattern = regexp.MustCompile(`(?s)\{.*\}`)

// Client is a client for the OpenRouter API. An empty API key leaves the
// client constructed but disabled: analysis yields nil and chat returns
// an error the route layer surfaces.
type Client struct {
	apiKey     string
	model      string
	httpClient *resty.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouter client.
func NewClient(cfg *config.OpenRouterConfig, retryCfg *config.RetryConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retry := config.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
	if retryCfg != nil {
		retry = *retryCfg
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://openrouter.ai/api/v1"
	}
	referer := cfg.Referer
	if referer == "" {
		referer = "http://localhost:3001"
	}
	title := cfg.Title
	if title == "" {
		title = "Device Monitor"
	}

	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("HTTP-Referer", referer).
		SetHeader("X-Title", title).
		SetRetryCount(retry.MaxRetries).
		SetRetryWaitTime(retry.BaseDelay).
		SetRetryMaxWaitTime(retry.BaseDelay * 8).
		AddRetryCondition(retryCondition)

	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "openrouter").Logger(),
	}
}

// retryCondition determines whether a request should be retried.
// Only retry on timeout, 5xx errors, or connection failures.
// Do not retry on 4xx errors.
func retryCondition(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp != nil && resp.StatusCode() >= 500 {
		return true
	}
	return false
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Analyze asks the model for root-cause commentary on an anomaly.
// Best-effort: a missing API key, a failed call, or an unusable response
// all yield nil, never an error the detector must handle.
func (c *Client) Analyze(ctx context.Context, ruleName string, agg *model.Aggregate) *model.Insight {
	if !c.Enabled() {
		c.logger.Warn().Msg("API key not set, skipping analysis")
		return nil
	}

	prompt := fmt.Sprintf(`Analyze this system anomaly:

Type: %s
CPU: %.1f%%
Memory: %.1f%%
P95 Latency: %.0fms
Error Rate: %.2f%%

Provide:
1. Root cause (1-2 sentences)
2. Recommendations (3 bullet points)
3. Status (CRITICAL, WARNING, or INFO)

Format as JSON: { "rootCause": "...", "recommendations": "...", "status": "..." }`,
		ruleName, agg.CPUPercent, agg.MemoryPercent, agg.P95Latency, agg.ErrorRate)

	content, err := c.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0)
	if err != nil {
		c.logger.Error().Err(err).Str("rule", ruleName).Msg("analysis call failed")
		return nil
	}
	if content == "" {
		c.logger.Warn().Msg("analysis returned empty content")
		return &model.Insight{
			RootCause:       "AI analysis unavailable (empty response)",
			Recommendations: "Try again later or check API status",
			Status:          model.InsightStatusInfo,
		}
	}

	return parseInsight(content)
}

// parseInsight extracts the structured insight from the completion
// content, salvaging what it can when the model strays from the asked
// JSON shape.
func parseInsight(content string) *model.Insight {
	if blob := jsonBlobPattern.FindString(content); blob != "" {
		var parsed struct {
			RootCause       string `json:"rootCause"`
			Recommendations string `json:"recommendations"`
			Status          string `json:"status"`
		}
		if err := json.Unmarshal([]byte(blob), &parsed); err == nil {
			insight := &model.Insight{
				RootCause:       parsed.RootCause,
				Recommendations: parsed.Recommendations,
				Status:          model.InsightStatus(parsed.Status),
			}
			if insight.RootCause == "" {
				insight.RootCause = "Unknown"
			}
			if insight.Recommendations == "" {
				insight.Recommendations = "No recommendations"
			}
			if !insight.Status.Valid() {
				insight.Status = model.InsightStatusInfo
			}
			return insight
		}
	}

	// Not JSON at all; keep the leading text as the root cause.
	if len(content) > 100 {
		content = content[:100]
	}
	return &model.Insight{
		RootCause:       content,
		Recommendations: "See analysis above",
		Status:          model.InsightStatusInfo,
	}
}

// Chat answers a user message grounded in the current metrics. Unlike
// Analyze this propagates errors, since the chat route reports them to
// the user.
func (c *Client) Chat(ctx context.Context, userMessage string, agg *model.Aggregate) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("OpenRouter API key not configured")
	}

	systemPrompt := fmt.Sprintf(`You are a concise system monitoring assistant. Give SHORT, direct answers.

RULES:
- Keep responses under 3 sentences unless asked for details
- Get straight to the point
- Only explain in depth if explicitly asked
- Reference actual metric values when relevant

Current System Metrics:
- CPU Usage: %.1f%%
- Memory: %.1f%% (%.0f MB free)
- Disk: %.1f%%
- Network In: %.2f Mbps
- Network Out: %.2f Mbps
- Load Average (1m): %.2f
- P95 Latency: %.0fms
- Error Rate: %.2f%%
- Uptime: %.1f hours`,
		agg.CPUPercent, agg.MemoryPercent, agg.FreeMemoryMB,
		agg.DiskPercent, agg.NetworkInMbps, agg.NetworkOutMbps,
		agg.LoadAvg1Min, agg.P95Latency, agg.ErrorRate, agg.UptimeHours)

	content, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	}, 500)
	if err != nil {
		return "", err
	}
	if content == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return content, nil
}

// HealthCheckMessage asks for a one-line health summary of the device.
// Falls back to a static message when the model is unavailable.
func (c *Client) HealthCheckMessage(ctx context.Context, agg *model.Aggregate) string {
	const fallback = "✅ System operational"
	if !c.Enabled() || agg == nil {
		return fallback
	}

	prompt := fmt.Sprintf(`Summarize this device's health in ONE short sentence (max 15 words):
CPU %.1f%%, memory %.1f%%, disk %.1f%%, error rate %.2f%%, uptime %.1f hours.`,
		agg.CPUPercent, agg.MemoryPercent, agg.DiskPercent, agg.ErrorRate, agg.UptimeHours)

	content, err := c.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 60)
	if err != nil || content == "" {
		return fallback
	}
	return strings.TrimSpace(content)
}

// complete performs one chat-completions call and returns the first
// choice's content.
func (c *Client) complete(ctx context.Context, messages []chatMessage, maxTokens int) (string, error) {
	var result completionResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(completionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: 0.7,
			MaxTokens:   maxTokens,
		}).
		SetResult(&result).
		Post("/chat/completions")

	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", fmt.Errorf("invalid OpenRouter API key")
	case http.StatusPaymentRequired:
		return "", fmt.Errorf("OpenRouter credits exhausted")
	case http.StatusTooManyRequests:
		return "", fmt.Errorf("OpenRouter rate limit exceeded, try again later")
	default:
		if result.Error != nil && result.Error.Message != "" {
			return "", fmt.Errorf("OpenRouter API error (%d): %s", resp.StatusCode(), result.Error.Message)
		}
		return "", fmt.Errorf("OpenRouter API returned status %d", resp.StatusCode())
	}

	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}
