package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"device-monitor/internal/config"
	"device-monitor/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&config.OpenRouterConfig{
		APIKey:   "test-key",
		Model:    "test/model",
		Endpoint: srv.URL,
		Timeout:  5 * time.Second,
	}, &config.RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond}, zerolog.Nop())
}

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}
}

func TestClient_Enabled(t *testing.T) {
	c := NewClient(&config.OpenRouterConfig{}, nil, zerolog.Nop())
	if c.Enabled() {
		t.Error("Enabled() = true without an API key")
	}

	c = NewClient(&config.OpenRouterConfig{APIKey: "k"}, nil, zerolog.Nop())
	if !c.Enabled() {
		t.Error("Enabled() = false with an API key")
	}
}

func TestClient_Analyze(t *testing.T) {
	c := newTestClient(t, completionHandler(t,
		`Here is my analysis: {"rootCause": "memory leak in worker", "recommendations": "restart the worker", "status": "CRITICAL"} hope it helps`))

	insight := c.Analyze(context.Background(), "memory_critical", &model.Aggregate{MemoryPercent: 95})
	if insight == nil {
		t.Fatal("Analyze() = nil, want parsed insight")
	}
	if insight.RootCause != "memory leak in worker" {
		t.Errorf("RootCause = %q", insight.RootCause)
	}
	if insight.Status != model.InsightStatusCritical {
		t.Errorf("Status = %q, want CRITICAL", insight.Status)
	}
}

func TestClient_AnalyzeDisabled(t *testing.T) {
	c := NewClient(&config.OpenRouterConfig{}, nil, zerolog.Nop())
	if insight := c.Analyze(context.Background(), "cpu_overload", &model.Aggregate{}); insight != nil {
		t.Errorf("Analyze() = %+v, want nil when disabled", insight)
	}
}

func TestClient_AnalyzeServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	if insight := c.Analyze(context.Background(), "cpu_overload", &model.Aggregate{}); insight != nil {
		t.Errorf("Analyze() = %+v, want nil on API error", insight)
	}
}

func TestClient_AnalyzeEmptyContent(t *testing.T) {
	c := newTestClient(t, completionHandler(t, ""))

	insight := c.Analyze(context.Background(), "cpu_overload", &model.Aggregate{})
	if insight == nil {
		t.Fatal("Analyze() = nil, want placeholder insight")
	}
	if insight.RootCause != "AI analysis unavailable (empty response)" {
		t.Errorf("RootCause = %q", insight.RootCause)
	}
	if insight.Status != model.InsightStatusInfo {
		t.Errorf("Status = %q, want INFO", insight.Status)
	}
}

func TestParseInsight(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantRoot   string
		wantRecs   string
		wantStatus model.InsightStatus
	}{
		{
			name:       "clean json",
			content:    `{"rootCause": "disk full", "recommendations": "free space", "status": "WARNING"}`,
			wantRoot:   "disk full",
			wantRecs:   "free space",
			wantStatus: model.InsightStatusWarning,
		},
		{
			name:       "json wrapped in prose",
			content:    "Sure!\n```json\n{\"rootCause\": \"x\", \"recommendations\": \"y\", \"status\": \"CRITICAL\"}\n```",
			wantRoot:   "x",
			wantRecs:   "y",
			wantStatus: model.InsightStatusCritical,
		},
		{
			name:       "missing fields get defaults",
			content:    `{"status": "WARNING"}`,
			wantRoot:   "Unknown",
			wantRecs:   "No recommendations",
			wantStatus: model.InsightStatusWarning,
		},
		{
			name:       "unknown status becomes info",
			content:    `{"rootCause": "x", "recommendations": "y", "status": "SEVERE"}`,
			wantRoot:   "x",
			wantRecs:   "y",
			wantStatus: model.InsightStatusInfo,
		},
		{
			name:       "plain text",
			content:    "The CPU is saturated by a build job.",
			wantRoot:   "The CPU is saturated by a build job.",
			wantRecs:   "See analysis above",
			wantStatus: model.InsightStatusInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseInsight(tt.content)
			if got.RootCause != tt.wantRoot {
				t.Errorf("RootCause = %q, want %q", got.RootCause, tt.wantRoot)
			}
			if got.Recommendations != tt.wantRecs {
				t.Errorf("Recommendations = %q, want %q", got.Recommendations, tt.wantRecs)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestParseInsight_TruncatesLongText(t *testing.T) {
	got := parseInsight(strings.Repeat("a", 300))
	if len(got.RootCause) != 100 {
		t.Errorf("RootCause length = %d, want truncated to 100", len(got.RootCause))
	}
}

func TestClient_Chat(t *testing.T) {
	c := newTestClient(t, completionHandler(t, "CPU looks fine at 12%."))

	resp, err := c.Chat(context.Background(), "how is cpu?", &model.Aggregate{CPUPercent: 12})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp != "CPU looks fine at 12%." {
		t.Errorf("Chat() = %q", resp)
	}
}

func TestClient_ChatErrorMapping(t *testing.T) {
	tests := []struct {
		status  int
		wantMsg string
	}{
		{http.StatusUnauthorized, "invalid OpenRouter API key"},
		{http.StatusPaymentRequired, "credits exhausted"},
		{http.StatusTooManyRequests, "rate limit exceeded"},
	}

	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := c.Chat(context.Background(), "hi", &model.Aggregate{})
		if err == nil {
			t.Fatalf("Chat() error = nil for status %d", tt.status)
		}
		if !strings.Contains(err.Error(), tt.wantMsg) {
			t.Errorf("status %d error = %q, want it to contain %q", tt.status, err.Error(), tt.wantMsg)
		}
	}
}

func TestClient_ChatDisabled(t *testing.T) {
	c := NewClient(&config.OpenRouterConfig{}, nil, zerolog.Nop())
	if _, err := c.Chat(context.Background(), "hi", &model.Aggregate{}); err == nil {
		t.Error("Chat() error = nil when disabled")
	}
}

func TestClient_HealthCheckMessage(t *testing.T) {
	c := newTestClient(t, completionHandler(t, " All systems nominal. "))
	got := c.HealthCheckMessage(context.Background(), &model.Aggregate{CPUPercent: 10})
	if got != "All systems nominal." {
		t.Errorf("HealthCheckMessage() = %q, want trimmed model answer", got)
	}
}

func TestClient_HealthCheckMessageFallback(t *testing.T) {
	disabled := NewClient(&config.OpenRouterConfig{}, nil, zerolog.Nop())
	if got := disabled.HealthCheckMessage(context.Background(), &model.Aggregate{}); got != "✅ System operational" {
		t.Errorf("HealthCheckMessage() = %q, want fallback when disabled", got)
	}

	failing := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	if got := failing.HealthCheckMessage(context.Background(), &model.Aggregate{}); got != "✅ System operational" {
		t.Errorf("HealthCheckMessage() = %q, want fallback on error", got)
	}
}
