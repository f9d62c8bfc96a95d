package providers

import (
	"errors"
	"testing"
	"time"

	"github.com/kestrel-agent/kestrel/internal/agent"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

func TestNewAnthropicProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      AnthropicConfig
		expectError bool
	}{
		{
			name:        "valid config",
			config:      AnthropicConfig{APIKey: "test-key", MaxRetries: 3, RetryDelay: time.Second, DefaultModel: "claude-sonnet-4-20250514"},
			expectError: false,
		},
		{
			name:        "missing API key",
			config:      AnthropicConfig{MaxRetries: 3},
			expectError: true,
		},
		{
			name:        "defaults applied",
			config:      AnthropicConfig{APIKey: "test-key"},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewAnthropicProvider(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider.defaultModel == "" {
				t.Error("defaultModel should have a default value")
			}
			if provider.Name() != "anthropic" {
				t.Errorf("expected name 'anthropic', got %q", provider.Name())
			}
		})
	}
}

func TestAnthropicGetModelAndMaxTokens(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", DefaultModel: "claude-opus-4-20250514"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	if got := provider.getModel(""); got != "claude-opus-4-20250514" {
		t.Errorf("expected default model, got %s", got)
	}
	if got := provider.getModel("claude-3-haiku-20240307"); got != "claude-3-haiku-20240307" {
		t.Errorf("expected specified model, got %s", got)
	}
	if got := provider.getMaxTokens(0); got != 4096 {
		t.Errorf("expected default maxTokens=4096, got %d", got)
	}
	if got := provider.getMaxTokens(2000); got != 2000 {
		t.Errorf("expected specified maxTokens=2000, got %d", got)
	}
}

func TestAnthropicConvertMessages(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tests := []struct {
		name     string
		messages []agent.Message
		wantErr  bool
		wantLen  int
	}{
		{
			name:     "simple user message",
			messages: []agent.Message{{Role: "user", Content: "Hello!"}},
			wantLen:  1,
		},
		{
			name: "system message is skipped",
			messages: []agent.Message{
				{Role: "system", Content: "You are helpful."},
				{Role: "user", Content: "Hello!"},
			},
			wantLen: 1,
		},
		{
			name: "message with tool calls",
			messages: []agent.Message{
				{
					Role:      "assistant",
					Content:   "Let me check that.",
					ToolCalls: []models.ToolCall{{ID: "call_123", Name: "get_weather", Arguments: `{"city":"London"}`}},
				},
			},
			wantLen: 1,
		},
		{
			name: "message with tool results",
			messages: []agent.Message{
				{Role: "user", ToolResults: []agent.ToolResultMsg{{ToolCallID: "call_123", Content: "Sunny, 72F"}}},
			},
			wantLen: 1,
		},
		{
			name: "invalid tool call arguments",
			messages: []agent.Message{
				{Role: "assistant", ToolCalls: []models.ToolCall{{ID: "call_123", Name: "test", Arguments: "not json"}}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := provider.convertMessages(tt.messages)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != tt.wantLen {
				t.Errorf("expected %d messages, got %d", tt.wantLen, len(result))
			}
		})
	}
}

func TestAnthropicConvertTools(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tools := []models.ToolSpec{
		{Name: "get_weather", Description: "Get current weather", Parameters: map[string]any{"type": "object", "properties": map[string]any{"city": map[string]any{"type": "string"}}}},
		{Name: "search", Description: "Search the web", Parameters: map[string]any{"type": "object"}},
	}

	result, err := provider.convertTools(tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != len(tools) {
		t.Errorf("expected %d tools, got %d", len(tools), len(result))
	}
}

func TestAnthropicIsRetryableError(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	tests := []struct {
		name  string
		err   error
		retry bool
	}{
		{"nil error", nil, false},
		{"rate limit", errors.New("rate_limit exceeded"), true},
		{"429 status", errors.New("HTTP 429 too many requests"), true},
		{"server error", errors.New("HTTP 500 internal server error"), true},
		{"timeout", errors.New("request timeout"), true},
		{"invalid API key", errors.New("invalid API key"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := provider.isRetryableError(tt.err); got != tt.retry {
				t.Errorf("expected retry=%v, got %v for error: %v", tt.retry, got, tt.err)
			}
		})
	}
}

func TestAnthropicWrapError(t *testing.T) {
	provider, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	wrapped := provider.wrapError(errors.New("rate limited"), "claude-sonnet-4")
	providerErr, ok := GetProviderError(wrapped)
	if !ok {
		t.Fatalf("expected ProviderError, got %T", wrapped)
	}
	if providerErr.Reason != FailoverRateLimit {
		t.Fatalf("expected reason %v, got %v", FailoverRateLimit, providerErr.Reason)
	}
}
