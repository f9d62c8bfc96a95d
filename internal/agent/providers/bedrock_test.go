package providers

import (
	"testing"

	"github.com/kestrel-agent/kestrel/internal/agent"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

func TestBedrockConvertMessages(t *testing.T) {
	p := &BedrockProvider{}

	messages := []agent.Message{
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "hello"},
		{
			Role:      "assistant",
			ToolCalls: []models.ToolCall{{ID: "call_1", Name: "search", Arguments: `{"q":"go"}`}},
		},
		{
			Role:        "user",
			ToolResults: []agent.ToolResultMsg{{ToolCallID: "call_1", Content: "found it"}},
		},
	}

	result, err := p.convertMessages(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// system message is skipped, the other three each carry content.
	if len(result) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(result))
	}
}

func TestBedrockConvertMessagesSkipsEmpty(t *testing.T) {
	p := &BedrockProvider{}
	result, err := p.convertMessages([]agent.Message{{Role: "user", Content: ""}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected empty-content message to be dropped, got %d", len(result))
	}
}

func TestToBedrockTools(t *testing.T) {
	tools := []models.ToolSpec{
		{Name: "search", Description: "Search the web", Parameters: map[string]any{"type": "object"}},
	}
	cfg := toBedrockTools(tools)
	if len(cfg.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(cfg.Tools))
	}
}

func TestBedrockGetModel(t *testing.T) {
	p := &BedrockProvider{defaultModel: "anthropic.claude-3-sonnet-20240229-v1:0"}
	if got := p.getModel(""); got != p.defaultModel {
		t.Errorf("expected default model, got %s", got)
	}
	if got := p.getModel("custom-model"); got != "custom-model" {
		t.Errorf("expected custom model, got %s", got)
	}
}
