package agent

import (
	"context"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// Message is one turn of conversation history passed to a provider.
// ToolCalls is set on an assistant message that requested tool
// execution; ToolResults is set on the user-turn message carrying their
// outcome back to the model, batched the way the wire APIs (Anthropic's
// tool_result content blocks, OpenAI/Bedrock's tool-role messages)
// expect a run of consecutive results to arrive together.
type Message struct {
	Role        string                `json:"role"` // "system", "user", "assistant", "tool"
	Content     string                `json:"content"`
	ToolCalls   []models.ToolCallStub `json:"tool_calls,omitempty"`
	ToolResults []ToolResultMsg       `json:"tool_results,omitempty"`
}

// ToolResultMsg carries a completed tool call's result back to the
// model in a subsequent turn.
type ToolResultMsg struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// buildCompletionRequest converts a derived history snapshot (with its
// leading system message, if any, stripped into the System field) and
// an optional tool list into a provider-facing CompletionRequest.
func (rt *Runtime) buildCompletionRequest(history []models.Message, tools []models.ToolSpec) CompletionRequest {
	system := rt.systemPrompt
	body := history
	if len(body) > 0 && body[0].Role == models.RoleSystem {
		if system == "" {
			system = body[0].Content
		}
		body = body[1:]
	}
	return CompletionRequest{
		Model:    rt.model,
		System:   system,
		Messages: toProviderMessages(body),
		Tools:    tools,
	}
}

// toProviderMessages adapts the event-log-derived history view
// (models.Message, one role-"tool" message per call) to the
// provider-facing Message shape, coalescing each consecutive run of
// role-"tool" messages into a single message carrying a ToolResults
// batch.
func toProviderMessages(history []models.Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role == models.RoleTool {
			tr := ToolResultMsg{ToolCallID: m.ToolCallID, Content: m.Content}
			if n := len(out); n > 0 && out[n-1].Role == "tool" {
				out[n-1].ToolResults = append(out[n-1].ToolResults, tr)
				continue
			}
			out = append(out, Message{Role: "tool", ToolResults: []ToolResultMsg{tr}})
			continue
		}
		out = append(out, Message{
			Role:      string(m.Role),
			Content:   m.Content,
			ToolCalls: m.ToolCalls,
		})
	}
	return out
}

// CompletionRequest is the provider-agnostic shape of a single turn
// request. It intentionally carries none of the teacher's computer-use
// or attachment fields: tool use and plain text are the full surface
// this runtime needs.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	Tools     []models.ToolSpec
	MaxTokens int
}

// Provider is the normalized contract every LLM backend implements.
// Complete blocks until the full response is available; Stream returns
// a channel of StreamChunk for incremental consumption by runStream.
//
// SupportsNativeTools distinguishes providers that can be handed a
// tool list and return structured tool_calls from ones that can only
// be prompted with a textual tool description; the turn loop uses it
// to decide between the structured tool-call path and the
// code-execution fallback (spec.md §4.6 step b/f).
type Provider interface {
	Name() string
	SupportsNativeTools() bool
	Complete(ctx context.Context, req CompletionRequest) (*models.ProviderResponse, error)
	Stream(ctx context.Context, req CompletionRequest) (<-chan models.StreamChunk, error)
}
