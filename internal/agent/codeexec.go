package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kestrel-agent/kestrel/internal/sandbox"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// codeFence matches a markdown fenced code block, capturing its body
// regardless of the language tag on the opening fence.
var codeFence = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\s*\\n(.*?)```")

// extractCodeBlocks returns the body of every fenced code block in
// content, in document order.
func extractCodeBlocks(content string) []string {
	matches := codeFence.FindAllStringSubmatch(content, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}

// runCodeExecutionFallback implements spec.md §4.6 step f. It returns
// ok=false when the response carries no fenced code blocks, signaling
// the loop to fall through to the plain-text completion path (step g).
func (rt *Runtime) runCodeExecutionFallback(ctx context.Context, resp *models.ProviderResponse) (models.TurnResult, bool) {
	blocks := extractCodeBlocks(resp.Content)
	if len(blocks) == 0 {
		return models.TurnResult{}, false
	}

	rt.events.Append(models.EventAgentMessage, models.EventData{Content: resp.Content}, models.SourceAgent)

	toolFuncs := rt.sandboxToolFuncs(ctx)

	for i, code := range blocks {
		callID := fmt.Sprintf("_codex_eval_%d", i)
		rt.events.Append(models.EventToolCall, models.EventData{
			CallID:    callID,
			ToolName:  "_codex_eval",
			Arguments: code,
		}, models.SourceAgent)

		evalResult := rt.sandbox.Eval(ctx, sandbox.EvalRequest{
			Code:      code,
			Tools:     toolFuncs,
			TimeoutMs: rt.cfg.SandboxTimeoutMs,
			MaxOutput: rt.cfg.MaxResultLength,
		})

		if evalResult.Err != nil {
			rt.events.Append(models.EventToolResult, models.EventData{
				CallID:  callID,
				Success: false,
				Error:   evalResult.Err.Error(),
			}, models.SourceSystem)
			continue
		}
		rt.events.Append(models.EventToolResult, models.EventData{
			CallID:  callID,
			Success: true,
			Output:  evalResult.Output,
		}, models.SourceSystem)
	}

	messages := rt.history()
	messages = append(messages, models.Message{
		Role:    models.RoleUser,
		Content: "Here are the results of the code you ran above. Interpret these results conversationally without writing more code.",
	})

	req := rt.buildCompletionRequest(messages, nil)
	resp2, err := rt.provider.Complete(ctx, req)
	if err != nil {
		rt.events.Append(models.EventError, models.EventData{Reason: err.Error()}, models.SourceSystem)
		return models.TurnResult{Status: models.TurnFailed, Data: err.Error()}, true
	}

	rt.events.Append(models.EventAgentMessage, models.EventData{Content: resp2.Content}, models.SourceAgent)
	return models.TurnResult{Status: models.TurnOK, Data: resp2.Content, Usage: resp2.Usage, Model: resp2.Model}, true
}

// sandboxToolFuncs wraps every name the tool registry or remote-tool
// manager exposes as a sandbox.ToolFunc, routed through the same
// tool-routing pipeline (§4.6.1) ordinary provider-requested tool calls
// go through — hooks, safety validation, and autonomy gating all still
// apply to a capability invoked from inside evaluated code.
func (rt *Runtime) sandboxToolFuncs(ctx context.Context) map[string]sandbox.ToolFunc {
	names := map[string]struct{}{}
	if rt.tools != nil {
		for _, n := range rt.tools.Names() {
			names[n] = struct{}{}
		}
	}
	if rt.remote != nil {
		for _, spec := range rt.remote.AllToolSpecs() {
			names[spec.Name] = struct{}{}
		}
	}

	funcs := make(map[string]sandbox.ToolFunc, len(names))
	for name := range names {
		name := name
		funcs[name] = func(args map[string]any) (any, error) {
			raw, err := json.Marshal(args)
			if err != nil {
				return nil, err
			}
			result := rt.routeToolCall(ctx, models.ToolCallStub{
				ID:        "_codex_eval_call",
				Name:      name,
				Arguments: string(raw),
			})
			if !result.Success {
				return nil, errors.New(result.Error)
			}
			return result.Output, nil
		}
	}
	return funcs
}

// toolPromptForCapabilities renders the registered tools as callable
// functions for providers without native tool support (§4.6 step b).
func toolPromptForCapabilities(specs []models.ToolSpec) string {
	if len(specs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("You have access to the following capabilities. Call them from a fenced JavaScript code block using `await name(args)`; the results will be reported back to you.\n\n")
	for _, s := range specs {
		schema, _ := json.Marshal(s.Parameters)
		fmt.Fprintf(&b, "- %s(%s): %s\n", s.Name, string(schema), s.Description)
	}
	return b.String()
}
