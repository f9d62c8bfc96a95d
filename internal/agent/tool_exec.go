package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestrel-agent/kestrel/internal/safety"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// routeToolCall implements spec.md §4.6.1's seven-step tool routing for
// a single stub. It never panics and always returns a ToolResult: every
// failure mode the spec names becomes a synthesized failure message the
// model can observe and recover from on the next iteration.
func (rt *Runtime) routeToolCall(ctx context.Context, call models.ToolCallStub) models.ToolResult {
	// 1. Parse arguments; malformed JSON is an immediate error result.
	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return models.Failure(fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	// 2. beforeToolCall hook: block or apply modify patches to args.
	outcome := rt.hooks.Run(ctx, models.HookBeforeToolCall, map[string]any{
		"toolName": call.Name,
		"args":     args,
	})
	if outcome.Blocked {
		return models.Failure(fmt.Sprintf("Blocked by hook: %s", outcome.Reason))
	}
	if patched, ok := outcome.Ctx.Data["args"].(map[string]any); ok {
		args = patched
	}

	// 3. Validate args against the tool's declared JSON-schema
	// parameters, then against the safety pipeline's rule sets.
	localTool, isLocal := rt.tools.Get(call.Name)
	if isLocal {
		if err := validateArgsSchema(call.Name, localTool.Spec.Parameters, args); err != nil {
			return models.Failure(fmt.Sprintf("Safety: invalid arguments: %v", err))
		}
	}
	if result := rt.validateToolArgs(call.Name, args); !result.Pass {
		return models.Failure(fmt.Sprintf("Safety: %s", firstIssueMessage(result)))
	}

	// 4. Autonomy gating, only meaningful for a locally-known tool (a
	// remote tool's permission class is not known to this core).
	if isLocal {
		if !rt.autonomy.CanExecuteTool(localTool.Spec.Permission) {
			return models.Failure(fmt.Sprintf("Blocked: agent is in %s mode", rt.autonomy.State().Level))
		}
	}

	// 5. Re-check rate/cost limits immediately before execution.
	if blocked, reason := rt.autonomy.CheckLimits(); blocked {
		return models.Failure(reason)
	}

	// 6. Route: local registry, then remote-tool manager, else "not found".
	result := rt.dispatchTool(ctx, call.Name, args)

	// 7. Record the action and scan output for credential leaks.
	rt.autonomy.RecordAction()
	if result.Success && result.Output != "" {
		leak := rt.safety.ScreenOutbound(result.Output)
		if len(leak.Findings) > 0 {
			result.Output = leak.Content
		}
	}
	return result
}

func (rt *Runtime) dispatchTool(ctx context.Context, name string, args map[string]any) models.ToolResult {
	if rt.tools != nil && rt.tools.Has(name) {
		return rt.tools.Execute(ctx, name, args)
	}
	if rt.remote != nil {
		if _, ok := rt.remote.FindClient(name); ok {
			return rt.remote.ExecuteTool(ctx, name, args)
		}
	}
	return models.Failure(fmt.Sprintf("Tool not found: %s", name))
}

func firstIssueMessage(result safety.ValidationResult) string {
	if len(result.Issues) == 0 {
		return "validation failed"
	}
	return result.Issues[0].Msg
}

// validateToolArgs maps a tool name to the safety validator rule set
// that applies to it (spec.md §4.4): file-ops tools validate a "path"
// argument, shell tools validate a "command" argument, fetch tools
// validate a "url" argument. A tool matching none of these patterns
// passes through unvalidated — the validator only constrains the
// closed set of dangerous capability shapes the spec names.
func (rt *Runtime) validateToolArgs(name string, args map[string]any) safety.ValidationResult {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, "read_file", "write_file", "list_dir", "delete_file", "file_"):
		path, _ := args["path"].(string)
		return rt.safety.Validator.ValidateFileOp(fileOpKind(lower), path)
	case containsAny(lower, "shell", "exec", "run_command", "command"):
		cmd, _ := args["command"].(string)
		return rt.safety.Validator.ValidateShellCommand(cmd)
	case containsAny(lower, "fetch", "http_get", "http_request", "web_fetch"):
		url, _ := args["url"].(string)
		return rt.safety.Validator.ValidateFetchURL(url)
	default:
		return safety.ValidationResult{Pass: true}
	}
}

func fileOpKind(lower string) string {
	switch {
	case strings.Contains(lower, "write"):
		return "write"
	case strings.Contains(lower, "delete"):
		return "delete"
	case strings.Contains(lower, "list"):
		return "list"
	default:
		return "read"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
