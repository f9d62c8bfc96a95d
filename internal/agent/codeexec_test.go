package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

func TestExtractCodeBlocks(t *testing.T) {
	content := "Here is some code:\n```js\nconsole.log(1)\n```\nand another:\n```python\nprint(2)\n```"
	blocks := extractCodeBlocks(content)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %v", len(blocks), blocks)
	}
	if strings.TrimSpace(blocks[0]) != "console.log(1)" {
		t.Errorf("unexpected first block: %q", blocks[0])
	}
	if strings.TrimSpace(blocks[1]) != "print(2)" {
		t.Errorf("unexpected second block: %q", blocks[1])
	}
}

func TestExtractCodeBlocksNone(t *testing.T) {
	if blocks := extractCodeBlocks("just plain text, no fences"); len(blocks) != 0 {
		t.Fatalf("expected no blocks, got %v", blocks)
	}
}

func TestRunCodeExecutionFallbackNoBlocks(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: false})
	_, ok := rt.runCodeExecutionFallback(context.Background(), &models.ProviderResponse{Content: "no code here"})
	if ok {
		t.Fatal("expected ok=false when response has no fenced code blocks")
	}
}

func TestRunCodeExecutionFallbackEvaluatesAndSummarizes(t *testing.T) {
	provider := &fakeProvider{
		nativeTools: false,
		responses: []*models.ProviderResponse{
			{Content: "The sum is 3."},
		},
	}
	rt := newTestRuntime(t, provider)

	resp := &models.ProviderResponse{Content: "```js\n1 + 2\n```"}
	result, ok := rt.runCodeExecutionFallback(context.Background(), resp)
	if !ok {
		t.Fatal("expected ok=true when a code block is present")
	}
	if result.Status != models.TurnOK {
		t.Fatalf("expected TurnOK, got %+v", result)
	}
	if result.Data != "The sum is 3." {
		t.Errorf("expected summarized content, got %q", result.Data)
	}

	var sawToolCall, sawToolResult bool
	for _, e := range rt.events.Events() {
		if e.Type == models.EventToolCall && e.Data.ToolName == "_codex_eval" {
			sawToolCall = true
		}
		if e.Type == models.EventToolResult {
			sawToolResult = true
		}
	}
	if !sawToolCall || !sawToolResult {
		t.Error("expected a _codex_eval tool_call/tool_result event pair")
	}
}

func TestSandboxToolFuncsRoutesThroughRegistry(t *testing.T) {
	rt := newTestRuntime(t, &fakeProvider{nativeTools: false})
	rt.Tools().(*LocalRegistry).Register(Tool{
		Spec: models.ToolSpec{Name: "double", Permission: models.PermissionRead},
		Run: func(ctx context.Context, args map[string]any) models.ToolResult {
			return models.Succeed("4")
		},
	})

	funcs := rt.sandboxToolFuncs(context.Background())
	fn, ok := funcs["double"]
	if !ok {
		t.Fatal("expected a sandbox func for the registered tool")
	}
	out, err := fn(map[string]any{"n": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "4" {
		t.Errorf("expected 4, got %v", out)
	}
}
