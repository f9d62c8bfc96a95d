package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEvalConsoleLog(t *testing.T) {
	s := New()
	result := s.Eval(context.Background(), EvalRequest{Code: `console.log("hello", 42)`})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Output != "hello 42" {
		t.Errorf("expected output %q, got %q", "hello 42", result.Output)
	}
}

func TestEvalExpressionResult(t *testing.T) {
	s := New()
	result := s.Eval(context.Background(), EvalRequest{Code: `1 + 2`})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Output != "3" {
		t.Errorf("expected %q, got %q", "3", result.Output)
	}
}

func TestEvalToolInjection(t *testing.T) {
	s := New()
	calls := 0
	tools := map[string]ToolFunc{
		"search": func(args map[string]any) (any, error) {
			calls++
			return args["q"], nil
		},
	}
	result := s.Eval(context.Background(), EvalRequest{
		Code:  `console.log(search({q: "go"}))`,
		Tools: tools,
	})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if calls != 1 {
		t.Fatalf("expected tool called once, got %d", calls)
	}
	if result.Output != "go" {
		t.Errorf("expected %q, got %q", "go", result.Output)
	}
}

func TestEvalToolError(t *testing.T) {
	s := New()
	tools := map[string]ToolFunc{
		"fail": func(args map[string]any) (any, error) { return nil, errors.New("boom") },
	}
	result := s.Eval(context.Background(), EvalRequest{
		Code:  `try { fail({}) } catch (e) { console.log("caught:" + e.message) }`,
		Tools: tools,
	})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Output == "" {
		t.Error("expected the catch block to log something")
	}
}

func TestEvalTimeout(t *testing.T) {
	s := New()
	result := s.Eval(context.Background(), EvalRequest{
		Code:      `while (true) {}`,
		TimeoutMs: 50,
	})
	if result.Err == nil {
		t.Fatal("expected a timeout error")
	}
	if !errors.Is(result.Err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", result.Err)
	}
}

func TestEvalOutputTruncation(t *testing.T) {
	s := New()
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	result := s.Eval(context.Background(), EvalRequest{
		Code:      `console.log("` + string(long) + `")`,
		MaxOutput: 10,
	})
	if !result.Truncated {
		t.Error("expected output to be truncated")
	}
	if len(result.Output) != 10 {
		t.Errorf("expected truncated output length 10, got %d", len(result.Output))
	}
}

func TestEvalContextCancellation(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	result := s.Eval(ctx, EvalRequest{Code: `while (true) {}`})
	if result.Err == nil {
		t.Fatal("expected an error from context cancellation")
	}
}

func TestAdaptCodeLiteralsAndFStrings(t *testing.T) {
	got := AdaptCode(`let x = True; let y = f"value is {x}"; let s = "keep True as-is";`, nil)
	want := "let x = true; let y = `value is ${x}`; let s = \"keep True as-is\";"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAdaptCodeAutoAwait(t *testing.T) {
	got := AdaptCode(`let r = search({q: "x"});`, map[string]struct{}{"search": {}})
	want := `let r = await search({q: "x"});`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
