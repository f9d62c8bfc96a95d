// Package sandbox provides the isolated, goja-backed JavaScript
// evaluation environment used by the agent core's code-execution
// fallback (spec.md §4.6 step f): a model-written code block runs with
// registered tools injected as host capabilities, under a per-
// evaluation timeout, with its output truncated to a configurable
// budget.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// ErrTimeout is returned (wrapped) when an evaluation is interrupted by
// its deadline.
var ErrTimeout = errors.New("sandbox: evaluation timed out")

// ToolFunc is a host capability exposed inside the sandbox. It receives
// JSON-decoded arguments and returns a value to hand back to the
// script (JSON-marshaled automatically) or an error, which surfaces to
// the script as a thrown JS exception.
type ToolFunc func(args map[string]any) (any, error)

// EvalRequest is one code-execution fallback evaluation.
type EvalRequest struct {
	Code      string
	Tools     map[string]ToolFunc
	TimeoutMs int64 // 0 uses DefaultTimeoutMs
	MaxOutput int   // 0 uses DefaultMaxOutput
}

// EvalResult is the outcome of one evaluation. Output is always
// populated (possibly an error message) and already truncated to the
// request's MaxOutput; the caller does not need to re-truncate.
type EvalResult struct {
	Output    string
	Truncated bool
	Err       error
}

const (
	// DefaultTimeoutMs is the per-evaluation timeout (spec.md §5).
	DefaultTimeoutMs = 300 * 1000
	// DefaultMaxOutput is the per-result chat budget (spec.md §6,
	// maxResultLength).
	DefaultMaxOutput = 1500
)

// Sandbox evaluates code blocks. Each call to Eval constructs a fresh
// goja.Runtime: no state or capability is shared across evaluations,
// matching the spec's "isolated worker-based sandbox" requirement
// (there are no OS-level worker processes in this Go port — a new VM
// per call is the in-process equivalent of the isolation boundary).
type Sandbox struct{}

// New returns a Sandbox. It holds no state; construction exists purely
// for API symmetry with the rest of the core's collaborators.
func New() *Sandbox { return &Sandbox{} }

// Eval runs code in a fresh VM with tools injected as global async
// functions. It never panics: a goja runtime panic (e.g. stack
// overflow) is recovered and reported as a failed EvalResult.
func (s *Sandbox) Eval(ctx context.Context, req EvalRequest) (result EvalResult) {
	defer func() {
		if r := recover(); r != nil {
			result = EvalResult{Err: fmt.Errorf("sandbox: panic: %v", r)}
		}
		result.Output, result.Truncated = truncate(result.Output, maxOutput(req.MaxOutput))
	}()

	timeout := req.TimeoutMs
	if timeout <= 0 {
		timeout = DefaultTimeoutMs
	}

	vm := goja.New()
	var out strings.Builder
	registerConsole(vm, &out)

	asyncNames := make(map[string]struct{}, len(req.Tools))
	for name, fn := range req.Tools {
		asyncNames[name] = struct{}{}
		if err := registerTool(vm, name, fn); err != nil {
			return EvalResult{Err: err}
		}
	}

	code := AdaptCode(req.Code, asyncNames)

	done := make(chan struct{})
	var timer *time.Timer
	timer = time.AfterFunc(time.Duration(timeout)*time.Millisecond, func() {
		vm.Interrupt(ErrTimeout)
	})
	defer timer.Stop()

	var value goja.Value
	var runErr error
	go func() {
		defer close(done)
		value, runErr = vm.RunString(code)
	}()

	select {
	case <-ctx.Done():
		vm.Interrupt(ctx.Err())
		<-done
	case <-done:
	}

	if runErr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(runErr, &interrupted) {
			return EvalResult{Err: fmt.Errorf("%w", ErrTimeout)}
		}
		if out.Len() > 0 {
			return EvalResult{Output: out.String() + "\n" + runErr.Error(), Err: runErr}
		}
		return EvalResult{Err: runErr}
	}

	if out.Len() > 0 {
		return EvalResult{Output: out.String()}
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return EvalResult{Output: ""}
	}
	return EvalResult{Output: value.String()}
}

func maxOutput(requested int) int {
	if requested <= 0 {
		return DefaultMaxOutput
	}
	return requested
}

func truncate(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	return s[:max], true
}

// registerConsole wires a minimal console.log/console.error that
// scripts commonly use to produce output, appending to buf.
func registerConsole(vm *goja.Runtime, buf *strings.Builder) {
	console := vm.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(strings.Join(parts, " "))
		return goja.Undefined()
	}
	console.Set("log", logFn)
	console.Set("error", logFn)
	console.Set("warn", logFn)
	vm.Set("console", console)
}

// registerTool exposes a ToolFunc as a global JS function. goja wraps a
// plain Go function assigned via Set using reflection: the returned
// error, if non-nil, is thrown as a JS exception, so script code can
// use ordinary try/catch. Script code may still write `await
// toolName(args)` (the form the system prompt instructs, per
// spec.md §4.6 step b, and what adaptAutoAwait inserts) — awaiting a
// non-thenable value is valid JS and simply resolves to it immediately.
func registerTool(vm *goja.Runtime, name string, fn ToolFunc) error {
	wrapped := func(args map[string]any) (any, error) {
		return fn(args)
	}
	return vm.Set(name, wrapped)
}
