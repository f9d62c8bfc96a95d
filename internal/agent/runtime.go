// Package agent implements the host-facing agent core: the turn
// algorithm that drives a provider and its tools to a completed
// response, event-log-backed conversation state, context compaction,
// checkpointing, and scheduler-job passthroughs (spec.md §4.6).
package agent

import (
	"context"
	"time"

	"github.com/kestrel-agent/kestrel/internal/autonomy"
	"github.com/kestrel-agent/kestrel/internal/cron"
	"github.com/kestrel-agent/kestrel/internal/eventlog"
	"github.com/kestrel-agent/kestrel/internal/hooks"
	"github.com/kestrel-agent/kestrel/internal/memory"
	"github.com/kestrel-agent/kestrel/internal/safety"
	"github.com/kestrel-agent/kestrel/internal/sandbox"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// MaxResponseTextSize bounds the accumulated response text size (1MB)
// the core will assemble from a single provider call, guarding against
// memory exhaustion from a malicious or malfunctioning provider.
const MaxResponseTextSize = 1 << 20

// MaxToolCallsPerIteration bounds the number of tool calls a single
// provider response may request, guarding against a response that
// returns an excessive tool-call batch.
const MaxToolCallsPerIteration = 100

// Runtime is the agent core. All of its state is owned exclusively by
// the instance; the concurrency model (spec.md §5) is single-threaded
// cooperative, so Runtime holds no internal locks.
type Runtime struct {
	provider Provider
	events   *eventlog.Log
	hooks    *hooks.Pipeline
	autonomy *autonomy.Controller
	safety   *safety.Pipeline
	memory   *memory.Store
	scheduler *cron.Scheduler
	sandbox  *sandbox.Sandbox

	tools  ToolRegistry
	remote RemoteToolManager
	cache  ResponseCache

	selfRepair SelfRepair

	cfg Config
	now func() time.Time

	systemPrompt string
	model        string

	goalSeq int
}

// Deps collects Runtime's required and optional collaborators.
type Deps struct {
	Provider  Provider
	Events    *eventlog.Log
	Hooks     *hooks.Pipeline
	Autonomy  *autonomy.Controller
	Safety    *safety.Pipeline
	Memory    *memory.Store
	Scheduler *cron.Scheduler
	Sandbox   *sandbox.Sandbox

	Tools  ToolRegistry
	Remote RemoteToolManager // optional
	Cache  ResponseCache     // optional

	SelfRepair SelfRepair // optional; defaults to DefaultSelfRepair

	Config Config
	Now    func() time.Time // optional; defaults to time.Now
}

// New constructs a Runtime from its collaborators, filling optional
// fields with the teacher's documented defaults.
func New(deps Deps) *Runtime {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	selfRepair := deps.SelfRepair
	if selfRepair == nil {
		selfRepair = NewDefaultSelfRepair()
	}
	tools := deps.Tools
	if tools == nil {
		tools = NewLocalRegistry()
	}
	sb := deps.Sandbox
	if sb == nil {
		sb = sandbox.New()
	}
	return &Runtime{
		provider:   deps.Provider,
		events:     deps.Events,
		hooks:      deps.Hooks,
		autonomy:   deps.Autonomy,
		safety:     deps.Safety,
		memory:     deps.Memory,
		scheduler:  deps.Scheduler,
		sandbox:    sb,
		tools:      tools,
		remote:     deps.Remote,
		cache:      deps.Cache,
		selfRepair: selfRepair,
		cfg:        sanitizeConfig(deps.Config),
		now:        now,
	}
}

// Tools returns the runtime's local tool registry, so a host can
// register capabilities after construction.
func (rt *Runtime) Tools() ToolRegistry { return rt.tools }

// SendMessage appends a user message and its user_message event
// (spec.md §4.6).
func (rt *Runtime) SendMessage(text string) {
	rt.events.Append(models.EventUserMessage, models.EventData{Content: text}, models.SourceUser)
}

// SetSystemPrompt installs or replaces the system message used when
// deriving history. The system message itself is not an event; it is
// supplied to DeriveSessionHistory at read time.
func (rt *Runtime) SetSystemPrompt(text string) {
	rt.systemPrompt = text
}

// SetModel overrides the model passed to the provider on every
// subsequent call; empty defers to the provider's own default.
func (rt *Runtime) SetModel(model string) {
	rt.model = model
}

// history returns the current derived conversation view.
func (rt *Runtime) history() []models.Message {
	return eventlog.DeriveSessionHistory(rt.events.Events(), rt.systemPrompt)
}

type workspaceKey struct{}

// WithWorkspace stores a workspace id in the context, generalizing the
// teacher's WithSession/SessionFromContext context-key pattern
// (internal/agent/runtime_context.go) to Kestrel's persistence
// namespacing (spec.md §6).
func WithWorkspace(ctx context.Context, workspaceID string) context.Context {
	if workspaceID == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceKey{}, workspaceID)
}

// WorkspaceFromContext retrieves the workspace id stored by
// WithWorkspace, if any.
func WorkspaceFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(workspaceKey{}).(string)
	return id, ok
}
