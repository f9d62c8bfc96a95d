// Package hooks implements the six-point lifecycle hook pipeline:
// beforeInbound, beforeToolCall, beforeOutbound, transformResponse,
// onSessionStart, onSessionEnd. Hooks run in ascending priority order,
// may continue/skip/block/modify, and fail open on handler error.
package hooks

import (
	"context"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// Hook is a single registered handler at one pipeline point.
type Hook struct {
	Name     string
	Point    models.HookPoint
	Priority int // default 100, lower runs first
	Enabled  bool

	Execute func(ctx context.Context, hctx models.HookContext) models.HookResult

	// factoryName identifies the factory used to reconstruct Execute on
	// deserialization; it is not itself callable.
	factoryName string
}

// Factory builds a Hook's Execute function from its configuration data,
// used when deserializing a persisted registration.
type Factory func(data map[string]any) func(ctx context.Context, hctx models.HookContext) models.HookResult

// Registration is the durable, serializable shape of a Hook.
type Registration struct {
	Name        string           `json:"name"`
	Point       models.HookPoint `json:"point"`
	Priority    int              `json:"priority"`
	Enabled     bool             `json:"enabled"`
	FactoryName string           `json:"factory_name"`
	Data        map[string]any   `json:"data,omitempty"`
}

// RunOutcome is the result of running a pipeline point: either the
// context passed through (possibly modified), or a block with its
// reason.
type RunOutcome struct {
	Blocked bool
	Reason  string
	Ctx     models.HookContext
}
