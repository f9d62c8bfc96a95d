package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// Pipeline manages hook registrations across the six pipeline points and
// runs them in priority order. Grounded on the teacher's
// internal/hooks.Registry (priority-sorted registration, Register/
// Unregister) generalized to the spec's halting block / patch-folding
// modify semantics.
type Pipeline struct {
	mu       sync.RWMutex
	byPoint  map[models.HookPoint][]*Hook
	factories map[string]Factory
	logger   *slog.Logger
}

// NewPipeline creates an empty hook pipeline.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		byPoint:   make(map[models.HookPoint][]*Hook),
		factories: make(map[string]Factory),
		logger:    logger.With("component", "hooks"),
	}
}

// RegisterFactory makes a named factory available for deserialization.
func (p *Pipeline) RegisterFactory(name string, f Factory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[name] = f
}

// Register adds a hook at its point, keeping the point's slice sorted
// by ascending priority.
func (p *Pipeline) Register(h *Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h.Priority == 0 {
		h.Priority = 100
	}
	h.Enabled = true

	list := append(p.byPoint[h.Point], h)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority < list[j].Priority })
	p.byPoint[h.Point] = list
}

// Unregister removes a hook by name from a point.
func (p *Pipeline) Unregister(point models.HookPoint, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.byPoint[point]
	for i, h := range list {
		if h.Name == name {
			p.byPoint[point] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Run invokes enabled hooks registered at point in ascending priority
// order, folding modify patches into the context for successors. On
// block, the pipeline halts immediately and reports Blocked=true. Hook
// panics and errors never propagate: a hook that panics is treated as
// fail-open (logged, skipped, pipeline continues) — see execute below.
func (p *Pipeline) Run(ctx context.Context, point models.HookPoint, data map[string]any) RunOutcome {
	p.mu.RLock()
	list := make([]*Hook, len(p.byPoint[point]))
	copy(list, p.byPoint[point])
	p.mu.RUnlock()

	hctx := models.HookContext{Point: point, Data: cloneData(data)}

	for _, h := range list {
		if !h.Enabled || h.Execute == nil {
			continue
		}

		result, ok := p.executeSafely(ctx, h, hctx)
		if !ok {
			// Fail-open: handler errored/panicked, skip it.
			continue
		}

		switch result.Action {
		case models.HookBlock:
			return RunOutcome{Blocked: true, Reason: result.Reason, Ctx: hctx}
		case models.HookModify:
			for k, v := range result.Data {
				hctx.Data[k] = v
			}
		case models.HookSkip, models.HookContinue:
			// no-op
		}
	}

	return RunOutcome{Ctx: hctx}
}

// executeSafely calls a hook's Execute, recovering from panics so a
// single misbehaving hook never aborts the pipeline (fail-open).
func (p *Pipeline) executeSafely(ctx context.Context, h *Hook, hctx models.HookContext) (result models.HookResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("hook panicked, skipping", "hook", h.Name, "point", h.Point, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return h.Execute(ctx, hctx), true
}

func cloneData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Serialize returns the durable registrations at all points.
func (p *Pipeline) Serialize() []Registration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Registration
	for point, list := range p.byPoint {
		for _, h := range list {
			out = append(out, Registration{
				Name:        h.Name,
				Point:       point,
				Priority:    h.Priority,
				Enabled:     h.Enabled,
				FactoryName: h.factoryName,
			})
		}
	}
	return out
}

// Deserialize reconstructs hooks from registrations using the
// registered factories. Entries whose factory is missing are silently
// dropped.
func (p *Pipeline) Deserialize(regs []Registration) {
	p.mu.Lock()
	factories := make(map[string]Factory, len(p.factories))
	for k, v := range p.factories {
		factories[k] = v
	}
	p.mu.Unlock()

	for _, r := range regs {
		factory, ok := factories[r.FactoryName]
		if !ok {
			continue
		}
		p.Register(&Hook{
			Name:        r.Name,
			Point:       r.Point,
			Priority:    r.Priority,
			Enabled:     r.Enabled,
			Execute:     factory(r.Data),
			factoryName: r.FactoryName,
		})
	}
}
