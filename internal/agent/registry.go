package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// Tool is a single locally-registered capability: its spec plus the
// host callback that runs it.
type Tool struct {
	Spec models.ToolSpec
	Run  func(ctx context.Context, args map[string]any) models.ToolResult
}

// ToolRegistry is the consumed tool-registry interface (spec.md §6):
// has/get/names/allSpecs/execute.
type ToolRegistry interface {
	Has(name string) bool
	Get(name string) (Tool, bool)
	Names() []string
	AllSpecs() []models.ToolSpec
	Execute(ctx context.Context, name string, args map[string]any) models.ToolResult
}

// RemoteToolManager is the consumed remote-tool-manager interface
// (spec.md §6): tools backed by an out-of-process handle rather than a
// local callback, tried only after the local registry misses.
type RemoteToolManager interface {
	FindClient(name string) (any, bool)
	ExecuteTool(ctx context.Context, name string, args map[string]any) models.ToolResult
	AllToolSpecs() []models.ToolSpec
}

// LocalRegistry is the default in-process ToolRegistry implementation.
type LocalRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewLocalRegistry returns an empty registry.
func NewLocalRegistry() *LocalRegistry {
	return &LocalRegistry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name.
func (r *LocalRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Spec.Name] = t
}

func (r *LocalRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

func (r *LocalRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *LocalRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *LocalRegistry) AllSpecs() []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]models.ToolSpec, 0, len(r.tools))
	for _, n := range r.Names() {
		specs = append(specs, r.tools[n].Spec)
	}
	return specs
}

func (r *LocalRegistry) Execute(ctx context.Context, name string, args map[string]any) models.ToolResult {
	t, ok := r.Get(name)
	if !ok {
		return models.Failure(fmt.Sprintf("tool not found: %s", name))
	}
	return t.Run(ctx, args)
}
