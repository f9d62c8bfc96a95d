package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kestrel-agent/kestrel/internal/agent"
	"github.com/kestrel-agent/kestrel/internal/agent/providers"
	"github.com/kestrel-agent/kestrel/internal/autonomy"
	"github.com/kestrel-agent/kestrel/internal/config"
	"github.com/kestrel-agent/kestrel/internal/cron"
	"github.com/kestrel-agent/kestrel/internal/eventlog"
	"github.com/kestrel-agent/kestrel/internal/hooks"
	"github.com/kestrel-agent/kestrel/internal/memory"
	"github.com/kestrel-agent/kestrel/internal/memory/embeddings"
	embopenai "github.com/kestrel-agent/kestrel/internal/memory/embeddings/openai"
	"github.com/kestrel-agent/kestrel/internal/observability"
	"github.com/kestrel-agent/kestrel/internal/safety"
	"github.com/kestrel-agent/kestrel/pkg/models"
)

// observabilitySet bundles the metrics, tracing, and debug-event
// collaborators a session wires around the agent core. Unlike the
// agent's own Deps, these are cross-cutting: they observe a run from
// the outside rather than participating in it.
type observabilitySet struct {
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
	Shutdown func(context.Context) error
	Events   *observability.EventRecorder
}

// buildObservability wires Prometheus metrics, an OpenTelemetry
// tracer (no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set), and an
// in-memory debug event timeline, matching the teacher's own
// three-pillars setup in cmd/nexus.
func buildObservability() *observabilitySet {
	metrics := observability.NewMetrics()

	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "kestrel",
		ServiceVersion: version,
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	})

	store := observability.NewMemoryEventStore(10000)
	recorder := observability.NewEventRecorder(store, nil)

	return &observabilitySet{
		Metrics:  metrics,
		Tracer:   tracer,
		Shutdown: shutdown,
		Events:   recorder,
	}
}

// providerName reports which provider buildProvider would select for
// cfg, for use in metric labels.
func providerName(cfg *config.Config) string {
	switch {
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		return "anthropic"
	case os.Getenv("OPENAI_API_KEY") != "":
		return "openai"
	case os.Getenv("AWS_REGION") != "":
		return "bedrock"
	default:
		return "unknown"
	}
}

// buildProvider selects an agent.Provider from the environment,
// preferring Anthropic, then OpenAI, then Bedrock, matching the
// teacher's own provider-selection precedence in cmd/nexus's service
// wiring (first credential found wins).
func buildProvider(cfg *config.Config) (agent.Provider, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       key,
			DefaultModel: cfg.Agent.Model,
		})
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return providers.NewOpenAIProvider(key, cfg.Agent.Model), nil
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		return providers.NewBedrockProvider(providers.BedrockConfig{
			Region:       region,
			DefaultModel: cfg.Agent.Model,
		})
	}
	return nil, fmt.Errorf("no provider credentials found: set ANTHROPIC_API_KEY, OPENAI_API_KEY, or AWS_REGION")
}

// buildEmbedder selects a memory embeddings.Provider the same way
// buildProvider selects an LLM provider: by which credential is
// present. A nil, nil return leaves memory recall running on BM25
// keyword scoring alone (spec.md §4.5's hybrid score degrades
// gracefully with a zero vector weight contribution).
func buildEmbedder() (embeddings.Provider, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, nil
	}
	return embopenai.New(embopenai.Config{APIKey: key})
}

// buildRuntime constructs an agent.Runtime from loaded configuration,
// wiring every collaborator package the way internal/agent.Deps
// documents them. It also returns the autonomy.Controller separately
// so a caller can apply config hot-reloads (spec.md's "driving
// autonomy/safety pattern updates without restart") without rebuilding
// the whole runtime.
func buildRuntime(cfg *config.Config, events *eventlog.Log, logger *slog.Logger) (*agent.Runtime, *autonomy.Controller, error) {
	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := buildEmbedder()
	if err != nil {
		return nil, nil, fmt.Errorf("embeddings: %w", err)
	}

	memCfg := memory.Config{
		VectorWeight:  cfg.Memory.VectorWeight,
		KeywordWeight: cfg.Memory.KeywordWeight,
		MinScore:      cfg.Memory.MinScore,
		MaxAge:        cfg.Memory.MaxAge(),
		MaxEntries:    cfg.Memory.MaxEntries,
		CacheCapacity: cfg.Memory.CacheCapacity,
	}
	store := memory.New(memCfg, embedder, nil)

	autonomyLevel := models.AutonomyLevel(cfg.Autonomy.Level)
	controller := autonomy.New(autonomyLevel, cfg.Autonomy.MaxActionsPerHour, cfg.Autonomy.MaxCostPerDayCents, nil)

	safetyPipeline := safety.NewPipeline(cfg.Safety.VaultPrefix)

	hooksPipeline := hooks.NewPipeline(logger)
	for _, name := range cfg.Hooks.Enabled {
		logger.Info("hook enabled in config but no bundled factory registered", "hook", name)
	}

	var scheduler *cron.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = cron.New(cron.WithLogger(logger))
	}

	rt := agent.New(agent.Deps{
		Provider:  provider,
		Events:    events,
		Hooks:     hooksPipeline,
		Autonomy:  controller,
		Safety:    safetyPipeline,
		Memory:    store,
		Scheduler: scheduler,
		Config: agent.Config{
			MaxToolIterations:   cfg.Agent.MaxToolIterations,
			MaxHistoryMessages:  cfg.Agent.MaxHistoryMessages,
			MaxResultLength:     cfg.Agent.MaxResultLength,
			CompactionThreshold: cfg.Agent.CompactionThreshold,
			ContextLimit:        cfg.Agent.ContextLimit,
			RecallCacheMax:      cfg.Agent.RecallCacheMax,
			RecallCacheTTL:      cfg.Agent.RecallCacheTTLMs,
			SandboxTimeoutMs:    cfg.Agent.SandboxTimeoutMs,
			RemoteToolTimeoutMs: cfg.Agent.RemoteToolTimeoutMs,
		},
	})
	rt.SetSystemPrompt(cfg.Agent.SystemPrompt)
	rt.SetModel(cfg.Agent.Model)
	return rt, controller, nil
}
