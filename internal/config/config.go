// Package config loads and validates Kestrel's YAML runtime
// configuration, nesting one sub-config per core collaborator
// (agent, autonomy, safety, memory, scheduler, hooks, logging), and
// supports hot-reload via a file watcher (see watcher.go).
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is Kestrel's top-level runtime configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Autonomy  AutonomyConfig  `yaml:"autonomy"`
	Safety    SafetyConfig    `yaml:"safety"`
	Memory    MemoryConfig    `yaml:"memory"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AgentConfig configures internal/agent.Runtime (mirrors agent.Config;
// see internal/agent/config.go for the defaults this sanitizes into).
type AgentConfig struct {
	Model               string `yaml:"model"`
	SystemPrompt        string `yaml:"system_prompt"`
	MaxToolIterations   int    `yaml:"max_tool_iterations"`
	MaxHistoryMessages  int    `yaml:"max_history_messages"`
	MaxResultLength     int    `yaml:"max_result_length"`
	CompactionThreshold int    `yaml:"compaction_threshold"`
	ContextLimit        int    `yaml:"context_limit"`
	RecallCacheMax      int    `yaml:"recall_cache_max"`
	RecallCacheTTLMs    int    `yaml:"recall_cache_ttl_ms"`
	SandboxTimeoutMs    int64  `yaml:"sandbox_timeout_ms"`
	RemoteToolTimeoutMs int64  `yaml:"remote_tool_timeout_ms"`
}

// AutonomyConfig configures internal/autonomy.Controller.
type AutonomyConfig struct {
	// Level is one of "readonly", "supervised", "full".
	Level              string `yaml:"level"`
	MaxActionsPerHour  int    `yaml:"max_actions_per_hour"`
	MaxCostPerDayCents int64  `yaml:"max_cost_per_day_cents"`
}

// SafetyConfig configures internal/safety.Pipeline.
type SafetyConfig struct {
	VaultPrefix string `yaml:"vault_prefix"`
}

// MemoryConfig configures internal/memory.Store (mirrors
// memory.Config; MaxAgeHours is the YAML-friendly form of
// memory.Config.MaxAge).
type MemoryConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
	MinScore      float64 `yaml:"min_score"`
	MaxAgeHours   int     `yaml:"max_age_hours"`
	MaxEntries    int     `yaml:"max_entries"`
	CacheCapacity int     `yaml:"cache_capacity"`
}

// SchedulerConfig configures internal/cron.Scheduler.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HooksConfig lists which registered hook factories internal/hooks
// should activate, keyed by the name each was registered under.
type HooksConfig struct {
	Enabled []string `yaml:"enabled"`
}

// LoggingConfig configures the process-wide log/slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

// Load reads, env-expands, decodes, defaults, overrides, and validates
// the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from in-memory YAML bytes, applying the
// same env-expansion, defaulting, override, and validation steps as
// Load. Exposed separately so the hot-reload watcher (watcher.go) can
// reparse a changed file without going through the filesystem twice.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config: parse: expected a single YAML document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "claude-sonnet-4-5"
	}
	if cfg.Agent.MaxToolIterations == 0 {
		cfg.Agent.MaxToolIterations = 20
	}
	if cfg.Agent.MaxHistoryMessages == 0 {
		cfg.Agent.MaxHistoryMessages = 50
	}
	if cfg.Agent.MaxResultLength == 0 {
		cfg.Agent.MaxResultLength = 1500
	}
	if cfg.Agent.CompactionThreshold == 0 {
		cfg.Agent.CompactionThreshold = 12000
	}
	if cfg.Agent.ContextLimit == 0 {
		cfg.Agent.ContextLimit = 128000
	}
	if cfg.Agent.RecallCacheMax == 0 {
		cfg.Agent.RecallCacheMax = 200
	}
	if cfg.Agent.RecallCacheTTLMs == 0 {
		cfg.Agent.RecallCacheTTLMs = 5 * 60 * 1000
	}
	if cfg.Agent.SandboxTimeoutMs == 0 {
		cfg.Agent.SandboxTimeoutMs = 300 * 1000
	}
	if cfg.Agent.RemoteToolTimeoutMs == 0 {
		cfg.Agent.RemoteToolTimeoutMs = 30 * 1000
	}

	if cfg.Autonomy.Level == "" {
		cfg.Autonomy.Level = "supervised"
	}

	if cfg.Memory.VectorWeight == 0 && cfg.Memory.KeywordWeight == 0 {
		cfg.Memory.VectorWeight = 0.5
		cfg.Memory.KeywordWeight = 0.5
	}
	if cfg.Memory.MaxAgeHours == 0 {
		cfg.Memory.MaxAgeHours = 30 * 24
	}
	if cfg.Memory.MaxEntries == 0 {
		cfg.Memory.MaxEntries = 10_000
	}
	if cfg.Memory.CacheCapacity == 0 {
		cfg.Memory.CacheCapacity = 256
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// MaxAge returns MaxAgeHours as a time.Duration for wiring into
// memory.Config.
func (c MemoryConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("KESTREL_MODEL")); v != "" {
		cfg.Agent.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("KESTREL_AUTONOMY_LEVEL")); v != "" {
		cfg.Autonomy.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("KESTREL_MAX_ACTIONS_PER_HOUR")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Autonomy.MaxActionsPerHour = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("KESTREL_MAX_COST_PER_DAY_CENTS")); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Autonomy.MaxCostPerDayCents = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("KESTREL_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

// ValidationError aggregates every configuration problem found by
// validate, rather than stopping at the first.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config: validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	switch cfg.Autonomy.Level {
	case "readonly", "supervised", "full":
	default:
		issues = append(issues, fmt.Sprintf("autonomy.level must be one of readonly|supervised|full, got %q", cfg.Autonomy.Level))
	}
	if cfg.Autonomy.MaxActionsPerHour < 0 {
		issues = append(issues, "autonomy.max_actions_per_hour must not be negative")
	}
	if cfg.Autonomy.MaxCostPerDayCents < 0 {
		issues = append(issues, "autonomy.max_cost_per_day_cents must not be negative")
	}

	if cfg.Memory.VectorWeight < 0 || cfg.Memory.KeywordWeight < 0 {
		issues = append(issues, "memory.vector_weight and memory.keyword_weight must not be negative")
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("logging.format must be text or json, got %q", cfg.Logging.Format))
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
