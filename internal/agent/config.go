package agent

// Config holds the options recognized on init (spec.md §6). Zero values
// are replaced by sanitizeConfig with the documented defaults, mirroring
// the teacher's loop.go sanitizeLoopConfig default-filling pattern.
type Config struct {
	// MaxToolIterations caps provider/tool rounds per turn.
	MaxToolIterations int
	// MaxHistoryMessages is an advisory cap exposed to compaction policy.
	MaxHistoryMessages int
	// MaxResultLength is the per-tool-result chat budget for the
	// code-execution summary path.
	MaxResultLength int
	// CompactionThreshold is the estimated-token threshold that
	// triggers context compaction.
	CompactionThreshold int
	// ContextLimit is reported to self-repair heuristics.
	ContextLimit int
	// RecallCacheMax and RecallCacheTTL bound the memory recall cache.
	RecallCacheMax int
	RecallCacheTTL int // milliseconds

	// SandboxTimeoutMs bounds a single code-execution evaluation
	// (spec.md §5, default 300s).
	SandboxTimeoutMs int64
	// RemoteToolTimeoutMs bounds a single remote-tool call (§5, default 30s).
	RemoteToolTimeoutMs int64
}

const (
	defaultMaxToolIterations   = 20
	defaultMaxHistoryMessages  = 50
	defaultMaxResultLength     = 1500
	defaultCompactionThreshold = 12000
	defaultContextLimit        = 128000
	defaultRecallCacheMax      = 200
	defaultRecallCacheTTLMs    = 5 * 60 * 1000
	defaultSandboxTimeoutMs    = 300 * 1000
	defaultRemoteToolTimeoutMs = 30 * 1000

	// compactionKeepLast is the number of most recent messages the
	// compactor preserves verbatim (spec.md §4.6.3).
	compactionKeepLast = 10
)

// sanitizeConfig fills zero fields with their documented defaults. It
// never mutates a negative value into a default: a caller that passes a
// negative number gets exactly that, since several of these are used as
// hard caps whose semantics a negative value may legitimately disable
// in host-specific ways.
func sanitizeConfig(cfg Config) Config {
	if cfg.MaxToolIterations == 0 {
		cfg.MaxToolIterations = defaultMaxToolIterations
	}
	if cfg.MaxHistoryMessages == 0 {
		cfg.MaxHistoryMessages = defaultMaxHistoryMessages
	}
	if cfg.MaxResultLength == 0 {
		cfg.MaxResultLength = defaultMaxResultLength
	}
	if cfg.CompactionThreshold == 0 {
		cfg.CompactionThreshold = defaultCompactionThreshold
	}
	if cfg.ContextLimit == 0 {
		cfg.ContextLimit = defaultContextLimit
	}
	if cfg.RecallCacheMax == 0 {
		cfg.RecallCacheMax = defaultRecallCacheMax
	}
	if cfg.RecallCacheTTL == 0 {
		cfg.RecallCacheTTL = defaultRecallCacheTTLMs
	}
	if cfg.SandboxTimeoutMs == 0 {
		cfg.SandboxTimeoutMs = defaultSandboxTimeoutMs
	}
	if cfg.RemoteToolTimeoutMs == 0 {
		cfg.RemoteToolTimeoutMs = defaultRemoteToolTimeoutMs
	}
	return cfg
}
