package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting runtime
// metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - LLM request performance, token usage, and cost
//   - Tool execution patterns and latencies
//   - Autonomy gate decisions (allowed, deferred for approval, denied)
//   - Safety pipeline redactions
//   - Error rates categorized by type and component
//   - Active conversation session counts for capacity planning
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.LLMRequestDuration.WithLabelValues("anthropic", "claude-sonnet-4").Observe(time.Since(start).Seconds())
type Metrics struct {
	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (anthropic|openai|bedrock), model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD tracks cumulative estimated spend.
	// Labels: provider, model
	LLMCostUSD *prometheus.CounterVec

	// ContextWindowUsed tracks how much of the context window a turn
	// consumed, as a fraction of ContextLimit.
	// Labels: provider, model
	ContextWindowUsed *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// AutonomyDecisionCounter counts autonomy gate decisions.
	// Labels: level (readonly|supervised|full), decision (allowed|deferred|denied)
	AutonomyDecisionCounter *prometheus.CounterVec

	// AutonomyRateLimited counts actions rejected for exceeding the
	// hourly action budget or the daily cost budget.
	// Labels: reason (actions_per_hour|cost_per_day)
	AutonomyRateLimited *prometheus.CounterVec

	// SafetyRedactionCounter counts values the safety pipeline redacted
	// before they reached a tool call or an LLM prompt.
	// Labels: stage (tool_input|tool_output|fetch_url), category
	SafetyRedactionCounter *prometheus.CounterVec

	// SafetyBlockCounter counts actions the safety pipeline blocked
	// outright (e.g. SSRF-unsafe fetch targets, disallowed paths).
	// Labels: reason
	SafetyBlockCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by type and component.
	// Labels: component (agent|tool|provider|scheduler|memory), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current active conversation
	// sessions held in memory.
	ActiveSessions prometheus.Gauge

	// SessionDuration measures session lifetime in seconds, recorded
	// when a session ends or is archived.
	// Buckets: 60s, 300s, 600s, 1800s, 3600s, 7200s, 14400s, 28800s
	SessionDuration prometheus.Histogram

	// RunAttempts counts agent run attempts by outcome.
	// Labels: status (success|error|max_iterations)
	RunAttempts *prometheus.CounterVec

	// CompactionCounter counts history compaction events.
	// Labels: trigger (threshold|manual)
	CompactionCounter *prometheus.CounterVec
}

// NewMetrics creates and registers a new Metrics instance with the
// default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kestrel_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_llm_requests_total",
				Help: "Total number of LLM API requests",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_llm_tokens_total",
				Help: "Total number of LLM tokens consumed",
			},
			[]string{"provider", "model", "type"},
		),
		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_llm_cost_usd_total",
				Help: "Cumulative estimated LLM spend in USD",
			},
			[]string{"provider", "model"},
		),
		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kestrel_context_window_used_ratio",
				Help:    "Fraction of the configured context limit used by a turn",
				Buckets: []float64{0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 1.0},
			},
			[]string{"provider", "model"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kestrel_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		AutonomyDecisionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_autonomy_decisions_total",
				Help: "Total number of autonomy gate decisions",
			},
			[]string{"level", "decision"},
		),
		AutonomyRateLimited: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_autonomy_rate_limited_total",
				Help: "Total number of actions rejected for exceeding an autonomy budget",
			},
			[]string{"reason"},
		),
		SafetyRedactionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_safety_redactions_total",
				Help: "Total number of values redacted by the safety pipeline",
			},
			[]string{"stage", "category"},
		),
		SafetyBlockCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_safety_blocks_total",
				Help: "Total number of actions blocked outright by the safety pipeline",
			},
			[]string{"reason"},
		),
		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_errors_total",
				Help: "Total number of errors by component and type",
			},
			[]string{"component", "error_type"},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kestrel_active_sessions",
				Help: "Current number of active conversation sessions",
			},
		),
		SessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kestrel_session_duration_seconds",
				Help:    "Duration of conversation sessions in seconds",
				Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800},
			},
		),
		RunAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_run_attempts_total",
				Help: "Total number of agent run attempts by outcome",
			},
			[]string{"status"},
		),
		CompactionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kestrel_history_compactions_total",
				Help: "Total number of history compaction events",
			},
			[]string{"trigger"},
		),
	}
}

// RecordLLMRequest records metrics for a completed LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordLLMCost adds to the cumulative cost counter for a provider/model pair.
func (m *Metrics) RecordLLMCost(provider, model string, costUSD float64) {
	m.LLMCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordContextWindow records the fraction of the context limit a turn used.
func (m *Metrics) RecordContextWindow(provider, model string, usedTokens, limitTokens int) {
	if limitTokens <= 0 {
		return
	}
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(usedTokens) / float64(limitTokens))
}

// RecordToolExecution records metrics for a completed tool call.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordAutonomyDecision records the outcome of an autonomy gate check.
func (m *Metrics) RecordAutonomyDecision(level, decision string) {
	m.AutonomyDecisionCounter.WithLabelValues(level, decision).Inc()
}

// RecordAutonomyRateLimited records an action rejected for exceeding
// the hourly action budget or the daily cost budget.
func (m *Metrics) RecordAutonomyRateLimited(reason string) {
	m.AutonomyRateLimited.WithLabelValues(reason).Inc()
}

// RecordSafetyRedaction records a value the safety pipeline redacted
// before it reached a tool or an LLM prompt.
func (m *Metrics) RecordSafetyRedaction(stage, category string) {
	m.SafetyRedactionCounter.WithLabelValues(stage, category).Inc()
}

// RecordSafetyBlock records an action the safety pipeline blocked outright.
func (m *Metrics) RecordSafetyBlock(reason string) {
	m.SafetyBlockCounter.WithLabelValues(reason).Inc()
}

// RecordError increments the error counter for a component/error-type pair.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active session gauge and records the session's lifetime.
func (m *Metrics) SessionEnded(durationSeconds float64) {
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordRunAttempt records the outcome of an agent run.
func (m *Metrics) RecordRunAttempt(status string) {
	m.RunAttempts.WithLabelValues(status).Inc()
}

// RecordCompaction records a history compaction event.
func (m *Metrics) RecordCompaction(trigger string) {
	m.CompactionCounter.WithLabelValues(trigger).Inc()
}
