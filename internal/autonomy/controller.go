// Package autonomy implements the permission-gating and rate/cost
// accounting controller described in spec §4.3. Grounded on the
// teacher's internal/agent (approval.go) allow/deny policy shape and
// internal/tools/policy per-risk-level counters, narrowed to the
// spec's three autonomy levels and hard hourly/daily windows.
package autonomy

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

const (
	hourMs = int64(3_600_000)
	dayMs  = int64(86_400_000)
)

// Controller tracks one agent's autonomy level and rate/cost counters.
type Controller struct {
	mu    sync.Mutex
	state models.AutonomyState
	now   func() time.Time

	// estimator maps (model, usage) to an incremental cost in cents.
	estimator CostEstimator

	// burst smooths actions within the hourly window so a caller can't
	// spend the whole hourly budget in its first second; the hard
	// window counters above remain the authoritative cap.
	burst *rate.Limiter
}

// CostEstimator multiplies token counts by a per-model rate to produce
// a cost-in-cents estimate for a single provider call.
type CostEstimator func(model string, usage models.Usage) int64

// DefaultCostEstimator charges a flat $0.003 / 1K input tokens and
// $0.015 / 1K output tokens (Claude-Sonnet-class pricing) when the
// model is unrecognized, and model-specific rates for a few well-known
// models.
func DefaultCostEstimator(model string, usage models.Usage) int64 {
	inRate, outRate := 0.3, 1.5 // cents per 1K tokens
	switch model {
	case "claude-haiku", "gpt-4o-mini":
		inRate, outRate = 0.015, 0.06
	case "claude-opus":
		inRate, outRate = 1.5, 7.5
	}
	cost := (float64(usage.InputTokens)/1000.0)*inRate + (float64(usage.OutputTokens)/1000.0)*outRate
	return int64(cost + 0.5)
}

// New creates a Controller at the given level with the given limits.
// now is injectable for deterministic tests.
func New(level models.AutonomyLevel, maxActionsPerHour int, maxCostPerDayCents int64, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	n := now()
	return &Controller{
		state: models.AutonomyState{
			Level:              level,
			HourStart:          n.UnixMilli(),
			DayStart:           startOfLocalDay(n).UnixMilli(),
			MaxActionsPerHour:  maxActionsPerHour,
			MaxCostPerDayCents: maxCostPerDayCents,
		},
		now:       now,
		estimator: DefaultCostEstimator,
		burst:     newBurstLimiter(maxActionsPerHour),
	}
}

// newBurstLimiter builds a token bucket that spreads maxActionsPerHour
// evenly across the hour, with a short burst allowance on top. A
// non-positive limit means unlimited: no smoothing is applied.
func newBurstLimiter(maxActionsPerHour int) *rate.Limiter {
	if maxActionsPerHour <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	perSecond := rate.Limit(float64(maxActionsPerHour) / 3600.0)
	burst := maxActionsPerHour/12 + 1 // ~5 minutes' worth of actions
	return rate.NewLimiter(perSecond, burst)
}

func startOfLocalDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SetEstimator overrides the cost estimator.
func (c *Controller) SetEstimator(e CostEstimator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.estimator = e
}

// State returns a copy of the current autonomy state.
func (c *Controller) State() models.AutonomyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetLevel changes the autonomy level.
func (c *Controller) SetLevel(level models.AutonomyLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Level = level
}

// CanExecuteTool reports whether the tool's permission class is allowed
// to execute at the current level: at readonly, only the read set
// (internal, read) passes; at supervised and full, everything passes.
func (c *Controller) CanExecuteTool(permission models.PermissionClass) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Level == models.AutonomyReadOnly {
		return permission.IsReadSet()
	}
	return true
}

// NeedsApproval reports whether a non-read-set tool requires approval,
// which is true only at the supervised level.
func (c *Controller) NeedsApproval(permission models.PermissionClass) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Level == models.AutonomySupervised && !permission.IsReadSet()
}

// CheckLimits rolls the hourly/daily windows forward if expired and
// reports whether either counter has reached its maximum. Window
// rollover happens ONLY here, on check — there is no background timer
// (spec §5).
func (c *Controller) CheckLimits() (blocked bool, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nowMs := c.now().UnixMilli()

	if nowMs-c.state.HourStart > hourMs {
		c.state.ActionsThisHour = 0
		c.state.HourStart = nowMs
	}
	if nowMs-c.state.DayStart > dayMs {
		c.state.CostTodayCents = 0
		c.state.DayStart = startOfLocalDay(c.now()).UnixMilli()
	}

	if c.state.MaxActionsPerHour > 0 && c.state.ActionsThisHour >= c.state.MaxActionsPerHour {
		waitMs := hourMs - (nowMs - c.state.HourStart)
		return true, fmt.Sprintf("hourly action limit reached (%d/%d); retry in %s",
			c.state.ActionsThisHour, c.state.MaxActionsPerHour, time.Duration(waitMs)*time.Millisecond)
	}
	if c.state.MaxCostPerDayCents > 0 && c.state.CostTodayCents >= c.state.MaxCostPerDayCents {
		waitMs := dayMs - (nowMs - c.state.DayStart)
		return true, fmt.Sprintf("daily cost limit reached (%d/%d cents); retry in %s",
			c.state.CostTodayCents, c.state.MaxCostPerDayCents, time.Duration(waitMs)*time.Millisecond)
	}
	if c.burst != nil && !c.burst.AllowN(c.now(), 1) {
		return true, fmt.Sprintf("burst rate exceeded; actions are smoothed to %d/hour", c.state.MaxActionsPerHour)
	}
	return false, ""
}

// RecordAction increments the hourly counter after a successful tool
// invocation.
func (c *Controller) RecordAction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ActionsThisHour++
}

// RecordCost estimates and records the cost of an LLM call against the
// daily counter.
func (c *Controller) RecordCost(model string, usage models.Usage) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	cost := c.estimator(model, usage)
	c.state.CostTodayCents += cost
	return cost
}
