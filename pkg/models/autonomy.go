package models

// AutonomyLevel is the coarse permission mode controlling which tool
// permission classes may execute without approval.
type AutonomyLevel string

const (
	AutonomyReadOnly   AutonomyLevel = "readonly"
	AutonomySupervised AutonomyLevel = "supervised"
	AutonomyFull       AutonomyLevel = "full"
)

// AutonomyState is the mutable counters and window markers the
// autonomy controller maintains.
type AutonomyState struct {
	Level AutonomyLevel `json:"level"`

	ActionsThisHour int   `json:"actions_this_hour"`
	CostTodayCents  int64 `json:"cost_today_cents"`

	HourStart int64 `json:"hour_start"` // epoch ms
	DayStart  int64 `json:"day_start"`  // epoch ms

	MaxActionsPerHour  int   `json:"max_actions_per_hour"`
	MaxCostPerDayCents int64 `json:"max_cost_per_day_cents"`
}

// Usage reports token counts from a single provider call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CachedTokens int `json:"cached_tokens,omitempty"`
}
