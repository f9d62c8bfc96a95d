package cron

import (
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// ParseIntervalExpression validates and converts a human-friendly
// duration string (e.g. "5m", "1h30m") into the millisecond interval
// AddInterval expects. It cross-checks the expression through
// robfig/cron's "@every" grammar rather than reimplementing duration
// parsing by hand: the cron-field matching itself (spec §4.7) is still
// entirely hand-rolled in parser.go, since robfig's own field parser
// cannot express the spec's 5-field/null-on-4-or-6-fields contract.
func ParseIntervalExpression(expr string) (time.Duration, error) {
	schedule, err := robfigcron.ParseStandard("@every " + expr)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	first := schedule.Next(now)
	second := schedule.Next(first)
	return second.Sub(first), nil
}
