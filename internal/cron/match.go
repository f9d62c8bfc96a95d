package cron

import (
	"time"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

// CronMatches reports whether a parsed cron expression matches the
// local-time breakdown of t: every field-specific predicate must hold.
func CronMatches(expr *models.CronExpr, t time.Time) bool {
	if expr == nil {
		return false
	}
	return matchesField(expr.Minutes, t.Minute()) &&
		matchesField(expr.Hours, t.Hour()) &&
		matchesField(expr.DaysOfMon, t.Day()) &&
		matchesField(expr.Months, int(t.Month())) &&
		matchesField(expr.DaysOfWeek, int(t.Weekday()))
}
