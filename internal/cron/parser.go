// Package cron implements the job scheduler described in spec §4.7: a
// registry of once/interval/cron jobs advanced by a single tick(nowMs)
// call, and a hand-rolled five-field cron expression parser. Grounded
// on the teacher's internal/cron.Scheduler functional-options shape,
// narrowed from its robfig/cron-backed six-field parser to the spec's
// exact five-field grammar.
package cron

import (
	"strconv"
	"strings"

	"github.com/kestrel-agent/kestrel/pkg/models"
)

var fieldRanges = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week
}

// ParseCron parses a five-field cron expression. Each field supports
// *, an integer, a range a-b, a list a,b,c (each element itself a value
// or range), and a step base/step where base is *, an integer, or a
// range. It returns nil on any syntax violation, including a field
// count other than five.
func ParseCron(expr string) *models.CronExpr {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil
	}

	sets := make([]map[int]struct{}, 5)
	for i, f := range fields {
		set, ok := parseField(f, fieldRanges[i][0], fieldRanges[i][1])
		if !ok {
			return nil
		}
		sets[i] = set
	}

	return &models.CronExpr{
		Minutes:    sets[0],
		Hours:      sets[1],
		DaysOfMon:  sets[2],
		Months:     sets[3],
		DaysOfWeek: sets[4],
	}
}

// parseField parses one cron field into the set of values it accepts
// within [lo, hi]. An empty, nil-valued result (wildcard) is
// represented as an empty map by convention: callers treat an empty
// map as "matches everything".
func parseField(field string, lo, hi int) (map[int]struct{}, bool) {
	if field == "*" {
		return map[int]struct{}{}, true
	}

	// Step: base/step, where base is *, an integer, or a range.
	if strings.Contains(field, "/") {
		parts := strings.SplitN(field, "/", 2)
		if len(parts) != 2 {
			return nil, false
		}
		step, err := strconv.Atoi(parts[1])
		if err != nil || step <= 0 {
			return nil, false
		}

		base := parts[0]
		var baseLo, baseHi int
		switch {
		case base == "*":
			baseLo, baseHi = lo, hi
		case strings.Contains(base, "-"):
			var ok bool
			baseLo, baseHi, ok = parseRange(base, lo, hi)
			if !ok {
				return nil, false
			}
		default:
			v, err := strconv.Atoi(base)
			if err != nil || v < lo || v > hi {
				return nil, false
			}
			baseLo, baseHi = v, hi
		}

		set := make(map[int]struct{})
		for v := baseLo; v <= baseHi; v += step {
			set[v] = struct{}{}
		}
		return set, true
	}

	// List: a,b,c, each element a value or range.
	if strings.Contains(field, ",") {
		set := make(map[int]struct{})
		for _, part := range strings.Split(field, ",") {
			if strings.Contains(part, "-") {
				partLo, partHi, ok := parseRange(part, lo, hi)
				if !ok {
					return nil, false
				}
				for v := partLo; v <= partHi; v++ {
					set[v] = struct{}{}
				}
				continue
			}
			v, err := strconv.Atoi(part)
			if err != nil || v < lo || v > hi {
				return nil, false
			}
			set[v] = struct{}{}
		}
		return set, true
	}

	// Range: a-b.
	if strings.Contains(field, "-") {
		rLo, rHi, ok := parseRange(field, lo, hi)
		if !ok {
			return nil, false
		}
		set := make(map[int]struct{})
		for v := rLo; v <= rHi; v++ {
			set[v] = struct{}{}
		}
		return set, true
	}

	// Plain integer.
	v, err := strconv.Atoi(field)
	if err != nil || v < lo || v > hi {
		return nil, false
	}
	return map[int]struct{}{v: {}}, true
}

func parseRange(s string, lo, hi int) (int, int, bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err1 := strconv.Atoi(parts[0])
	b, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || a < lo || b > hi || a > b {
		return 0, 0, false
	}
	return a, b, true
}

// matchesField reports whether v satisfies a parsed field's set; an
// empty set is the wildcard and matches every value.
func matchesField(set map[int]struct{}, v int) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[v]
	return ok
}
