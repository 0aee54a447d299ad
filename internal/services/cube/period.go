package cube

import (
	"time"

	"github.com/tallyhq/tally/internal/models"
)

// PeriodStart returns the canonical start of the period containing t.
// Weekly periods start on Monday, monthly periods on the 1st. Times are
// normalized to UTC midnight so the same calendar day always buckets to
// the same period regardless of the wall clock on the incoming value.
func PeriodStart(periodType models.PeriodType, t time.Time) time.Time {
	d := models.DateOnly(t)
	switch periodType {
	case models.PeriodWeekly:
		// time.Weekday is Sunday-based; shift so Monday is day zero.
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case models.PeriodMonthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

// PeriodEnd returns the inclusive last day of the period starting at start.
func PeriodEnd(periodType models.PeriodType, start time.Time) time.Time {
	switch periodType {
	case models.PeriodWeekly:
		return start.AddDate(0, 0, 6)
	case models.PeriodMonthly:
		return start.AddDate(0, 1, -1)
	default:
		return start
	}
}

// NextPeriod advances start by exactly one period.
func NextPeriod(periodType models.PeriodType, start time.Time) time.Time {
	switch periodType {
	case models.PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case models.PeriodMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// PeriodsInRange enumerates period starts covering [start, end] inclusive.
// The first element is the period containing start, the last the period
// containing end.
func PeriodsInRange(periodType models.PeriodType, start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	last := PeriodStart(periodType, end)
	for p := PeriodStart(periodType, start); !p.After(last); p = NextPeriod(periodType, p) {
		out = append(out, p)
	}
	return out
}
