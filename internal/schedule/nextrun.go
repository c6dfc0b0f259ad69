// Package schedule implements the recurring-job half of the engine: the
// next-run calculator, due-job selection and the execution pipeline.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/adwatch/internal/models"
)

// ErrInvalidRecurrence marks a malformed recurrence spec (unknown frequency,
// day or time fields out of range). The pipeline records such runs as failed
// and leaves next_run untouched so the definition retries once corrected.
var ErrInvalidRecurrence = errors.New("invalid recurrence")

// ComputeNextRun returns the next UTC instant a definition with the given
// recurrence must fire, strictly after now unless today's occurrence is
// still ahead. A nil instant with nil error means "no further run" (once).
//
// Weekly uses ISO day numbering (1=Monday..7=Sunday). Monthly clamps
// day_of_month to the last day of a shorter target month; it never rolls
// into the following month.
func ComputeNextRun(freq models.Frequency, dayOfWeek, dayOfMonth, hour, minute int, now time.Time) (*time.Time, error) {
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("%w: hour %d out of range", ErrInvalidRecurrence, hour)
	}
	if minute < 0 || minute > 59 {
		return nil, fmt.Errorf("%w: minute %d out of range", ErrInvalidRecurrence, minute)
	}

	now = now.UTC()

	switch freq {
	case models.FrequencyOnce:
		return nil, nil

	case models.FrequencyDaily:
		candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
		if !candidate.After(now) {
			// One calendar day, not 24h.
			candidate = candidate.AddDate(0, 0, 1)
		}
		return &candidate, nil

	case models.FrequencyWeekly:
		if dayOfWeek < 1 || dayOfWeek > 7 {
			return nil, fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidRecurrence, dayOfWeek)
		}
		days := (dayOfWeek - isoWeekday(now) + 7) % 7
		candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC).AddDate(0, 0, days)
		if days == 0 && !candidate.After(now) {
			// Today's slot already passed; next occurrence is a full week out.
			candidate = candidate.AddDate(0, 0, 7)
		}
		return &candidate, nil

	case models.FrequencyMonthly:
		if dayOfMonth < 1 || dayOfMonth > 31 {
			return nil, fmt.Errorf("%w: day_of_month %d out of range", ErrInvalidRecurrence, dayOfMonth)
		}
		candidate := monthlyCandidate(now.Year(), now.Month(), dayOfMonth, hour, minute)
		if !candidate.After(now) {
			next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
			candidate = monthlyCandidate(next.Year(), next.Month(), dayOfMonth, hour, minute)
		}
		return &candidate, nil

	default:
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrence, freq)
	}
}

// NextRunFor computes the next run for a persisted definition.
func NextRunFor(def *models.ScheduleDefinition, now time.Time) (*time.Time, error) {
	return ComputeNextRun(def.Frequency, def.DayOfWeek, def.DayOfMonth, def.Hour, def.Minute, now)
}

func monthlyCandidate(year int, month time.Month, dayOfMonth, hour, minute int) time.Time {
	day := dayOfMonth
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
