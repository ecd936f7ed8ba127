/*
meeting.go - Meeting recurrence for due-date regeneration

PURPOSE:
  When a customer's meeting schedule changes (e.g., weekly Monday meetings
  become biweekly Thursday meetings), the due dates of future installments
  must be regenerated from the new recurrence. Already-posted or paid
  installments keep their dates.

SEE ALSO:
  - schedule.go: HandleMeetingScheduleChange applies the new dates
*/
package loan

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// MEETING RECURRENCE
// =============================================================================

type MeetingFrequency string

const (
	MeetWeekly  MeetingFrequency = "weekly"
	MeetMonthly MeetingFrequency = "monthly"
)

// MeetingRecurrence describes when repayment meetings occur: every N weeks
// on a weekday, or every N months on a day of month.
type MeetingRecurrence struct {
	Frequency MeetingFrequency
	Every     int

	// Weekly only.
	Weekday time.Weekday

	// Monthly only, 1-28 to stay valid in February.
	DayOfMonth int
}

var errBadRecurrence = errors.New("invalid meeting recurrence")

func (r MeetingRecurrence) Validate() error {
	if r.Every < 1 {
		return fmt.Errorf("%w: every must be >= 1", errBadRecurrence)
	}
	switch r.Frequency {
	case MeetWeekly:
		return nil
	case MeetMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 28 {
			return fmt.Errorf("%w: day of month must be 1-28", errBadRecurrence)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown frequency %q", errBadRecurrence, r.Frequency)
	}
}

// NextAfter returns the first occurrence strictly after t.
func (r MeetingRecurrence) NextAfter(t time.Time) time.Time {
	switch r.Frequency {
	case MeetWeekly:
		next := t.AddDate(0, 0, 1)
		for next.Weekday() != r.Weekday {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case MeetMonthly:
		next := time.Date(t.Year(), t.Month(), r.DayOfMonth, 0, 0, 0, 0, t.Location())
		if !next.After(t) {
			next = next.AddDate(0, 1, 0)
		}
		return next
	default:
		panic(fmt.Sprintf("loan: unknown meeting frequency %q", r.Frequency))
	}
}

// DatesFrom returns n successive occurrences, the first strictly after
// the given time, subsequent ones spaced by the recurrence interval.
func (r MeetingRecurrence) DatesFrom(after time.Time, n int) []time.Time {
	dates := make([]time.Time, 0, n)
	current := r.NextAfter(after)
	for i := 0; i < n; i++ {
		dates = append(dates, current)
		switch r.Frequency {
		case MeetWeekly:
			current = current.AddDate(0, 0, 7*r.Every)
		case MeetMonthly:
			current = current.AddDate(0, r.Every, 0)
		}
	}
	return dates
}
