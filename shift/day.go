package shift

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar day (a shift is owned by exactly one worker-day)
// =============================================================================

// Day is a timezone-free calendar date. Shifts, appointments, and pay
// periods are all keyed by Day; the business decides once, at the edge,
// which location's "today" applies.
type Day struct {
	Year       int
	Month      time.Month
	DayOfMonth int
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{Year: year, Month: month, DayOfMonth: day}
}

// DayOf extracts the calendar day of t in the given location.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	return Day{Year: t.Year(), Month: t.Month(), DayOfMonth: t.Day()}
}

// Today returns the current calendar day in loc (UTC when nil).
func Today(loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return DayOf(time.Now(), loc)
}

// ParseDay parses a "2006-01-02" date string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t, time.UTC), nil
}

// Time returns midnight UTC of the day, for arithmetic and storage.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.DayOfMonth, 0, 0, 0, 0, time.UTC)
}

func (d Day) String() string { return d.Time().Format("2006-01-02") }

func (d Day) IsZero() bool { return d == Day{} }

// Comparison
func (d Day) Before(other Day) bool { return d.Time().Before(other.Time()) }
func (d Day) After(other Day) bool  { return d.Time().After(other.Time()) }
func (d Day) Equal(other Day) bool  { return d == other }

// Arithmetic
func (d Day) AddDays(n int) Day { return DayOf(d.Time().AddDate(0, 0, n), time.UTC) }
