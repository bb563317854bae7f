package accounting

import (
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR HELPERS - Day and week keys in the portal's civil timezone
// =============================================================================

const (
	dayKeyLayout = "02-01-2006"

	// DefaultTimezone is the civil timezone of the Kelio deployment.
	DefaultTimezone = "Europe/Paris"
)

// DayKeyOf returns the key of the calendar day containing t.
func DayKeyOf(t time.Time) DayKey {
	return DayKey(t.Format(dayKeyLayout))
}

// Date parses the key as a civil date at midnight UTC.
func (k DayKey) Date() (time.Time, error) {
	t, err := time.Parse(dayKeyLayout, string(k))
	if err != nil {
		return time.Time{}, &MalformedDayError{Value: string(k), Err: err}
	}
	return t, nil
}

// WeekKeyOf returns the ISO week key (ISO week-year, not calendar year).
func WeekKeyOf(t time.Time) WeekKey {
	year, week := t.ISOWeek()
	return WeekKey(fmt.Sprintf("%d-w-%02d", year, week))
}

// MinuteOfDay returns the minute-of-day of t in its own location.
func MinuteOfDay(t time.Time) Minutes {
	return NewMinutes(t.Hour(), t.Minute())
}

// LoadLocation resolves a timezone name, defaulting to DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}
