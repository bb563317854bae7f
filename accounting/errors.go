/*
errors.go - Error types for the accounting engine

PURPOSE:
  The engine trusts the shape of its input: empty days, odd punch counts on
  the current day and days without a lunch gap are all legitimate and never
  produce errors. The only failures are unparsable punches or day keys,
  which can only come from a broken upstream parser.

  Storage errors live here too because the UserStore interface is defined
  in this package (see store.go).
*/
package accounting

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPunch is returned when a punch is not a valid HH:MM value.
	ErrMalformedPunch = errors.New("malformed punch")

	// ErrMalformedDay is returned when a day key is not a valid DD-MM-YYYY date.
	ErrMalformedDay = errors.New("malformed day key")

	// ErrUserNotFound is returned by UserStore lookups for unknown usernames.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidRules is returned by RuleConfig.Validate.
	ErrInvalidRules = errors.New("invalid rule configuration")
)

// MalformedPunchError carries the offending punch and, when known, its day.
type MalformedPunchError struct {
	Day   DayKey
	Value string
}

func (e *MalformedPunchError) Error() string {
	if e.Day == "" {
		return fmt.Sprintf("malformed punch %q", e.Value)
	}
	return fmt.Sprintf("malformed punch %q on %s", e.Value, e.Day)
}

func (e *MalformedPunchError) Unwrap() error {
	return ErrMalformedPunch
}

// MalformedDayError carries the offending day key.
type MalformedDayError struct {
	Value string
	Err   error
}

func (e *MalformedDayError) Error() string {
	return fmt.Sprintf("malformed day key %q: %v", e.Value, e.Err)
}

func (e *MalformedDayError) Unwrap() []error {
	return []error{ErrMalformedDay, e.Err}
}

// IsMalformedInput reports whether err comes from unparsable upstream data.
func IsMalformedInput(err error) bool {
	return errors.Is(err, ErrMalformedPunch) || errors.Is(err, ErrMalformedDay)
}
