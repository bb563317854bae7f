/*
Package accounting provides the time-accounting engine.

PURPOSE:
  Turns raw badge punches scraped from the Kelio portal into per-day and
  per-week working durations. Two figures are produced for every day:
  - Effective: time actually spent between clock-in and clock-out,
    clamped to the official working window.
  - Paid: effective time plus break credits, minus the lunch penalty.

KEY CONCEPTS IN THIS FILE (types.go):
  - Minutes: a duration or a minute-of-day, rendered as HH:MM
  - DayKey / WeekKey: map keys for days (DD-MM-YYYY) and ISO weeks (YYYY-w-WW)
  - RawFragment / Punches: upstream input and merged per-day punch lists
  - DayBreakdown / WeekBreakdown: computed output, never mutated in place

DESIGN PRINCIPLES:
  1. Purity: no I/O, no ambient clock. "Now" is always passed in.
  2. Typed values: every rule and output field is a named struct field.
  3. Auditability: every paid/effective difference is an Adjustment.

USAGE:
  punches := accounting.Merge(fragments...)
  acc := accounting.Accountant{Rules: accounting.StandardRules(), Location: loc}
  report, err := acc.Compute(punches, time.Now())

SEE ALSO:
  - merge.go: Merge
  - accountant.go: per-day rule engine
  - week.go: ISO week roll-up
*/
package accounting

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MINUTES - Durations and minute-of-day values
// =============================================================================

// Minutes is either a duration in minutes or a minute-of-day (0..1439).
type Minutes int

var sixty = decimal.NewFromInt(60)

// NewMinutes builds a Minutes value from hours and minutes.
func NewMinutes(hours, minutes int) Minutes {
	return Minutes(hours*60 + minutes)
}

// String renders the value as zero-padded HH:MM. Hours may exceed 24.
func (m Minutes) String() string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%02d:%02d", sign, int(m)/60, int(m)%60)
}

// Hours returns the value as decimal hours rounded to two places.
func (m Minutes) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(sixty).Round(2)
}

// MarshalJSON encodes Minutes as a plain integer.
func (m Minutes) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(int(m))), nil
}

// UnmarshalJSON accepts either an integer or an "HH:MM" string, so that
// configuration files can say "08:30" instead of 510.
func (m *Minutes) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*m = Minutes(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("minutes must be an integer or an HH:MM string: %w", err)
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseClock parses an "H:MM" or "HH:MM" value (hours 0-23, minutes 0-59)
// into a minute-of-day.
func ParseClock(s string) (Minutes, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, &MalformedPunchError{Value: s}
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, &MalformedPunchError{Value: s}
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, &MalformedPunchError{Value: s}
	}
	return NewMinutes(h, m), nil
}

// =============================================================================
// KEYS
// =============================================================================

// DayKey identifies a calendar day as DD-MM-YYYY.
type DayKey string

// WeekKey identifies an ISO-8601 week as YYYY-w-WW (ISO week-year).
type WeekKey string

// =============================================================================
// INPUT - Raw fragments and merged punches
// =============================================================================

// RawFragment is one upstream page: DD/MM/YYYY -> unordered, possibly noisy
// punch strings.
type RawFragment map[string][]string

// DayPunches is the sorted list of HH:MM punches for one day.
type DayPunches []string

// Punches maps each day to its merged punch list.
type Punches map[DayKey]DayPunches

// =============================================================================
// OUTPUT - Breakdowns
// =============================================================================

// Breaks holds observed break durations, classified by where each break starts.
type Breaks struct {
	Morning   Minutes `json:"morning"`
	Noon      Minutes `json:"noon"`
	Afternoon Minutes `json:"afternoon"`
}

// AdjustmentKind names the rule that produced an adjustment.
type AdjustmentKind string

const (
	AdjustMorningBreak   AdjustmentKind = "morning_break"
	AdjustAfternoonBreak AdjustmentKind = "afternoon_break"
	AdjustNoonMinimum    AdjustmentKind = "noon_minimum"
)

// Adjustment is one effective-to-paid transformation.
type Adjustment struct {
	Sign   int            `json:"sign"` // +1 credit, -1 deduction
	Amount Minutes        `json:"amount"`
	Kind   AdjustmentKind `json:"kind"`
	Reason string         `json:"reason"`
}

// Delta returns the signed amount.
func (a Adjustment) Delta() Minutes {
	if a.Sign < 0 {
		return -a.Amount
	}
	return a.Amount
}

// String renders the adjustment as "+ 00:07 => morning break".
func (a Adjustment) String() string {
	sign := "+"
	if a.Sign < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s %s => %s", sign, a.Amount, a.Reason)
}

// DayBreakdown is the computed result for one day.
type DayBreakdown struct {
	Day         DayKey       `json:"day"`
	Date        time.Time    `json:"date"`
	Hours       DayPunches   `json:"hours"`
	Breaks      Breaks       `json:"breaks"`
	Effective   Minutes      `json:"effective"`
	Paid        Minutes      `json:"paid"`
	Adjustments []Adjustment `json:"adjustments"`
}

// WeekBreakdown groups the days of one ISO week with their totals.
type WeekBreakdown struct {
	Days           map[DayKey]DayBreakdown `json:"days"`
	TotalEffective Minutes                 `json:"total_effective"`
	TotalPaid      Minutes                 `json:"total_paid"`
}
