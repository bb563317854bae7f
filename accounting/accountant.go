/*
accountant.go - TimeAccountant: the per-day rule engine

PURPOSE:
  Converts one day's punches into effective and paid minutes.

ALGORITHM (per day):
  1. Pair punches as (in, out). An odd trailing punch is paired with "now"
     on the current day and dropped on any other day.
  2. Clamp both ends of every pair into [StartLimit, EndLimit] and add the
     clamped duration to Effective.
  3. The first pair whose clamped end reaches the morning threshold earns a
     break credit; same for the afternoon threshold. Credits go to Paid only.
  4. Lunch rule: the first gap between pairs that overlaps the noon window is
     the lunch break. If its overlap with the window is shorter than the
     minimum, the shortfall is deducted from Paid, capped at the credits
     granted in step 3. Paid therefore never drops below Effective.
  5. Observed gaps are reported as morning/noon/afternoon breaks according to
     where each gap starts.

STATE:
  The at-most-once credit flags live in dayLedger, one per day.

SEE ALSO:
  - rules.go: RuleConfig
  - week.go: weekly roll-up
  - total.go: legacy flat total
*/
package accounting

import (
	"fmt"
	"time"
)

// =============================================================================
// SESSIONS AND GAPS
// =============================================================================

// session is one (in, out) pair. Raw values are kept for gap reporting,
// clamped values drive the paid-time arithmetic.
type session struct {
	rawStart, rawEnd Minutes
	start, end       Minutes
}

func (s session) duration() Minutes {
	return max(s.end-s.start, 0)
}

// interval is a half-open [start, end) span of the day.
type interval struct {
	start, end Minutes
}

func (i interval) length() Minutes {
	return max(i.end-i.start, 0)
}

// overlap returns the length of the intersection of i and o.
func (i interval) overlap(o interval) Minutes {
	return max(min(i.end, o.end)-max(i.start, o.start), 0)
}

// pairSessions parses the punches and builds the realized sessions.
func pairSessions(day DayKey, punches DayPunches, rules RuleConfig, isToday bool, now Minutes) ([]session, error) {
	values := make([]Minutes, 0, len(punches)+1)
	for _, p := range punches {
		m, err := ParseClock(p)
		if err != nil {
			return nil, &MalformedPunchError{Day: day, Value: p}
		}
		values = append(values, m)
	}

	if len(values)%2 != 0 {
		if isToday {
			values = append(values, now)
		} else {
			values = values[:len(values)-1]
		}
	}

	sessions := make([]session, 0, len(values)/2)
	for i := 0; i+1 < len(values); i += 2 {
		sessions = append(sessions, session{
			rawStart: values[i],
			rawEnd:   values[i+1],
			start:    rules.clamp(values[i]),
			end:      rules.clamp(values[i+1]),
		})
	}
	return sessions, nil
}

// gapsBetween returns the breaks between consecutive sessions.
func gapsBetween(sessions []session) []interval {
	if len(sessions) < 2 {
		return nil
	}
	gaps := make([]interval, 0, len(sessions)-1)
	for i := 1; i < len(sessions); i++ {
		gaps = append(gaps, interval{start: sessions[i-1].rawEnd, end: sessions[i].rawStart})
	}
	return gaps
}

// =============================================================================
// DAY LEDGER - Explicit per-day accumulator
// =============================================================================

type dayLedger struct {
	rules RuleConfig

	effective Minutes
	credited  Minutes
	deducted  Minutes

	morningCredited   bool
	afternoonCredited bool

	adjustments []Adjustment
}

func newDayLedger(rules RuleConfig) *dayLedger {
	return &dayLedger{rules: rules, adjustments: []Adjustment{}}
}

// work accounts one session and evaluates the break thresholds against its
// clamped end.
func (l *dayLedger) work(s session) {
	l.effective += s.duration()

	if !l.morningCredited && s.end >= l.rules.MorningBreakThreshold {
		l.morningCredited = true
		l.credit(AdjustMorningBreak, "morning break")
	}
	if !l.afternoonCredited && s.end >= l.rules.AfternoonBreakThreshold {
		l.afternoonCredited = true
		l.credit(AdjustAfternoonBreak, "afternoon break")
	}
}

func (l *dayLedger) credit(kind AdjustmentKind, reason string) {
	l.credited += l.rules.BreakCredit
	l.adjustments = append(l.adjustments, Adjustment{
		Sign:   1,
		Amount: l.rules.BreakCredit,
		Kind:   kind,
		Reason: reason,
	})
}

// applyNoonRule deducts the lunch shortfall, capped at the credits granted.
func (l *dayLedger) applyNoonRule(gaps []interval) {
	window := interval{start: l.rules.NoonWindowStart, end: l.rules.NoonWindowEnd}

	for _, gap := range gaps {
		observed := gap.overlap(window)
		if observed <= 0 {
			continue
		}
		if observed >= l.rules.NoonMinimumBreak {
			return
		}
		// Recorded even when the deduction is zero.
		deduction := min(l.rules.NoonMinimumBreak-observed, l.credited)
		l.deducted = deduction
		l.adjustments = append(l.adjustments, Adjustment{
			Sign:   -1,
			Amount: deduction,
			Kind:   AdjustNoonMinimum,
			Reason: fmt.Sprintf("%s (minimum) - %s (noon break)", l.rules.NoonMinimumBreak, observed),
		})
		return
	}
}

func (l *dayLedger) paid() Minutes {
	return l.effective + l.credited - l.deducted
}

// classifyBreaks reports every gap under the zone where it starts.
func classifyBreaks(gaps []interval, rules RuleConfig) Breaks {
	var b Breaks
	for _, gap := range gaps {
		switch {
		case gap.start < rules.NoonWindowStart:
			b.Morning += gap.length()
		case gap.end <= rules.NoonWindowEnd:
			b.Noon += gap.length()
		default:
			b.Afternoon += gap.length()
		}
	}
	return b
}

// =============================================================================
// COMPUTE DAY
// =============================================================================

// ComputeDay applies the rules to one day. now is the current minute-of-day
// and only matters when isToday is set and the punch count is odd.
//
// Errors are limited to unparsable punches or day keys.
func ComputeDay(day DayKey, punches DayPunches, rules RuleConfig, isToday bool, now Minutes) (DayBreakdown, error) {
	date, err := day.Date()
	if err != nil {
		return DayBreakdown{}, err
	}

	sessions, err := pairSessions(day, punches, rules, isToday, now)
	if err != nil {
		return DayBreakdown{}, err
	}

	ledger := newDayLedger(rules)
	for _, s := range sessions {
		ledger.work(s)
	}
	gaps := gapsBetween(sessions)
	ledger.applyNoonRule(gaps)

	hours := make(DayPunches, len(punches))
	copy(hours, punches)

	return DayBreakdown{
		Day:         day,
		Date:        date,
		Hours:       hours,
		Breaks:      classifyBreaks(gaps, rules),
		Effective:   ledger.effective,
		Paid:        ledger.paid(),
		Adjustments: ledger.adjustments,
	}, nil
}

// =============================================================================
// ACCOUNTANT - Convenience wrapper binding rules and timezone
// =============================================================================

// Accountant computes full reports for a set of merged punches.
type Accountant struct {
	Rules    RuleConfig
	Location *time.Location
}

// Report is the result of one accounting run.
type Report struct {
	Days           map[DayKey]DayBreakdown
	Weeks          map[WeekKey]WeekBreakdown
	TotalEffective Minutes
	TotalPaid      Minutes
}

// Compute runs ComputeDay for every day and rolls the result up by week.
// now decides which day is "today" and what time it is, in a.Location.
func (a Accountant) Compute(punches Punches, now time.Time) (Report, error) {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := DayKeyOf(local)
	minute := MinuteOfDay(local)

	days := make(map[DayKey]DayBreakdown, len(punches))
	report := Report{Days: days}
	for day, list := range punches {
		breakdown, err := ComputeDay(day, list, a.Rules, day == today, minute)
		if err != nil {
			return Report{}, err
		}
		days[day] = breakdown
		report.TotalEffective += breakdown.Effective
		report.TotalPaid += breakdown.Paid
	}
	report.Weeks = RollUpByWeek(days)
	return report, nil
}
