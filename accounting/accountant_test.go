package accounting_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quelio/engine/accounting"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func hhmm(t *testing.T, s string) accounting.Minutes {
	t.Helper()
	m, err := accounting.ParseClock(s)
	require.NoError(t, err)
	return m
}

func computePast(t *testing.T, day string, punches ...string) accounting.DayBreakdown {
	t.Helper()
	breakdown, err := accounting.ComputeDay(accounting.DayKey(day), punches, accounting.StandardRules(), false, 0)
	require.NoError(t, err)
	return breakdown
}

func adjustmentStrings(b accounting.DayBreakdown) []string {
	out := make([]string, 0, len(b.Adjustments))
	for _, a := range b.Adjustments {
		out = append(out, a.String())
	}
	return out
}

// =============================================================================
// REFERENCE DAYS
// =============================================================================

func TestComputeDay_FullDayWithHourLunch(t *testing.T) {
	// GIVEN: A full day with exactly the minimum lunch break
	// WHEN: Computing the day
	// THEN: Both credits apply and nothing is deducted

	b := computePast(t, "14-01-2026", "08:30", "12:00", "13:00", "18:30")

	assert.Equal(t, "09:00", b.Effective.String())
	assert.Equal(t, "09:14", b.Paid.String())
	assert.Equal(t, []string{"+ 00:07 => morning break", "+ 00:07 => afternoon break"}, adjustmentStrings(b))
	assert.Equal(t, accounting.Minutes(60), b.Breaks.Noon)
}

func TestComputeDay_ShortLunchDeductionBelowCap(t *testing.T) {
	// GIVEN: A 47-minute lunch
	// WHEN: Computing the day
	// THEN: The 13-minute shortfall is deducted in full

	b := computePast(t, "14-01-2026", "08:30", "12:00", "12:47", "18:30")

	assert.Equal(t, "09:13", b.Effective.String())
	assert.Equal(t, "09:14", b.Paid.String())
	require.Len(t, b.Adjustments, 3)
	assert.Equal(t, "- 00:13 => 01:00 (minimum) - 00:47 (noon break)", b.Adjustments[2].String())
	assert.Equal(t, accounting.AdjustNoonMinimum, b.Adjustments[2].Kind)
}

func TestComputeDay_ShortLunchDeductionCappedAtCredits(t *testing.T) {
	// GIVEN: A 30-minute lunch (shortfall 30, credits 14)
	// WHEN: Computing the day
	// THEN: Only the 14 credited minutes are clawed back

	b := computePast(t, "14-01-2026", "08:30", "12:00", "12:30", "18:30")

	assert.Equal(t, "09:30", b.Effective.String())
	assert.Equal(t, b.Effective, b.Paid)
	require.Len(t, b.Adjustments, 3)
	assert.Equal(t, "- 00:14 => 01:00 (minimum) - 00:30 (noon break)", b.Adjustments[2].String())
}

func TestComputeDay_NoLunchGap(t *testing.T) {
	// GIVEN: One continuous session
	// WHEN: Computing the day
	// THEN: Credits apply and the noon rule is skipped

	b := computePast(t, "14-01-2026", "08:30", "18:30")

	assert.Equal(t, "10:00", b.Effective.String())
	assert.Equal(t, "10:14", b.Paid.String())
	assert.Len(t, b.Adjustments, 2)
	assert.Equal(t, accounting.Breaks{}, b.Breaks)
}

func TestComputeDay_ShortMorningOnly(t *testing.T) {
	// GIVEN: A session ending before the morning threshold
	// WHEN: Computing the day
	// THEN: No adjustment at all

	b := computePast(t, "14-01-2026", "08:30", "10:30")

	assert.Equal(t, "02:00", b.Effective.String())
	assert.Equal(t, b.Effective, b.Paid)
	assert.Empty(t, b.Adjustments)
	assert.NotNil(t, b.Adjustments)
}

func TestComputeDay_LongLunch(t *testing.T) {
	b := computePast(t, "14-01-2026", "08:30", "12:00", "13:30", "18:30")

	assert.Equal(t, "08:30", b.Effective.String())
	assert.Equal(t, "08:44", b.Paid.String())
	assert.Len(t, b.Adjustments, 2)
}

func TestComputeDay_ThreeSessionsWithMorningBreak(t *testing.T) {
	// GIVEN: A coffee break, then a 54-minute lunch
	// WHEN: Computing the day
	// THEN: Gaps are classified by where they start and 6 minutes are deducted

	b := computePast(t, "20-01-2026", "08:31", "10:41", "10:47", "12:14", "13:08", "17:36")

	assert.Equal(t, "08:05", b.Effective.String())
	assert.Equal(t, "08:13", b.Paid.String())
	assert.Equal(t, accounting.Breaks{Morning: 6, Noon: 54}, b.Breaks)

	require.Len(t, b.Adjustments, 3)
	last := b.Adjustments[2].String()
	assert.Contains(t, last, "01:00 (minimum)")
	assert.Contains(t, last, "00:54 (noon break)")
	assert.Equal(t, accounting.Minutes(-6), b.Adjustments[2].Delta())
}

func TestComputeDay_AfternoonBreakClassification(t *testing.T) {
	b := computePast(t, "14-01-2026", "08:30", "12:00", "13:00", "15:00", "15:15", "18:30")

	assert.Equal(t, accounting.Breaks{Noon: 60, Afternoon: 15}, b.Breaks)
	assert.Equal(t, "08:45", b.Effective.String())
	assert.Equal(t, "08:59", b.Paid.String())
}

func TestComputeDay_LunchStartingBeforeNoonWindow(t *testing.T) {
	// GIVEN: A gap from 11:30 to 12:20, only 20 minutes of it inside the window
	// WHEN: Computing the day
	// THEN: The overlap drives the deduction and the gap counts as a morning break

	b := computePast(t, "14-01-2026", "08:30", "11:30", "12:20", "18:30")

	assert.Equal(t, "09:10", b.Effective.String())
	assert.Equal(t, "09:10", b.Paid.String())
	assert.Equal(t, accounting.Breaks{Morning: 50}, b.Breaks)
	assert.Equal(t, []string{
		"+ 00:07 => morning break",
		"+ 00:07 => afternoon break",
		"- 00:14 => 01:00 (minimum) - 00:20 (noon break)",
	}, adjustmentStrings(b))
}

func TestComputeDay_LunchEndingAfterNoonWindow(t *testing.T) {
	// GIVEN: A gap from 13:30 to 14:45, only 30 minutes of it inside the window
	// WHEN: Computing the day
	// THEN: The deduction is capped and the gap counts as an afternoon break

	b := computePast(t, "14-01-2026", "08:30", "13:30", "14:45", "18:30")

	assert.Equal(t, "08:45", b.Effective.String())
	assert.Equal(t, "08:45", b.Paid.String())
	assert.Equal(t, accounting.Breaks{Afternoon: 75}, b.Breaks)
	require.Len(t, b.Adjustments, 3)
	assert.Equal(t, "- 00:14 => 01:00 (minimum) - 00:30 (noon break)", b.Adjustments[2].String())
}

func TestComputeDay_ShortLunchWithoutCreditsRecordsZeroDeduction(t *testing.T) {
	// GIVEN: A 30-minute lunch and no break credit configured
	// WHEN: Computing the day
	// THEN: Nothing is deducted but the short lunch is still recorded

	rules := accounting.StandardRules()
	rules.BreakCredit = 0
	b, err := accounting.ComputeDay("14-01-2026", accounting.DayPunches{"08:30", "12:00", "12:30", "18:30"}, rules, false, 0)
	require.NoError(t, err)

	assert.Equal(t, b.Effective, b.Paid)
	require.Len(t, b.Adjustments, 3)
	assert.Equal(t, "- 00:00 => 01:00 (minimum) - 00:30 (noon break)", b.Adjustments[2].String())
	assert.Equal(t, accounting.Minutes(0), b.Adjustments[2].Delta())
}

// =============================================================================
// CLAMPING
// =============================================================================

func TestComputeDay_ClampsToWorkingWindow(t *testing.T) {
	// GIVEN: Building badges far outside the official window
	// WHEN: Computing the day
	// THEN: Only time inside 08:30-18:30 counts

	b := computePast(t, "14-01-2026", "07:02", "12:00", "13:00", "20:45")

	assert.Equal(t, "09:00", b.Effective.String())
	assert.Equal(t, "09:14", b.Paid.String())
	assert.Equal(t, accounting.DayPunches{"07:02", "12:00", "13:00", "20:45"}, b.Hours)
}

func TestComputeDay_SessionEntirelyOutsideWindow(t *testing.T) {
	// GIVEN: An early session ending before the window opens
	// THEN: It counts for nothing and earns no credit

	b := computePast(t, "14-01-2026", "06:00", "07:00")

	assert.Equal(t, accounting.Minutes(0), b.Effective)
	assert.Equal(t, accounting.Minutes(0), b.Paid)
	assert.Empty(t, b.Adjustments)
}

// =============================================================================
// ODD PUNCH COUNTS
// =============================================================================

func TestComputeDay_TodayOpenSession(t *testing.T) {
	// GIVEN: Today, clocked in at 08:31, now 10:50
	// WHEN: Computing the day
	// THEN: The open session runs until now and no threshold is reached

	rules := accounting.StandardRules()
	b, err := accounting.ComputeDay("14-01-2026", accounting.DayPunches{"08:31"}, rules, true, hhmm(t, "10:50"))
	require.NoError(t, err)

	assert.Equal(t, "02:19", b.Effective.String())
	assert.Equal(t, b.Effective, b.Paid)
	assert.Empty(t, b.Adjustments)
}

func TestComputeDay_TodayOpenSessionPastMorningThreshold(t *testing.T) {
	rules := accounting.StandardRules()
	b, err := accounting.ComputeDay("14-01-2026", accounting.DayPunches{"08:31"}, rules, true, hhmm(t, "12:10"))
	require.NoError(t, err)

	assert.Equal(t, "03:39", b.Effective.String())
	assert.Equal(t, "03:46", b.Paid.String())
	assert.Equal(t, []string{"+ 00:07 => morning break"}, adjustmentStrings(b))
}

func TestComputeDay_PastDayDropsTrailingPunch(t *testing.T) {
	// GIVEN: A past day with an unpaired trailing punch
	// WHEN: Computing the day
	// THEN: The trailing punch is ignored

	b := computePast(t, "14-01-2026", "08:30", "12:00", "13:00")

	assert.Equal(t, "03:30", b.Effective.String())
	assert.Equal(t, "03:37", b.Paid.String())
	assert.Equal(t, accounting.Breaks{}, b.Breaks)
}

func TestComputeDay_EmptyDay(t *testing.T) {
	b := computePast(t, "14-01-2026")

	assert.Equal(t, accounting.Minutes(0), b.Effective)
	assert.Equal(t, accounting.Minutes(0), b.Paid)
	assert.NotNil(t, b.Hours)
	assert.Empty(t, b.Adjustments)
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestComputeDay_PaidNeverBelowEffectiveWithStandardRules(t *testing.T) {
	days := [][]string{
		{"08:30", "12:00", "12:05", "18:30"},
		{"08:30", "12:59", "13:00", "18:30"},
		{"09:00", "11:59", "12:01", "16:00"},
		{"08:30", "12:30", "12:31", "12:40", "12:41", "18:30"},
	}
	for _, punches := range days {
		b := computePast(t, "14-01-2026", punches...)
		assert.GreaterOrEqual(t, b.Paid, b.Effective, "punches %v", punches)
	}
}

func TestComputeDay_Idempotent(t *testing.T) {
	punches := accounting.DayPunches{"08:31", "10:41", "10:47", "12:14", "13:08", "17:36"}
	rules := accounting.StandardRules()

	first, err := accounting.ComputeDay("20-01-2026", punches, rules, false, 0)
	require.NoError(t, err)
	second, err := accounting.ComputeDay("20-01-2026", punches, rules, false, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeDay_DoesNotAliasInput(t *testing.T) {
	punches := accounting.DayPunches{"08:30", "18:30"}
	b := computePast(t, "14-01-2026", punches...)

	punches[0] = "09:00"
	assert.Equal(t, "08:30", b.Hours[0])
}

func TestComputeDay_MorningCreditOnlyOnce(t *testing.T) {
	// GIVEN: Two sessions both ending after the morning threshold but before 16:00
	// THEN: Exactly one morning credit

	b := computePast(t, "14-01-2026", "08:30", "11:30", "14:00", "15:00")

	assert.Equal(t, []string{"+ 00:07 => morning break"}, adjustmentStrings(b))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestComputeDay_MalformedPunch(t *testing.T) {
	_, err := accounting.ComputeDay("14-01-2026", accounting.DayPunches{"08:30", "noon"}, accounting.StandardRules(), false, 0)

	require.Error(t, err)
	var perr *accounting.MalformedPunchError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "noon", perr.Value)
	assert.Equal(t, accounting.DayKey("14-01-2026"), perr.Day)
	assert.True(t, accounting.IsMalformedInput(err))
}

func TestComputeDay_MalformedDay(t *testing.T) {
	_, err := accounting.ComputeDay("2026-01-14", accounting.DayPunches{"08:30", "18:30"}, accounting.StandardRules(), false, 0)

	require.ErrorIs(t, err, accounting.ErrMalformedDay)
}

// =============================================================================
// ACCOUNTANT
// =============================================================================

func TestAccountant_Compute_DerivesTodayFromInstant(t *testing.T) {
	// GIVEN: Today is 14-01-2026, 10:50 in Paris (09:50 UTC)
	// WHEN: Computing a report containing an open session today
	// THEN: The open session ends at 10:50 local time

	loc, err := accounting.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	acc := accounting.Accountant{Rules: accounting.StandardRules(), Location: loc}
	now := time.Date(2026, time.January, 14, 9, 50, 0, 0, time.UTC)

	report, err := acc.Compute(accounting.Punches{
		"13-01-2026": {"08:30", "12:00", "13:00"},
		"14-01-2026": {"08:31"},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "02:19", report.Days["14-01-2026"].Effective.String())
	assert.Equal(t, "03:30", report.Days["13-01-2026"].Effective.String())
	assert.Equal(t, report.Days["13-01-2026"].Effective+report.Days["14-01-2026"].Effective, report.TotalEffective)
	require.Contains(t, report.Weeks, accounting.WeekKey("2026-w-03"))
	assert.Len(t, report.Weeks["2026-w-03"].Days, 2)
}

func TestAccountant_Compute_TwoDayTotal(t *testing.T) {
	acc := accounting.Accountant{Rules: accounting.StandardRules()}
	report, err := acc.Compute(accounting.Punches{
		"13-01-2026": {"08:30", "12:00", "13:00", "18:30"},
		"14-01-2026": {"08:30", "12:00", "13:00", "17:30"},
	}, time.Date(2026, time.January, 20, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	week := report.Weeks["2026-w-03"]
	assert.Equal(t, "17:00", week.TotalEffective.String())
	assert.Equal(t, "17:28", week.TotalPaid.String())
}

func TestAccountant_Compute_PropagatesMalformedInput(t *testing.T) {
	acc := accounting.Accountant{Rules: accounting.StandardRules()}
	_, err := acc.Compute(accounting.Punches{"14-01-2026": {"8h30"}}, time.Now())

	assert.True(t, accounting.IsMalformedInput(err))
}
