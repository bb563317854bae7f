/*
total.go - Legacy flat total

PURPOSE:
  Older clients only display a single grand total. ComputeTotal runs the
  per-day engine with a caller-chosen pause per threshold and keeps only the
  running sum of paid time.

SEE ALSO:
  - accountant.go: the full per-day engine
*/
package accounting

// ComputeTotal returns the sum over all days of paid time, with
// pausePerCredit granted for each break threshold reached and the noon
// deduction capped at those credits. A zero pause yields the effective total.
func ComputeTotal(days Punches, rules RuleConfig, pausePerCredit Minutes, today DayKey, now Minutes) (Minutes, error) {
	rules.BreakCredit = pausePerCredit

	var total Minutes
	for day, punches := range days {
		sessions, err := pairSessions(day, punches, rules, day == today, now)
		if err != nil {
			return 0, err
		}
		ledger := newDayLedger(rules)
		for _, s := range sessions {
			ledger.work(s)
		}
		ledger.applyNoonRule(gapsBetween(sessions))
		total += ledger.paid()
	}
	return total, nil
}
