/*
week.go - ISO-8601 weekly roll-up

PURPOSE:
  Groups day breakdowns by ISO week (week-year, not calendar year: the last
  days of December can land in week 1 of the next year) and sums the totals.
*/
package accounting

// RollUpByWeek groups days by ISO week and sums effective and paid minutes.
// Days whose key cannot be parsed and whose Date is unset are skipped.
func RollUpByWeek(days map[DayKey]DayBreakdown) map[WeekKey]WeekBreakdown {
	weeks := make(map[WeekKey]WeekBreakdown)
	for key, day := range days {
		date := day.Date
		if date.IsZero() {
			parsed, err := key.Date()
			if err != nil {
				continue
			}
			date = parsed
		}

		wk := WeekKeyOf(date)
		week, ok := weeks[wk]
		if !ok {
			week = WeekBreakdown{Days: make(map[DayKey]DayBreakdown)}
		}
		week.Days[key] = day
		week.TotalEffective += day.Effective
		week.TotalPaid += day.Paid
		weeks[wk] = week
	}
	return weeks
}
