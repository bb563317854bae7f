package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/quelio/engine/accounting"
)

// Report formats.
const (
	formatText = "text"
	formatJSON = "json"
)

// writeReport prints report in the requested format.
func writeReport(w io.Writer, report accounting.Report, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Weeks)
	case formatText, "":
		return writeTextReport(w, report)
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
}

func writeTextReport(w io.Writer, report accounting.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	weeks := make([]accounting.WeekKey, 0, len(report.Weeks))
	for k := range report.Weeks {
		weeks = append(weeks, k)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i] < weeks[j] })

	for _, key := range weeks {
		week := report.Weeks[key]
		fmt.Fprintf(tw, "%s\t\teffective %s (%sh)\tpaid %s (%sh)\n",
			key, week.TotalEffective, week.TotalEffective.Hours(), week.TotalPaid, week.TotalPaid.Hours())

		for _, day := range sortedDays(week.Days) {
			fmt.Fprintf(tw, "  %s\t%s\teffective %s\tpaid %s\n",
				day.Day, strings.Join(day.Hours, " "), day.Effective, day.Paid)
			for _, adj := range day.Adjustments {
				fmt.Fprintf(tw, "\t\t  %s\t\n", adj)
			}
		}
	}
	fmt.Fprintf(tw, "total\t\teffective %s (%sh)\tpaid %s (%sh)\n",
		report.TotalEffective, report.TotalEffective.Hours(), report.TotalPaid, report.TotalPaid.Hours())
	return tw.Flush()
}

// sortedDays orders days chronologically.
func sortedDays(days map[accounting.DayKey]accounting.DayBreakdown) []accounting.DayBreakdown {
	out := make([]accounting.DayBreakdown, 0, len(days))
	for _, d := range days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return dayTime(out[i]).Before(dayTime(out[j]))
	})
	return out
}

func dayTime(d accounting.DayBreakdown) time.Time {
	if !d.Date.IsZero() {
		return d.Date
	}
	t, _ := d.Day.Date()
	return t
}
