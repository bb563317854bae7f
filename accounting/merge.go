/*
merge.go - HourMerger

PURPOSE:
  The portal paginates by record offset, not by date, so one logical fetch
  arrives as several fragments whose days may overlap. Merge folds them into
  one sorted punch list per day.

GUARANTEES:
  - Fragment order does not matter (lists are sorted after concatenation).
  - Which fragment carried which punches does not matter.
  - Duplicate punches are kept; overlapping pages are not expected upstream.
  - Malformed strings pass through untouched; ComputeDay rejects them.
*/
package accounting

import (
	"sort"
	"strings"
)

// punchNoise is stripped from both ends of every punch. The portal pads
// cells with &nbsp;, which reaches us as U+00A0.
const punchNoise = " \t\n\r\x00\x0b\u00a0"

// Merge combines raw fragments into per-day punch lists keyed DD-MM-YYYY and
// sorted ascending.
func Merge(fragments ...RawFragment) Punches {
	merged := make(Punches)
	for _, fragment := range fragments {
		for date, times := range fragment {
			if len(times) == 0 {
				continue
			}
			key := DayKey(strings.ReplaceAll(date, "/", "-"))
			for _, t := range times {
				merged[key] = append(merged[key], strings.Trim(t, punchNoise))
			}
		}
	}

	// Fixed-width HH:MM sorts correctly as plain strings.
	for _, punches := range merged {
		sort.Strings(punches)
	}
	return merged
}
