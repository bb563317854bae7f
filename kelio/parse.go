package kelio

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/quelio/engine/accounting"
)

var dateRe = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

// cellNoise is removed anywhere inside a time cell.
var cellNoise = strings.NewReplacer("\u00a0", "", "&nbsp;", "", " ", "")

// ParseHours extracts {DD/MM/YYYY: [HH:MM...]} from one badge-history page.
//
// Rows of table.bordered after the header carry a date (either in the
// fcAfficherBadgeagesJour link or in a plain first cell) and a nested
// table whose td[width="*"] cells hold the punches. Rows without a date
// or without punches are skipped.
func ParseHours(r io.Reader) (accounting.RawFragment, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse hours page: %w", err)
	}

	fragment := make(accounting.RawFragment)
	table := doc.Find("table.bordered").First()
	rows := table.ChildrenFiltered("tr").AddSelection(table.ChildrenFiltered("tbody").ChildrenFiltered("tr"))
	rows.Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}

		date := dateRe.FindString(dateText(row))
		if date == "" {
			return
		}

		var times []string
		row.Find(`table[width="100%"] td[width="*"]`).Each(func(_ int, cell *goquery.Selection) {
			t := strings.TrimSpace(cellNoise.Replace(cell.Text()))
			if t != "" {
				times = append(times, t)
			}
		})
		if len(times) > 0 {
			fragment[date] = times
		}
	})
	return fragment, nil
}

// dateText prefers the day link; a first cell holding some other link is
// not a date cell.
func dateText(row *goquery.Selection) string {
	if link := row.Find(`a[onclick*="fcAfficherBadgeagesJour"]`).First(); link.Length() > 0 {
		return link.Text()
	}
	first := row.ChildrenFiltered("td").First()
	if first.Find("a").Length() > 0 {
		return ""
	}
	return first.Text()
}

// parseCSRF returns the _csrf_bodet value of the login form.
func parseCSRF(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse login page: %w", err)
	}
	token, _ := doc.Find(`input[name="_csrf_bodet"]`).First().Attr("value")
	if token == "" {
		return "", ErrCSRFTokenNotFound
	}
	return token, nil
}
