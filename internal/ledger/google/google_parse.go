package google

import (
	"fmt"
	"strings"
	"time"

	"resoluciones/internal/core"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006"}

// parseExpenses converts a values matrix as returned by the Sheets API.
// Rows that cannot be read are counted and skipped; a leading header row is
// ignored silently.
func parseExpenses(values [][]any) ([]core.Expense, int) {
	var (
		out     []core.Expense
		skipped int
	)
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) < 4 || strings.Join(cols, "") == "" {
			continue
		}
		date, ok := parseDate(cols[0])
		if !ok {
			if i > 0 {
				skipped++
			}
			continue
		}
		amount, err := core.ParseAmount(cols[3])
		if err != nil {
			skipped++
			continue
		}
		e := core.Expense{
			Date:        date,
			Category:    cols[1],
			Description: cols[2],
			Amount:      amount,
		}
		if e.Validate() != nil {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

func parseDate(s string) (core.Date, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.Date{Time: t}, true
		}
	}
	return core.Date{}, false
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
