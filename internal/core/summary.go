package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthOverview is a compact summary of the ledger for one period.
type MonthOverview struct {
	Period     Period
	Total      decimal.Decimal
	ByCategory []CategoryAmount
}

// Summarize groups expenses by category. Categories are ordered by amount,
// largest first, ties broken by name.
func Summarize(p Period, expenses []Expense) MonthOverview {
	sums := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, e := range expenses {
		sums[e.Category] = sums[e.Category].Add(e.Amount)
		total = total.Add(e.Amount)
	}

	out := MonthOverview{Period: p, Total: total}
	for name, amount := range sums {
		out.ByCategory = append(out.ByCategory, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out.ByCategory, func(i, j int) bool {
		a, b := out.ByCategory[i], out.ByCategory[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	return out
}
