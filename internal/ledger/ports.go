// Package ledger declares the boundary to the expense ledger. Drafting a new
// budget record reads the previous month from any of its adapters.
package ledger

import (
	"context"
	"strings"

	"resoluciones/internal/core"
)

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (ref string, err error)
	}

	// ExpenseLister returns the detailed list of expenses for a given month.
	ExpenseLister interface {
		ListExpenses(ctx context.Context, year int, month int) ([]core.Expense, error)
	}

	// CategoryLister returns the categories known to the ledger.
	CategoryLister interface {
		Categories(ctx context.Context) ([]string, error)
	}

	// Ledger is the full read/write boundary.
	Ledger interface {
		ExpenseWriter
		ExpenseLister
		CategoryLister
	}
)

// Dedupe trims values and drops blanks, comments and repeats, keeping the
// first occurrence order.
func Dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || v[0] == '#' {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
