// Package budget turns a validated record into template-ready data: it
// computes the annex totals and derives the date and code fields.
package budget

import (
	"github.com/shopspring/decimal"

	"resoluciones/internal/core"
	"resoluciones/internal/log"
)

// CalculateTotals sums the annex. Line items add to the subtotal; penalties
// are summed by magnitude, so "-500" and "500" both reduce the net total by
// 500. Entries whose amount does not parse are skipped and logged.
func CalculateTotals(annex core.Annex, logger *log.Logger) core.Totals {
	logger = log.OrNop(logger).WithComponent(log.ComponentTotals)

	subtotal := decimal.Zero
	for _, item := range annex.LineItems {
		amount, err := core.ParseAmount(item.Amount)
		if err != nil {
			logger.Warn("skipping line item with invalid amount",
				"category", item.Category, "amount", item.Amount)
			continue
		}
		subtotal = subtotal.Add(amount)
	}

	penalties := decimal.Zero
	for _, p := range annex.Penalties {
		amount, err := core.ParseMagnitude(p.Amount)
		if err != nil {
			logger.Warn("skipping penalty with invalid amount",
				"category", p.Category, "amount", p.Amount)
			continue
		}
		penalties = penalties.Add(amount)
	}

	totals := core.Totals{
		Subtotal:     subtotal,
		PenaltyTotal: penalties,
		NetTotal:     subtotal.Sub(penalties),
	}
	logger.Debug("calculated annex totals",
		"subtotal", totals.Subtotal.String(),
		"penalty_total", totals.PenaltyTotal.String(),
		"net_total", totals.NetTotal.String())
	return totals
}
