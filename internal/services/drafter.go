package services

import (
	"context"
	"fmt"
	"strconv"

	"resoluciones/internal/core"
	"resoluciones/internal/ledger"
	"resoluciones/internal/log"
	"resoluciones/internal/schema"
)

// Drafter builds a starting budget record for a period from the ledger's
// expenses of the month before.
type Drafter struct {
	lister ledger.ExpenseLister
	logger *log.Logger
}

func NewDrafter(lister ledger.ExpenseLister, logger *log.Logger) *Drafter {
	return &Drafter{
		lister: lister,
		logger: log.OrNop(logger).WithComponent(log.ComponentLedger),
	}
}

// Draft returns a record for period whose prior-expense considerations and
// annex line items mirror the previous month's spending per category. The
// record is validated before it is returned.
func (d *Drafter) Draft(ctx context.Context, period core.Period) (map[string]any, schema.Result, error) {
	prev := period.Previous()
	var overview core.MonthOverview
	if d.lister != nil {
		expenses, err := d.lister.ListExpenses(ctx, prev.Year, int(prev.Month))
		if err != nil {
			return nil, schema.Result{}, fmt.Errorf("list expenses for %s: %w", prev, err)
		}
		overview = core.Summarize(prev, expenses)
	}

	month := period.MonthName()
	year := strconv.Itoa(period.Year)

	considerations := make([]any, 0, len(overview.ByCategory)+1)
	items := make([]any, 0, len(overview.ByCategory))
	for _, c := range overview.ByCategory {
		amount := core.FormatWhole(c.Amount)
		considerations = append(considerations, map[string]any{
			schema.KeyKind:        string(core.KindPriorExpense),
			schema.KeyDescription: fmt.Sprintf("%s (%s)", c.Name, prev.MonthName()),
			schema.KeyAmount:      amount,
		})
		items = append(items, map[string]any{
			schema.KeyCategory: c.Name,
			schema.KeyAmount:   amount,
		})
	}
	considerations = append(considerations, map[string]any{
		schema.KeyKind:    string(core.KindText),
		schema.KeyContent: "Que para el mes actual se proyecta un presupuesto inicial.",
	})

	record := map[string]any{
		schema.KeyPeriod:         period.String(),
		schema.KeyTitleBase:      "Presupuesto mensual de " + month,
		schema.KeyRationale:      fmt.Sprintf("La necesidad de aprobar el presupuesto de %s de %s.", month, year),
		schema.KeyConsiderations: considerations,
		schema.KeyArticles: []any{
			"Aprobar el presupuesto mensual por un total de " + schema.TotalPlaceholder + ".",
			"Registrar todos los gastos y movimientos financieros del período.",
		},
		schema.KeyAnnex: map[string]any{
			schema.KeyAnnexTitle:  fmt.Sprintf("Presupuesto %s %s", month, year),
			schema.KeyLineItems:   items,
			schema.KeyPenalties:   []any{},
			schema.KeyClosingNote: "",
		},
	}

	res := schema.Validate(record)
	d.logger.InfoContext(ctx, "record drafted",
		log.FieldPeriod, period.String(),
		"categories", len(overview.ByCategory),
		"previous_total", overview.Total.String())
	return record, res, nil
}
