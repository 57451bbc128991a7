package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resoluciones/internal/core"
	derrors "resoluciones/internal/errors"
)

func generationDay() time.Time {
	return time.Date(2025, time.August, 3, 9, 30, 0, 0, time.UTC)
}

func julyRecord() map[string]any {
	return map[string]any{
		"mes_iso":     "2025-07",
		"titulo_base": "Solicitud de fondos",
		"visto":       "El presupuesto mensual.",
		"considerandos": []any{
			map[string]any{"tipo": "gasto_anterior", "descripcion": "Transporte", "monto": "14000"},
		},
		"articulos": []any{
			"Otorgar la suma de $MONTO_TOTAL para gastos.",
			"Comuníquese.",
		},
		"anexo": map[string]any{
			"titulo":         "Presupuesto",
			"anexo_items":    []any{map[string]any{"categoria": "Transporte", "monto": "14000"}},
			"penalizaciones": []any{},
			"nota_final":     "",
		},
	}
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name                   string
		annex                  core.Annex
		subtotal, penalty, net string
	}{
		{
			name: "negative penalty",
			annex: core.Annex{
				LineItems: []core.LineItem{{Amount: "1000"}, {Amount: "2000"}},
				Penalties: []core.LineItem{{Amount: "-500"}},
			},
			subtotal: "3000", penalty: "500", net: "2500",
		},
		{
			name: "positive penalty is still subtracted",
			annex: core.Annex{
				LineItems: []core.LineItem{{Amount: "1000"}, {Amount: "2000"}},
				Penalties: []core.LineItem{{Amount: "300"}},
			},
			subtotal: "3000", penalty: "300", net: "2700",
		},
		{
			name:     "empty annex",
			annex:    core.Annex{},
			subtotal: "0", penalty: "0", net: "0",
		},
		{
			name: "formatted amounts and invalid entries",
			annex: core.Annex{
				LineItems: []core.LineItem{{Amount: "$1,500.50"}, {Amount: "abc"}, {Amount: " 499.50 "}},
				Penalties: []core.LineItem{{Amount: "-$100"}, {Amount: ""}},
			},
			subtotal: "2000", penalty: "100", net: "1900",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateTotals(tt.annex, nil)
			sub, pen, net := got.Formatted()
			assert.Equal(t, tt.subtotal, sub)
			assert.Equal(t, tt.penalty, pen)
			assert.Equal(t, tt.net, net)
		})
	}
}

func TestProcess_JulyScenario(t *testing.T) {
	p := NewProcessor(nil, WithClock(generationDay))
	out, err := p.Process(julyRecord())
	require.NoError(t, err)

	data := out.TemplateData()
	assert.Equal(t, "2025", data["anio"])
	assert.Equal(t, "julio", data["mes_nombre"])

	annex := data["anexo"].(map[string]any)
	assert.Equal(t, "14000", annex["subtotal"])
	assert.Equal(t, "0", annex["penalizaciones_total"])
	assert.Equal(t, "14000", annex["total_solicitado"])

	articles := data["articulos"].([]any)
	assert.Equal(t, "Otorgar la suma de 14000 para gastos.", articles[0])
	assert.Equal(t, "Comuníquese.", articles[1])
	assert.Equal(t, "Otorgar la suma de 14000 para gastos.", out.Record.Articles[0])

	assert.Equal(t, "r3eVIIIs25", data["codigo_res"])
	assert.Equal(t, "03 de julio de 2025", data["fecha_larga"])
	assert.Equal(t, "r3eVIIIs25 - Solicitud de fondos", data["titulo_documento"])
	assert.Equal(t, "r3eVIIIs25 - Solicitud de fondos", out.DocumentTitle)
}

func TestProcess_DoesNotMutateInput(t *testing.T) {
	rec := julyRecord()
	_, err := NewProcessor(nil, WithClock(generationDay)).Process(rec)
	require.NoError(t, err)

	assert.Equal(t, "Otorgar la suma de $MONTO_TOTAL para gastos.", rec["articulos"].([]any)[0])
	assert.NotContains(t, rec, "codigo_res")
	assert.NotContains(t, rec["anexo"].(map[string]any), "subtotal")
}

func TestProcess_RecomputesTotalsEveryPass(t *testing.T) {
	rec := julyRecord()
	annex := rec["anexo"].(map[string]any)
	annex["subtotal"] = "999999"
	annex["total_solicitado"] = "1"

	p := NewProcessor(nil, WithClock(generationDay))
	first, err := p.Process(rec)
	require.NoError(t, err)
	second, err := p.Process(first.TemplateData())
	require.NoError(t, err)

	for _, out := range []*Processed{first, second} {
		a := out.TemplateData()["anexo"].(map[string]any)
		assert.Equal(t, "14000", a["subtotal"])
		assert.Equal(t, "14000", a["total_solicitado"])
	}
}

func TestProcess_AliasAndPenalties(t *testing.T) {
	rec := julyRecord()
	annex := rec["anexo"].(map[string]any)
	annex["presupuesto"] = []any{
		map[string]any{"categoria": "A", "monto": "1000"},
		map[string]any{"categoria": "B", "monto": "2000"},
	}
	delete(annex, "anexo_items")
	annex["penalizaciones"] = []any{map[string]any{"categoria": "Multa", "monto": "-500"}}

	out, err := NewProcessor(nil, WithClock(generationDay)).Process(rec)
	require.NoError(t, err)

	a := out.TemplateData()["anexo"].(map[string]any)
	assert.NotContains(t, a, "presupuesto")
	assert.Len(t, a["anexo_items"], 2)
	assert.Equal(t, "3000", a["subtotal"])
	assert.Equal(t, "500", a["penalizaciones_total"])
	assert.Equal(t, "2500", a["total_solicitado"])
	assert.Equal(t, "Otorgar la suma de 2500 para gastos.", out.Record.Articles[0])
}

func TestProcess_UnparseablePeriodFallsBack(t *testing.T) {
	rec := julyRecord()
	rec["mes_iso"] = "julio"

	out, err := NewProcessor(nil, WithClock(generationDay)).Process(rec)
	require.NoError(t, err)
	assert.Equal(t, "month", out.MonthName)
	assert.Equal(t, "year", out.Year)
	assert.Equal(t, "03 de month de 2025", out.LongDate)
}

func TestProcess_EmptyTitleUsesDefault(t *testing.T) {
	rec := julyRecord()
	rec["titulo_base"] = ""
	out, err := NewProcessor(nil, WithClock(generationDay)).Process(rec)
	require.NoError(t, err)
	assert.Equal(t, "r3eVIIIs25 - Resolución", out.DocumentTitle)
}

func TestProcess_ShapeErrors(t *testing.T) {
	rec := julyRecord()
	rec["anexo"] = []any{"wrong"}
	_, err := NewProcessor(nil).Process(rec)
	require.Error(t, err)
	assert.Equal(t, derrors.CodeNormalizationError, derrors.CodeOf(err))
}
