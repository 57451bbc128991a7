package render

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resoluciones/assets"
	derrors "resoluciones/internal/errors"
	"resoluciones/internal/latex"
	"resoluciones/internal/log"
)

func TestRender_Golden(t *testing.T) {
	r := NewRenderer(nil)
	out, err := r.Render(filepath.Join("testdata", "annex.tex.tmpl"), map[string]any{
		"titulo": "Gastos & Multas",
		"items": []any{
			map[string]any{"categoria": "Agua_potable", "monto": "1,000"},
			map[string]any{"categoria": "50% luz", "monto": "200"},
		},
		"total": "1200",
	})
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "annex", []byte(out))
}

func TestRender_TemplateErrors(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(nil)

	_, err := r.Render(filepath.Join(dir, "missing.tex"), nil)
	assert.Equal(t, derrors.CodeTemplateNotFound, derrors.CodeOf(err))

	_, err = r.Render(dir, nil)
	assert.Equal(t, derrors.CodeTemplateNotAFile, derrors.CodeOf(err))

	_, err = r.Render(filepath.Join("testdata", "broken.tex.tmpl"), nil)
	assert.Equal(t, derrors.CodeTemplateRenderFailed, derrors.CodeOf(err))

	_, err = r.Render(filepath.Join("testdata", "exec_error.tex.tmpl"), map[string]any{"numero": "uno"})
	assert.Equal(t, derrors.CodeTemplateRenderFailed, derrors.CodeOf(err))

	_, err = r.Render(filepath.Join("testdata", "undefined_ref.tex.tmpl"), nil)
	assert.Equal(t, derrors.CodeTemplateNotFound, derrors.CodeOf(err))
}

func TestRenderSource_EscapesThroughEscaper(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})

	out, err := NewRenderer(logger).RenderSource("inline", `<< .visto >>`, map[string]any{"visto": "Gastos & 10% de $500"})
	require.NoError(t, err)
	assert.Equal(t, `Gastos \& 10\% de \$500`, out)
	assert.True(t, latex.IsFullyEscaped(out))

	logs := buf.String()
	assert.Contains(t, logs, "escaped special characters")
	assert.NotContains(t, logs, "unescaped special characters")
}

func TestRender_UnreadableTemplate(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for this user")
	}
	path := filepath.Join(t.TempDir(), "locked.tex")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o000))

	_, err := NewRenderer(nil).Render(path, nil)
	assert.Equal(t, derrors.CodeTemplateUnreadable, derrors.CodeOf(err))
}

func TestEscapeData(t *testing.T) {
	in := map[string]any{
		"text":   "50% & $5",
		"number": 3.5,
		"flag":   true,
		"none":   nil,
		"nested": map[string]any{
			"list": []any{"a_b", 7, []any{"#deep", map[string]any{"k": "{x}"}}},
		},
		"strings": []string{"~"},
	}

	out := EscapeData(in).(map[string]any)
	assert.Equal(t, `50\% \& \$5`, out["text"])
	assert.Equal(t, 3.5, out["number"])
	assert.Equal(t, true, out["flag"])
	assert.Nil(t, out["none"])

	list := out["nested"].(map[string]any)["list"].([]any)
	assert.Equal(t, `a\_b`, list[0])
	assert.Equal(t, 7, list[1])
	deep := list[2].([]any)
	assert.Equal(t, `\#deep`, deep[0])
	assert.Equal(t, `\{x\}`, deep[1].(map[string]any)["k"])
	assert.Equal(t, []string{`\textasciitilde{}`}, out["strings"])

	assert.Equal(t, "50% & $5", in["text"], "input must not be mutated")
}

func TestEscapeData_AllLeavesFullyEscaped(t *testing.T) {
	in := map[string]any{"a": []any{`\`, "^", map[string]any{"b": "<|>"}}}
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			assert.True(t, latex.IsFullyEscaped(val), val)
		case []any:
			for _, x := range val {
				walk(x)
			}
		case map[string]any:
			for _, x := range val {
				walk(x)
			}
		}
	}
	walk(EscapeData(in))
}

func TestRender_DefaultTemplate(t *testing.T) {
	src, err := assets.DefaultTemplate()
	require.NoError(t, err)

	data := map[string]any{
		"titulo_documento": "r3eVIIIs25 - Solicitud de fondos",
		"fecha_larga":      "03 de julio de 2025",
		"visto":            "Gasto 100% & más",
		"mes_nombre":       "julio",
		"anio":             "2025",
		"considerandos": []any{
			map[string]any{"tipo": "gasto_anterior", "descripcion": "Transporte", "monto": "14000"},
			map[string]any{"tipo": "texto", "contenido": "Que es necesario."},
		},
		"articulos": []any{"Otorgar 14000.", "Comuníquese."},
		"anexo": map[string]any{
			"titulo":               "Presupuesto",
			"anexo_items":          []any{map[string]any{"categoria": "Transporte", "monto": "14000"}},
			"penalizaciones":       []any{},
			"subtotal":             "14000",
			"penalizaciones_total": "0",
			"total_solicitado":     "14000",
			"nota_final":           "",
		},
	}

	out, err := NewRenderer(nil).RenderSource(assets.DefaultTemplateName, src, data)
	require.NoError(t, err)

	assert.Contains(t, out, `\textbf{\Large r3eVIIIs25 - Solicitud de fondos}`)
	assert.Contains(t, out, `\noindent\textbf{VISTO:} Gasto 100\% \& más`)
	assert.Contains(t, out, `\item Que en el mes anterior se destinaron \$14000 a Transporte.`)
	assert.Contains(t, out, `\item Que es necesario.`)
	assert.Contains(t, out, `\noindent\textbf{Artículo 1.} Otorgar 14000.`)
	assert.Contains(t, out, `\noindent\textbf{Artículo 2.} Comuníquese.`)
	assert.Contains(t, out, `Transporte & \$14000 \\`)
	assert.Contains(t, out, `\textbf{Total solicitado} & \$14000 \\`)
	assert.Contains(t, out, "julio 2025")
	assert.NotContains(t, out, "Total penalizaciones")
	assert.NotContains(t, out, "<no value>")
	assert.Contains(t, out, `\end{document}`)
}
