package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resoluciones/internal/config"
	"resoluciones/internal/ledger/memory"
)

func TestNewApp(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		RecordPath:     filepath.Join(dir, "config_mes.json"),
		TemplatePath:   filepath.Join(dir, "plantilla.tex"),
		OutputDir:      dir,
		CompilerBinary: "pdflatex",
		CompileTimeout: time.Minute,
		ResourceFiles:  []string{"logo.png"},
		LedgerBackend:  "memory",
	}
	app, err := NewApp(cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "pdflatex", app.Compiler.Binary())
	paths := app.CheckPaths()
	assert.Equal(t, cfg.TemplatePath, paths.TemplatePath)
	assert.Equal(t, []string{"logo.png"}, paths.Resources)

	l, err := app.Ledger(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, l)
	again, err := app.Ledger(context.Background())
	require.NoError(t, err)
	assert.Same(t, l, again)

	d1, err := app.Drafter(context.Background())
	require.NoError(t, err)
	d2, _ := app.Drafter(context.Background())
	assert.Same(t, d1, d2)

	rr := httptest.NewRecorder()
	app.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	assert.NoError(t, app.Close())
}

func TestNewApp_BadCompiler(t *testing.T) {
	_, err := NewApp(&config.Config{CompilerBinary: "pdflatex"}, nil)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RESOLUCIONES_LOG_FORMAT", "xml")
	_, _, err := LoadConfig()
	assert.ErrorContains(t, err, "invalid log format")
}
