package cli

import (
	"context"
	"errors"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"

	"resoluciones/internal/backend"
	"resoluciones/internal/compiler"
	"resoluciones/internal/config"
	"resoluciones/internal/log"
	"resoluciones/internal/metrics"
	"resoluciones/internal/pipeline"
	"resoluciones/internal/records"
	"resoluciones/internal/services"
	"resoluciones/internal/syscheck"
)

// App is the generation stack assembled from configuration.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Registry  *prom.Registry
	Recorder  metrics.Recorder
	Compiler  *compiler.Compiler
	Pipeline  *pipeline.Pipeline
	Records   *records.Store
	Generator *services.Generator
	Checker   *syscheck.Checker

	ledger  *backend.Result
	drafter *services.Drafter
}

// NewApp wires compiler, pipeline, records, generator and system checker.
// The ledger is opened lazily by Ledger.
func NewApp(cfg *config.Config, logger *log.Logger) (*App, error) {
	logger = log.OrNop(logger)
	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	c, err := compiler.New(cfg.CompilerBinary, cfg.CompileTimeout, logger)
	if err != nil {
		return nil, err
	}
	p := pipeline.New(c, logger,
		pipeline.WithRecorder(rec),
		pipeline.WithCleanup(cfg.AutoCleanup, cfg.CleanupExtensions),
		pipeline.WithResources(cfg.ResourceFiles, cfg.LegacyResourceDir),
		pipeline.WithSameDayReplacement(cfg.ReplaceSameDay))
	store := records.NewStore(logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Recorder: rec,
		Compiler: c,
		Pipeline: p,
		Records:  store,
		Generator: services.NewGenerator(store, p, services.Defaults{
			RecordPath:   cfg.RecordPath,
			TemplatePath: cfg.TemplatePath,
			OutputDir:    cfg.OutputDir,
		}, logger),
		Checker: syscheck.New(c, store, logger),
	}, nil
}

// Ledger opens the configured ledger backend once.
func (a *App) Ledger(ctx context.Context) (backend.Backend, error) {
	if a.ledger != nil {
		return a.ledger.Backend, nil
	}
	bc, err := backend.FromAppConfig(a.Config)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(a.Logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, err
	}
	a.ledger = res
	return res.Backend, nil
}

// Drafter returns a drafter reading from the configured ledger.
func (a *App) Drafter(ctx context.Context) (*services.Drafter, error) {
	if a.drafter != nil {
		return a.drafter, nil
	}
	l, err := a.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	a.drafter = services.NewDrafter(l, a.Logger)
	return a.drafter, nil
}

// CheckPaths are the locations the system check inspects.
func (a *App) CheckPaths() syscheck.Paths {
	return syscheck.Paths{
		TemplatePath: a.Config.TemplatePath,
		RecordPath:   a.Config.RecordPath,
		OutputDir:    a.Config.OutputDir,
		Resources:    a.Config.ResourceFiles,
	}
}

// MetricsHandler exposes the app registry.
func (a *App) MetricsHandler() http.Handler {
	return metrics.HTTPHandler(a.Registry)
}

// Close releases the ledger.
func (a *App) Close() error {
	var err error
	if a.ledger != nil {
		err = errors.Join(err, a.ledger.Close())
		a.ledger = nil
	}
	return err
}
