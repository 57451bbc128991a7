// Package cli provides the initialization shared by cmd/resoluciones and
// cmd/resoluciones-worker.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"resoluciones/internal/config"
	"resoluciones/internal/log"
)

// SetupLogger builds the process logger from cfg. verbose forces debug level.
func SetupLogger(cfg *config.Config, verbose bool, out io.Writer) *log.Logger {
	level := log.ParseLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	if out == nil {
		out = os.Stderr
	}
	return log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    out,
	})
}

// LoadConfig loads the .env file and the environment, then validates. The
// returned warnings are legal but probably unintended settings.
func LoadConfig() (*config.Config, []string, error) {
	config.LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Warnings(), nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.OrNop(logger).Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
