package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"resoluciones/internal/amqp"
	"resoluciones/internal/cli"
	"resoluciones/internal/config"
	"resoluciones/internal/log"
	"resoluciones/internal/storage"
	"resoluciones/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "resoluciones-worker: "+err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, warnings, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required for the worker")
	}

	logger := cli.SetupLogger(cfg, false, os.Stdout)
	log.SetDefault(logger)
	for _, w := range warnings {
		logger.Warn("configuration warning", "warning", w)
	}
	logger.Info("Starting resoluciones-worker", "queue", cfg.AMQPQueue, "backend", cfg.LedgerBackend)

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	opts := []worker.Option{worker.WithRecorder(app.Recorder)}
	if syncOpt, closeCache, err := categorySync(ctx, app, cfg, logger); err != nil {
		logger.Error("Category sync disabled", log.FieldError, err.Error())
	} else if syncOpt != nil {
		defer closeCache()
		opts = append(opts, syncOpt)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer client.Close()

	w := worker.New(app.Generator, logger, opts...)
	err = w.Run(ctx, client, worker.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		CategoryInterval:  24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	logger.Info("Worker shutdown complete")
	return nil
}

// categorySync mirrors the ledger categories into the SQLite cache. A SQLite
// ledger is its own cache and needs no sync.
func categorySync(ctx context.Context, app *cli.App, cfg *config.Config, logger *log.Logger) (worker.Option, func(), error) {
	if cfg.LedgerBackend == "sqlite" {
		return nil, nil, nil
	}
	source, err := app.Ledger(ctx)
	if err != nil {
		return nil, nil, err
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		return nil, nil, err
	}
	closeCache := func() {
		if err := repo.Close(); err != nil {
			logger.Warn("close category cache", log.FieldError, err.Error())
		}
	}
	return worker.WithCategorySync(source, repo), closeCache, nil
}
