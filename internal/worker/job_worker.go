// Package worker generates documents for jobs taken off the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"resoluciones/internal/amqp"
	derrors "resoluciones/internal/errors"
	"resoluciones/internal/ledger"
	"resoluciones/internal/log"
	"resoluciones/internal/metrics"
	"resoluciones/internal/pipeline"
	"resoluciones/internal/services"
)

// Generator runs a generation request for a stored record.
type Generator interface {
	GenerateFromFile(ctx context.Context, req services.GenerateRequest) (*pipeline.Result, error)
}

// JobSource feeds jobs to a handler until ctx is done.
type JobSource interface {
	ConsumeWithRetry(ctx context.Context, handler amqp.JobHandler) error
}

// CategoryCache stores a local copy of the ledger categories.
type CategoryCache interface {
	Categories(ctx context.Context) ([]string, error)
	SyncCategories(ctx context.Context, categories []string) error
}

// Codes worth another attempt. Every other failure needs a changed record
// or environment first.
var retryable = map[derrors.Code]bool{
	derrors.CodeCompilationTimedOut: true,
	derrors.CodeInternal:            true,
}

type JobWorker struct {
	generator Generator
	source    ledger.CategoryLister
	cache     CategoryCache
	recorder  metrics.Recorder
	logger    *log.Logger
}

// Option configures a JobWorker.
type Option func(*JobWorker)

// WithCategorySync keeps cache filled from source.
func WithCategorySync(source ledger.CategoryLister, cache CategoryCache) Option {
	return func(w *JobWorker) {
		w.source = source
		w.cache = cache
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(w *JobWorker) { w.recorder = metrics.OrNoop(r) }
}

func New(g Generator, logger *log.Logger, opts ...Option) *JobWorker {
	w := &JobWorker{
		generator: g,
		recorder:  metrics.NoopRecorder{},
		logger:    log.OrNop(logger).WithComponent(log.ComponentWorker),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleJob generates the document for job. Failures that a retry cannot
// fix are wrapped with amqp.ErrDiscard.
func (w *JobWorker) HandleJob(ctx context.Context, job *amqp.GenerateJob) error {
	logger := w.logger.With(log.FieldJobID, job.JobID)
	res, err := w.generator.GenerateFromFile(ctx, services.GenerateRequest{
		RecordPath:   job.RecordPath,
		TemplatePath: job.TemplatePath,
		OutputDir:    job.OutputDir,
		FileBase:     job.FileBase,
	})
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		w.recorder.IncJobs(string(metrics.ResultFailed))
		code := derrors.CodeOf(err)
		logger.ErrorContext(ctx, "job generation failed",
			log.FieldCode, string(code),
			log.FieldError, err.Error())
		if retryable[code] {
			return err
		}
		return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
	}

	result := metrics.ResultSuccess
	if len(res.Warnings) > 0 {
		result = metrics.ResultWarning
	}
	w.recorder.IncJobs(string(result))
	logger.InfoContext(ctx, "job document generated",
		log.FieldPDFPath, res.PDFPath,
		log.FieldDuration, res.Duration)
	return nil
}

// RefreshCategories copies the ledger categories into the local cache. It
// is a no-op without category sync configured.
func (w *JobWorker) RefreshCategories(ctx context.Context) error {
	if w.source == nil || w.cache == nil {
		return nil
	}
	cats, err := w.source.Categories(ctx)
	if err != nil {
		return fmt.Errorf("load categories from ledger: %w", err)
	}
	if len(cats) == 0 {
		w.logger.WarnContext(ctx, "ledger returned no categories, keeping cache")
		return nil
	}
	if err := w.cache.SyncCategories(ctx, cats); err != nil {
		return fmt.Errorf("sync categories: %w", err)
	}
	w.logger.InfoContext(ctx, "categories cached", "count", len(cats))
	return nil
}

// RefreshCategoriesIfEmpty fills the cache on startup when it has nothing.
func (w *JobWorker) RefreshCategoriesIfEmpty(ctx context.Context) error {
	if w.cache == nil {
		return nil
	}
	cats, err := w.cache.Categories(ctx)
	if err != nil {
		return fmt.Errorf("check category cache: %w", err)
	}
	if len(cats) > 0 {
		w.logger.InfoContext(ctx, "category cache is warm", "count", len(cats))
		return nil
	}
	return w.RefreshCategories(ctx)
}

// Config holds the intervals of the background loops.
type Config struct {
	HeartbeatInterval time.Duration
	CategoryInterval  time.Duration
}

// Run consumes jobs until ctx is done, with a heartbeat log and a periodic
// category refresh beside it. It returns nil on a clean shutdown.
func (w *JobWorker) Run(ctx context.Context, jobs JobSource, cfg Config) error {
	if err := w.RefreshCategoriesIfEmpty(ctx); err != nil {
		w.logger.ErrorContext(ctx, "startup category sync failed", log.FieldError, err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return jobs.ConsumeWithRetry(gctx, w.HandleJob)
	})
	if cfg.HeartbeatInterval > 0 {
		g.Go(func() error {
			return every(gctx, cfg.HeartbeatInterval, func() {
				w.logger.InfoContext(gctx, "worker alive")
			})
		})
	}
	if cfg.CategoryInterval > 0 && w.source != nil {
		g.Go(func() error {
			return every(gctx, cfg.CategoryInterval, func() {
				if err := w.RefreshCategories(gctx); err != nil {
					w.logger.ErrorContext(gctx, "periodic category refresh failed", log.FieldError, err.Error())
				}
			})
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func every(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn()
		}
	}
}
