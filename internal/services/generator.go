package services

import (
	"context"
	"errors"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
	"resoluciones/internal/pipeline"
	"resoluciones/internal/records"
)

// DocumentPipeline runs one generation request.
type DocumentPipeline interface {
	Generate(ctx context.Context, req pipeline.Request) *pipeline.Result
}

// RecordLoader reads a stored record.
type RecordLoader interface {
	Load(path string) (map[string]any, error)
}

// GenerateRequest names a record and where its document goes. Empty fields
// fall back to the Generator defaults.
type GenerateRequest struct {
	RecordPath   string `json:"record_path,omitempty"`
	TemplatePath string `json:"template_path,omitempty"`
	OutputDir    string `json:"output_dir,omitempty"`
	FileBase     string `json:"file_base,omitempty"`
}

// Defaults are applied to requests that leave a field empty.
type Defaults struct {
	RecordPath   string
	TemplatePath string
	OutputDir    string
}

// Generator loads records and runs them through the pipeline. Concurrent
// requests for the same record and output target share a single run.
type Generator struct {
	loader   RecordLoader
	pipeline DocumentPipeline
	defaults Defaults
	group    singleflight.Group
	logger   *log.Logger
}

func NewGenerator(loader RecordLoader, p DocumentPipeline, defaults Defaults, logger *log.Logger) *Generator {
	return &Generator{
		loader:   loader,
		pipeline: p,
		defaults: defaults,
		logger:   log.OrNop(logger).WithComponent(log.ComponentPipeline),
	}
}

func (g *Generator) resolve(req GenerateRequest) GenerateRequest {
	if req.RecordPath == "" {
		req.RecordPath = g.defaults.RecordPath
	}
	if req.TemplatePath == "" {
		req.TemplatePath = g.defaults.TemplatePath
	}
	if req.OutputDir == "" {
		req.OutputDir = g.defaults.OutputDir
	}
	return req
}

// GenerateFromFile loads the record at req.RecordPath and generates its
// document. The error is only set when the record cannot be loaded or ctx
// ends first; pipeline failures are described by the Result.
//
// The shared run is detached from every caller's cancellation, so a caller
// that gives up does not fail the others waiting on the same key.
func (g *Generator) GenerateFromFile(ctx context.Context, req GenerateRequest) (*pipeline.Result, error) {
	req = g.resolve(req)
	key := filepath.Clean(req.RecordPath) + "|" + filepath.Clean(req.OutputDir) + "|" + req.FileBase
	runCtx := context.WithoutCancel(ctx)

	ch := g.group.DoChan(key, func() (any, error) {
		record, err := g.loader.Load(req.RecordPath)
		if err != nil {
			if errors.Is(err, records.ErrNotFound) {
				return nil, derrors.Wrap(err, derrors.CodeRecordNotFound, "record file not found: "+req.RecordPath).
					WithGuidance("Create the record first, e.g. with the draft command.")
			}
			return nil, derrors.Wrap(err, derrors.CodeValidationFailed, "cannot load record: "+req.RecordPath)
		}
		return g.run(runCtx, record, req), nil
	})

	select {
	case <-ctx.Done():
		g.logger.WarnContext(ctx, "stopped waiting for generation", log.FieldFile, req.RecordPath, log.FieldError, ctx.Err().Error())
		return nil, derrors.Wrap(ctx.Err(), derrors.CodeInternal, "generation abandoned: "+req.RecordPath)
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			g.logger.DebugContext(ctx, "generation shared with a concurrent request", log.FieldFile, req.RecordPath)
		}
		return r.Val.(*pipeline.Result), nil
	}
}

// GenerateRecord generates the document for an in-memory record.
func (g *Generator) GenerateRecord(ctx context.Context, record map[string]any, req GenerateRequest) *pipeline.Result {
	return g.run(ctx, record, g.resolve(req))
}

func (g *Generator) run(ctx context.Context, record map[string]any, req GenerateRequest) *pipeline.Result {
	return g.pipeline.Generate(ctx, pipeline.Request{
		Record:       record,
		TemplatePath: req.TemplatePath,
		OutputDir:    req.OutputDir,
		FileBase:     req.FileBase,
	})
}
