// Package pipeline turns a budget record into a compiled resolution document.
//
// A request moves through validating, processing, rendering, compiling and
// cleaning_up. Any stage before cleanup may end the request in the failed
// state; the Result then names the stage and an error code. Cleanup problems
// are reported but never fail the request.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resoluciones/assets"
	"resoluciones/internal/budget"
	"resoluciones/internal/cleanup"
	"resoluciones/internal/compiler"
	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
	"resoluciones/internal/metrics"
	"resoluciones/internal/render"
	"resoluciones/internal/schema"
)

// Compiler produces the final document from a rendered source file.
type Compiler interface {
	Compile(ctx context.Context, sourcePath, outputDir string) (*compiler.Outcome, error)
}

// Request is one generation request. An empty TemplatePath uses the
// embedded default template; an empty FileBase uses the document title.
type Request struct {
	Record       map[string]any
	TemplatePath string
	OutputDir    string
	FileBase     string
}

// Result is what a request produced. On failure Code and Stage say where
// and why; Message is always human readable.
type Result struct {
	Success          bool            `json:"success"`
	Message          string          `json:"message"`
	PDFPath          string          `json:"pdf_path,omitempty"`
	TexPath          string          `json:"tex_path,omitempty"`
	CompilationLog   string          `json:"compilation_log,omitempty"`
	LogSummary       []string        `json:"log_summary,omitempty"`
	Code             derrors.Code    `json:"error_code,omitempty"`
	Stage            State           `json:"stage"`
	Guidance         string          `json:"guidance,omitempty"`
	ValidationErrors []string        `json:"validation_errors,omitempty"`
	Warnings         []string        `json:"warnings,omitempty"`
	ResolutionCode   string          `json:"resolution_code,omitempty"`
	DocumentTitle    string          `json:"document_title,omitempty"`
	Replaced         []string        `json:"replaced,omitempty"`
	Resources        []string        `json:"resources,omitempty"`
	Cleanup          *cleanup.Report `json:"cleanup,omitempty"`
	Duration         time.Duration   `json:"duration"`
}

// Err returns the failure as a taxonomy error, or nil on success.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return derrors.New(r.Code, r.Message).WithStage(string(r.Stage)).WithGuidance(r.Guidance)
}

// Pipeline composes validation, processing, rendering, compilation and
// cleanup. It holds no per-request state and may serve concurrent requests
// as long as they write to distinct output paths.
type Pipeline struct {
	validator *schema.Validator
	processor *budget.Processor
	renderer  *render.Renderer
	compiler  Compiler
	cleaner   *cleanup.Cleaner
	logger    *log.Logger
	metrics   metrics.Recorder

	autoCleanup    bool
	cleanupExts    []string
	resources      []string
	legacyDir      string
	replaceSameDay bool
	now            func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock pins the clock used for period checks and the generation date.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = metrics.OrNoop(r) }
}

// WithCleanup controls intermediate file removal after a successful compile.
// A nil exts keeps cleanup.DefaultExtensions.
func WithCleanup(enabled bool, exts []string) Option {
	return func(p *Pipeline) {
		p.autoCleanup = enabled
		if exts != nil {
			p.cleanupExts = exts
		}
	}
}

// WithResources sets the files copied from the template directory next to
// the rendered source, and the legacy subdirectory that also receives them.
func WithResources(files []string, legacyDir string) Option {
	return func(p *Pipeline) {
		p.resources = files
		p.legacyDir = legacyDir
	}
}

// WithSameDayReplacement removes earlier outputs carrying the same
// resolution code before writing.
func WithSameDayReplacement(enabled bool) Option {
	return func(p *Pipeline) { p.replaceSameDay = enabled }
}

// New creates a Pipeline around c.
func New(c Compiler, logger *log.Logger, opts ...Option) *Pipeline {
	logger = log.OrNop(logger)
	p := &Pipeline{
		compiler:       c,
		logger:         logger.WithComponent(log.ComponentPipeline),
		metrics:        metrics.NoopRecorder{},
		autoCleanup:    true,
		cleanupExts:    cleanup.DefaultExtensions,
		replaceSameDay: true,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.validator = schema.NewValidator(logger, schema.WithValidatorClock(p.now))
	p.processor = budget.NewProcessor(logger, budget.WithClock(p.now))
	p.renderer = render.NewRenderer(logger)
	p.cleaner = cleanup.NewCleaner(logger)
	return p
}

// run tracks the state of a single request.
type run struct {
	p     *Pipeline
	res   *Result
	state State
	mark  time.Time
}

func (r *run) advance(next State) {
	if !r.state.CanTransition(next) {
		panic(fmt.Sprintf("pipeline: invalid transition %s -> %s", r.state, next))
	}
	r.p.metrics.ObserveStageDuration(string(r.state), time.Since(r.mark))
	r.p.metrics.IncStageResult(string(r.state), metrics.ResultSuccess)
	r.state = next
	r.res.Stage = next
	r.mark = time.Now()
}

func (r *run) fail(err error) *Result {
	e := derrors.Ensure(err, derrors.CodeInternal, "unexpected error")
	stage := r.state
	r.p.metrics.ObserveStageDuration(string(stage), time.Since(r.mark))
	r.p.metrics.IncStageResult(string(stage), metrics.ResultFailed)

	r.res.Success = false
	r.res.Code = e.Code
	r.res.Message = e.Message
	r.res.Guidance = e.Guidance
	r.res.Stage = stage
	r.state = StateFailed

	r.p.logger.Error("generation failed",
		log.FieldStage, string(stage),
		log.FieldCode, string(e.Code),
		log.FieldError, e.Error())
	return r.res
}

// Generate runs one request through every stage. It never panics and always
// returns a Result.
func (p *Pipeline) Generate(ctx context.Context, req Request) (result *Result) {
	start := time.Now()
	r := &run{p: p, res: &Result{Stage: StateValidating}, state: StateValidating, mark: start}
	defer func() {
		if rec := recover(); rec != nil {
			result = r.fail(derrors.Newf(derrors.CodeInternal, "unexpected error in %s: %v", r.state, rec))
		}
		result.Duration = time.Since(start)
		p.metrics.ObserveGenerationDuration(result.Duration)
		if result.Success {
			p.metrics.IncGenerationOutcome("success")
		} else {
			p.metrics.IncGenerationOutcome("failed")
		}
	}()

	// validating
	vr := p.validator.Validate(req.Record)
	r.res.Warnings = vr.Warnings
	if !vr.OK() {
		r.res.ValidationErrors = vr.Errors
		return r.fail(derrors.New(derrors.CodeValidationFailed, vr.Summary()+": "+strings.Join(vr.Errors, "; ")).
			WithGuidance("Fix the listed fields in the record and try again."))
	}
	r.advance(StateProcessing)

	// processing
	processed, err := p.processor.Process(req.Record)
	if err != nil {
		return r.fail(err)
	}
	r.res.ResolutionCode = processed.ResolutionCode
	r.res.DocumentTitle = processed.DocumentTitle
	r.advance(StateRendering)

	// rendering
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	if err := compiler.EnsureOutputDir(outputDir); err != nil {
		return r.fail(err)
	}
	fileBase := req.FileBase
	if fileBase == "" {
		fileBase = processed.DocumentTitle
	}
	fileBase = SafeFileBase(fileBase)

	if p.replaceSameDay {
		r.res.Replaced = removeSameDay(outputDir, processed.ResolutionCode, p.logger)
	}

	source, err := p.render(req.TemplatePath, processed.TemplateData())
	if err != nil {
		return r.fail(err)
	}
	if req.TemplatePath != "" {
		r.res.Resources = copyResources(filepath.Dir(req.TemplatePath), outputDir, p.legacyDir, p.resources, p.logger)
	}

	texPath := filepath.Join(outputDir, fileBase+".tex")
	if err := os.WriteFile(texPath, []byte(source), 0o600); err != nil {
		return r.fail(derrors.Wrap(err, derrors.CodeFileWriteFailed, "cannot write source file: "+texPath).
			WithGuidance("Check write permissions and free disk space in the output directory."))
	}
	r.res.TexPath = texPath
	r.advance(StateCompiling)

	// compiling
	outcome, err := p.compiler.Compile(ctx, texPath, outputDir)
	if outcome != nil {
		r.res.CompilationLog = outcome.Log()
		r.res.LogSummary = SummarizeLog(r.res.CompilationLog)
	}
	if err != nil {
		return r.fail(err)
	}
	if !outcome.Success {
		return r.fail(derrors.Newf(derrors.CodeCompilationFailed,
			"compilation failed with exit code %d and no output file", outcome.ExitCode).
			WithGuidance("Review the compilation log for the LaTeX error."))
	}
	r.res.PDFPath = outcome.ArtifactPath
	r.res.Success = true
	r.res.Message = "document generated: " + outcome.ArtifactPath

	// cleaning_up
	if p.autoCleanup {
		r.advance(StateCleaningUp)
		base := strings.TrimSuffix(texPath, filepath.Ext(texPath))
		report := p.cleaner.Clean(base, p.cleanupExts)
		r.res.Cleanup = &report
		p.metrics.IncCleanupFailures(report.TotalFailed())
	}
	r.advance(StateDone)

	p.logger.Info("document generated",
		log.FieldPDFPath, r.res.PDFPath,
		log.FieldTexPath, r.res.TexPath,
		"resolution_code", r.res.ResolutionCode)
	return r.res
}

func (p *Pipeline) render(templatePath string, data map[string]any) (string, error) {
	if templatePath != "" {
		return p.renderer.Render(templatePath, data)
	}
	src, err := assets.DefaultTemplate()
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeTemplateUnreadable, "embedded template is not readable")
	}
	return p.renderer.RenderSource(assets.DefaultTemplateName, src, data)
}
