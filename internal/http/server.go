// Package http serves the generation API: record editing and validation,
// document generation, job submission, ledger overviews and system checks.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"resoluciones/internal/amqp"
	"resoluciones/internal/cache"
	"resoluciones/internal/core"
	"resoluciones/internal/ledger"
	"resoluciones/internal/log"
	"resoluciones/internal/middleware"
	"resoluciones/internal/pipeline"
	"resoluciones/internal/schema"
	"resoluciones/internal/services"
	"resoluciones/internal/syscheck"
)

// Generator produces documents for stored or posted records.
type Generator interface {
	GenerateFromFile(ctx context.Context, req services.GenerateRequest) (*pipeline.Result, error)
	GenerateRecord(ctx context.Context, record map[string]any, req services.GenerateRequest) *pipeline.Result
}

// RecordStore loads and saves the working record.
type RecordStore interface {
	Load(path string) (map[string]any, error)
	Save(path string, record map[string]any) (schema.Result, error)
}

// Drafter proposes a record for a period.
type Drafter interface {
	Draft(ctx context.Context, period core.Period) (map[string]any, schema.Result, error)
}

// SystemChecker inspects the generation environment.
type SystemChecker interface {
	Run(ctx context.Context, p syscheck.Paths, createTemplate bool) syscheck.Report
}

// JobPublisher queues generation jobs.
type JobPublisher interface {
	PublishJob(ctx context.Context, job *amqp.GenerateJob) error
}

// Deps are the collaborators behind the routes. Nil optional members turn
// their routes into 503 responses.
type Deps struct {
	Generator  Generator
	Records    RecordStore
	RecordPath string
	Drafter    Drafter
	Ledger     ledger.ExpenseLister
	Checker    SystemChecker
	CheckPaths syscheck.Paths
	Jobs       JobPublisher
	Metrics    http.Handler
}

// Options tune the server.
type Options struct {
	RateLimit      middleware.RateLimitConfig
	OverviewTTL    time.Duration
	SystemCheckTTL time.Duration
	Now            func() time.Time
}

func DefaultOptions() Options {
	return Options{
		RateLimit:      middleware.DefaultRateLimitConfig(),
		OverviewTTL:    5 * time.Minute,
		SystemCheckTTL: 30 * time.Second,
		Now:            time.Now,
	}
}

type Server struct {
	http.Server
	deps      Deps
	logger    *log.Logger
	validator *schema.Validator
	now       func() time.Time

	limiter   *middleware.Limiter
	overviews *cache.LRU[core.MonthOverview]
	checks    *cache.LRU[syscheck.Report]

	stopJanitor  context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware and starts the cache janitor.
func NewServer(addr string, deps Deps, opts Options, logger *log.Logger) (*Server, error) {
	logger = log.OrNop(logger)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	clientIP, err := middleware.NewClientIP()
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:      deps,
		logger:    logger.WithComponent(log.ComponentHTTP),
		validator: schema.NewValidator(logger, schema.WithValidatorClock(opts.Now)),
		now:       opts.Now,
		limiter:   middleware.NewLimiter(opts.RateLimit),
		overviews: cache.NewLRU[core.MonthOverview](64, opts.OverviewTTL),
		checks:    cache.NewLRU[syscheck.Report](1, opts.SystemCheckTTL),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /config", s.handleLoadConfig)
	mux.HandleFunc("POST /config", s.handleSaveConfig)
	mux.HandleFunc("POST /validate", s.handleValidate)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /jobs", s.handleSubmitJob)
	mux.HandleFunc("POST /draft", s.handleDraft)
	mux.HandleFunc("GET /ledger/overview", s.handleOverview)
	mux.HandleFunc("GET /system", s.handleSystem)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "NotFound", "no route for "+r.Method+" "+r.URL.Path).Write(w, r)
	})

	s.Server = http.Server{
		Addr: addr,
		Handler: middleware.Chain(mux,
			log.Middleware(logger),
			middleware.SecurityHeaders(middleware.DefaultHeadersConfig()),
			s.limiter.RateLimit(clientIP.Resolve, func(w http.ResponseWriter, r *http.Request) {
				s.logger.WarnContext(r.Context(), "rate limit exceeded", "path", r.URL.Path)
				ErrorResponse(http.StatusTooManyRequests, "RateLimited", "rate limit exceeded, try again later").Write(w, r)
			}),
		),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopJanitor = cancel
	go cache.RunJanitor(ctx, 5*time.Minute, s.overviews, s.checks, s.limiter)
	return s, nil
}

// Shutdown stops the janitor and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopJanitor()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
