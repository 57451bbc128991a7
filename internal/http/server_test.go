package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resoluciones/internal/amqp"
	"resoluciones/internal/core"
	derrors "resoluciones/internal/errors"
	"resoluciones/internal/ledger/memory"
	"resoluciones/internal/middleware"
	"resoluciones/internal/pipeline"
	"resoluciones/internal/records"
	"resoluciones/internal/services"
	"resoluciones/internal/syscheck"
)

func validRecord() map[string]any {
	return map[string]any{
		"mes_iso":       "2025-07",
		"titulo_base":   "Solicitud de fondos",
		"visto":         "El presupuesto mensual.",
		"considerandos": []any{map[string]any{"tipo": "gasto_anterior", "descripcion": "Transporte", "monto": "14000"}},
		"articulos":     []any{"Otorgar la suma de $MONTO_TOTAL."},
		"anexo": map[string]any{
			"titulo":         "Presupuesto",
			"anexo_items":    []any{map[string]any{"categoria": "Transporte", "monto": "14000"}},
			"penalizaciones": []any{},
			"nota_final":     "",
		},
	}
}

type fakeGenerator struct {
	result   *pipeline.Result
	err      error
	lastReq  services.GenerateRequest
	lastBody map[string]any
}

func (f *fakeGenerator) GenerateFromFile(_ context.Context, req services.GenerateRequest) (*pipeline.Result, error) {
	f.lastReq = req
	return f.result, f.err
}

func (f *fakeGenerator) GenerateRecord(_ context.Context, record map[string]any, req services.GenerateRequest) *pipeline.Result {
	f.lastReq, f.lastBody = req, record
	return f.result
}

type fakePublisher struct {
	err  error
	jobs []*amqp.GenerateJob
}

func (f *fakePublisher) PublishJob(_ context.Context, job *amqp.GenerateJob) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

type countingChecker struct {
	calls atomic.Int32
	rep   syscheck.Report
}

func (c *countingChecker) Run(context.Context, syscheck.Paths, bool) syscheck.Report {
	c.calls.Add(1)
	return c.rep
}

type countingLister struct {
	calls atomic.Int32
	inner *memory.Store
	err   error
}

func (c *countingLister) ListExpenses(ctx context.Context, year, month int) ([]core.Expense, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.ListExpenses(ctx, year, month)
}

func august3() time.Time { return time.Date(2025, 8, 3, 12, 0, 0, 0, time.UTC) }

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	opts := DefaultOptions()
	opts.Now = august3
	opts.RateLimit = middleware.RateLimitConfig{Requests: 100, Period: time.Minute}
	srv, err := NewServer(":0", deps, opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestHealthAndMiddleware(t *testing.T) {
	srv := newTestServer(t, Deps{})
	rec, body := do(t, srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ok", body["message"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, body = do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestConfig_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	srv := newTestServer(t, Deps{Records: records.NewStore(nil), RecordPath: path})

	rec, body := do(t, srv, http.MethodGet, "/config", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(derrors.CodeRecordNotFound), body["error_code"])

	invalid := validRecord()
	delete(invalid, "visto")
	rec, body = do(t, srv, http.MethodPost, "/config", mustJSON(t, invalid))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(derrors.CodeValidationFailed), body["error_code"])
	assert.NotEmpty(t, body["validation_errors"])
	assert.NoFileExists(t, path)

	rec, _ = do(t, srv, http.MethodPost, "/config", mustJSON(t, validRecord()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.FileExists(t, path)

	rec, body = do(t, srv, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	record := body["record"].(map[string]any)
	assert.Equal(t, "2025-07", record["mes_iso"])
}

func TestValidate(t *testing.T) {
	srv := newTestServer(t, Deps{})

	rec, body := do(t, srv, http.MethodPost, "/validate", mustJSON(t, validRecord()))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, body["errors"])

	bad := validRecord()
	bad["mes_iso"] = "2025-13"
	_, body = do(t, srv, http.MethodPost, "/validate", mustJSON(t, bad))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, string(derrors.CodeValidationFailed), body["error_code"])
	assert.Len(t, body["errors"], 1)

	rec, body = do(t, srv, http.MethodPost, "/validate", "{not json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(derrors.CodeInvalidInputType), body["error_code"])

	rec, _ = do(t, srv, http.MethodPost, "/validate", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestValidate_NumericAmountsBecomeText(t *testing.T) {
	srv := newTestServer(t, Deps{})
	body := strings.Replace(mustJSON(t, validRecord()), `"monto":"14000"`, `"monto":14000`, 1)
	_, out := do(t, srv, http.MethodPost, "/validate", body)
	assert.Equal(t, true, out["success"], out)
}

func TestGenerate(t *testing.T) {
	gen := &fakeGenerator{result: &pipeline.Result{Success: true, Message: "document generated", PDFPath: "out/doc.pdf", Stage: pipeline.StateDone}}
	srv := newTestServer(t, Deps{Generator: gen, RecordPath: "config.json"})

	rec, body := do(t, srv, http.MethodPost, "/generate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "out/doc.pdf", body["pdf_path"])
	assert.Equal(t, "config.json", gen.lastReq.RecordPath)
	assert.Nil(t, gen.lastBody)

	_, _ = do(t, srv, http.MethodPost, "/generate", `{"record": {"mes_iso": "2025-07"}, "file_base": "doc"}`)
	assert.Equal(t, "2025-07", gen.lastBody["mes_iso"])
	assert.Equal(t, "doc", gen.lastReq.FileBase)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		gen    *fakeGenerator
		status int
		code   derrors.Code
	}{
		{
			name:   "compiler missing",
			gen:    &fakeGenerator{result: &pipeline.Result{Code: derrors.CodeCompilerUnavailable, Message: "pdflatex not found"}},
			status: http.StatusServiceUnavailable,
			code:   derrors.CodeCompilerUnavailable,
		},
		{
			name:   "timeout",
			gen:    &fakeGenerator{result: &pipeline.Result{Code: derrors.CodeCompilationTimedOut}},
			status: http.StatusGatewayTimeout,
			code:   derrors.CodeCompilationTimedOut,
		},
		{
			name:   "record missing",
			gen:    &fakeGenerator{err: derrors.New(derrors.CodeRecordNotFound, "record file not found")},
			status: http.StatusNotFound,
			code:   derrors.CodeRecordNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Deps{Generator: tt.gen})
			rec, body := do(t, srv, http.MethodPost, "/generate", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.code), body["error_code"])
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestSubmitJob(t *testing.T) {
	srv := newTestServer(t, Deps{})
	rec, _ := do(t, srv, http.MethodPost, "/jobs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	pub := &fakePublisher{}
	srv = newTestServer(t, Deps{Jobs: pub, RecordPath: "config.json"})
	rec, body := do(t, srv, http.MethodPost, "/jobs", `{"file_base": "doc"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pub.jobs, 1)
	assert.Equal(t, pub.jobs[0].JobID, body["job_id"])
	assert.Equal(t, "config.json", pub.jobs[0].RecordPath)
	assert.Equal(t, "doc", pub.jobs[0].FileBase)

	pub.err = errors.New("circuit breaker is open")
	rec, _ = do(t, srv, http.MethodPost, "/jobs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func seededLedger(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New(nil)
	for _, e := range []core.Expense{
		{Date: core.NewDate(2025, 7, 2), Category: "Transporte", Description: "Colectivo", Amount: decimal.NewFromInt(1500)},
		{Date: core.NewDate(2025, 7, 9), Category: "Comida", Description: "Almuerzo", Amount: decimal.NewFromInt(4000)},
	} {
		_, err := store.Append(context.Background(), e)
		require.NoError(t, err)
	}
	return store
}

func TestDraft(t *testing.T) {
	srv := newTestServer(t, Deps{Drafter: services.NewDrafter(seededLedger(t), nil)})

	rec, body := do(t, srv, http.MethodPost, "/draft", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	record := body["record"].(map[string]any)
	assert.Equal(t, "2025-08", record["mes_iso"], "defaults to the current month")
	assert.Len(t, record["considerandos"], 3)

	rec, _ = do(t, srv, http.MethodPost, "/draft?period=2025-8", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOverview_Cached(t *testing.T) {
	lister := &countingLister{inner: seededLedger(t)}
	srv := newTestServer(t, Deps{Ledger: lister})

	for range 2 {
		rec, body := do(t, srv, http.MethodGet, "/ledger/overview?period=2025-07", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "5500", body["total"])
		cats := body["categories"].([]any)
		require.Len(t, cats, 2)
		assert.Equal(t, "Comida", cats[0].(map[string]any)["categoria"])
	}
	assert.Equal(t, int32(1), lister.calls.Load())

	lister.err = errors.New("sheets quota exceeded")
	rec, _ := do(t, srv, http.MethodGet, "/ledger/overview?period=2025-06", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSystem(t *testing.T) {
	checker := &countingChecker{rep: syscheck.Report{OK: false, Checks: []syscheck.Check{
		{Name: "compiler", Status: syscheck.StatusError, Message: "pdflatex is not installed"},
	}}}
	srv := newTestServer(t, Deps{Checker: checker})

	rec, body := do(t, srv, http.MethodGet, "/system", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SystemCheckFailed", body["error_code"])
	_, _ = do(t, srv, http.MethodGet, "/system", "")
	assert.Equal(t, int32(1), checker.calls.Load(), "report is cached")
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, Deps{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("resoluciones_jobs_total 0\n"))
	})})
	rec, _ := do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "resoluciones_jobs_total")
}

func TestRateLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.RateLimit = middleware.RateLimitConfig{Requests: 1, Period: time.Minute}
	srv, err := NewServer(":0", Deps{}, opts, nil)
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	rec, _ := do(t, srv, http.MethodPost, "/validate", mustJSON(t, validRecord()))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, body := do(t, srv, http.MethodPost, "/validate", mustJSON(t, validRecord()))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RateLimited", body["error_code"])

	rec, _ = do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
