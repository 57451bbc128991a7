package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resoluciones/internal/core"
	derrors "resoluciones/internal/errors"
	"resoluciones/internal/ledger/memory"
	"resoluciones/internal/pipeline"
	"resoluciones/internal/records"
)

func TestDrafter_FromPreviousMonth(t *testing.T) {
	store := memory.New(nil)
	ctx := context.Background()
	for _, e := range []core.Expense{
		{Date: core.NewDate(2025, 6, 2), Category: "Transporte", Description: "Colectivo", Amount: decimal.NewFromInt(1500)},
		{Date: core.NewDate(2025, 6, 9), Category: "Comida", Description: "Almuerzo", Amount: decimal.NewFromInt(4000)},
		{Date: core.NewDate(2025, 6, 20), Category: "Transporte", Description: "Taxi", Amount: decimal.NewFromInt(3000)},
		{Date: core.NewDate(2025, 7, 1), Category: "Comida", Description: "Cena", Amount: decimal.NewFromInt(999)},
	} {
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}

	record, res, err := NewDrafter(store, nil).Draft(ctx, core.Period{Year: 2025, Month: time.July})
	require.NoError(t, err)
	assert.True(t, res.OK(), "errors: %v", res.Errors)

	assert.Equal(t, "2025-07", record["mes_iso"])
	assert.Equal(t, "Presupuesto mensual de julio", record["titulo_base"])

	considerations := record["considerandos"].([]any)
	require.Len(t, considerations, 3)
	assert.Equal(t, map[string]any{"tipo": "gasto_anterior", "descripcion": "Transporte (junio)", "monto": "4500"}, considerations[0])
	assert.Equal(t, map[string]any{"tipo": "gasto_anterior", "descripcion": "Comida (junio)", "monto": "4000"}, considerations[1])
	assert.Equal(t, "texto", considerations[2].(map[string]any)["tipo"])

	items := record["anexo"].(map[string]any)["anexo_items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, map[string]any{"categoria": "Transporte", "monto": "4500"}, items[0])
}

func TestDrafter_EmptyLedger(t *testing.T) {
	record, res, err := NewDrafter(memory.New(nil), nil).Draft(context.Background(), core.Period{Year: 2025, Month: time.January})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Len(t, record["considerandos"].([]any), 1)
	assert.Empty(t, record["anexo"].(map[string]any)["anexo_items"])
}

type failingLister struct{}

func (failingLister) ListExpenses(context.Context, int, int) ([]core.Expense, error) {
	return nil, errors.New("ledger offline")
}

func TestDrafter_LedgerError(t *testing.T) {
	_, _, err := NewDrafter(failingLister{}, nil).Draft(context.Background(), core.Period{Year: 2025, Month: time.March})
	assert.ErrorContains(t, err, "ledger offline")
	assert.ErrorContains(t, err, "2025-02")
}

type stubLoader struct {
	record map[string]any
	err    error
	calls  atomic.Int32
}

func (s *stubLoader) Load(string) (map[string]any, error) {
	s.calls.Add(1)
	return s.record, s.err
}

type slowPipeline struct {
	calls   atomic.Int32
	release chan struct{}
	last    pipeline.Request
	mu      sync.Mutex
}

func (p *slowPipeline) Generate(_ context.Context, req pipeline.Request) *pipeline.Result {
	p.calls.Add(1)
	p.mu.Lock()
	p.last = req
	p.mu.Unlock()
	if p.release != nil {
		<-p.release
	}
	return &pipeline.Result{Success: true, Stage: pipeline.StateDone}
}

func TestGenerator_AppliesDefaults(t *testing.T) {
	p := &slowPipeline{}
	g := NewGenerator(&stubLoader{record: map[string]any{}}, p, Defaults{
		RecordPath: "config.json", TemplatePath: "tpl.tex", OutputDir: "out",
	}, nil)

	res, err := g.GenerateFromFile(context.Background(), GenerateRequest{FileBase: "doc"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tpl.tex", p.last.TemplatePath)
	assert.Equal(t, "out", p.last.OutputDir)
	assert.Equal(t, "doc", p.last.FileBase)

	g.GenerateRecord(context.Background(), map[string]any{}, GenerateRequest{OutputDir: "elsewhere"})
	assert.Equal(t, "elsewhere", p.last.OutputDir)
}

func TestGenerator_MissingRecord(t *testing.T) {
	loader := &stubLoader{err: records.ErrNotFound}
	_, err := NewGenerator(loader, &slowPipeline{}, Defaults{}, nil).
		GenerateFromFile(context.Background(), GenerateRequest{RecordPath: "nope.json"})
	assert.Equal(t, derrors.CodeRecordNotFound, derrors.CodeOf(err))
}

func TestGenerator_CollapsesConcurrentRequests(t *testing.T) {
	p := &slowPipeline{release: make(chan struct{})}
	loader := &stubLoader{record: map[string]any{}}
	g := NewGenerator(loader, p, Defaults{RecordPath: "config.json", OutputDir: "out"}, nil)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*pipeline.Result, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.GenerateFromFile(context.Background(), GenerateRequest{})
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(p.release)
	wg.Wait()

	assert.LessOrEqual(t, p.calls.Load(), int32(callers))
	for _, r := range results {
		require.NotNil(t, r)
		assert.True(t, r.Success)
	}
}

// ctxPipeline blocks until released and fails when its context was cancelled.
type ctxPipeline struct {
	started chan struct{}
	release chan struct{}
}

func (p *ctxPipeline) Generate(ctx context.Context, _ pipeline.Request) *pipeline.Result {
	close(p.started)
	<-p.release
	if ctx.Err() != nil {
		return &pipeline.Result{Success: false, Stage: pipeline.StateFailed, Message: ctx.Err().Error()}
	}
	return &pipeline.Result{Success: true, Stage: pipeline.StateDone}
}

func TestGenerator_CancelledCallerDoesNotFailSharedRun(t *testing.T) {
	p := &ctxPipeline{started: make(chan struct{}), release: make(chan struct{})}
	g := NewGenerator(&stubLoader{record: map[string]any{}}, p, Defaults{RecordPath: "config.json", OutputDir: "out"}, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := g.GenerateFromFile(firstCtx, GenerateRequest{})
		firstErr <- err
	}()
	<-p.started

	second := make(chan *pipeline.Result, 1)
	go func() {
		res, err := g.GenerateFromFile(context.Background(), GenerateRequest{})
		assert.NoError(t, err)
		second <- res
	}()

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, derrors.CodeInternal, derrors.CodeOf(err))
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(p.release)
	select {
	case res := <-second:
		require.NotNil(t, res)
		assert.True(t, res.Success, res.Message)
	case <-time.After(time.Second):
		t.Fatal("second caller never got the shared result")
	}
}
