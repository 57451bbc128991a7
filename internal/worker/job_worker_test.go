package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resoluciones/internal/amqp"
	derrors "resoluciones/internal/errors"
	"resoluciones/internal/ledger/memory"
	"resoluciones/internal/metrics"
	"resoluciones/internal/pipeline"
	"resoluciones/internal/services"
)

type stubGenerator struct {
	res *pipeline.Result
	err error
	got services.GenerateRequest
}

func (s *stubGenerator) GenerateFromFile(_ context.Context, req services.GenerateRequest) (*pipeline.Result, error) {
	s.got = req
	return s.res, s.err
}

type jobCounter struct {
	metrics.NoopRecorder
	mu   sync.Mutex
	jobs []string
}

func (c *jobCounter) IncJobs(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, result)
}

func TestHandleJob(t *testing.T) {
	tests := []struct {
		name        string
		res         *pipeline.Result
		err         error
		wantErr     bool
		wantDiscard bool
		wantLabel   string
	}{
		{name: "success", res: &pipeline.Result{Success: true}, wantLabel: "success"},
		{name: "warnings", res: &pipeline.Result{Success: true, Warnings: []string{"w"}}, wantLabel: "warning"},
		{
			name:    "invalid record is discarded",
			res:     &pipeline.Result{Code: derrors.CodeValidationFailed, Message: "bad"},
			wantErr: true, wantDiscard: true, wantLabel: "failed",
		},
		{
			name:    "missing record is discarded",
			err:     derrors.New(derrors.CodeRecordNotFound, "nope"),
			wantErr: true, wantDiscard: true, wantLabel: "failed",
		},
		{
			name:    "timeout is retried",
			res:     &pipeline.Result{Code: derrors.CodeCompilationTimedOut, Message: "slow"},
			wantErr: true, wantLabel: "failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{res: tt.res, err: tt.err}
			rec := &jobCounter{}
			w := New(gen, nil, WithRecorder(rec))

			job := amqp.NewGenerateJob("config.json", "tpl.tex", "out", "doc")
			err := w.HandleJob(context.Background(), job)

			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
			assert.Equal(t, tt.wantDiscard, errors.Is(err, amqp.ErrDiscard))
			assert.Equal(t, []string{tt.wantLabel}, rec.jobs)
			assert.Equal(t, services.GenerateRequest{
				RecordPath: "config.json", TemplatePath: "tpl.tex", OutputDir: "out", FileBase: "doc",
			}, gen.got)
		})
	}
}

type memCache struct {
	mu   sync.Mutex
	cats []string
}

func (m *memCache) Categories(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cats, nil
}

func (m *memCache) SyncCategories(_ context.Context, cats []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cats = append([]string(nil), cats...)
	return nil
}

func TestRefreshCategoriesIfEmpty(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{}
	w := New(&stubGenerator{}, nil, WithCategorySync(memory.New([]string{"Transporte", "Comida"}), cache))

	require.NoError(t, w.RefreshCategoriesIfEmpty(ctx))
	assert.Equal(t, []string{"Transporte", "Comida"}, cache.cats)

	cache.cats = []string{"Vieja"}
	require.NoError(t, w.RefreshCategoriesIfEmpty(ctx))
	assert.Equal(t, []string{"Vieja"}, cache.cats, "warm cache is kept")

	require.NoError(t, w.RefreshCategories(ctx))
	assert.Equal(t, []string{"Transporte", "Comida"}, cache.cats)
}

type blockingSource struct{ started chan struct{} }

func (b *blockingSource) ConsumeWithRetry(ctx context.Context, _ amqp.JobHandler) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestRun_StopsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &blockingSource{started: make(chan struct{})}
	w := New(&stubGenerator{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, src, Config{HeartbeatInterval: 5 * time.Millisecond, CategoryInterval: time.Hour})
	}()

	<-src.started
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

type failingSource struct{}

func (failingSource) ConsumeWithRetry(context.Context, amqp.JobHandler) error {
	return errors.New("access refused")
}

func TestRun_ReturnsConsumerError(t *testing.T) {
	err := New(&stubGenerator{}, nil).Run(context.Background(), failingSource{}, Config{HeartbeatInterval: time.Hour})
	assert.EqualError(t, err, "access refused")
}
