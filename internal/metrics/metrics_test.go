package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("rendering", 15*time.Millisecond)
	pr.ObserveGenerationDuration(2 * time.Second)
	pr.IncStageResult("rendering", ResultSuccess)
	pr.IncGenerationOutcome("success")
	pr.IncCleanupFailures(2)
	pr.IncCleanupFailures(0)
	pr.IncJobs("acked")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "resoluciones_stage_duration_seconds")
	assert.Contains(t, names, "resoluciones_cleanup_failures_total")
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncGenerationOutcome("failed")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `resoluciones_generation_outcomes_total{outcome="failed"} 1`))
}

func TestNilAndNoop(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() { pr.IncJobs("x") })
	assert.IsType(t, NoopRecorder{}, OrNoop(nil))
	assert.Equal(t, pr, OrNoop(pr))
}
