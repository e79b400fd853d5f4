package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()
	m.RecordOracleCall("anthropic", "ok", 1.2)
	m.RecordRound("discovery", "fetched")
	m.RecordRound("discovery", "fetched")
	m.RecordExtractionFailure("change")
	m.RecordIteration("failed")
	m.RecordTestRun(true)
	m.RecordTestRun(false)
	m.RecordFiles(3, 1)
	m.RecordReview("committed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleCalls.WithLabelValues("anthropic", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DiscoveryRounds.WithLabelValues("discovery", "fetched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionFailures.WithLabelValues("change")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TestRuns.WithLabelValues("pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TestRuns.WithLabelValues("fail")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilesWritten.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesWritten.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reviews.WithLabelValues("committed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOracleCall("x", "ok", 1)
		m.RecordRound("clarify", "asked")
		m.RecordExtractionFailure("plan")
		m.RecordIteration("passed")
		m.RecordTestRun(true)
		m.RecordFiles(1, 0)
		m.RecordReview("kept")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordIteration("passed")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "autodev_iterations_total")
}
