package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/autodev/internal/health"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
)

func get(t *testing.T, s *Server, path string) (int, []byte) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHealthz(t *testing.T) {
	code, body := get(t, NewServer(":0", nil, nil, nil, zerolog.Nop()), "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "ok")
}

func TestReadyz(t *testing.T) {
	checker := health.NewChecker(zerolog.Nop())
	status := health.StatusOK
	checker.Register("repo", func(context.Context) health.Status { return status })
	s := NewServer(":0", nil, checker, nil, zerolog.Nop())

	code, body := get(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"ready"`)

	status = health.StatusDown
	code, body = get(t, s, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(body), "not_ready")
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	m.RecordIteration("passed")
	code, body := get(t, NewServer(":0", nil, nil, m, zerolog.Nop()), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `autodev_iterations_total{result="passed"} 1`)
}

func TestSession(t *testing.T) {
	tr := NewTracker("sess-1")
	tr.SetStage(StageDevelop)
	tr.SetPlan("Add caching")
	tr.SetStep("test", 2)
	tr.SetDevelopment("passed", []models.IterationRecord{
		{Iteration: 1, Skipped: true},
		{Iteration: 2, Outcome: models.TestOutcome{Passed: true, Details: "ok"}},
	})

	code, body := get(t, NewServer(":0", tr, nil, nil, zerolog.Nop()), "/api/v1/session")
	require.Equal(t, http.StatusOK, code)

	var v View
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, "sess-1", v.SessionID)
	assert.Equal(t, StageDevelop, v.Stage)
	assert.Equal(t, "Add caching", v.PlanTitle)
	assert.Equal(t, "passed", v.Outcome)
	require.NotNil(t, v.LastOutcome)
	assert.True(t, v.LastOutcome.Passed)
	assert.Len(t, v.Records, 2)
}

func TestSession_NoTracker(t *testing.T) {
	code, body := get(t, NewServer(":0", nil, nil, nil, zerolog.Nop()), "/api/v1/session")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(body), "no session")
}

func TestTracker_Fail(t *testing.T) {
	tr := NewTracker("s")
	tr.Fail(errors.New("boom"))
	v := tr.View()
	assert.Equal(t, StageFailed, v.Stage)
	assert.Equal(t, "boom", v.Error)
}

func TestTracker_NilSafe(t *testing.T) {
	var tr *Tracker
	tr.SetStage(StagePlan)
	tr.SetReview(models.ReviewKept)
	assert.Equal(t, View{}, tr.View())
}

func TestTracker_ViewIsACopy(t *testing.T) {
	tr := NewTracker("s")
	tr.SetDevelopment("max_reached", []models.IterationRecord{{Iteration: 1}})
	v := tr.View()
	v.Records[0].Iteration = 99
	assert.Equal(t, 1, tr.View().Records[0].Iteration)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewTracker("s"), nil, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestListen_AddressInUse(t *testing.T) {
	first := NewServer("127.0.0.1:0", nil, nil, nil, zerolog.Nop())
	require.NoError(t, first.Listen())
	defer first.ln.Close()

	second := NewServer(first.Addr(), nil, nil, nil, zerolog.Nop())
	err := second.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), first.Addr())
}

func TestRun_ServesOnBoundListener(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewTracker("s"), nil, nil, zerolog.Nop())
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + s.Addr() + "/healthz")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
