// Package metrics provides Prometheus metrics for an autodev session.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the session. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	OracleCalls        *prometheus.CounterVec
	OracleDuration     *prometheus.HistogramVec
	DiscoveryRounds    *prometheus.CounterVec
	ExtractionFailures *prometheus.CounterVec
	Iterations         *prometheus.CounterVec
	TestRuns           *prometheus.CounterVec
	FilesWritten       *prometheus.CounterVec
	Reviews            *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		OracleCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_oracle_calls_total",
				Help: "Oracle requests by provider and status.",
			},
			[]string{"provider", "status"},
		),
		OracleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autodev_oracle_duration_seconds",
				Help:    "Oracle request latency by provider.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"provider"},
		),
		DiscoveryRounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_discovery_rounds_total",
				Help: "Discovery and clarification rounds by loop and result.",
			},
			[]string{"loop", "result"},
		),
		ExtractionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_extraction_failures_total",
				Help: "Oracle responses that held no usable structured output, by stage.",
			},
			[]string{"stage"},
		),
		Iterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_iterations_total",
				Help: "Development iterations by result.",
			},
			[]string{"result"},
		),
		TestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_test_runs_total",
				Help: "Test command runs by result.",
			},
			[]string{"result"},
		),
		FilesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_files_written_total",
				Help: "ChangeSet entries applied by result.",
			},
			[]string{"result"},
		),
		Reviews: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_reviews_total",
				Help: "Review decisions by outcome.",
			},
			[]string{"outcome"},
		),
		registry: reg,
	}

	reg.MustRegister(m.OracleCalls)
	reg.MustRegister(m.OracleDuration)
	reg.MustRegister(m.DiscoveryRounds)
	reg.MustRegister(m.ExtractionFailures)
	reg.MustRegister(m.Iterations)
	reg.MustRegister(m.TestRuns)
	reg.MustRegister(m.FilesWritten)
	reg.MustRegister(m.Reviews)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (useful for testing).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOracleCall counts an oracle request and observes its latency.
func (m *Metrics) RecordOracleCall(provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.OracleCalls.WithLabelValues(provider, status).Inc()
	m.OracleDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordRound counts one round of a convergent loop ("discovery" or "clarify").
func (m *Metrics) RecordRound(loop, result string) {
	if m == nil {
		return
	}
	m.DiscoveryRounds.WithLabelValues(loop, result).Inc()
}

// RecordExtractionFailure counts an unusable oracle response.
func (m *Metrics) RecordExtractionFailure(stage string) {
	if m == nil {
		return
	}
	m.ExtractionFailures.WithLabelValues(stage).Inc()
}

// RecordIteration counts a development iteration.
func (m *Metrics) RecordIteration(result string) {
	if m == nil {
		return
	}
	m.Iterations.WithLabelValues(result).Inc()
}

// RecordTestRun counts a test command run.
func (m *Metrics) RecordTestRun(passed bool) {
	if m == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	m.TestRuns.WithLabelValues(result).Inc()
}

// RecordFiles counts written and failed ChangeSet entries.
func (m *Metrics) RecordFiles(written, failed int) {
	if m == nil {
		return
	}
	m.FilesWritten.WithLabelValues("ok").Add(float64(written))
	m.FilesWritten.WithLabelValues("error").Add(float64(failed))
}

// RecordReview counts a review outcome.
func (m *Metrics) RecordReview(outcome string) {
	if m == nil {
		return
	}
	m.Reviews.WithLabelValues(outcome).Inc()
}
