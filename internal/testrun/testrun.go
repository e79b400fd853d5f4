// Package testrun runs the repository's test command and turns the result
// into a TestOutcome. A failing run is an outcome, never an error.
package testrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
)

const (
	// DefaultTimeout bounds one test run.
	DefaultTimeout = 10 * time.Minute

	// DefaultMaxOutput is how much combined output is kept, from the end.
	DefaultMaxOutput = 64 * 1024
)

const waitDelay = 2 * time.Second

// NoCommand is the detail recorded when no test command is configured.
const NoCommand = "no test command configured"

// Runner executes a shell command in the repository root.
type Runner struct {
	timeout   time.Duration
	maxOutput int
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout sets the per-run timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxOutput caps the retained output.
func WithMaxOutput(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxOutput = n
		}
	}
}

// WithMetrics records every run.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New creates a Runner.
func New(logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		timeout:   DefaultTimeout,
		maxOutput: DefaultMaxOutput,
		logger:    logger.With().Str("component", "testrun").Logger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes command via /bin/sh -c in root. Non-zero exit, a timeout or a
// command that cannot start all produce Passed=false with the combined
// stdout and stderr in Details. An empty command passes.
func (r *Runner) Run(ctx context.Context, root, command string) models.TestOutcome {
	if strings.TrimSpace(command) == "" {
		r.logger.Warn().Msg("no test command configured, treating run as passed")
		r.metrics.RecordTestRun(true)
		return models.TestOutcome{Passed: true, Details: NoCommand}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = root
	// Children of the shell can keep the output pipes open after a kill.
	cmd.WaitDelay = waitDelay
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	r.logger.Debug().Str("command", command).Str("dir", root).Msg("running tests")
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	output := tail(strings.TrimSpace(buf.String()), r.maxOutput)

	out := models.TestOutcome{Passed: err == nil, Details: output, Duration: elapsed}
	if err != nil {
		// Keep the cause next to the output; the next prompt needs both.
		cause := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cause = fmt.Sprintf("timed out after %s", r.timeout)
		}
		out.Details = fmt.Sprintf("ERROR: %s\n%s", cause, output)
	}

	r.metrics.RecordTestRun(out.Passed)
	r.logger.Info().
		Bool("passed", out.Passed).
		Dur("duration", elapsed).
		Msg("test run finished")
	return out
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "[... output truncated ...]\n" + s[len(s)-n:]
}
