package session

import (
	"fmt"
	"io"
	"time"

	"github.com/p-blackswan/autodev/internal/develop"
	"github.com/p-blackswan/autodev/internal/models"
	"github.com/p-blackswan/autodev/internal/vcs"
)

// Report summarizes a finished session for the terminal.
type Report struct {
	SessionID      string
	Plan           *models.DeliveryPlan
	Clarifications int
	Outcome        develop.Outcome
	Iterations     int
	Skipped        int
	FilesWritten   []string
	FilesFailed    int
	LastTest       *models.TestOutcome
	Diff           []vcs.FileStat
	Review         models.ReviewOutcome
	Duration       time.Duration
}

func (r *Report) fromDevelopment(d *develop.Result) {
	r.Outcome = d.Outcome
	r.Iterations = d.Iterations
	r.FilesWritten = d.Touched
	for _, rec := range d.Records {
		if rec.Skipped {
			r.Skipped++
			continue
		}
		r.FilesFailed += len(rec.Applied.Failed())
	}
	if o, ok := d.LastOutcome(); ok {
		r.LastTest = &o
	}
}

// Write prints the report.
func (r *Report) Write(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("Session %s\n", r.SessionID)
	if r.Plan != nil {
		ew.printf("Plan:        %s (%d steps)\n", r.Plan.Title, len(r.Plan.Steps))
	}
	ew.printf("Questions:   %d\n", r.Clarifications)
	if r.Outcome != "" {
		ew.printf("Outcome:     %s after %d iteration(s), %d without a usable change\n", r.Outcome, r.Iterations, r.Skipped)
	}
	ew.printf("Files:       %d written, %d failed\n", len(r.FilesWritten), r.FilesFailed)
	for _, f := range r.FilesWritten {
		ew.printf("  %s\n", f)
	}
	if r.LastTest != nil {
		result := "failed"
		if r.LastTest.Passed {
			result = "passed"
		}
		ew.printf("Last test:   %s in %s\n", result, r.LastTest.Duration.Round(time.Millisecond))
	}
	if r.Review != "" {
		ew.printf("Review:      %s\n", r.Review)
	}
	ew.printf("Duration:    %s\n", r.Duration.Round(time.Second))
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
