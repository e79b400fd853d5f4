package models

import (
	"sort"
	"time"
)

// ChangeSet maps a relative file path to its full replacement content.
type ChangeSet map[string]string

// Paths returns the changed paths in sorted order.
func (c ChangeSet) Paths() []string {
	paths := make([]string, 0, len(c))
	for p := range c {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FileResult is the outcome of writing one ChangeSet entry.
type FileResult struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
	Err   error  `json:"-"`
}

// OK reports whether the file was written.
func (f FileResult) OK() bool { return f.Err == nil }

// ApplyReport aggregates per-file results. Application is not transactional;
// a report with failures describes a partially applied ChangeSet.
type ApplyReport struct {
	Results []FileResult `json:"results"`
}

// Written returns the paths that were written successfully.
func (r ApplyReport) Written() []string {
	var out []string
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res.Path)
		}
	}
	return out
}

// Failed returns the results that could not be written.
func (r ApplyReport) Failed() []FileResult {
	var out []FileResult
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Complete is true when every entry was written.
func (r ApplyReport) Complete() bool { return len(r.Failed()) == 0 }

// TestOutcome is the result of one test command run. A failing run is a
// normal outcome, not an error.
type TestOutcome struct {
	Passed   bool          `json:"passed"`
	Details  string        `json:"details"`
	Duration time.Duration `json:"duration"`
}

// IterationRecord is what one development iteration did. It feeds the next
// iteration's prompt and is not persisted beyond the session.
type IterationRecord struct {
	Iteration   int         `json:"iteration"`
	Changes     ChangeSet   `json:"-"`
	Applied     ApplyReport `json:"applied"`
	Description string      `json:"description,omitempty"`
	Outcome     TestOutcome `json:"outcome"`
	Skipped     bool        `json:"skipped,omitempty"`
}

// ReviewOutcome is the terminal state of a session's working tree.
type ReviewOutcome string

const (
	ReviewCommitted ReviewOutcome = "committed"
	ReviewDiscarded ReviewOutcome = "discarded"
	ReviewKept      ReviewOutcome = "kept"
)

// CommitDecision is the user's verdict on the applied changes.
type CommitDecision struct {
	Accepted    bool `json:"accepted"`
	KeepChanges bool `json:"keep_changes"`
}

// Resolve maps the decision onto its terminal state. KeepChanges only
// matters when the change is rejected.
func (d CommitDecision) Resolve() ReviewOutcome {
	switch {
	case d.Accepted:
		return ReviewCommitted
	case d.KeepChanges:
		return ReviewKept
	default:
		return ReviewDiscarded
	}
}
