// Package status exposes a running session over HTTP.
package status

import (
	"sync"
	"time"

	"github.com/p-blackswan/autodev/internal/models"
)

// Stage names the session phase currently running.
type Stage string

const (
	StagePending  Stage = "pending"
	StageClarify  Stage = "clarify"
	StagePlan     Stage = "plan"
	StageDevelop  Stage = "develop"
	StageReview   Stage = "review"
	StageFinished Stage = "finished"
	StageFailed   Stage = "failed"
)

// View is a point-in-time copy of the session state.
type View struct {
	SessionID   string                   `json:"session_id"`
	Stage       Stage                    `json:"stage"`
	Step        string                   `json:"step,omitempty"`
	Iteration   int                      `json:"iteration"`
	StartedAt   time.Time                `json:"started_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	PlanTitle   string                   `json:"plan_title,omitempty"`
	LastOutcome *models.TestOutcome      `json:"last_outcome,omitempty"`
	Records     []models.IterationRecord `json:"records,omitempty"`
	Outcome     string                   `json:"outcome,omitempty"`
	Review      models.ReviewOutcome     `json:"review,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

// Tracker records session progress. The session writes, the HTTP server
// reads; all methods are safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	view View
	now  func() time.Time
}

// NewTracker creates a tracker for the given session.
func NewTracker(sessionID string) *Tracker {
	t := &Tracker{now: time.Now}
	now := t.now()
	t.view = View{SessionID: sessionID, Stage: StagePending, StartedAt: now, UpdatedAt: now}
	return t
}

func (t *Tracker) update(fn func(v *View)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.view)
	t.view.UpdatedAt = t.now()
}

// SetSessionID names the tracked session.
func (t *Tracker) SetSessionID(id string) {
	t.update(func(v *View) { v.SessionID = id })
}

// SetStage moves the session to a new phase.
func (t *Tracker) SetStage(s Stage) {
	t.update(func(v *View) { v.Stage = s; v.Step = "" })
}

// SetStep records the state machine step within the current stage.
func (t *Tracker) SetStep(step string, iteration int) {
	t.update(func(v *View) { v.Step = step; v.Iteration = iteration })
}

// SetPlan records the plan title.
func (t *Tracker) SetPlan(title string) {
	t.update(func(v *View) { v.PlanTitle = title })
}

// SetDevelopment records the finished development loop.
func (t *Tracker) SetDevelopment(outcome string, records []models.IterationRecord) {
	t.update(func(v *View) {
		v.Outcome = outcome
		v.Records = append([]models.IterationRecord(nil), records...)
		v.Iteration = len(records)
		for i := len(records) - 1; i >= 0; i-- {
			if !records[i].Skipped {
				o := records[i].Outcome
				v.LastOutcome = &o
				break
			}
		}
	})
}

// SetReview records the review outcome.
func (t *Tracker) SetReview(r models.ReviewOutcome) {
	t.update(func(v *View) { v.Review = r })
}

// Fail marks the session failed.
func (t *Tracker) Fail(err error) {
	t.update(func(v *View) {
		v.Stage = StageFailed
		if err != nil {
			v.Error = err.Error()
		}
	})
}

// View returns a copy of the current state.
func (t *Tracker) View() View {
	if t == nil {
		return View{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	v := t.view
	v.Records = append([]models.IterationRecord(nil), t.view.Records...)
	return v
}
