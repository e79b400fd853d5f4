// Package develop runs the change iteration loop: gather context, ask for a
// ChangeSet, write it, run the tests, and feed failures into the next try.
package develop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/catalog"
	"github.com/p-blackswan/autodev/internal/discovery"
	aerrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/extract"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
)

// DefaultMaxIterations bounds a run when no cap is configured.
const DefaultMaxIterations = 5

// ReasonEmptyChangeSet is the diagnostic for a reply whose object names no files.
const ReasonEmptyChangeSet = "change set names no files"

// Discoverer gathers repository context for a task.
type Discoverer interface {
	Run(ctx context.Context, req discovery.Request) (*discovery.Result, error)
}

// Applier writes a ChangeSet into the working tree.
type Applier interface {
	Apply(root string, cs models.ChangeSet) models.ApplyReport
}

// TestRunner runs the configured test command.
type TestRunner interface {
	Run(ctx context.Context, root, command string) models.TestOutcome
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Oracle    llm.Oracle
	Discovery Discoverer
	Catalog   catalog.Lister
	Applier   Applier
	Tests     TestRunner
	Metrics   *metrics.Metrics
	Observer  Observer
}

// Config holds the loop settings.
type Config struct {
	MaxIterations int
	TestCommand   string
}

// Input is what a run starts from. Requirements and Snapshot are updated in
// place; the plan is read only.
type Input struct {
	Requirements *models.Requirements
	Plan         *models.DeliveryPlan
	Snapshot     *models.Snapshot
}

// Result describes a finished run.
type Result struct {
	Outcome    Outcome
	Iterations int
	Records    []models.IterationRecord
	Snapshot   *models.Snapshot

	// Touched lists every path written during the run, sorted.
	Touched []string
}

// LastOutcome returns the most recent test outcome, if any test ran.
func (r *Result) LastOutcome() (models.TestOutcome, bool) {
	for i := len(r.Records) - 1; i >= 0; i-- {
		if !r.Records[i].Skipped {
			return r.Records[i].Outcome, true
		}
	}
	return models.TestOutcome{}, false
}

// Controller drives the iteration state machine.
type Controller struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger
}

// NewController creates a Controller.
func NewController(deps Deps, cfg Config, logger zerolog.Logger) *Controller {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Controller{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With().Str("component", "develop").Logger(),
	}
}

func (c *Controller) enter(s State, iteration int) {
	c.logger.Debug().Str("state", string(s)).Int("iteration", iteration).Msg("state")
	if c.deps.Observer != nil {
		c.deps.Observer(Event{State: s, Iteration: iteration})
	}
}

// Run iterates until the tests pass or the iteration cap is reached. Oracle
// and discovery failures end the run; a reply without a usable ChangeSet
// only spends the iteration.
func (c *Controller) Run(ctx context.Context, in Input) (*Result, error) {
	req := in.Requirements
	if err := req.RequireRepo(); err != nil {
		return nil, err
	}
	snap := in.Snapshot
	if snap == nil {
		snap = models.NewSnapshot()
	}
	root := req.RepoPath

	res := &Result{Snapshot: snap}
	touched := make(map[string]bool)
	var prev *models.IterationRecord

	c.enter(StateStart, 0)
	for res.Iterations < c.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Iterations++
		n := res.Iterations
		log := c.logger.With().Int("iteration", n).Logger()

		c.enter(StateDiscover, n)
		if err := c.discover(ctx, root, in, snap, prev); err != nil {
			return res, err
		}

		c.enter(StateRequestChange, n)
		cs, err := c.requestChange(ctx, in, snap, prev)
		if err != nil {
			if !errors.Is(err, aerrors.ErrExtraction) {
				return res, err
			}
			c.enter(StateRetry, n)
			c.deps.Metrics.RecordExtractionFailure("change")
			c.deps.Metrics.RecordIteration("skipped")
			log.Warn().Err(err).Msg("no usable change set, spending iteration")
			rec := models.IterationRecord{Iteration: n, Skipped: true}
			res.Records = append(res.Records, rec)
			prev = &res.Records[len(res.Records)-1]
			continue
		}

		c.enter(StateApply, n)
		report := c.deps.Applier.Apply(root, cs)
		for _, p := range report.Written() {
			snap.Put(p, cs[p])
			touched[p] = true
		}
		description := c.describe(ctx, cs)

		c.enter(StateTest, n)
		outcome := c.deps.Tests.Run(ctx, root, c.cfg.TestCommand)
		rec := models.IterationRecord{
			Iteration:   n,
			Changes:     cs,
			Applied:     report,
			Description: description,
			Outcome:     outcome,
		}
		res.Records = append(res.Records, rec)
		prev = &res.Records[len(res.Records)-1]

		if outcome.Passed {
			req.TestFeedback = ""
			c.deps.Metrics.RecordIteration("passed")
			res.Outcome = OutcomePassed
			res.Touched = sortedKeys(touched)
			c.enter(StateDone, n)
			log.Info().Int("files", len(report.Written())).Msg("tests passed")
			return res, nil
		}
		req.TestFeedback = outcome.Details
		c.deps.Metrics.RecordIteration("failed")
		log.Info().Int("files", len(report.Written())).Msg("tests failed, iterating")
	}

	res.Outcome = OutcomeMaxReached
	res.Touched = sortedKeys(touched)
	c.enter(StateMaxReached, res.Iterations)
	c.logger.Warn().Int("iterations", res.Iterations).Msg("iteration cap reached with tests still failing")
	return res, nil
}

func (c *Controller) discover(ctx context.Context, root string, in Input, snap *models.Snapshot, prev *models.IterationRecord) error {
	ids, err := c.deps.Catalog.List(root)
	if err != nil {
		return fmt.Errorf("develop: listing %s: %w", root, err)
	}
	if _, err := c.deps.Discovery.Run(ctx, discovery.Request{
		Root:     root,
		Catalog:  ids,
		Snapshot: snap,
		Task:     discoveryTask(in, prev),
	}); err != nil {
		return fmt.Errorf("develop context: %w", err)
	}
	return nil
}

func (c *Controller) requestChange(ctx context.Context, in Input, snap *models.Snapshot, prev *models.IterationRecord) (models.ChangeSet, error) {
	text, err := c.deps.Oracle.Generate(ctx, changePrompt(in, snap, prev), changeSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("change request: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("change request: %w", aerrors.ErrNoResponse)
	}

	res, err := extract.Extract(text)
	if err != nil {
		return nil, err
	}
	if res.Shape != extract.ShapeObject {
		return nil, &aerrors.ExtractionError{Reason: "expected a JSON object of file changes, got an array"}
	}
	var cs models.ChangeSet
	if err := res.Decode(&cs); err != nil {
		return nil, &aerrors.ExtractionError{Reason: err.Error()}
	}
	if len(cs) == 0 {
		return nil, &aerrors.ExtractionError{Reason: ReasonEmptyChangeSet}
	}
	return cs, nil
}

// describe asks for a summary of cs. Any failure yields NoDescription.
func (c *Controller) describe(ctx context.Context, cs models.ChangeSet) string {
	text, err := c.deps.Oracle.Generate(ctx, summaryPrompt(cs), summarySystemPrompt)
	if err != nil {
		c.logger.Warn().Err(err).Msg("change summary failed")
		return NoDescription
	}
	if text = strings.TrimSpace(text); text == "" {
		return NoDescription
	}
	return text
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
