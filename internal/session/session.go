// Package session runs one requirement from clarification to review.
package session

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/catalog"
	"github.com/p-blackswan/autodev/internal/clarify"
	"github.com/p-blackswan/autodev/internal/develop"
	"github.com/p-blackswan/autodev/internal/discovery"
	"github.com/p-blackswan/autodev/internal/llm"
	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
	"github.com/p-blackswan/autodev/internal/plan"
	"github.com/p-blackswan/autodev/internal/prompt"
	"github.com/p-blackswan/autodev/internal/review"
	"github.com/p-blackswan/autodev/internal/status"
	"github.com/p-blackswan/autodev/internal/vcs"
)

// Repo is the version control surface a session needs.
type Repo interface {
	review.VCS
	EnsureRepo(ctx context.Context, root string) error
	DiffStat(ctx context.Context, root string, include ...string) ([]vcs.FileStat, error)
}

// Catalog lists and reads repository files.
type Catalog interface {
	catalog.Lister
	catalog.Fetcher
}

// Options are the per-session settings.
type Options struct {
	ID                 string // generated when empty
	SkipClarify        bool
	PlanFile           string
	TestCommand        string
	CommitMessage      string
	MaxIterations      int
	DiscoveryMaxRounds int
	ClarifyMaxRounds   int
}

// Deps are the collaborators of a session.
type Deps struct {
	Oracle  llm.Oracle
	Asker   prompt.Asker
	Catalog Catalog
	Repo    Repo
	Applier develop.Applier
	Tests   develop.TestRunner
	Metrics *metrics.Metrics
	Tracker *status.Tracker

	// Out receives the change summary shown before the review question.
	Out io.Writer
}

// Session wires the stages together.
type Session struct {
	id     string
	opts   Options
	deps   Deps
	logger zerolog.Logger
}

// New creates a session.
func New(opts Options, deps Deps, logger zerolog.Logger) *Session {
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	deps.Tracker.SetSessionID(id)
	return &Session{
		id:     id,
		opts:   opts,
		deps:   deps,
		logger: logger.With().Str("session_id", id).Logger(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Run executes clarify, plan, develop and review in order. Any returned
// error is fatal; a development run that hits its cap is reported, not
// returned as an error.
func (s *Session) Run(ctx context.Context, req *models.Requirements) (*Report, error) {
	start := time.Now()
	rep, err := s.run(ctx, req)
	if rep != nil {
		rep.Duration = time.Since(start)
	}
	if err != nil {
		s.deps.Tracker.Fail(err)
		s.logger.Error().Err(err).Msg("session failed")
		return rep, err
	}
	s.deps.Tracker.SetStage(status.StageFinished)
	s.logger.Info().
		Str("outcome", string(rep.Outcome)).
		Int("iterations", rep.Iterations).
		Str("review", string(rep.Review)).
		Msg("session finished")
	return rep, nil
}

func (s *Session) run(ctx context.Context, req *models.Requirements) (*Report, error) {
	rep := &Report{SessionID: s.id}
	if err := req.RequireRepo(); err != nil {
		return rep, err
	}
	root := req.RepoPath
	s.logger.Info().Str("repo", root).Msg("session started")

	if err := s.deps.Repo.EnsureRepo(ctx, root); err != nil {
		return rep, err
	}

	s.deps.Tracker.SetStage(status.StageClarify)
	clar := clarify.New(s.deps.Oracle, s.deps.Asker, s.opts.ClarifyMaxRounds, s.deps.Metrics, s.logger)
	cres, err := clar.Run(ctx, req, s.opts.SkipClarify)
	if err != nil {
		return rep, err
	}
	rep.Clarifications = cres.Asked

	loop := discovery.New(s.deps.Oracle, s.deps.Catalog, s.opts.DiscoveryMaxRounds, s.deps.Metrics, s.logger)

	s.deps.Tracker.SetStage(status.StagePlan)
	synth := plan.New(s.deps.Oracle, loop, s.deps.Catalog, s.deps.Metrics, s.logger)
	pres, err := synth.LoadOrSynthesize(ctx, req, nil, s.opts.PlanFile)
	if err != nil {
		return rep, err
	}
	rep.Plan = pres.Plan
	s.deps.Tracker.SetPlan(pres.Plan.Title)

	s.deps.Tracker.SetStage(status.StageDevelop)
	ctrl := develop.NewController(develop.Deps{
		Oracle:    s.deps.Oracle,
		Discovery: loop,
		Catalog:   s.deps.Catalog,
		Applier:   s.deps.Applier,
		Tests:     s.deps.Tests,
		Metrics:   s.deps.Metrics,
		Observer: func(e develop.Event) {
			s.deps.Tracker.SetStep(string(e.State), e.Iteration)
		},
	}, develop.Config{
		MaxIterations: s.opts.MaxIterations,
		TestCommand:   s.opts.TestCommand,
	}, s.logger)

	dres, err := ctrl.Run(ctx, develop.Input{Requirements: req, Plan: pres.Plan, Snapshot: pres.Snapshot})
	if dres != nil {
		rep.fromDevelopment(dres)
		s.deps.Tracker.SetDevelopment(string(dres.Outcome), dres.Records)
	}
	if err != nil {
		return rep, err
	}

	if len(dres.Touched) == 0 {
		s.logger.Warn().Msg("no files were written, skipping review")
		return rep, nil
	}

	s.deps.Tracker.SetStage(status.StageReview)
	stats, err := s.deps.Repo.DiffStat(ctx, root, dres.Touched...)
	if err != nil {
		return rep, err
	}
	rep.Diff = stats
	fmt.Fprintln(s.deps.Out, "\nChanges against HEAD:")
	for _, st := range stats {
		fmt.Fprintf(s.deps.Out, "  %s\n", st)
	}
	decision, err := review.Decide(ctx, s.deps.Asker)
	if err != nil {
		return rep, fmt.Errorf("review decision: %w", err)
	}
	msg := s.opts.CommitMessage
	if msg == "" {
		msg = commitMessage(pres.Plan)
	}
	outcome, err := review.New(s.deps.Repo, s.deps.Metrics, s.logger).Apply(ctx, root, decision, msg, dres.Touched...)
	if err != nil {
		return rep, err
	}
	rep.Review = outcome
	s.deps.Tracker.SetReview(outcome)
	return rep, nil
}

func commitMessage(p *models.DeliveryPlan) string {
	if p == nil || p.Title == "" {
		return review.DefaultCommitMessage
	}
	if p.ShortDescription == "" {
		return p.Title
	}
	return p.Title + "\n\n" + p.ShortDescription
}
