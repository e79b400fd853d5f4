// Package review applies the user's verdict on a session's changes to the
// repository.
package review

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/metrics"
	"github.com/p-blackswan/autodev/internal/models"
	"github.com/p-blackswan/autodev/internal/prompt"
)

// DefaultCommitMessage is used when no message is given.
const DefaultCommitMessage = "autodev: apply generated changes"

// VCS is the subset of git the reviewer needs.
type VCS interface {
	AddAll(ctx context.Context, root string) error
	Commit(ctx context.Context, root, message string) error
	ResetHard(ctx context.Context, root string) error
	Clean(ctx context.Context, root string, paths ...string) error
	HasChanges(ctx context.Context, root string) (bool, error)
}

// Reviewer maps a CommitDecision onto version control operations.
type Reviewer struct {
	vcs     VCS
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a Reviewer.
func New(vcs VCS, m *metrics.Metrics, logger zerolog.Logger) *Reviewer {
	return &Reviewer{vcs: vcs, metrics: m, logger: logger.With().Str("component", "review").Logger()}
}

// Apply carries out the decision:
//
//	accepted            stage everything and commit
//	rejected, keep      leave the working tree as it is
//	rejected, discard   reset tracked files and remove touched untracked ones
//
// touched names the files the session wrote. Version control failures are
// returned as is and end the session.
func (r *Reviewer) Apply(ctx context.Context, root string, d models.CommitDecision, message string, touched ...string) (models.ReviewOutcome, error) {
	outcome := d.Resolve()
	log := r.logger.With().Str("outcome", string(outcome)).Logger()

	switch outcome {
	case models.ReviewCommitted:
		if message == "" {
			message = DefaultCommitMessage
		}
		if err := r.vcs.AddAll(ctx, root); err != nil {
			return outcome, fmt.Errorf("review: %w", err)
		}
		dirty, err := r.vcs.HasChanges(ctx, root)
		if err != nil {
			return outcome, fmt.Errorf("review: %w", err)
		}
		if !dirty {
			log.Warn().Msg("nothing to commit")
			break
		}
		if err := r.vcs.Commit(ctx, root, message); err != nil {
			return outcome, fmt.Errorf("review: %w", err)
		}
	case models.ReviewDiscarded:
		if err := r.vcs.ResetHard(ctx, root); err != nil {
			return outcome, fmt.Errorf("review: %w", err)
		}
		if err := r.vcs.Clean(ctx, root, touched...); err != nil {
			return outcome, fmt.Errorf("review: %w", err)
		}
	case models.ReviewKept:
	}

	r.metrics.RecordReview(string(outcome))
	log.Info().Int("touched", len(touched)).Msg("review applied")
	return outcome, nil
}

// Decide asks whether to commit and, when declined, whether to keep the
// changes in the working tree.
func Decide(ctx context.Context, a prompt.Asker) (models.CommitDecision, error) {
	var d models.CommitDecision
	ok, err := prompt.Confirm(ctx, a, "Commit these changes?")
	if err != nil {
		return d, err
	}
	d.Accepted = ok
	if ok {
		return d, nil
	}
	keep, err := prompt.Confirm(ctx, a, "Keep the changes in the working tree?")
	if err != nil {
		return d, err
	}
	d.KeepChanges = keep
	return d, nil
}
