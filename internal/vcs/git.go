// Package vcs drives the git command line for the session's repository.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	aerrors "github.com/p-blackswan/autodev/internal/errors"
)

// DefaultTimeout bounds one git invocation.
const DefaultTimeout = 30 * time.Second

// InitialCommitMessage is used by EnsureRepo for the baseline commit.
const InitialCommitMessage = "autodev: baseline"

// Git runs git commands. Every failure wraps ErrVCS and is never retried.
type Git struct {
	timeout time.Duration
	env     []string
	logger  zerolog.Logger
}

// Option configures Git.
type Option func(*Git)

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Git) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithIdentity sets the author and committer used for commits, for hosts
// without a configured git identity.
func WithIdentity(name, email string) Option {
	return func(g *Git) {
		g.env = append(g.env,
			"GIT_AUTHOR_NAME="+name, "GIT_AUTHOR_EMAIL="+email,
			"GIT_COMMITTER_NAME="+name, "GIT_COMMITTER_EMAIL="+email,
		)
	}
}

// New creates a git adapter.
func New(logger zerolog.Logger, opts ...Option) *Git {
	g := &Git{timeout: DefaultTimeout, logger: logger.With().Str("component", "vcs").Logger()}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Available reports whether a git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func (g *Git) run(ctx context.Context, root string, args ...string) (string, error) {
	out, err := g.output(ctx, root, args...)
	return strings.TrimSpace(out), err
}

// output runs git and returns stdout untouched.
func (g *Git) output(ctx context.Context, root string, args ...string) (string, error) {
	return g.outputExit(ctx, root, 0, args...)
}

// outputExit is output for commands whose exit status up to maxExit still
// means success.
func (g *Git) outputExit(ctx context.Context, root string, maxExit int, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	if len(g.env) > 0 {
		cmd.Env = append(os.Environ(), g.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.logger.Debug().Strs("args", args).Str("dir", root).Msg("git")
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 && exitErr.ExitCode() <= maxExit {
			return stdout.String(), nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: git %s: %w after %v", aerrors.ErrVCS, args[0], aerrors.ErrTimeout, g.timeout)
		}
		return "", fmt.Errorf("%w: git %s: %v: %s", aerrors.ErrVCS, args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Init creates a repository at root.
func (g *Git) Init(ctx context.Context, root string) error {
	_, err := g.run(ctx, root, "init")
	return err
}

// IsRepo reports whether root is inside a git work tree.
func (g *Git) IsRepo(ctx context.Context, root string) bool {
	out, err := g.run(ctx, root, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// AddAll stages every change, including deletions and untracked files.
func (g *Git) AddAll(ctx context.Context, root string) error {
	_, err := g.run(ctx, root, "add", "-A")
	return err
}

// Commit records the staged changes.
func (g *Git) Commit(ctx context.Context, root, message string) error {
	_, err := g.run(ctx, root, "commit", "-m", message)
	return err
}

// ResetHard discards changes to tracked files.
func (g *Git) ResetHard(ctx context.Context, root string) error {
	_, err := g.run(ctx, root, "reset", "--hard", "HEAD")
	return err
}

// Clean removes the given untracked paths, then any of their parent
// directories left empty. Tracked and ignored files are left alone.
func (g *Git) Clean(ctx context.Context, root string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"clean", "-f", "--"}, paths...)
	if _, err := g.run(ctx, root, args...); err != nil {
		return err
	}
	pruneEmptyParents(root, paths)
	return nil
}

// pruneEmptyParents removes the now-empty directories above paths, deepest
// first, never climbing to root itself. os.Remove refuses non-empty
// directories, so anything still holding files stays.
func pruneEmptyParents(root string, paths []string) {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		for d := filepath.Dir(filepath.Clean(p)); d != "." && d != string(filepath.Separator); d = filepath.Dir(d) {
			if seen[d] {
				break
			}
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		_ = os.Remove(filepath.Join(root, d))
	}
}

// HasChanges reports whether the work tree differs from HEAD.
func (g *Git) HasChanges(ctx context.Context, root string) (bool, error) {
	out, err := g.run(ctx, root, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// Head returns the current commit SHA.
func (g *Git) Head(ctx context.Context, root string) (string, error) {
	return g.run(ctx, root, "rev-parse", "HEAD")
}

// EnsureRepo makes root a repository with at least one commit, so that a
// later reset has a baseline. Existing repositories without commits get an
// initial commit of their current contents.
func (g *Git) EnsureRepo(ctx context.Context, root string) error {
	if !g.IsRepo(ctx, root) {
		if err := g.Init(ctx, root); err != nil {
			return err
		}
		g.logger.Info().Str("path", root).Msg("initialized git repository")
	}
	if _, err := g.Head(ctx, root); err == nil {
		return nil
	}
	if err := g.AddAll(ctx, root); err != nil {
		return err
	}
	if _, err := g.run(ctx, root, "commit", "--allow-empty", "-m", InitialCommitMessage); err != nil {
		return err
	}
	g.logger.Info().Str("path", root).Msg("created baseline commit")
	return nil
}
