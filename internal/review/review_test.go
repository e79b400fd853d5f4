package review

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aerrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/models"
	"github.com/p-blackswan/autodev/internal/vcs"
)

// setupRepo creates a repository with a committed file and then applies a
// session's worth of changes: one modified tracked file and one new file.
func setupRepo(t *testing.T) (*vcs.Git, string) {
	t.Helper()
	if !vcs.Available() {
		t.Skip("git not installed")
	}
	g := vcs.New(zerolog.Nop(), vcs.WithIdentity("autodev test", "test@example.com"))
	ctx := context.Background()
	root := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("v1"), 0o644))
	require.NoError(t, g.EnsureRepo(ctx, root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("v2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.go"), []byte("new"), 0o644))
	return g, root
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestApply_DecisionTable(t *testing.T) {
	tests := []struct {
		name     string
		decision models.CommitDecision
		want     models.ReviewOutcome
		check    func(t *testing.T, g *vcs.Git, root, baseline string)
	}{
		{
			name:     "accepted commits",
			decision: models.CommitDecision{Accepted: true},
			want:     models.ReviewCommitted,
			check: func(t *testing.T, g *vcs.Git, root, baseline string) {
				head, err := g.Head(context.Background(), root)
				require.NoError(t, err)
				assert.NotEqual(t, baseline, head)
				dirty, err := g.HasChanges(context.Background(), root)
				require.NoError(t, err)
				assert.False(t, dirty)
				assert.Equal(t, "v2", read(t, filepath.Join(root, "main.go")))
			},
		},
		{
			name:     "accepted ignores keep flag",
			decision: models.CommitDecision{Accepted: true, KeepChanges: true},
			want:     models.ReviewCommitted,
			check: func(t *testing.T, g *vcs.Git, root, baseline string) {
				head, err := g.Head(context.Background(), root)
				require.NoError(t, err)
				assert.NotEqual(t, baseline, head)
			},
		},
		{
			name:     "rejected and kept leaves tree",
			decision: models.CommitDecision{KeepChanges: true},
			want:     models.ReviewKept,
			check: func(t *testing.T, g *vcs.Git, root, baseline string) {
				head, err := g.Head(context.Background(), root)
				require.NoError(t, err)
				assert.Equal(t, baseline, head)
				assert.Equal(t, "v2", read(t, filepath.Join(root, "main.go")))
				assert.Equal(t, "new", read(t, filepath.Join(root, "new.go")))
			},
		},
		{
			name:     "rejected discards",
			decision: models.CommitDecision{},
			want:     models.ReviewDiscarded,
			check: func(t *testing.T, g *vcs.Git, root, baseline string) {
				head, err := g.Head(context.Background(), root)
				require.NoError(t, err)
				assert.Equal(t, baseline, head)
				assert.Equal(t, "v1", read(t, filepath.Join(root, "main.go")))
				_, err = os.Stat(filepath.Join(root, "new.go"))
				assert.True(t, os.IsNotExist(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, root := setupRepo(t)
			baseline, err := g.Head(context.Background(), root)
			require.NoError(t, err)

			got, err := New(g, nil, zerolog.Nop()).Apply(context.Background(), root, tt.decision, "", "main.go", "new.go")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			tt.check(t, g, root, baseline)
		})
	}
}

func TestApply_KeptAfterDiffStatLeavesIndexAlone(t *testing.T) {
	g, root := setupRepo(t)
	ctx := context.Background()

	stats, err := g.DiffStat(ctx, root, "main.go", "new.go")
	require.NoError(t, err)
	assert.Len(t, stats, 2)

	got, err := New(g, nil, zerolog.Nop()).Apply(ctx, root, models.CommitDecision{KeepChanges: true}, "", "main.go", "new.go")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewKept, got)

	out, err := exec.Command("git", "-C", root, "status", "--porcelain").Output()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{" M main.go", "?? new.go"}, strings.Split(strings.TrimRight(string(out), "\n"), "\n"))
}

func TestApply_DiscardRemovesCreatedDirectories(t *testing.T) {
	g, root := setupRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "internal", "gen"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "internal", "gen", "gen.go"), []byte("package gen"), 0o644))

	got, err := New(g, nil, zerolog.Nop()).Apply(context.Background(), root, models.CommitDecision{}, "", "main.go", "new.go", "internal/gen/gen.go")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewDiscarded, got)

	_, err = os.Stat(filepath.Join(root, "internal"))
	assert.True(t, os.IsNotExist(err))
}

type failingVCS struct{ calls []string }

func (f *failingVCS) AddAll(context.Context, string) error {
	f.calls = append(f.calls, "add")
	return aerrors.ErrVCS
}
func (f *failingVCS) Commit(context.Context, string, string) error {
	f.calls = append(f.calls, "commit")
	return nil
}
func (f *failingVCS) ResetHard(context.Context, string) error {
	f.calls = append(f.calls, "reset")
	return errors.Join(aerrors.ErrVCS, errors.New("index locked"))
}
func (f *failingVCS) Clean(context.Context, string, ...string) error {
	f.calls = append(f.calls, "clean")
	return nil
}
func (f *failingVCS) HasChanges(context.Context, string) (bool, error) { return true, nil }

func TestApply_VCSFailureIsFatal(t *testing.T) {
	f := &failingVCS{}
	r := New(f, nil, zerolog.Nop())

	_, err := r.Apply(context.Background(), "/repo", models.CommitDecision{Accepted: true}, "msg")
	assert.True(t, aerrors.IsFatal(err))
	assert.Equal(t, []string{"add"}, f.calls)

	f.calls = nil
	_, err = r.Apply(context.Background(), "/repo", models.CommitDecision{}, "msg")
	assert.ErrorIs(t, err, aerrors.ErrVCS)
	assert.Equal(t, []string{"reset"}, f.calls)
}

type scriptedAsker struct{ answers []string }

func (s *scriptedAsker) Ask(context.Context, string) (string, error) {
	if len(s.answers) == 0 {
		return "", errors.New("no more answers")
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func TestDecide(t *testing.T) {
	tests := []struct {
		answers []string
		want    models.CommitDecision
	}{
		{[]string{"y"}, models.CommitDecision{Accepted: true}},
		{[]string{"n", "yes"}, models.CommitDecision{KeepChanges: true}},
		{[]string{"", "no"}, models.CommitDecision{}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.answers, ","), func(t *testing.T) {
			got, err := Decide(context.Background(), &scriptedAsker{answers: tt.answers})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
