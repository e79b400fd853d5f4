package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestChecker_AllHealthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("repo", func(ctx context.Context) Status { return StatusOK })
	c.Register("oracle", func(ctx context.Context) Status { return StatusOK })

	assert.True(t, c.IsReady(context.Background()))
	assert.Len(t, c.Last(), 2)
}

func TestChecker_OneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("repo", func(ctx context.Context) Status { return StatusOK })
	c.Register("oracle", func(ctx context.Context) Status { return StatusDown })

	assert.False(t, c.IsReady(context.Background()))
	assert.Equal(t, StatusDown, c.Last()["oracle"])
}

func TestChecker_Degraded_StillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("repo", func(ctx context.Context) Status { return StatusDegraded })

	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_NoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.True(t, c.IsReady(context.Background()))
	assert.Empty(t, c.Last())
}

func TestRepoCheck(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	yes := func(context.Context, string) bool { return true }
	no := func(context.Context, string) bool { return false }
	ctx := context.Background()

	assert.Equal(t, StatusOK, RepoCheck(dir, yes)(ctx))
	assert.Equal(t, StatusDegraded, RepoCheck(dir, no)(ctx))
	assert.Equal(t, StatusDown, RepoCheck(file, yes)(ctx))
	assert.Equal(t, StatusDown, RepoCheck(filepath.Join(dir, "missing"), yes)(ctx))
}

func TestOracleCheck(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusOK, OracleCheck("anthropic", "claude-sonnet-4-20250514")(ctx))
	assert.Equal(t, StatusDown, OracleCheck("anthropic", "")(ctx))
}
