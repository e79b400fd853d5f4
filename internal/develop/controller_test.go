package develop

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/autodev/internal/discovery"
	aerrors "github.com/p-blackswan/autodev/internal/errors"
	"github.com/p-blackswan/autodev/internal/llm/llmtest"
	"github.com/p-blackswan/autodev/internal/models"
	"github.com/p-blackswan/autodev/internal/workspace"
)

type stubDiscovery struct {
	calls int
	err   error
}

func (s *stubDiscovery) Run(_ context.Context, req discovery.Request) (*discovery.Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &discovery.Result{Snapshot: req.Snapshot, Rounds: 1, Converged: true}, nil
}

type stubLister struct{}

func (stubLister) List(string) ([]string, error) { return []string{"a.txt"}, nil }

// scriptedTests replays outcomes in order.
type scriptedTests struct {
	outcomes []models.TestOutcome
	runs     int
}

func (s *scriptedTests) Run(context.Context, string, string) models.TestOutcome {
	o := s.outcomes[s.runs]
	s.runs++
	return o
}

// routed answers change requests from changes and summaries from summaries.
func routed(changes []string, summaries ...string) *llmtest.Scripted {
	s := llmtest.New()
	var ci, si int
	s.Route = func(_, system string) (string, bool) {
		switch system {
		case changeSystemPrompt:
			c := changes[ci]
			ci++
			return c, true
		case summarySystemPrompt:
			if si >= len(summaries) {
				return "", false
			}
			t := summaries[si]
			si++
			return t, true
		}
		return "", false
	}
	return s
}

func newController(oracle *llmtest.Scripted, tests TestRunner, d Discoverer, max int, obs Observer) *Controller {
	return NewController(Deps{
		Oracle:    oracle,
		Discovery: d,
		Catalog:   stubLister{},
		Applier:   workspace.New(nil, zerolog.Nop()),
		Tests:     tests,
		Observer:  obs,
	}, Config{MaxIterations: max, TestCommand: "make test"}, zerolog.Nop())
}

func input(root string) Input {
	return Input{
		Requirements: &models.Requirements{Description: "write a.txt", RepoPath: root},
		Plan:         &models.DeliveryPlan{Title: "A", Steps: []models.PlanStep{{Title: "write it"}}},
	}
}

func TestRun_ConvergesOnSecondIteration(t *testing.T) {
	root := t.TempDir()
	oracle := routed(
		[]string{`{"a.txt": "first"}`, "Fixed:\n```json\n{\"a.txt\": \"second\"}\n```"},
		"wrote first", "wrote second",
	)
	tests := &scriptedTests{outcomes: []models.TestOutcome{
		{Passed: false, Details: "FAIL: want second"},
		{Passed: true, Details: "ok"},
	}}
	d := &stubDiscovery{}
	in := input(root)

	res, err := newController(oracle, tests, d, 5, nil).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, OutcomePassed, res.Outcome)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "wrote first", res.Records[0].Description)
	assert.False(t, res.Records[0].Outcome.Passed)
	assert.True(t, res.Records[1].Outcome.Passed)
	assert.Equal(t, []string{"a.txt"}, res.Touched)
	assert.Equal(t, 2, d.calls)
	assert.Equal(t, 2, tests.runs)

	data, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, "second", res.Snapshot.Files["a.txt"])
	assert.Empty(t, in.Requirements.TestFeedback)

	var second string
	var changeCalls int
	for _, c := range oracle.Calls() {
		if c.System == changeSystemPrompt {
			changeCalls++
			second = c.Prompt
		}
	}
	assert.Equal(t, 2, changeCalls)
	assert.Contains(t, second, "FAIL: want second")
	assert.Contains(t, second, "Changes: wrote first")
	assert.Contains(t, second, "--- a.txt ---\nfirst")
}

func TestRun_MaxIterations(t *testing.T) {
	root := t.TempDir()
	oracle := routed([]string{`{"a.txt": "1"}`, `{"a.txt": "2"}`, `{"a.txt": "3"}`})
	tests := &scriptedTests{outcomes: []models.TestOutcome{
		{Details: "fail 1"}, {Details: "fail 2"}, {Details: "fail 3"},
	}}
	in := input(root)

	res, err := newController(oracle, tests, &stubDiscovery{}, 3, nil).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMaxReached, res.Outcome)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, "fail 3", in.Requirements.TestFeedback)

	last, ok := res.LastOutcome()
	require.True(t, ok)
	assert.Equal(t, "fail 3", last.Details)

	// Summaries were never scripted, so every description is the placeholder.
	for _, r := range res.Records {
		assert.Equal(t, NoDescription, r.Description)
	}
}

func TestRun_ExtractionFailureSpendsIteration(t *testing.T) {
	root := t.TempDir()
	oracle := routed([]string{"I am not sure what to change.", `["a.txt"]`, `{"a.txt": "done"}`}, "done")
	tests := &scriptedTests{outcomes: []models.TestOutcome{{Passed: true}}}

	res, err := newController(oracle, tests, &stubDiscovery{}, 5, nil).Run(context.Background(), input(root))
	require.NoError(t, err)
	assert.Equal(t, OutcomePassed, res.Outcome)
	assert.Equal(t, 3, res.Iterations)
	assert.True(t, res.Records[0].Skipped)
	assert.True(t, res.Records[1].Skipped)
	assert.Equal(t, 1, tests.runs)
}

func TestRun_AllIterationsSkipped(t *testing.T) {
	oracle := routed([]string{"nope", "still nope"})
	tests := &scriptedTests{}

	res, err := newController(oracle, tests, &stubDiscovery{}, 2, nil).Run(context.Background(), input(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMaxReached, res.Outcome)
	_, ok := res.LastOutcome()
	assert.False(t, ok)
	assert.Zero(t, tests.runs)
}

func TestRun_FatalErrors(t *testing.T) {
	t.Run("empty change response", func(t *testing.T) {
		oracle := llmtest.New("")
		_, err := newController(oracle, &scriptedTests{}, &stubDiscovery{}, 3, nil).Run(context.Background(), input(t.TempDir()))
		assert.ErrorIs(t, err, aerrors.ErrNoResponse)
	})
	t.Run("discovery failure", func(t *testing.T) {
		d := &stubDiscovery{err: aerrors.ErrNoResponse}
		_, err := newController(llmtest.New(), &scriptedTests{}, d, 3, nil).Run(context.Background(), input(t.TempDir()))
		assert.ErrorIs(t, err, aerrors.ErrNoResponse)
	})
	t.Run("no repo", func(t *testing.T) {
		in := input("")
		_, err := newController(llmtest.New(), &scriptedTests{}, &stubDiscovery{}, 3, nil).Run(context.Background(), in)
		assert.ErrorIs(t, err, aerrors.ErrNoRepoPath)
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newController(llmtest.New(), &scriptedTests{}, &stubDiscovery{}, 3, nil).Run(ctx, input(t.TempDir()))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRun_ObserverSeesTransitions(t *testing.T) {
	oracle := routed([]string{"garbage", `{"a.txt": "x"}`}, "x")
	tests := &scriptedTests{outcomes: []models.TestOutcome{{Passed: true}}}

	var states []string
	obs := func(e Event) { states = append(states, string(e.State)) }

	_, err := newController(oracle, tests, &stubDiscovery{}, 5, obs).Run(context.Background(), input(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t,
		"start discover request_change retry discover request_change apply test done",
		strings.Join(states, " "))
}

func TestRun_EmptyChangeSetSpendsIteration(t *testing.T) {
	root := t.TempDir()
	oracle := routed([]string{
		"The cache returns {} on a miss.\n```json\n{}\n```",
		"The cache returns {} on a miss.\n```json\n{\"a.txt\": \"x\"}\n```",
	}, "write a.txt")
	tests := &scriptedTests{outcomes: []models.TestOutcome{{Passed: true}}}

	res, err := newController(oracle, tests, &stubDiscovery{}, 2, nil).Run(context.Background(), input(root))
	require.NoError(t, err)
	assert.Equal(t, OutcomePassed, res.Outcome)
	require.Len(t, res.Records, 2)
	assert.True(t, res.Records[0].Skipped)
	assert.Equal(t, 1, tests.runs)

	got, err := os.ReadFile(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
	assert.Equal(t, []string{"a.txt"}, res.Touched)
}
