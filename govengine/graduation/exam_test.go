package graduation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/govcore/govengine/testutil"
	"github.com/agentmesh/govcore/govengine/trust"
)

// fakeSandbox maps episode IDs to canned replay outcomes.
type fakeSandbox struct {
	results map[string]*ReplayResult
	errs    map[string]error
	strict  []bool
}

func (f *fakeSandbox) Execute(_ context.Context, episodeID string, strictMode bool) (*ReplayResult, error) {
	f.strict = append(f.strict, strictMode)
	if err, ok := f.errs[episodeID]; ok {
		return nil, err
	}
	if r, ok := f.results[episodeID]; ok {
		return r, nil
	}
	return &ReplayResult{Passed: true}, nil
}

func newExamFixture(t *testing.T, sandbox *fakeSandbox) (*SandboxExamRunner, *testutil.MemoryStore) {
	t.Helper()
	store := testutil.NewMemoryStore()
	return NewSandboxExamRunner(store, sandbox, testutil.NewCapturingLogger()), store
}

func addExamEpisode(store *testutil.MemoryStore, id string) {
	store.AddEpisode(&trust.Episode{
		ID:      id,
		AgentID: "agent-1",
		Status:  trust.EpisodeCompleted,
	})
}

func TestExamAllPass(t *testing.T) {
	sandbox := &fakeSandbox{results: map[string]*ReplayResult{
		"ep-1": {Passed: true, ReplayedActions: 12},
		"ep-2": {Passed: true, ReplayedActions: 7},
	}}
	runner, store := newExamFixture(t, sandbox)
	addExamEpisode(store, "ep-1")
	addExamEpisode(store, "ep-2")

	report, err := runner.Run(context.Background(), "agent-1", []string{"ep-1", "ep-2"})
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Equal(t, 100.0, report.Score)
	assert.Equal(t, 2, report.TotalCases)
	for _, strict := range sandbox.strict {
		assert.True(t, strict, "exam replays must run in strict mode")
	}
}

func TestExamOneFailureFailsRun(t *testing.T) {
	sandbox := &fakeSandbox{results: map[string]*ReplayResult{
		"ep-1": {Passed: true},
		"ep-2": {Passed: false, Interventions: 1, SafetyViolations: []string{"unshielded write"}},
	}}
	runner, store := newExamFixture(t, sandbox)
	addExamEpisode(store, "ep-1")
	addExamEpisode(store, "ep-2")

	report, err := runner.Run(context.Background(), "agent-1", []string{"ep-1", "ep-2"})
	require.NoError(t, err)

	assert.False(t, report.Passed)
	assert.Equal(t, 50.0, report.Score)
	require.Len(t, report.Results, 2)
	assert.Equal(t, []string{"unshielded write"}, report.Results[1].SafetyViolations)
}

func TestExamEmptyRosterPassesVacuously(t *testing.T) {
	runner, _ := newExamFixture(t, &fakeSandbox{})

	report, err := runner.Run(context.Background(), "agent-1", nil)
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Equal(t, 0.0, report.Score)
	assert.Zero(t, report.TotalCases)
}

func TestExamSkipsMissingEpisodes(t *testing.T) {
	sandbox := &fakeSandbox{results: map[string]*ReplayResult{"ep-1": {Passed: true}}}
	runner, store := newExamFixture(t, sandbox)
	addExamEpisode(store, "ep-1")

	report, err := runner.Run(context.Background(), "agent-1", []string{"ep-1", "purged"})
	require.NoError(t, err)

	assert.True(t, report.Passed, "purged roster entries are skipped, not failed")
	assert.Equal(t, 1, report.TotalCases)
	assert.Equal(t, 100.0, report.Score)
}

func TestExamExecutorErrorFailsCase(t *testing.T) {
	sandbox := &fakeSandbox{errs: map[string]error{"ep-1": errors.New("sandbox crashed")}}
	runner, store := newExamFixture(t, sandbox)
	addExamEpisode(store, "ep-1")

	report, err := runner.Run(context.Background(), "agent-1", []string{"ep-1"})
	require.NoError(t, err)

	assert.False(t, report.Passed)
	require.Len(t, report.Results, 1)
	assert.Contains(t, report.Results[0].Detail, "sandbox crashed")
}

func TestExamHonorsCancellation(t *testing.T) {
	runner, store := newExamFixture(t, &fakeSandbox{})
	addExamEpisode(store, "ep-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, "agent-1", []string{"ep-1"})
	require.ErrorIs(t, err, context.Canceled)
}
