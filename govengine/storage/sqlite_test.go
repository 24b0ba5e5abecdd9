package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/govcore/govengine/monitor"
	"github.com/agentmesh/govcore/govengine/trust"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "govcore-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestAgentRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	agent := &trust.Agent{
		ID:              "agent-1",
		Maturity:        trust.MaturityIntern,
		ConfidenceScore: 0.42,
		Metadata:        map[string]any{"team": "research"},
		UpdatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.PutAgent(ctx, agent))

	got, err := store.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.ID)
	assert.Equal(t, agent.Maturity, got.Maturity)
	assert.Equal(t, agent.ConfidenceScore, got.ConfidenceScore)
	assert.Equal(t, "research", got.Metadata["team"])
	assert.Equal(t, agent.UpdatedAt, got.UpdatedAt)

	// Upsert overwrites in place.
	agent.Maturity = trust.MaturitySupervised
	require.NoError(t, store.PutAgent(ctx, agent))
	got, err = store.GetAgent(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, trust.MaturitySupervised, got.Maturity)
}

func TestGetAgentNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetAgent(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestEpisodeListingFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	score := 0.9
	episodes := []*trust.Episode{
		{ID: "ep-1", AgentID: "agent-1", MaturityAtTime: trust.MaturityIntern, Status: trust.EpisodeCompleted, ConstitutionalScore: &score, StartedAt: base.Add(-3 * time.Hour)},
		{ID: "ep-2", AgentID: "agent-1", MaturityAtTime: trust.MaturityIntern, Status: trust.EpisodeFailed, StartedAt: base.Add(-2 * time.Hour)},
		{ID: "ep-3", AgentID: "agent-1", MaturityAtTime: trust.MaturityStudent, Status: trust.EpisodeCompleted, StartedAt: base.Add(-1 * time.Hour)},
		{ID: "ep-4", AgentID: "agent-2", MaturityAtTime: trust.MaturityIntern, Status: trust.EpisodeCompleted, StartedAt: base},
	}
	for _, ep := range episodes {
		require.NoError(t, store.PutEpisode(ctx, ep))
	}

	all, err := store.ListEpisodes(ctx, "agent-1", EpisodeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ep-3", all[0].ID, "most recent first")

	completed, err := store.ListEpisodes(ctx, "agent-1", EpisodeFilter{
		Maturity: trust.MaturityIntern,
		Status:   trust.EpisodeCompleted,
	})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "ep-1", completed[0].ID)
	require.NotNil(t, completed[0].ConstitutionalScore)
	assert.Equal(t, 0.9, *completed[0].ConstitutionalScore)

	limited, err := store.ListEpisodes(ctx, "agent-1", EpisodeFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSegmentsOrderedByPosition(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSegment(ctx, &trust.EpisodeSegment{EpisodeID: "ep-1", Position: 2, Payload: map[string]any{"action": "write"}}))
	require.NoError(t, store.PutSegment(ctx, &trust.EpisodeSegment{EpisodeID: "ep-1", Position: 0, Payload: map[string]any{"action": "read"}}))
	require.NoError(t, store.PutSegment(ctx, &trust.EpisodeSegment{EpisodeID: "ep-1", Position: 1}))

	segments, err := store.GetSegments(ctx, "ep-1")
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, 0, segments[0].Position)
	assert.Equal(t, "read", segments[0].Payload["action"])
	assert.Equal(t, 2, segments[2].Position)
}

func TestPackageRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	approvedAt := time.Now().UTC().Truncate(time.Millisecond)
	entry := &trust.PackageRegistryEntry{
		Name:        "web_search",
		Version:     "1.2.0",
		Status:      trust.PackageActive,
		MinMaturity: trust.MaturitySupervised,
		ApprovedBy:  "reviewer",
		ApprovedAt:  &approvedAt,
		UpdatedAt:   approvedAt,
	}
	require.NoError(t, store.PutPackage(ctx, entry))

	got, err := store.GetPackage(ctx, "web_search", "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, trust.PackageActive, got.Status)
	assert.Equal(t, trust.MaturitySupervised, got.MinMaturity)
	require.NotNil(t, got.ApprovedAt)
	assert.Equal(t, approvedAt, *got.ApprovedAt)

	// Versions are distinct rows.
	_, err = store.GetPackage(ctx, "web_search", "2.0.0")
	assert.True(t, IsNotFound(err))
}

func TestCriteriaRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutCriteria(ctx, &trust.GraduationCriteria{
		TargetMaturity:         trust.MaturitySupervised,
		MinEpisodes:            25,
		MaxInterventionRate:    0.2,
		MinConstitutionalScore: 0.85,
	}))

	crit, err := store.GetCriteria(ctx, trust.MaturitySupervised)
	require.NoError(t, err)
	assert.Equal(t, 25, crit.MinEpisodes)
	assert.Equal(t, 0.2, crit.MaxInterventionRate)

	_, err = store.GetCriteria(ctx, trust.MaturityAutonomous)
	assert.True(t, IsNotFound(err))
}

func TestMonitorRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	m := &monitor.ConditionMonitor{
		AgentID: "agent-1",
		Name:    "inbox_overload",
		Type:    monitor.ConditionComposite,
		CompositeLogic: monitor.LogicOr,
		CompositeConditions: []map[string]any{
			{
				"condition_type": "inbox_volume",
				"threshold_config": map[string]any{
					"metric": "unread_count", "operator": ">", "value": 50.0,
				},
			},
		},
		Enabled: true,
	}
	require.NoError(t, store.PutMonitor(ctx, m))
	require.NotEmpty(t, m.ID, "PutMonitor assigns an ID")

	got, err := store.GetMonitor(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, monitor.ConditionComposite, got.Type)
	assert.Equal(t, monitor.LogicOr, got.CompositeLogic)
	require.Len(t, got.CompositeConditions, 1)
	assert.Equal(t, "inbox_volume", got.CompositeConditions[0]["condition_type"])
	assert.True(t, got.Enabled)

	disabled := &monitor.ConditionMonitor{
		AgentID:         "agent-1",
		Name:            "off",
		Type:            monitor.ConditionInboxVolume,
		ThresholdConfig: map[string]any{"metric": "unread_count", "operator": ">", "value": 1.0},
		Enabled:         false,
	}
	require.NoError(t, store.PutMonitor(ctx, disabled))

	enabledOnly, err := store.ListMonitors(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabledOnly, 1)
	assert.Equal(t, m.ID, enabledOnly[0].ID)

	all, err := store.ListMonitors(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestScalarQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutEpisode(ctx, &trust.Episode{
		ID: "ep-1", AgentID: "agent-1",
		MaturityAtTime: trust.MaturityIntern,
		Status:         trust.EpisodeFailed,
		StartedAt:      time.Now(),
	}))

	v, err := store.Scalar(ctx, `SELECT COUNT(*) FROM episodes WHERE status = 'failed'`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = store.Scalar(ctx, `SELECT nope FROM missing_table`)
	require.Error(t, err)
}
