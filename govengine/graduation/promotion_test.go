package graduation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmesh/govcore/govengine/testutil"
	"github.com/agentmesh/govcore/govengine/trust"
)

func newPromotionFixture(t *testing.T) (*PromotionManager, *testutil.MemoryStore, *testutil.CapturingLogger) {
	t.Helper()
	store := testutil.NewMemoryStore()
	logger := testutil.NewCapturingLogger()
	return NewPromotionManager(store, store, logger), store, logger
}

func TestPromoteCommitsTierChange(t *testing.T) {
	mgr, store, logger := newPromotionFixture(t)
	store.AddAgent(&trust.Agent{
		ID:       "agent-1",
		Maturity: trust.MaturityIntern,
		Metadata: map[string]any{"team": "research"},
	})

	ok := mgr.Promote(context.Background(), "agent-1", "supervised", "reviewer@example.com")
	require.True(t, ok)

	agent, err := store.GetAgent(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, trust.MaturitySupervised, agent.Maturity)
	assert.Equal(t, "reviewer@example.com", agent.Metadata["promoted_by"])
	assert.NotEmpty(t, agent.Metadata["promoted_at"])
	assert.Equal(t, "research", agent.Metadata["team"], "unrelated metadata must survive")
	assert.Contains(t, logger.Messages("info"), "agent_promoted")
}

func TestPromoteInvalidTier(t *testing.T) {
	mgr, store, _ := newPromotionFixture(t)
	store.AddAgent(&trust.Agent{ID: "agent-1", Maturity: trust.MaturityIntern})

	assert.False(t, mgr.Promote(context.Background(), "agent-1", "wizard", "reviewer"))

	agent, err := store.GetAgent(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, trust.MaturityIntern, agent.Maturity)
}

func TestPromoteMissingAgent(t *testing.T) {
	mgr, _, _ := newPromotionFixture(t)
	assert.False(t, mgr.Promote(context.Background(), "ghost", "intern", "reviewer"))
}

func TestPromoteInitializesNilMetadata(t *testing.T) {
	mgr, store, _ := newPromotionFixture(t)
	store.AddAgent(&trust.Agent{ID: "agent-1", Maturity: trust.MaturityStudent})

	require.True(t, mgr.Promote(context.Background(), "agent-1", "intern", "reviewer"))

	agent, err := store.GetAgent(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "reviewer", agent.Metadata["promoted_by"])
}

func TestAuditTrailSummarizesHistory(t *testing.T) {
	mgr, store, _ := newPromotionFixture(t)
	store.AddAgent(&trust.Agent{ID: "agent-1", Maturity: trust.MaturityIntern})

	score := 0.8
	for i := 0; i < 12; i++ {
		store.AddEpisode(&trust.Episode{
			ID:                     fmt.Sprintf("ep-intern-%d", i),
			AgentID:                "agent-1",
			MaturityAtTime:         trust.MaturityIntern,
			Status:                 trust.EpisodeCompleted,
			HumanInterventionCount: 1,
			ConstitutionalScore:    &score,
			StartedAt:              time.Now().Add(-time.Duration(i) * time.Hour),
		})
	}
	store.AddEpisode(&trust.Episode{
		ID:             "ep-student-0",
		AgentID:        "agent-1",
		MaturityAtTime: trust.MaturityStudent,
		Status:         trust.EpisodeCompleted,
		StartedAt:      time.Now().Add(-100 * time.Hour),
	})

	trail, err := mgr.AuditTrail(context.Background(), "agent-1")
	require.NoError(t, err)

	assert.Equal(t, "intern", trail.CurrentMaturity)
	assert.Equal(t, 13, trail.TotalEpisodes)
	assert.Equal(t, 12, trail.TotalInterventions)
	assert.Equal(t, 12, trail.EpisodesByMaturity["intern"])
	assert.Equal(t, 1, trail.EpisodesByMaturity["student"])
	assert.InDelta(t, 0.8, trail.AvgConstitutionalScore, 1e-9)
	// Recent listing is capped and restricted to the current tier.
	assert.Len(t, trail.RecentEpisodes, 10)
	for _, ep := range trail.RecentEpisodes {
		assert.Equal(t, trust.MaturityIntern, ep.MaturityAtTime)
	}
}

func TestAuditTrailMissingAgent(t *testing.T) {
	mgr, _, _ := newPromotionFixture(t)

	_, err := mgr.AuditTrail(context.Background(), "ghost")
	require.Error(t, err)
	var notFound *trust.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
