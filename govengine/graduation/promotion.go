package graduation

import (
	"context"
	"time"

	"github.com/agentmesh/govcore/govengine/observability"
	"github.com/agentmesh/govcore/govengine/storage"
	"github.com/agentmesh/govcore/govengine/trust"
	"github.com/google/uuid"
)

// recentEpisodeLimit caps the audit trail's recent-episode listing.
const recentEpisodeLimit = 10

// PromotionManager is the only component allowed to mutate an agent's
// maturity tier. Promotion failures are reported as false and logged;
// callers outside the human-in-the-loop flow never see an error surface.
type PromotionManager struct {
	agents   storage.AgentStore
	episodes storage.EpisodeStore
	logger   Logger
}

// NewPromotionManager creates a PromotionManager.
func NewPromotionManager(agents storage.AgentStore, episodes storage.EpisodeStore, logger Logger) *PromotionManager {
	return &PromotionManager{
		agents:   agents,
		episodes: episodes,
		logger:   logger,
	}
}

// Promote commits a maturity change for the agent, recording who
// validated it. Returns false if the agent is missing, the tier is not
// recognized, or persistence fails.
func (m *PromotionManager) Promote(ctx context.Context, agentID, newMaturity, validatedBy string) bool {
	tier, err := trust.ParseMaturity(newMaturity)
	if err != nil {
		m.logger.Warn("promotion_invalid_maturity",
			"agent_id", agentID,
			"maturity", newMaturity,
		)
		return false
	}

	agent, err := m.agents.GetAgent(ctx, agentID)
	if err != nil {
		m.logger.Warn("promotion_agent_unavailable",
			"agent_id", agentID,
			"error", err.Error(),
		)
		return false
	}

	now := time.Now().UTC()
	previous := agent.Maturity
	agent.Maturity = tier
	agent.UpdatedAt = now
	// Merge, never overwrite: other metadata keys survive the promotion.
	if agent.Metadata == nil {
		agent.Metadata = make(map[string]any)
	}
	agent.Metadata["promoted_at"] = now.Format(time.RFC3339)
	agent.Metadata["promoted_by"] = validatedBy

	if err := m.agents.PutAgent(ctx, agent); err != nil {
		m.logger.Error("promotion_commit_failed",
			"agent_id", agentID,
			"error", err.Error(),
		)
		return false
	}

	observability.RecordPromotion(string(tier))
	m.logger.Info("agent_promoted",
		"audit_id", uuid.NewString(),
		"agent_id", agentID,
		"from", string(previous),
		"to", string(tier),
		"validated_by", validatedBy,
	)
	return true
}

// AuditTrail summarizes the agent's full episodic history: totals,
// per-tier episode counts, and the most recent episodes at the current
// tier.
func (m *PromotionManager) AuditTrail(ctx context.Context, agentID string) (*AuditTrail, error) {
	agent, err := m.agents.GetAgent(ctx, agentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, trust.NewNotFound("agent", agentID)
		}
		return nil, trust.NewExternalFailure("load agent", err)
	}

	episodes, err := m.episodes.ListEpisodes(ctx, agentID, storage.EpisodeFilter{})
	if err != nil {
		return nil, trust.NewExternalFailure("list episodes", err)
	}

	byMaturity := make(map[string]int)
	totalInterventions := 0
	scoreSum := 0.0
	scoredEpisodes := 0
	var recent []*trust.Episode
	for _, ep := range episodes {
		byMaturity[string(ep.MaturityAtTime)]++
		totalInterventions += ep.HumanInterventionCount
		if ep.ConstitutionalScore != nil {
			scoreSum += *ep.ConstitutionalScore
			scoredEpisodes++
		}
		if ep.MaturityAtTime == agent.Maturity && len(recent) < recentEpisodeLimit {
			recent = append(recent, ep)
		}
	}
	avgScore := 0.0
	if scoredEpisodes > 0 {
		avgScore = scoreSum / float64(scoredEpisodes)
	}

	return &AuditTrail{
		AgentID:                agentID,
		CurrentMaturity:        string(agent.Maturity),
		TotalEpisodes:          len(episodes),
		TotalInterventions:     totalInterventions,
		AvgConstitutionalScore: avgScore,
		EpisodesByMaturity:     byMaturity,
		RecentEpisodes:         recent,
	}, nil
}
