package graduation

import (
	"context"
	"fmt"
	"math"

	"github.com/agentmesh/govcore/govengine/observability"
	"github.com/agentmesh/govcore/govengine/storage"
	"github.com/agentmesh/govcore/govengine/trust"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("govcore/graduation")

// Score component weights. Episode volume carries the most weight;
// intervention rate and constitutional compliance split the rest.
const (
	episodeWeight        = 40.0
	interventionWeight   = 30.0
	constitutionalWeight = 30.0
)

// ReadinessEvaluator computes a weighted promotion-readiness score from an
// agent's episodic history at its current tier.
type ReadinessEvaluator struct {
	agents   storage.AgentStore
	episodes storage.EpisodeStore
	criteria storage.CriteriaStore
	logger   Logger
}

// NewReadinessEvaluator creates a ReadinessEvaluator.
func NewReadinessEvaluator(agents storage.AgentStore, episodes storage.EpisodeStore, criteria storage.CriteriaStore, logger Logger) *ReadinessEvaluator {
	return &ReadinessEvaluator{
		agents:   agents,
		episodes: episodes,
		criteria: criteria,
		logger:   logger,
	}
}

type evaluateOptions struct {
	minEpisodes        *int
	defaultMinEpisodes *int
}

// EvaluateOption customizes a readiness evaluation.
type EvaluateOption func(*evaluateOptions)

// WithMinEpisodes overrides the criteria's minimum episode count for this
// evaluation only.
func WithMinEpisodes(n int) EvaluateOption {
	return func(o *evaluateOptions) {
		o.minEpisodes = &n
	}
}

// WithDefaultMinEpisodes supplies a fallback minimum episode count, applied
// only when the target tier's criteria omit one.
func WithDefaultMinEpisodes(n int) EvaluateOption {
	return func(o *evaluateOptions) {
		o.defaultMinEpisodes = &n
	}
}

// Evaluate computes the readiness report for promoting agentID to target.
// Returns NotFoundError when the agent or the target tier's criteria are
// unrecognized.
func (ev *ReadinessEvaluator) Evaluate(ctx context.Context, agentID string, target trust.Maturity, opts ...EvaluateOption) (*ReadinessReport, error) {
	ctx, span := tracer.Start(ctx, "graduation.evaluate",
		trace.WithAttributes(
			attribute.String("govcore.agent.id", agentID),
			attribute.String("govcore.target_maturity", string(target)),
		),
	)
	defer span.End()

	var options evaluateOptions
	for _, opt := range opts {
		opt(&options)
	}

	agent, err := ev.agents.GetAgent(ctx, agentID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, trust.NewNotFound("agent", agentID)
		}
		return nil, trust.NewExternalFailure("load agent", err)
	}

	crit, err := ev.criteria.GetCriteria(ctx, target)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, trust.NewNotFound("graduation criteria", string(target))
		}
		return nil, trust.NewExternalFailure("load criteria", err)
	}

	minEpisodes := crit.MinEpisodes
	if minEpisodes <= 0 && options.defaultMinEpisodes != nil {
		minEpisodes = *options.defaultMinEpisodes
	}
	if options.minEpisodes != nil {
		minEpisodes = *options.minEpisodes
	}

	// Evidence is restricted to completed episodes at the agent's current
	// tier: history from lower tiers does not count toward promotion.
	episodes, err := ev.episodes.ListEpisodes(ctx, agentID, storage.EpisodeFilter{
		Maturity: agent.Maturity,
		Status:   trust.EpisodeCompleted,
	})
	if err != nil {
		return nil, trust.NewExternalFailure("list episodes", err)
	}

	episodeCount := len(episodes)
	totalInterventions := 0
	scoreSum := 0.0
	scoredEpisodes := 0
	for _, ep := range episodes {
		totalInterventions += ep.HumanInterventionCount
		if ep.ConstitutionalScore != nil {
			scoreSum += *ep.ConstitutionalScore
			scoredEpisodes++
		}
	}

	// An empty history is fully penalized rather than undefined.
	interventionRate := 1.0
	if episodeCount > 0 {
		interventionRate = float64(totalInterventions) / float64(episodeCount)
	}
	avgConstitutional := 0.0
	if scoredEpisodes > 0 {
		avgConstitutional = scoreSum / float64(scoredEpisodes)
	}
	interventionRate = round3(interventionRate)
	avgConstitutional = round3(avgConstitutional)

	var gaps []string
	if episodeCount < minEpisodes {
		gaps = append(gaps, fmt.Sprintf(
			"needs %d more completed episodes at current tier (%d/%d)",
			minEpisodes-episodeCount, episodeCount, minEpisodes))
	}
	if interventionRate > crit.MaxInterventionRate {
		gaps = append(gaps, fmt.Sprintf(
			"intervention rate %.3f exceeds maximum %.3f",
			interventionRate, crit.MaxInterventionRate))
	}
	if avgConstitutional < crit.MinConstitutionalScore {
		gaps = append(gaps, fmt.Sprintf(
			"constitutional score %.3f below required %.3f",
			avgConstitutional, crit.MinConstitutionalScore))
	}
	ready := len(gaps) == 0

	score := round1(episodeWeight*ratio(float64(episodeCount), float64(minEpisodes)) +
		interventionWeight*inverseRatio(interventionRate, crit.MaxInterventionRate) +
		constitutionalWeight*ratio(avgConstitutional, crit.MinConstitutionalScore))

	report := &ReadinessReport{
		Ready:                   ready,
		Score:                   score,
		TargetMaturity:          string(target),
		EpisodeCount:            episodeCount,
		AvgConstitutionalScore:  avgConstitutional,
		TotalHumanInterventions: totalInterventions,
		InterventionRate:        interventionRate,
		Recommendation:          recommendation(score, ready, target),
		Gaps:                    gaps,
	}

	observability.RecordReadinessEvaluation(string(target), ready)
	ev.logger.Info("readiness_evaluated",
		"agent_id", agentID,
		"target", string(target),
		"ready", ready,
		"score", score,
		"episodes", episodeCount,
	)
	span.SetAttributes(
		attribute.Bool("govcore.ready", ready),
		attribute.Float64("govcore.score", score),
	)

	return report, nil
}

// ratio clamps value/required to [0, 1]. A non-positive requirement is
// trivially satisfied.
func ratio(value, required float64) float64 {
	if required <= 0 {
		return 1
	}
	r := value / required
	if r > 1 {
		return 1
	}
	if r < 0 {
		return 0
	}
	return r
}

// inverseRatio rewards staying under a maximum: 1 at zero, 0 at or above
// the maximum.
func inverseRatio(value, maximum float64) float64 {
	if maximum <= 0 {
		if value > 0 {
			return 0
		}
		return 1
	}
	r := value / maximum
	if r > 1 {
		r = 1
	}
	if r < 0 {
		r = 0
	}
	return 1 - r
}

func recommendation(score float64, ready bool, target trust.Maturity) string {
	switch {
	case ready:
		return fmt.Sprintf("Ready for promotion to %s pending graduation exam.", target)
	case score >= 75:
		return "Close to ready: address the remaining gaps before requesting promotion."
	case score >= 50:
		return "Making progress: continue accumulating clean supervised episodes."
	default:
		return "Not ready: significant additional history is required at the current tier."
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
