package graduation

import (
	"context"

	"github.com/agentmesh/govcore/govengine/storage"
	"github.com/agentmesh/govcore/govengine/trust"
	"github.com/agentmesh/govcore/govengine/typeutil"
)

// defaultDomain is used when an episode does not declare one.
const defaultDomain = "general"

// ComplianceChecker validates an episode's recorded actions against
// domain rules by delegating to the external constitutional validator.
type ComplianceChecker struct {
	episodes  storage.EpisodeStore
	validator ConstitutionalValidator
	logger    Logger
}

// NewComplianceChecker creates a ComplianceChecker.
func NewComplianceChecker(episodes storage.EpisodeStore, validator ConstitutionalValidator, logger Logger) *ComplianceChecker {
	return &ComplianceChecker{
		episodes:  episodes,
		validator: validator,
		logger:    logger,
	}
}

// Validate checks one episode. Returns NotFoundError when the episode is
// missing. An episode without segments is compliant by default: there is
// no evidence to judge, which is deliberately not an error.
func (c *ComplianceChecker) Validate(ctx context.Context, episodeID string) (*ComplianceReport, error) {
	episode, err := c.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, trust.NewNotFound("episode", episodeID)
		}
		return nil, trust.NewExternalFailure("load episode", err)
	}

	segments, err := c.episodes.GetSegments(ctx, episodeID)
	if err != nil && !storage.IsNotFound(err) {
		c.logger.Warn("compliance_segments_unavailable",
			"episode_id", episodeID,
			"error", err.Error(),
		)
		segments = nil
	}
	if len(segments) == 0 {
		return &ComplianceReport{
			Compliant:  true,
			Score:      1.0,
			Violations: []string{},
		}, nil
	}

	domain := defaultDomain
	if episode.Metadata != nil {
		domain = typeutil.SafeStringDefault(episode.Metadata["domain"], defaultDomain)
	}

	report, err := c.validator.Validate(ctx, segments, domain)
	if err != nil {
		return nil, trust.NewExternalFailure("constitutional validation", err)
	}

	c.logger.Debug("compliance_validated",
		"episode_id", episodeID,
		"domain", domain,
		"compliant", report.Compliant,
		"score", report.Score,
	)
	return report, nil
}
