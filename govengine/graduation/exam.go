package graduation

import (
	"context"

	"github.com/agentmesh/govcore/govengine/observability"
	"github.com/agentmesh/govcore/govengine/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SandboxExamRunner replays historical edge-case episodes through the
// sandbox executor in strict mode (zero tolerated interventions) to
// validate a pending promotion.
type SandboxExamRunner struct {
	episodes storage.EpisodeStore
	sandbox  SandboxExecutor
	logger   Logger
}

// NewSandboxExamRunner creates a SandboxExamRunner.
func NewSandboxExamRunner(episodes storage.EpisodeStore, sandbox SandboxExecutor, logger Logger) *SandboxExamRunner {
	return &SandboxExamRunner{
		episodes: episodes,
		sandbox:  sandbox,
		logger:   logger,
	}
}

// Run replays each referenced episode and aggregates the results. Missing
// episodes are skipped, not failed. An empty case list passes vacuously
// with score 0 - the AND over zero cases.
func (r *SandboxExamRunner) Run(ctx context.Context, agentID string, episodeIDs []string) (*ExamReport, error) {
	ctx, span := tracer.Start(ctx, "graduation.exam",
		trace.WithAttributes(
			attribute.String("govcore.agent.id", agentID),
			attribute.Int("govcore.exam.requested_cases", len(episodeIDs)),
		),
	)
	defer span.End()

	results := make([]ExamCaseResult, 0, len(episodeIDs))
	passedCount := 0

	for _, episodeID := range episodeIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if _, err := r.episodes.GetEpisode(ctx, episodeID); err != nil {
			// A stale exam roster referencing a purged episode must not
			// sink the whole run.
			r.logger.Warn("exam_episode_missing",
				"agent_id", agentID,
				"episode_id", episodeID,
				"error", err.Error(),
			)
			continue
		}

		replay, err := r.sandbox.Execute(ctx, episodeID, true)
		if err != nil {
			r.logger.Warn("exam_replay_failed",
				"agent_id", agentID,
				"episode_id", episodeID,
				"error", err.Error(),
			)
			results = append(results, ExamCaseResult{
				EpisodeID: episodeID,
				Passed:    false,
				Detail:    err.Error(),
			})
			continue
		}

		results = append(results, ExamCaseResult{
			EpisodeID:        episodeID,
			Passed:           replay.Passed,
			Interventions:    replay.Interventions,
			SafetyViolations: replay.SafetyViolations,
			ReplayedActions:  replay.ReplayedActions,
		})
		if replay.Passed {
			passedCount++
		}
	}

	totalCases := len(results)
	passed := true
	for _, res := range results {
		if !res.Passed {
			passed = false
			break
		}
	}
	score := 0.0
	if totalCases > 0 {
		score = 100 * float64(passedCount) / float64(totalCases)
	}

	report := &ExamReport{
		Passed:     passed,
		Score:      score,
		Results:    results,
		TotalCases: totalCases,
	}

	observability.RecordExamRun(passed)
	r.logger.Info("exam_completed",
		"agent_id", agentID,
		"passed", passed,
		"score", score,
		"total_cases", totalCases,
	)
	span.SetAttributes(
		attribute.Bool("govcore.exam.passed", passed),
		attribute.Int("govcore.exam.total_cases", totalCases),
	)

	return report, nil
}
