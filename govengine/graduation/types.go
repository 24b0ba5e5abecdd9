// Package graduation implements the human-in-the-loop promotion path:
// evidence-based readiness scoring, the sandboxed replay exam,
// constitutional compliance checking, and the promotion manager that
// commits tier changes.
package graduation

import (
	"context"

	"github.com/agentmesh/govcore/govengine/trust"
)

// Logger is the interface for logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SandboxExecutor is the external sandbox runtime that replays a
// historical episode. strictMode tolerates zero human interventions.
type SandboxExecutor interface {
	Execute(ctx context.Context, episodeID string, strictMode bool) (*ReplayResult, error)
}

// ReplayResult is the outcome of one sandboxed episode replay.
type ReplayResult struct {
	Passed           bool     `json:"passed"`
	Interventions    int      `json:"interventions"`
	SafetyViolations []string `json:"safety_violations"`
	ReplayedActions  int      `json:"replayed_actions"`
}

// ConstitutionalValidator is the external validator that judges episode
// actions against domain rules.
type ConstitutionalValidator interface {
	Validate(ctx context.Context, segments []trust.EpisodeSegment, domain string) (*ComplianceReport, error)
}

// ComplianceReport is the outcome of constitutional validation for one
// episode.
type ComplianceReport struct {
	Compliant      bool     `json:"compliant"`
	Score          float64  `json:"score"`
	Violations     []string `json:"violations"`
	TotalActions   int      `json:"total_actions"`
	CheckedActions int      `json:"checked_actions"`
}

// ReadinessReport is the ephemeral result of a promotion readiness
// evaluation. Ready is true exactly when Gaps is empty.
type ReadinessReport struct {
	Ready                   bool     `json:"ready"`
	Score                   float64  `json:"score"`
	TargetMaturity          string   `json:"target_maturity"`
	EpisodeCount            int      `json:"episode_count"`
	AvgConstitutionalScore  float64  `json:"avg_constitutional_score"`
	TotalHumanInterventions int      `json:"total_human_interventions"`
	InterventionRate        float64  `json:"intervention_rate"`
	Recommendation          string   `json:"recommendation"`
	Gaps                    []string `json:"gaps"`
}

// ExamCaseResult is one replayed edge case within an exam run.
type ExamCaseResult struct {
	EpisodeID        string   `json:"episode_id"`
	Passed           bool     `json:"passed"`
	Interventions    int      `json:"interventions"`
	SafetyViolations []string `json:"safety_violations"`
	ReplayedActions  int      `json:"replayed_actions"`
	Detail           string   `json:"detail,omitempty"`
}

// ExamReport is the ephemeral result of a sandbox graduation exam.
type ExamReport struct {
	Passed     bool             `json:"passed"`
	Score      float64          `json:"score"`
	Results    []ExamCaseResult `json:"results"`
	TotalCases int              `json:"total_cases"`
}

// AuditTrail summarizes an agent's governance history.
type AuditTrail struct {
	AgentID                string           `json:"agent_id"`
	CurrentMaturity        string           `json:"current_maturity"`
	TotalEpisodes          int              `json:"total_episodes"`
	TotalInterventions     int              `json:"total_interventions"`
	AvgConstitutionalScore float64          `json:"avg_constitutional_score"`
	EpisodesByMaturity     map[string]int   `json:"episodes_by_maturity"`
	RecentEpisodes         []*trust.Episode `json:"recent_episodes"`
}
