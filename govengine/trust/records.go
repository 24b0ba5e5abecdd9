package trust

import (
	"time"
)

// Agent is the platform's record of an autonomous agent. Maturity is
// mutated only by the promotion manager; everything else is owned by the
// outer platform.
type Agent struct {
	ID              string         `json:"id"`
	Maturity        Maturity       `json:"maturity"`
	ConfidenceScore float64        `json:"confidence_score"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewAgent creates an agent record at the student tier.
func NewAgent(id string) *Agent {
	return &Agent{
		ID:        id,
		Maturity:  MaturityStudent,
		Metadata:  map[string]any{},
		UpdatedAt: time.Now().UTC(),
	}
}

// Episode is one recorded working session of an agent. MaturityAtTime
// captures the tier the agent held when the episode ran, so readiness
// evaluation can look at evidence from the current tier only.
type Episode struct {
	ID                     string         `json:"id"`
	AgentID                string         `json:"agent_id"`
	MaturityAtTime         Maturity       `json:"maturity_at_time"`
	Status                 EpisodeStatus  `json:"status"`
	HumanInterventionCount int            `json:"human_intervention_count"`
	ConstitutionalScore    *float64       `json:"constitutional_score,omitempty"`
	Metadata               map[string]any `json:"metadata,omitempty"`
	StartedAt              time.Time      `json:"started_at"`
}

// EpisodeSegment is one ordered action record within an episode. The
// payload is opaque to the governance engine and is passed through to the
// constitutional validator unchanged.
type EpisodeSegment struct {
	ID        string         `json:"id"`
	EpisodeID string         `json:"episode_id"`
	Position  int            `json:"position"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// GraduationCriteria defines the evidence bar for promotion into a target
// tier. One row exists per target tier.
type GraduationCriteria struct {
	TargetMaturity         Maturity `json:"target_maturity" yaml:"target_maturity"`
	MinEpisodes            int      `json:"min_episodes" yaml:"min_episodes"`
	MaxInterventionRate    float64  `json:"max_intervention_rate" yaml:"max_intervention_rate"`
	MinConstitutionalScore float64  `json:"min_constitutional_score" yaml:"min_constitutional_score"`
}

// PackageRegistryEntry is the approval record governing whether a specific
// (name, version) may run and for whom. The registry is the source of
// truth for permission decisions; cached decisions are derived state.
type PackageRegistryEntry struct {
	Name        string        `json:"name"`
	Version     string        `json:"version"`
	Status      PackageStatus `json:"status"`
	MinMaturity Maturity      `json:"min_maturity"`
	BanReason   string        `json:"ban_reason,omitempty"`
	ApprovedBy  string        `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time    `json:"approved_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Key returns the registry key for the entry.
func (e *PackageRegistryEntry) Key() string {
	return e.Name + ":" + e.Version
}

// PermissionDecision is the cached outcome of a package permission check.
// Reason is empty when the decision allows.
type PermissionDecision struct {
	Allowed          bool   `json:"allowed"`
	MaturityRequired string `json:"maturity_required"`
	Reason           string `json:"reason,omitempty"`
}
