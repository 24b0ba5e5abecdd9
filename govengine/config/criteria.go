package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentmesh/govcore/govengine/storage"
	"github.com/agentmesh/govcore/govengine/trust"
)

// ===== GRADUATION CRITERIA TABLE =====

// CriteriaTable maps promotion targets to their graduation criteria. It
// satisfies the criteria store contract so evaluators can read from a
// static table instead of the database.
type CriteriaTable struct {
	Tiers map[trust.Maturity]trust.GraduationCriteria `yaml:"tiers"`
}

// DefaultCriteriaTable returns the built-in promotion ladder. Each tier
// is strictly harder than the one below it.
func DefaultCriteriaTable() *CriteriaTable {
	return &CriteriaTable{
		Tiers: map[trust.Maturity]trust.GraduationCriteria{
			trust.MaturityIntern: {
				TargetMaturity:         trust.MaturityIntern,
				MinEpisodes:            10,
				MaxInterventionRate:    0.5,
				MinConstitutionalScore: 0.7,
			},
			trust.MaturitySupervised: {
				TargetMaturity:         trust.MaturitySupervised,
				MinEpisodes:            25,
				MaxInterventionRate:    0.2,
				MinConstitutionalScore: 0.85,
			},
			trust.MaturityAutonomous: {
				TargetMaturity:         trust.MaturityAutonomous,
				MinEpisodes:            50,
				MaxInterventionRate:    0.05,
				MinConstitutionalScore: 0.95,
			},
		},
	}
}

// LoadCriteriaTable reads a criteria table from a YAML file. Tiers not
// present in the file fall back to the defaults.
func LoadCriteriaTable(path string) (*CriteriaTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria file: %w", err)
	}

	var fileTable CriteriaTable
	if err := yaml.Unmarshal(data, &fileTable); err != nil {
		return nil, fmt.Errorf("parse criteria file: %w", err)
	}

	table := DefaultCriteriaTable()
	for tier, crit := range fileTable.Tiers {
		if !tier.Valid() {
			return nil, fmt.Errorf("unknown maturity tier %q in criteria file", tier)
		}
		if crit.TargetMaturity == "" {
			crit.TargetMaturity = tier
		}
		table.Tiers[tier] = crit
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks every tier for internally consistent bounds.
func (t *CriteriaTable) Validate() error {
	for tier, crit := range t.Tiers {
		if crit.MinEpisodes < 0 {
			return fmt.Errorf("tier %s: min_episodes must be >= 0, got %d", tier, crit.MinEpisodes)
		}
		if crit.MaxInterventionRate < 0 || crit.MaxInterventionRate > 1 {
			return fmt.Errorf("tier %s: max_intervention_rate must be in [0,1], got %v", tier, crit.MaxInterventionRate)
		}
		if crit.MinConstitutionalScore < 0 || crit.MinConstitutionalScore > 1 {
			return fmt.Errorf("tier %s: min_constitutional_score must be in [0,1], got %v", tier, crit.MinConstitutionalScore)
		}
	}
	return nil
}

// GetCriteria implements the criteria store contract over the static table.
func (t *CriteriaTable) GetCriteria(_ context.Context, target trust.Maturity) (*trust.GraduationCriteria, error) {
	crit, ok := t.Tiers[target]
	if !ok {
		return nil, fmt.Errorf("criteria for tier %s: %w", target, storage.ErrNotFound)
	}
	out := crit
	return &out, nil
}
