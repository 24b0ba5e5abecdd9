// Package trust defines the core governance data model: agent maturity
// tiers, episodic history records, and the package registry entries that
// gate what an agent may execute.
package trust

import (
	"fmt"
	"strings"
)

// Maturity represents an agent's trust tier. Tiers form a strict total
// order: student < intern < supervised < autonomous.
type Maturity string

const (
	// MaturityStudent is the lowest trust tier. Students may not run
	// packages directly.
	MaturityStudent Maturity = "student"
	// MaturityIntern is the first tier allowed to run approved packages.
	MaturityIntern Maturity = "intern"
	// MaturitySupervised indicates the agent operates with spot-check
	// human oversight.
	MaturitySupervised Maturity = "supervised"
	// MaturityAutonomous is the highest trust tier.
	MaturityAutonomous Maturity = "autonomous"
)

// AllMaturities returns the tiers in ascending trust order.
func AllMaturities() []Maturity {
	return []Maturity{MaturityStudent, MaturityIntern, MaturitySupervised, MaturityAutonomous}
}

// Rank returns the position of the tier in the trust ordering.
// Unrecognized strings rank as student (0). Whether that fallback is an
// intentional safe default is an open product question; callers that need
// strict validation should use ParseMaturity instead.
func (m Maturity) Rank() int {
	switch Maturity(strings.ToLower(strings.TrimSpace(string(m)))) {
	case MaturityAutonomous:
		return 3
	case MaturitySupervised:
		return 2
	case MaturityIntern:
		return 1
	default:
		return 0
	}
}

// Valid reports whether m names a recognized tier (case-insensitive).
func (m Maturity) Valid() bool {
	switch Maturity(strings.ToLower(strings.TrimSpace(string(m)))) {
	case MaturityStudent, MaturityIntern, MaturitySupervised, MaturityAutonomous:
		return true
	default:
		return false
	}
}

// ParseMaturity parses a tier name strictly. Unlike Rank, unrecognized
// strings are an error rather than a student fallback.
func ParseMaturity(s string) (Maturity, error) {
	m := Maturity(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", NewInvalidInput("maturity", s)
	}
	return m, nil
}

// CompareMaturity compares two tier names by rank. The result is negative
// if a ranks below b, zero if equal, positive if above. Comparison is
// case-insensitive and unrecognized names rank as student.
func CompareMaturity(a, b string) int {
	return Maturity(a).Rank() - Maturity(b).Rank()
}

// PackageStatus is the approval state of a package registry entry.
type PackageStatus string

const (
	// PackageUntrusted means the package has never been reviewed.
	PackageUntrusted PackageStatus = "untrusted"
	// PackageActive means the package is approved for agents at or above
	// the entry's minimum maturity.
	PackageActive PackageStatus = "active"
	// PackageBanned denies every maturity tier unconditionally.
	PackageBanned PackageStatus = "banned"
	// PackagePending means an approval request is awaiting review.
	PackagePending PackageStatus = "pending"
)

// EpisodeStatus is the lifecycle state of an episode.
type EpisodeStatus string

const (
	EpisodeInProgress EpisodeStatus = "in_progress"
	EpisodeCompleted  EpisodeStatus = "completed"
	EpisodeFailed     EpisodeStatus = "failed"
	EpisodeAbandoned  EpisodeStatus = "abandoned"
)

// String implements fmt.Stringer.
func (m Maturity) String() string { return string(m) }

var _ fmt.Stringer = MaturityStudent
