// Package storage defines the persistence collaborator consumed by the
// governance engine, plus a SQLite-backed implementation.
//
// "No data" is a distinct variant: lookups return ErrNotFound rather than
// nil records, so callers never have to shape-probe results.
package storage

import (
	"context"
	"errors"

	"github.com/agentmesh/govcore/govengine/monitor"
	"github.com/agentmesh/govcore/govengine/trust"
)

// ErrNotFound is returned when a requested record does not exist.
// Check with errors.Is.
var ErrNotFound = errors.New("record not found")

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// EpisodeFilter narrows ListEpisodes. Zero-valued fields apply no
// constraint.
type EpisodeFilter struct {
	Maturity trust.Maturity
	Status   trust.EpisodeStatus
	Limit    int
}

// AgentStore provides agent record persistence.
type AgentStore interface {
	GetAgent(ctx context.Context, id string) (*trust.Agent, error)
	PutAgent(ctx context.Context, agent *trust.Agent) error
}

// EpisodeStore provides episodic history reads. Episodes are returned most
// recent first.
type EpisodeStore interface {
	GetEpisode(ctx context.Context, id string) (*trust.Episode, error)
	ListEpisodes(ctx context.Context, agentID string, filter EpisodeFilter) ([]*trust.Episode, error)
	GetSegments(ctx context.Context, episodeID string) ([]trust.EpisodeSegment, error)
}

// RegistryStore provides package registry persistence. Mutation happens
// only through the permission engine's governance operations.
type RegistryStore interface {
	GetPackage(ctx context.Context, name, version string) (*trust.PackageRegistryEntry, error)
	PutPackage(ctx context.Context, entry *trust.PackageRegistryEntry) error
}

// CriteriaStore resolves the graduation criteria for a target tier.
type CriteriaStore interface {
	GetCriteria(ctx context.Context, target trust.Maturity) (*trust.GraduationCriteria, error)
}

// MonitorStore provides condition monitor definitions.
type MonitorStore interface {
	GetMonitor(ctx context.Context, id string) (*monitor.ConditionMonitor, error)
	ListMonitors(ctx context.Context, onlyEnabled bool) ([]*monitor.ConditionMonitor, error)
	PutMonitor(ctx context.Context, m *monitor.ConditionMonitor) error
}
