// Package testutil provides in-memory stores and stub collaborators for
// governance engine tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agentmesh/govcore/govengine/monitor"
	"github.com/agentmesh/govcore/govengine/storage"
	"github.com/agentmesh/govcore/govengine/trust"
)

// ===== IN-MEMORY STORE =====

// MemoryStore is an in-memory implementation of the storage interfaces.
// Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	agents   map[string]*trust.Agent
	episodes map[string]*trust.Episode
	segments map[string][]trust.EpisodeSegment
	packages map[string]*trust.PackageRegistryEntry
	criteria map[trust.Maturity]*trust.GraduationCriteria
	monitors map[string]*monitor.ConditionMonitor
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:   map[string]*trust.Agent{},
		episodes: map[string]*trust.Episode{},
		segments: map[string][]trust.EpisodeSegment{},
		packages: map[string]*trust.PackageRegistryEntry{},
		criteria: map[trust.Maturity]*trust.GraduationCriteria{},
		monitors: map[string]*monitor.ConditionMonitor{},
	}
}

func (s *MemoryStore) GetAgent(_ context.Context, id string) (*trust.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, storage.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) PutAgent(_ context.Context, agent *trust.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *agent
	s.agents[agent.ID] = &cp
	return nil
}

func (s *MemoryStore) GetEpisode(_ context.Context, id string) (*trust.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.episodes[id]
	if !ok {
		return nil, fmt.Errorf("episode %s: %w", id, storage.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

// ListEpisodes returns the agent's episodes most recent first, honoring
// the filter.
func (s *MemoryStore) ListEpisodes(_ context.Context, agentID string, filter storage.EpisodeFilter) ([]*trust.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*trust.Episode
	for _, e := range s.episodes {
		if e.AgentID != agentID {
			continue
		}
		if filter.Maturity != "" && e.MaturityAtTime != filter.Maturity {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) GetSegments(_ context.Context, episodeID string) ([]trust.EpisodeSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	segs := s.segments[episodeID]
	out := make([]trust.EpisodeSegment, len(segs))
	copy(out, segs)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) GetPackage(_ context.Context, name, version string) (*trust.PackageRegistryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.packages[name+":"+version]
	if !ok {
		return nil, fmt.Errorf("package %s:%s: %w", name, version, storage.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) PutPackage(_ context.Context, entry *trust.PackageRegistryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.packages[entry.Key()] = &cp
	return nil
}

func (s *MemoryStore) GetCriteria(_ context.Context, target trust.Maturity) (*trust.GraduationCriteria, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.criteria[target]
	if !ok {
		return nil, fmt.Errorf("criteria for tier %s: %w", target, storage.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) GetMonitor(_ context.Context, id string) (*monitor.ConditionMonitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.monitors[id]
	if !ok {
		return nil, fmt.Errorf("monitor %s: %w", id, storage.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMonitors(_ context.Context, onlyEnabled bool) ([]*monitor.ConditionMonitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*monitor.ConditionMonitor
	for _, m := range s.monitors {
		if onlyEnabled && !m.Enabled {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) PutMonitor(_ context.Context, m *monitor.ConditionMonitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.monitors[m.ID] = &cp
	return nil
}

// ===== SEEDING HELPERS =====

// AddAgent seeds an agent record.
func (s *MemoryStore) AddAgent(agent *trust.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *agent
	s.agents[agent.ID] = &cp
}

// AddEpisode seeds an episode record.
func (s *MemoryStore) AddEpisode(e *trust.Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.episodes[e.ID] = &cp
}

// AddSegment appends a segment to an episode's history.
func (s *MemoryStore) AddSegment(seg trust.EpisodeSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[seg.EpisodeID] = append(s.segments[seg.EpisodeID], seg)
}

// AddCriteria seeds graduation criteria for a tier.
func (s *MemoryStore) AddCriteria(c *trust.GraduationCriteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.criteria[c.TargetMaturity] = &cp
}

// AddMonitor seeds a condition monitor definition.
func (s *MemoryStore) AddMonitor(m *monitor.ConditionMonitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.monitors[m.ID] = &cp
}

// ===== CAPTURING LOGGER =====

// LogEntry is one captured log call.
type LogEntry struct {
	Level   string
	Message string
	Fields  []any
}

// CapturingLogger records log calls for assertion. Safe for concurrent
// use.
type CapturingLogger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

// NewCapturingLogger creates an empty CapturingLogger.
func NewCapturingLogger() *CapturingLogger {
	return &CapturingLogger{}
}

func (l *CapturingLogger) record(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Message: msg, Fields: kv})
}

func (l *CapturingLogger) Debug(msg string, kv ...any) { l.record("debug", msg, kv) }
func (l *CapturingLogger) Info(msg string, kv ...any)  { l.record("info", msg, kv) }
func (l *CapturingLogger) Warn(msg string, kv ...any)  { l.record("warn", msg, kv) }
func (l *CapturingLogger) Error(msg string, kv ...any) { l.record("error", msg, kv) }

// Messages returns the captured messages at the given level.
func (l *CapturingLogger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.Entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}
