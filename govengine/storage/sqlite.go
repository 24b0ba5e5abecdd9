package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentmesh/govcore/govengine/monitor"
	"github.com/agentmesh/govcore/govengine/trust"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id               TEXT PRIMARY KEY,
	maturity         TEXT NOT NULL,
	confidence_score REAL NOT NULL DEFAULT 0,
	metadata         TEXT NOT NULL DEFAULT '{}',
	updated_at       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS episodes (
	id                       TEXT PRIMARY KEY,
	agent_id                 TEXT NOT NULL,
	maturity_at_time         TEXT NOT NULL,
	status                   TEXT NOT NULL,
	human_intervention_count INTEGER NOT NULL DEFAULT 0,
	constitutional_score     REAL,
	metadata                 TEXT NOT NULL DEFAULT '{}',
	started_at               INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_episodes_agent ON episodes(agent_id, started_at DESC);
CREATE TABLE IF NOT EXISTS episode_segments (
	id         TEXT PRIMARY KEY,
	episode_id TEXT NOT NULL,
	position   INTEGER NOT NULL,
	payload    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_segments_episode ON episode_segments(episode_id, position);
CREATE TABLE IF NOT EXISTS package_registry (
	name         TEXT NOT NULL,
	version      TEXT NOT NULL,
	status       TEXT NOT NULL,
	min_maturity TEXT NOT NULL DEFAULT 'intern',
	ban_reason   TEXT NOT NULL DEFAULT '',
	approved_by  TEXT NOT NULL DEFAULT '',
	approved_at  INTEGER,
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (name, version)
);
CREATE TABLE IF NOT EXISTS graduation_criteria (
	target_maturity          TEXT PRIMARY KEY,
	min_episodes             INTEGER NOT NULL,
	max_intervention_rate    REAL NOT NULL,
	min_constitutional_score REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS condition_monitors (
	id                   TEXT PRIMARY KEY,
	agent_id             TEXT NOT NULL,
	name                 TEXT NOT NULL,
	condition_type       TEXT NOT NULL,
	threshold_config     TEXT NOT NULL DEFAULT '{}',
	composite_logic      TEXT NOT NULL DEFAULT '',
	composite_conditions TEXT NOT NULL DEFAULT '[]',
	enabled              INTEGER NOT NULL DEFAULT 1
);
`

// Store is the SQLite-backed implementation of every persistence
// interface in this package, plus monitor.QueryRunner for database_query
// monitors.
type Store struct {
	db *sql.DB
}

// Open opens (and bootstraps) a SQLite store at the given path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func encodeMeta(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(encoded), nil
}

func decodeMeta(v string) (map[string]any, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(v), &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}

// =============================================================================
// AgentStore
// =============================================================================

// GetAgent implements AgentStore.
func (s *Store) GetAgent(ctx context.Context, id string) (*trust.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, maturity, confidence_score, metadata, updated_at FROM agents WHERE id = ?`, id)

	var (
		agent     trust.Agent
		meta      string
		updatedAt int64
	)
	if err := row.Scan(&agent.ID, &agent.Maturity, &agent.ConfidenceScore, &meta, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("agent %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	decoded, err := decodeMeta(meta)
	if err != nil {
		return nil, err
	}
	agent.Metadata = decoded
	agent.UpdatedAt = fromMillis(updatedAt)
	return &agent, nil
}

// PutAgent implements AgentStore.
func (s *Store) PutAgent(ctx context.Context, agent *trust.Agent) error {
	meta, err := encodeMeta(agent.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (id, maturity, confidence_score, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			maturity = excluded.maturity,
			confidence_score = excluded.confidence_score,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		agent.ID, string(agent.Maturity), agent.ConfidenceScore, meta, toMillis(agent.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put agent: %w", err)
	}
	return nil
}

// =============================================================================
// EpisodeStore
// =============================================================================

func scanEpisode(scan func(dest ...any) error) (*trust.Episode, error) {
	var (
		ep        trust.Episode
		score     sql.NullFloat64
		meta      string
		startedAt int64
	)
	if err := scan(&ep.ID, &ep.AgentID, &ep.MaturityAtTime, &ep.Status,
		&ep.HumanInterventionCount, &score, &meta, &startedAt); err != nil {
		return nil, err
	}
	if score.Valid {
		v := score.Float64
		ep.ConstitutionalScore = &v
	}
	decoded, err := decodeMeta(meta)
	if err != nil {
		return nil, err
	}
	ep.Metadata = decoded
	ep.StartedAt = fromMillis(startedAt)
	return &ep, nil
}

const episodeColumns = `id, agent_id, maturity_at_time, status, human_intervention_count, constitutional_score, metadata, started_at`

// GetEpisode implements EpisodeStore.
func (s *Store) GetEpisode(ctx context.Context, id string) (*trust.Episode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("episode %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	return ep, nil
}

// ListEpisodes implements EpisodeStore. Results are most recent first.
func (s *Store) ListEpisodes(ctx context.Context, agentID string, filter EpisodeFilter) ([]*trust.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE agent_id = ?`
	args := []any{agentID}
	if filter.Maturity != "" {
		query += ` AND maturity_at_time = ?`
		args = append(args, string(filter.Maturity))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*trust.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// GetSegments implements EpisodeStore. Segments come back in position
// order.
func (s *Store) GetSegments(ctx context.Context, episodeID string) ([]trust.EpisodeSegment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, episode_id, position, payload FROM episode_segments
		 WHERE episode_id = ? ORDER BY position ASC`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []trust.EpisodeSegment
	for rows.Next() {
		var (
			seg     trust.EpisodeSegment
			payload string
		)
		if err := rows.Scan(&seg.ID, &seg.EpisodeID, &seg.Position, &payload); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		decoded, err := decodeMeta(payload)
		if err != nil {
			return nil, err
		}
		seg.Payload = decoded
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// PutEpisode stores an episode record, assigning an ID if empty.
func (s *Store) PutEpisode(ctx context.Context, ep *trust.Episode) error {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	meta, err := encodeMeta(ep.Metadata)
	if err != nil {
		return err
	}
	var score any
	if ep.ConstitutionalScore != nil {
		score = *ep.ConstitutionalScore
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episodes (`+episodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			human_intervention_count = excluded.human_intervention_count,
			constitutional_score = excluded.constitutional_score,
			metadata = excluded.metadata`,
		ep.ID, ep.AgentID, string(ep.MaturityAtTime), string(ep.Status),
		ep.HumanInterventionCount, score, meta, toMillis(ep.StartedAt))
	if err != nil {
		return fmt.Errorf("put episode: %w", err)
	}
	return nil
}

// PutSegment stores an episode segment, assigning an ID if empty.
func (s *Store) PutSegment(ctx context.Context, seg *trust.EpisodeSegment) error {
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	payload, err := encodeMeta(seg.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episode_segments (id, episode_id, position, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
		seg.ID, seg.EpisodeID, seg.Position, payload)
	if err != nil {
		return fmt.Errorf("put segment: %w", err)
	}
	return nil
}

// =============================================================================
// RegistryStore
// =============================================================================

// GetPackage implements RegistryStore.
func (s *Store) GetPackage(ctx context.Context, name, version string) (*trust.PackageRegistryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, version, status, min_maturity, ban_reason, approved_by, approved_at, updated_at
		FROM package_registry WHERE name = ? AND version = ?`, name, version)

	var (
		entry      trust.PackageRegistryEntry
		approvedAt sql.NullInt64
		updatedAt  int64
	)
	if err := row.Scan(&entry.Name, &entry.Version, &entry.Status, &entry.MinMaturity,
		&entry.BanReason, &entry.ApprovedBy, &approvedAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("package %s:%s: %w", name, version, ErrNotFound)
		}
		return nil, fmt.Errorf("scan package: %w", err)
	}
	if approvedAt.Valid {
		t := fromMillis(approvedAt.Int64)
		entry.ApprovedAt = &t
	}
	entry.UpdatedAt = fromMillis(updatedAt)
	return &entry, nil
}

// PutPackage implements RegistryStore.
func (s *Store) PutPackage(ctx context.Context, entry *trust.PackageRegistryEntry) error {
	var approvedAt any
	if entry.ApprovedAt != nil {
		approvedAt = toMillis(*entry.ApprovedAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO package_registry (name, version, status, min_maturity, ban_reason, approved_by, approved_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, version) DO UPDATE SET
			status = excluded.status,
			min_maturity = excluded.min_maturity,
			ban_reason = excluded.ban_reason,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			updated_at = excluded.updated_at`,
		entry.Name, entry.Version, string(entry.Status), string(entry.MinMaturity),
		entry.BanReason, entry.ApprovedBy, approvedAt, toMillis(entry.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put package: %w", err)
	}
	return nil
}

// =============================================================================
// CriteriaStore
// =============================================================================

// GetCriteria implements CriteriaStore.
func (s *Store) GetCriteria(ctx context.Context, target trust.Maturity) (*trust.GraduationCriteria, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT target_maturity, min_episodes, max_intervention_rate, min_constitutional_score
		FROM graduation_criteria WHERE target_maturity = ?`, string(target))

	var crit trust.GraduationCriteria
	if err := row.Scan(&crit.TargetMaturity, &crit.MinEpisodes,
		&crit.MaxInterventionRate, &crit.MinConstitutionalScore); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("graduation criteria %q: %w", target, ErrNotFound)
		}
		return nil, fmt.Errorf("scan criteria: %w", err)
	}
	return &crit, nil
}

// PutCriteria stores the criteria row for a target tier.
func (s *Store) PutCriteria(ctx context.Context, crit *trust.GraduationCriteria) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graduation_criteria (target_maturity, min_episodes, max_intervention_rate, min_constitutional_score)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(target_maturity) DO UPDATE SET
			min_episodes = excluded.min_episodes,
			max_intervention_rate = excluded.max_intervention_rate,
			min_constitutional_score = excluded.min_constitutional_score`,
		string(crit.TargetMaturity), crit.MinEpisodes, crit.MaxInterventionRate, crit.MinConstitutionalScore)
	if err != nil {
		return fmt.Errorf("put criteria: %w", err)
	}
	return nil
}

// =============================================================================
// MonitorStore
// =============================================================================

func scanMonitor(scan func(dest ...any) error) (*monitor.ConditionMonitor, error) {
	var (
		m          monitor.ConditionMonitor
		thresholds string
		composites string
		enabled    int
	)
	if err := scan(&m.ID, &m.AgentID, &m.Name, &m.Type, &thresholds,
		&m.CompositeLogic, &composites, &enabled); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(thresholds), &m.ThresholdConfig); err != nil {
		return nil, fmt.Errorf("unmarshal threshold_config: %w", err)
	}
	if err := json.Unmarshal([]byte(composites), &m.CompositeConditions); err != nil {
		return nil, fmt.Errorf("unmarshal composite_conditions: %w", err)
	}
	m.Enabled = enabled != 0
	return &m, nil
}

// GetMonitor implements MonitorStore.
func (s *Store) GetMonitor(ctx context.Context, id string) (*monitor.ConditionMonitor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, name, condition_type, threshold_config, composite_logic, composite_conditions, enabled
		FROM condition_monitors WHERE id = ?`, id)
	m, err := scanMonitor(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("monitor %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scan monitor: %w", err)
	}
	return m, nil
}

// ListMonitors implements MonitorStore.
func (s *Store) ListMonitors(ctx context.Context, onlyEnabled bool) ([]*monitor.ConditionMonitor, error) {
	query := `SELECT id, agent_id, name, condition_type, threshold_config, composite_logic, composite_conditions, enabled
		FROM condition_monitors`
	if onlyEnabled {
		query += ` WHERE enabled = 1`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	defer rows.Close()

	var monitors []*monitor.ConditionMonitor
	for rows.Next() {
		m, err := scanMonitor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		monitors = append(monitors, m)
	}
	return monitors, rows.Err()
}

// PutMonitor implements MonitorStore, assigning an ID if empty.
func (s *Store) PutMonitor(ctx context.Context, m *monitor.ConditionMonitor) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	thresholds, err := json.Marshal(m.ThresholdConfig)
	if err != nil {
		return fmt.Errorf("marshal threshold_config: %w", err)
	}
	if m.ThresholdConfig == nil {
		thresholds = []byte("{}")
	}
	composites, err := json.Marshal(m.CompositeConditions)
	if err != nil {
		return fmt.Errorf("marshal composite_conditions: %w", err)
	}
	if m.CompositeConditions == nil {
		composites = []byte("[]")
	}
	enabled := 0
	if m.Enabled {
		enabled = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO condition_monitors (id, agent_id, name, condition_type, threshold_config, composite_logic, composite_conditions, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			condition_type = excluded.condition_type,
			threshold_config = excluded.threshold_config,
			composite_logic = excluded.composite_logic,
			composite_conditions = excluded.composite_conditions,
			enabled = excluded.enabled`,
		m.ID, m.AgentID, m.Name, string(m.Type), string(thresholds),
		string(m.CompositeLogic), string(composites), enabled)
	if err != nil {
		return fmt.Errorf("put monitor: %w", err)
	}
	return nil
}

// =============================================================================
// QueryRunner
// =============================================================================

// Scalar implements monitor.QueryRunner by executing the raw query and
// scanning its single result cell as a float. The query is executed as
// given; configuring database_query monitors is a privileged operation.
func (s *Store) Scalar(ctx context.Context, query string) (float64, error) {
	var v sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("query returned no rows")
		}
		return 0, fmt.Errorf("execute query: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return v.Float64, nil
}
