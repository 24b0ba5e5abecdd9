package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterSource(t *testing.T) {
	c := NewCounterSource()
	ctx := context.Background()

	v, err := c.Value(ctx, "agent-1", "unread_count", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v, "never-recorded metric reads as zero")

	c.Add("agent-1", "unread_count", 3)
	c.Add("agent-1", "unread_count", 2)
	v, err = c.Value(ctx, "agent-1", "unread_count", 0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	c.Set("agent-1", "unread_count", 1)
	v, _ = c.Value(ctx, "agent-1", "unread_count", 0)
	assert.Equal(t, 1.0, v)

	// Counters are agent-scoped.
	v, _ = c.Value(ctx, "agent-2", "unread_count", 0)
	assert.Equal(t, 0.0, v)
}

func TestRollingStatsMetrics(t *testing.T) {
	s := NewRollingStats(60 * time.Second)
	base := time.Unix(1_000_000, 0)
	s.now = func() time.Time { return base }

	s.Record(100*time.Millisecond, false)
	s.Record(200*time.Millisecond, true)
	s.Record(300*time.Millisecond, false)
	s.Record(400*time.Millisecond, true)

	ctx := context.Background()
	rate, err := s.Value(ctx, "", MetricErrorRate, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, rate)

	latency, err := s.Value(ctx, "", MetricAvgLatencyMS, 0)
	require.NoError(t, err)
	assert.Equal(t, 250.0, latency)

	count, err := s.Value(ctx, "", MetricRequestCount, 0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, count)
}

func TestRollingStatsEmptyWindow(t *testing.T) {
	s := NewRollingStats(60 * time.Second)
	ctx := context.Background()

	rate, err := s.Value(ctx, "", MetricErrorRate, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rate)

	latency, err := s.Value(ctx, "", MetricAvgLatencyMS, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, latency)
}

func TestRollingStatsExpiry(t *testing.T) {
	s := NewRollingStats(60 * time.Second)
	current := time.Unix(1_000_000, 0)
	s.now = func() time.Time { return current }

	s.Record(100*time.Millisecond, true)

	count, err := s.Value(context.Background(), "", MetricRequestCount, 0)
	require.NoError(t, err)
	require.Equal(t, 1.0, count)

	// Advance past the whole window; the recorded outcome expires.
	current = current.Add(2 * time.Minute)
	count, err = s.Value(context.Background(), "", MetricRequestCount, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, count)
}

func TestRollingStatsWindowBoundary(t *testing.T) {
	// 60s window over 10 buckets: an outcome stays visible through the
	// last in-window bucket and expires once a full window has elapsed.
	s := NewRollingStats(60 * time.Second)
	current := time.Unix(1_000_000, 0)
	s.now = func() time.Time { return current }

	s.Record(100*time.Millisecond, false)

	current = current.Add(54 * time.Second)
	count, err := s.Value(context.Background(), "", MetricRequestCount, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, count, "outcome inside the window must still count")

	current = current.Add(6 * time.Second)
	count, err = s.Value(context.Background(), "", MetricRequestCount, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, count, "outcome a full window old must not count")
}

func TestRollingStatsUnknownMetric(t *testing.T) {
	s := NewRollingStats(time.Minute)
	_, err := s.Value(context.Background(), "", "p99_latency", 0)
	require.Error(t, err)
}
