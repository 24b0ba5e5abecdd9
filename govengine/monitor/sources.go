package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// Counter Source
// =============================================================================

type counterKey struct {
	agentID string
	metric  string
}

// CounterSource is a simple in-process metric source for volume-style
// metrics (inbox message counts, task backlog depth). Feeders call Add or
// Set; monitors read the current value. The window argument is ignored -
// counters are point-in-time gauges.
type CounterSource struct {
	mu     sync.RWMutex
	counts map[counterKey]float64
}

// NewCounterSource creates an empty CounterSource.
func NewCounterSource() *CounterSource {
	return &CounterSource{counts: make(map[counterKey]float64)}
}

// Add increments the metric for an agent by delta.
func (c *CounterSource) Add(agentID, metric string, delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[counterKey{agentID, metric}] += delta
}

// Set overwrites the metric value for an agent.
func (c *CounterSource) Set(agentID, metric string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[counterKey{agentID, metric}] = value
}

// Value implements MetricSource. A metric never recorded reads as zero.
func (c *CounterSource) Value(_ context.Context, agentID, metric string, _ time.Duration) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[counterKey{agentID, metric}], nil
}

// =============================================================================
// Rolling Stats
// =============================================================================

// Metrics exposed by RollingStats.
const (
	MetricErrorRate    = "error_rate"
	MetricAvgLatencyMS = "avg_latency_ms"
	MetricRequestCount = "request_count"
)

type statsBucket struct {
	count     int
	errors    int
	latencyMS float64
}

// RollingStats aggregates recent request outcomes into a sliding window so
// api_metrics monitors can read a rolling error rate or average latency.
// The window is divided into sub-buckets keyed by time; buckets older than
// the window are pruned on every write.
//
// Stats are process-wide: the agentID passed to Value is ignored.
type RollingStats struct {
	windowSeconds int
	bucketCount   int
	buckets       map[int64]*statsBucket
	mu            sync.Mutex
	now           func() time.Time
}

// NewRollingStats creates a RollingStats covering the given window.
func NewRollingStats(window time.Duration) *RollingStats {
	seconds := int(window.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return &RollingStats{
		windowSeconds: seconds,
		bucketCount:   10,
		buckets:       make(map[int64]*statsBucket),
		now:           time.Now,
	}
}

// Record adds one request outcome to the window.
func (s *RollingStats) Record(latency time.Duration, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := float64(s.now().UnixNano()) / 1e9
	bucketSize := float64(s.windowSeconds) / float64(s.bucketCount)
	current := int64(ts / bucketSize)

	// Prune buckets that fell out of the window. The live window is the
	// current bucket plus the bucketCount-1 before it.
	minBucket := current - int64(s.bucketCount) + 1
	for b := range s.buckets {
		if b < minBucket {
			delete(s.buckets, b)
		}
	}

	bucket := s.buckets[current]
	if bucket == nil {
		bucket = &statsBucket{}
		s.buckets[current] = bucket
	}
	bucket.count++
	bucket.latencyMS += float64(latency.Milliseconds())
	if failed {
		bucket.errors++
	}
}

// aggregate sums live buckets under the lock.
func (s *RollingStats) aggregate() (count, errors int, latencyMS float64) {
	ts := float64(s.now().UnixNano()) / 1e9
	bucketSize := float64(s.windowSeconds) / float64(s.bucketCount)
	minBucket := int64(ts/bucketSize) - int64(s.bucketCount) + 1

	for b, bucket := range s.buckets {
		if b >= minBucket {
			count += bucket.count
			errors += bucket.errors
			latencyMS += bucket.latencyMS
		}
	}
	return count, errors, latencyMS
}

// Value implements MetricSource for error_rate, avg_latency_ms and
// request_count. The monitor window argument is advisory only; the source
// answers over its own configured window.
func (s *RollingStats) Value(_ context.Context, _ /* agentID */, metric string, _ time.Duration) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, errors, latencyMS := s.aggregate()
	switch metric {
	case MetricErrorRate:
		if count == 0 {
			return 0, nil
		}
		return float64(errors) / float64(count), nil
	case MetricAvgLatencyMS:
		if count == 0 {
			return 0, nil
		}
		return latencyMS / float64(count), nil
	case MetricRequestCount:
		return float64(count), nil
	default:
		return 0, fmt.Errorf("unknown metric %q", metric)
	}
}
