// Package observability provides Prometheus metrics instrumentation for the govengine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// PERMISSION METRICS
// =============================================================================

var (
	permissionChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govcore_permission_checks_total",
			Help: "Total number of package permission checks",
		},
		[]string{"decision", "source"}, // decision: allow, deny; source: cache, registry
	)

	permissionCheckDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "govcore_permission_check_duration_seconds",
			Help:    "Package permission check duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"source"},
	)

	cacheClearsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "govcore_decision_cache_clears_total",
			Help: "Total number of whole-cache invalidations after registry mutations",
		},
	)
)

// =============================================================================
// PROMOTION PATH METRICS
// =============================================================================

var (
	readinessEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govcore_readiness_evaluations_total",
			Help: "Total number of promotion readiness evaluations",
		},
		[]string{"target", "ready"}, // ready: true, false
	)

	examRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govcore_exam_runs_total",
			Help: "Total number of sandbox graduation exam runs",
		},
		[]string{"passed"}, // passed: true, false
	)

	promotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govcore_promotions_total",
			Help: "Total number of committed maturity promotions",
		},
		[]string{"tier"},
	)
)

// =============================================================================
// MONITOR METRICS
// =============================================================================

var (
	monitorChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govcore_monitor_checks_total",
			Help: "Total number of condition monitor evaluations",
		},
		[]string{"condition_type", "triggered"}, // triggered: true, false
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// RecordPermissionCheck records one permission check outcome.
// source is "cache" for cache hits, "registry" otherwise.
func RecordPermissionCheck(allowed bool, source string, durationMS float64) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	permissionChecksTotal.WithLabelValues(decision, source).Inc()
	permissionCheckDurationSeconds.WithLabelValues(source).Observe(durationMS / 1000.0)
}

// RecordCacheClear records a whole-cache invalidation.
func RecordCacheClear() {
	cacheClearsTotal.Inc()
}

// RecordReadinessEvaluation records a readiness evaluation outcome.
func RecordReadinessEvaluation(target string, ready bool) {
	readinessEvaluationsTotal.WithLabelValues(target, boolLabel(ready)).Inc()
}

// RecordExamRun records a sandbox exam outcome.
func RecordExamRun(passed bool) {
	examRunsTotal.WithLabelValues(boolLabel(passed)).Inc()
}

// RecordPromotion records a committed promotion into a tier.
func RecordPromotion(tier string) {
	promotionsTotal.WithLabelValues(tier).Inc()
}

// RecordMonitorCheck records a condition monitor evaluation.
func RecordMonitorCheck(conditionType string, triggered bool) {
	monitorChecksTotal.WithLabelValues(conditionType, boolLabel(triggered)).Inc()
}
