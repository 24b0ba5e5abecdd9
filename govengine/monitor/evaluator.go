package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentmesh/govcore/govengine/observability"
	"github.com/agentmesh/govcore/govengine/typeutil"
	"github.com/google/uuid"
)

// Logger is the interface for logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MetricSource supplies a current numeric value for a named metric scoped
// to an agent. The window is advisory; counter-style sources may ignore it.
type MetricSource interface {
	Value(ctx context.Context, agentID, metric string, window time.Duration) (float64, error)
}

// QueryRunner executes an operator-supplied raw query and returns its
// scalar result. This is a privileged capability: the engine does not
// sanitize the query, and access to configure database_query monitors must
// be gated upstream by an authorization boundary.
type QueryRunner interface {
	Scalar(ctx context.Context, query string) (float64, error)
}

// MaxCompositeDepth bounds composite recursion. A self-referential
// composite definition would otherwise recurse without limit.
const MaxCompositeDepth = 8

// Evaluator dispatches condition checks by monitor type. Check calls on
// distinct monitors are independent and may run fully in parallel; within
// one composite tree recursion is sequential.
type Evaluator struct {
	inbox   MetricSource
	tasks   MetricSource
	api     MetricSource
	queries QueryRunner
	logger  Logger
}

// NewEvaluator creates an Evaluator. Any source may be nil; monitors
// needing a missing source evaluate to untriggered.
func NewEvaluator(inbox, tasks, api MetricSource, queries QueryRunner, logger Logger) *Evaluator {
	return &Evaluator{
		inbox:   inbox,
		tasks:   tasks,
		api:     api,
		queries: queries,
		logger:  logger,
	}
}

// Check evaluates a monitor and returns its result. It never returns an
// error: malformed definitions and source failures degrade to
// triggered=false with a detail entry.
func (e *Evaluator) Check(ctx context.Context, m *ConditionMonitor) *ConditionResult {
	result := e.check(ctx, m, 0)
	observability.RecordMonitorCheck(string(m.Type), result.Triggered)
	return result
}

func (e *Evaluator) check(ctx context.Context, m *ConditionMonitor, depth int) *ConditionResult {
	switch m.Type {
	case ConditionInboxVolume:
		return e.checkThreshold(ctx, m, e.inbox)
	case ConditionTaskBacklog:
		return e.checkThreshold(ctx, m, e.tasks)
	case ConditionAPIMetrics:
		return e.checkThreshold(ctx, m, e.api)
	case ConditionDatabaseQuery:
		return e.checkQuery(ctx, m)
	case ConditionComposite:
		return e.checkComposite(ctx, m, depth)
	default:
		e.logger.Warn("monitor_unknown_condition_type",
			"monitor_id", m.ID,
			"condition_type", string(m.Type),
		)
		return untriggered("", map[string]any{
			"error": fmt.Sprintf("unknown condition type: %s", m.Type),
		})
	}
}

func (e *Evaluator) checkThreshold(ctx context.Context, m *ConditionMonitor, source MetricSource) *ConditionResult {
	th := parseThreshold(m.ThresholdConfig)
	if th.metric == "" {
		e.logger.Warn("monitor_missing_metric", "monitor_id", m.ID, "name", m.Name)
		return untriggered("", map[string]any{"error": "threshold_config.metric is required"})
	}
	if source == nil {
		e.logger.Warn("monitor_no_metric_source",
			"monitor_id", m.ID,
			"condition_type", string(m.Type),
		)
		return untriggered(th.metric, map[string]any{"error": "no metric source configured"})
	}

	current, err := source.Value(ctx, m.AgentID, th.metric, th.window)
	if err != nil {
		e.logger.Warn("monitor_metric_unavailable",
			"monitor_id", m.ID,
			"metric", th.metric,
			"error", err.Error(),
		)
		return untriggered(th.metric, map[string]any{"error": err.Error()})
	}

	triggered, known := compare(current, th.operator, th.value)
	if !known {
		e.logger.Warn("monitor_unknown_operator",
			"monitor_id", m.ID,
			"operator", th.operator,
		)
		return untriggered(th.metric, map[string]any{
			"error": fmt.Sprintf("unknown operator: %q", th.operator),
			"value": current,
		})
	}

	return &ConditionResult{
		Triggered:  triggered,
		Value:      current,
		MetricName: th.metric,
		Details: map[string]any{
			"operator":  th.operator,
			"threshold": th.value,
		},
	}
}

func (e *Evaluator) checkQuery(ctx context.Context, m *ConditionMonitor) *ConditionResult {
	query := typeutil.SafeStringDefault(m.ThresholdConfig["query"], "")
	metric := typeutil.SafeStringDefault(m.ThresholdConfig["metric"], "query_result")
	operator := typeutil.SafeStringDefault(m.ThresholdConfig["operator"], "")
	bound := typeutil.SafeFloat64Default(m.ThresholdConfig["value"], 0)

	if strings.TrimSpace(query) == "" {
		e.logger.Warn("monitor_missing_query", "monitor_id", m.ID)
		return untriggered(metric, map[string]any{"error": "threshold_config.query is required"})
	}
	if e.queries == nil {
		e.logger.Warn("monitor_no_query_runner", "monitor_id", m.ID)
		return untriggered(metric, map[string]any{"error": "no query runner configured"})
	}

	value, err := e.queries.Scalar(ctx, query)
	if err != nil {
		e.logger.Warn("monitor_query_failed",
			"monitor_id", m.ID,
			"error", err.Error(),
		)
		return untriggered(metric, map[string]any{"error": err.Error()})
	}

	triggered, known := compare(value, operator, bound)
	if !known {
		e.logger.Warn("monitor_unknown_operator", "monitor_id", m.ID, "operator", operator)
		return untriggered(metric, map[string]any{
			"error": fmt.Sprintf("unknown operator: %q", operator),
			"value": value,
		})
	}

	return &ConditionResult{
		Triggered:  triggered,
		Value:      value,
		MetricName: metric,
		Details: map[string]any{
			"operator":  operator,
			"threshold": bound,
		},
	}
}

func (e *Evaluator) checkComposite(ctx context.Context, m *ConditionMonitor, depth int) *ConditionResult {
	if depth >= MaxCompositeDepth {
		e.logger.Error("monitor_composite_too_deep",
			"monitor_id", m.ID,
			"depth", depth,
		)
		return untriggered("composite", map[string]any{
			"error": fmt.Sprintf("composite nesting exceeds %d levels", MaxCompositeDepth),
		})
	}

	// Empty sub-condition lists never trigger, regardless of logic.
	if len(m.CompositeConditions) == 0 {
		return untriggered("composite", map[string]any{"reason": "no sub-conditions"})
	}

	subResults := make([]*ConditionResult, 0, len(m.CompositeConditions))
	values := make(map[string]any, len(m.CompositeConditions))
	for i, cfg := range m.CompositeConditions {
		sub := e.syntheticMonitor(m, i, cfg)
		res := e.check(ctx, sub, depth+1)
		subResults = append(subResults, res)
		// Keyed by the synthetic sub name, not the metric: two
		// sub-conditions over the same metric must not collide.
		values[sub.Name] = res.Value
	}

	logic := CompositeLogic(strings.ToUpper(strings.TrimSpace(string(m.CompositeLogic))))
	var triggered bool
	switch logic {
	case LogicAnd:
		triggered = true
		for _, r := range subResults {
			if !r.Triggered {
				triggered = false
				break
			}
		}
	case LogicOr:
		triggered = false
		for _, r := range subResults {
			if r.Triggered {
				triggered = true
				break
			}
		}
	default:
		e.logger.Warn("monitor_unknown_composite_logic",
			"monitor_id", m.ID,
			"composite_logic", string(m.CompositeLogic),
		)
		triggered = false
	}

	return &ConditionResult{
		Triggered:     triggered,
		MetricName:    "composite",
		Details:       values,
		SubConditions: subResults,
	}
}

// syntheticMonitor builds the transient monitor for sub-condition i of a
// composite, inheriting the parent's agent context.
func (e *Evaluator) syntheticMonitor(parent *ConditionMonitor, i int, cfg map[string]any) *ConditionMonitor {
	sub := &ConditionMonitor{
		ID:              uuid.NewString(),
		AgentID:         parent.AgentID,
		Name:            fmt.Sprintf("%s_sub_%d", parent.Name, i),
		Type:            ConditionType(typeutil.SafeStringDefault(cfg["condition_type"], "")),
		ThresholdConfig: typeutil.SafeMapStringAnyDefault(cfg["threshold_config"], nil),
		Enabled:         true,
	}
	if logic, ok := typeutil.SafeString(cfg["composite_logic"]); ok {
		sub.CompositeLogic = CompositeLogic(logic)
	}
	if nested, ok := typeutil.SafeMapSlice(cfg["composite_conditions"]); ok {
		sub.CompositeConditions = nested
	}
	return sub
}

func untriggered(metric string, details map[string]any) *ConditionResult {
	return &ConditionResult{
		Triggered:  false,
		MetricName: metric,
		Details:    details,
	}
}
