// Package monitor evaluates operational trigger conditions for agents.
//
// A monitor is a stored condition definition; Check computes whether it is
// currently triggered. Threshold monitors compare a live metric against a
// configured bound; composite monitors combine nested sub-conditions with
// AND/OR logic. Evaluation never raises for a malformed definition - it
// degrades to "not triggered" and logs, so a bad config cannot crash the
// trigger scheduler polling it.
package monitor

import (
	"time"

	"github.com/agentmesh/govcore/govengine/typeutil"
)

// ConditionType selects the evaluation strategy for a monitor.
type ConditionType string

const (
	ConditionInboxVolume   ConditionType = "inbox_volume"
	ConditionTaskBacklog   ConditionType = "task_backlog"
	ConditionAPIMetrics    ConditionType = "api_metrics"
	ConditionDatabaseQuery ConditionType = "database_query"
	ConditionComposite     ConditionType = "composite"
)

// CompositeLogic aggregates sub-condition results.
type CompositeLogic string

const (
	LogicAnd CompositeLogic = "AND"
	LogicOr  CompositeLogic = "OR"
)

// ConditionMonitor is a stored trigger condition definition.
//
// ThresholdConfig and CompositeConditions are loosely typed on purpose:
// definitions arrive from operator tooling as JSON and are shape-checked
// at evaluation time via typeutil.
type ConditionMonitor struct {
	ID                  string           `json:"id"`
	AgentID             string           `json:"agent_id"`
	Name                string           `json:"name"`
	Type                ConditionType    `json:"condition_type"`
	ThresholdConfig     map[string]any   `json:"threshold_config,omitempty"`
	CompositeLogic      CompositeLogic   `json:"composite_logic,omitempty"`
	CompositeConditions []map[string]any `json:"composite_conditions,omitempty"`
	Enabled             bool             `json:"enabled"`
}

// ConditionResult is the outcome of one Check call. For composite
// monitors, SubConditions carries the full nested results and Details maps
// each sub metric name to its observed value for traceability.
type ConditionResult struct {
	Triggered     bool               `json:"triggered"`
	Value         float64            `json:"value"`
	MetricName    string             `json:"metric_name"`
	Details       map[string]any     `json:"details,omitempty"`
	SubConditions []*ConditionResult `json:"sub_conditions,omitempty"`
}

// threshold is the parsed form of a threshold_config block.
type threshold struct {
	metric   string
	operator string
	value    float64
	window   time.Duration
}

const defaultWindowSeconds = 300

func parseThreshold(cfg map[string]any) threshold {
	return threshold{
		metric:   typeutil.SafeStringDefault(cfg["metric"], ""),
		operator: typeutil.SafeStringDefault(cfg["operator"], ""),
		value:    typeutil.SafeFloat64Default(cfg["value"], 0),
		window:   time.Duration(typeutil.SafeIntDefault(cfg["window"], defaultWindowSeconds)) * time.Second,
	}
}

// compare applies operator to (current, bound). The second return value is
// false for an unrecognized operator. "==" and "=" are aliases.
func compare(current float64, operator string, bound float64) (bool, bool) {
	switch operator {
	case ">":
		return current > bound, true
	case ">=":
		return current >= bound, true
	case "<":
		return current < bound, true
	case "<=":
		return current <= bound, true
	case "==", "=":
		return current == bound, true
	case "!=":
		return current != bound, true
	default:
		return false, false
	}
}
