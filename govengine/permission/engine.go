// Package permission authorizes (agent, package, version) triples against
// the package registry, fronted by the shared decision cache.
//
// Rule precedence is a correctness contract:
//
//  1. cache hit
//  2. resolve agent maturity (missing agent -> student)
//  3. load registry entry
//  4. banned -> deny (before the student block, so ban reasons surface
//     even to students)
//  5. student -> deny
//  6. missing/untrusted -> deny
//  7. pending -> deny
//  8. active -> compare maturity
//  9. anything else -> deny
//
// Every registry mutation upserts one entry and then clears the entire
// cache: keys cannot be selectively invalidated by package.
package permission

import (
	"context"
	"fmt"
	"time"

	"github.com/agentmesh/govcore/govengine/cache"
	"github.com/agentmesh/govcore/govengine/observability"
	"github.com/agentmesh/govcore/govengine/storage"
	"github.com/agentmesh/govcore/govengine/trust"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("govcore/permission")

// Logger is the interface for logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// deniedAll marks decisions no maturity tier can satisfy.
const deniedAll = "NONE"

// DecisionKey returns the cache key for a package permission decision,
// scoped per agent by the cache's namespacing.
func DecisionKey(name, version string) string {
	return fmt.Sprintf("pkg:%s:%s", name, version)
}

// Engine is the package permission authorizer.
type Engine struct {
	agents   storage.AgentStore
	registry storage.RegistryStore
	cache    *cache.DecisionCache
	logger   Logger
}

// NewEngine creates a permission Engine backed by the given stores and
// decision cache.
func NewEngine(agents storage.AgentStore, registry storage.RegistryStore, c *cache.DecisionCache, logger Logger) *Engine {
	return &Engine{
		agents:   agents,
		registry: registry,
		cache:    c,
		logger:   logger,
	}
}

// Check authorizes one (agent, package, version) triple. It never returns
// an error: unresolvable state degrades to a deny decision.
func (e *Engine) Check(ctx context.Context, agentID, name, version string) trust.PermissionDecision {
	ctx, span := tracer.Start(ctx, "permission.check",
		trace.WithAttributes(
			attribute.String("govcore.agent.id", agentID),
			attribute.String("govcore.package", name+":"+version),
		),
	)
	defer span.End()

	start := time.Now()
	key := DecisionKey(name, version)

	if v, ok := e.cache.Get(agentID, key); ok {
		if decision, ok := v.(trust.PermissionDecision); ok {
			observability.RecordPermissionCheck(decision.Allowed, "cache", durationMS(start))
			span.SetAttributes(attribute.Bool("govcore.cache_hit", true))
			return decision
		}
	}

	// Snapshot the epoch before touching the registry so a concurrent
	// mutation's cache clear discards this read's result.
	epoch := e.cache.Epoch()

	// A lookup that fails for any reason other than not-found yields a
	// degraded decision: still a deny, but never cached, so the next
	// check retries the stores once they recover.
	degraded := false

	maturity := trust.MaturityStudent
	agent, err := e.agents.GetAgent(ctx, agentID)
	switch {
	case err == nil:
		maturity = agent.Maturity
	case storage.IsNotFound(err):
		// Unknown agents are treated as students, the least-trusted tier.
		e.logger.Warn("permission_unknown_agent", "agent_id", agentID)
	default:
		degraded = true
		e.logger.Error("permission_agent_lookup_failed",
			"agent_id", agentID,
			"error", err.Error(),
		)
	}

	var entry *trust.PackageRegistryEntry
	entry, err = e.registry.GetPackage(ctx, name, version)
	if err != nil {
		if !storage.IsNotFound(err) {
			degraded = true
			e.logger.Error("permission_registry_lookup_failed",
				"package", name,
				"version", version,
				"error", err.Error(),
			)
		}
		entry = nil
	}

	decision := decide(maturity, entry)

	if !degraded {
		e.cache.SetAt(agentID, key, decision, epoch)
	}
	observability.RecordPermissionCheck(decision.Allowed, "registry", durationMS(start))
	e.logger.Debug("permission_checked",
		"agent_id", agentID,
		"package", name,
		"version", version,
		"allowed", decision.Allowed,
	)
	span.SetAttributes(attribute.Bool("govcore.allowed", decision.Allowed))
	return decision
}

// decide applies the precedence rules to an already-resolved maturity and
// registry entry. A nil entry means the package is not in the registry.
func decide(maturity trust.Maturity, entry *trust.PackageRegistryEntry) trust.PermissionDecision {
	if entry != nil && entry.Status == trust.PackageBanned {
		return trust.PermissionDecision{
			Allowed:          false,
			MaturityRequired: deniedAll,
			Reason:           fmt.Sprintf("package %s is banned: %s", entry.Key(), entry.BanReason),
		}
	}

	if maturity.Rank() == trust.MaturityStudent.Rank() {
		return trust.PermissionDecision{
			Allowed:          false,
			MaturityRequired: string(trust.MaturityIntern),
			Reason:           "educational restriction: student agents may not run packages",
		}
	}

	if entry == nil || entry.Status == trust.PackageUntrusted {
		return trust.PermissionDecision{
			Allowed:          false,
			MaturityRequired: string(trust.MaturityIntern),
			Reason:           "package not in registry",
		}
	}

	switch entry.Status {
	case trust.PackagePending:
		return trust.PermissionDecision{
			Allowed:          false,
			MaturityRequired: string(entry.MinMaturity),
			Reason:           fmt.Sprintf("package %s is pending approval", entry.Key()),
		}
	case trust.PackageActive:
		if trust.CompareMaturity(string(maturity), string(entry.MinMaturity)) >= 0 {
			return trust.PermissionDecision{
				Allowed:          true,
				MaturityRequired: string(entry.MinMaturity),
			}
		}
		return trust.PermissionDecision{
			Allowed:          false,
			MaturityRequired: string(entry.MinMaturity),
			Reason: fmt.Sprintf("package %s requires maturity %s, agent is %s",
				entry.Key(), entry.MinMaturity, maturity),
		}
	default:
		return trust.PermissionDecision{
			Allowed:          false,
			MaturityRequired: string(entry.MinMaturity),
			Reason:           fmt.Sprintf("package %s has unrecognized status %q", entry.Key(), entry.Status),
		}
	}
}

func durationMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
