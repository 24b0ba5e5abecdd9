package permission

import (
	"context"
	"time"

	"github.com/agentmesh/govcore/govengine/observability"
	"github.com/agentmesh/govcore/govengine/storage"
	"github.com/agentmesh/govcore/govengine/trust"
)

// =============================================================================
// Governance Operations
// =============================================================================
//
// These three operations are the only writers of the package registry.
// Each upserts one entry and then clears the entire decision cache, so
// the very next permission check for any agent/package pair observes the
// mutation.

// RequestApproval records a pending approval request for a package
// version. The requested minimum maturity is kept on the entry for the
// reviewer.
func (e *Engine) RequestApproval(ctx context.Context, name, version, requestedBy string, minMaturity trust.Maturity) error {
	tier, err := trust.ParseMaturity(string(minMaturity))
	if err != nil {
		return err
	}

	entry := e.loadOrNewEntry(ctx, name, version)
	entry.Status = trust.PackagePending
	entry.MinMaturity = tier
	entry.UpdatedAt = time.Now().UTC()

	if err := e.registry.PutPackage(ctx, entry); err != nil {
		return trust.NewExternalFailure("registry upsert", err)
	}
	e.invalidate("approval_requested", entry, "requested_by", requestedBy)
	return nil
}

// Approve activates a package version for agents at or above minMaturity.
func (e *Engine) Approve(ctx context.Context, name, version, approvedBy string, minMaturity trust.Maturity) error {
	tier, err := trust.ParseMaturity(string(minMaturity))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entry := e.loadOrNewEntry(ctx, name, version)
	entry.Status = trust.PackageActive
	entry.MinMaturity = tier
	entry.BanReason = ""
	entry.ApprovedBy = approvedBy
	entry.ApprovedAt = &now
	entry.UpdatedAt = now

	if err := e.registry.PutPackage(ctx, entry); err != nil {
		return trust.NewExternalFailure("registry upsert", err)
	}
	e.invalidate("package_approved", entry, "approved_by", approvedBy)
	return nil
}

// Ban denies a package version for every maturity tier. The reason is
// surfaced verbatim in subsequent deny decisions.
func (e *Engine) Ban(ctx context.Context, name, version, reason string) error {
	entry := e.loadOrNewEntry(ctx, name, version)
	entry.Status = trust.PackageBanned
	entry.BanReason = reason
	entry.UpdatedAt = time.Now().UTC()

	if err := e.registry.PutPackage(ctx, entry); err != nil {
		return trust.NewExternalFailure("registry upsert", err)
	}
	e.invalidate("package_banned", entry, "reason", reason)
	return nil
}

// loadOrNewEntry fetches the current entry so governance operations
// preserve fields they do not own, falling back to a fresh record.
func (e *Engine) loadOrNewEntry(ctx context.Context, name, version string) *trust.PackageRegistryEntry {
	entry, err := e.registry.GetPackage(ctx, name, version)
	if err == nil {
		return entry
	}
	if !storage.IsNotFound(err) {
		e.logger.Warn("registry_read_before_upsert_failed",
			"package", name,
			"version", version,
			"error", err.Error(),
		)
	}
	return &trust.PackageRegistryEntry{
		Name:        name,
		Version:     version,
		Status:      trust.PackageUntrusted,
		MinMaturity: trust.MaturityIntern,
	}
}

// invalidate clears the whole decision cache after a committed registry
// mutation and logs the governance event.
func (e *Engine) invalidate(event string, entry *trust.PackageRegistryEntry, extra ...any) {
	e.cache.Clear()
	observability.RecordCacheClear()

	fields := append([]any{
		"package", entry.Name,
		"version", entry.Version,
		"status", string(entry.Status),
	}, extra...)
	e.logger.Info(event, fields...)
}
