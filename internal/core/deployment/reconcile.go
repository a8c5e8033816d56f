package deployment

import (
	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Status Reconciliation
// =============================================================================

// Source names the tier a reconciled status came from.
type Source string

const (
	SourceRegistry Source = "registry"
	SourceCache    Source = "cache"
	SourceDefault  Source = "default"
)

// Reconcile picks the authoritative status for id with strict precedence:
//   - a live registry entry always wins and reports DEPLOYED
//   - otherwise the most recent cached job is returned verbatim
//   - otherwise a NONEXISTENT record is synthesized from the identity
//
// Callers that do not want the registry consulted pass live as nil.
func Reconcile(id domain.DeploymentIdentity, live *domain.DeployedUnit, cached *domain.Job) (domain.UnitStatus, Source) {
	if live != nil {
		return domain.UnitStatus{
			Identity: live.Unit.Identity,
			Strategy: live.Unit.Strategy,
			Status:   domain.StatusDeployed,
		}, SourceRegistry
	}

	if cached != nil {
		return cached.UnitStatus(), SourceCache
	}

	return domain.UnitStatus{
		Identity: id,
		Status:   domain.StatusNonexistent,
	}, SourceDefault
}
