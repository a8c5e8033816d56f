package store

import (
	"context"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Store Interfaces
// =============================================================================

// Registry is the live deployment registry. A unit present here is DEPLOYED.
type Registry interface {
	// GetDeployedUnit returns the live unit, or an error wrapping ErrNotFound.
	GetDeployedUnit(ctx context.Context, identity string) (*domain.DeployedUnit, error)
	ListDeployedIDs(ctx context.Context) ([]string, error)

	// Loader side, used by the deployment command handler.
	Deploy(ctx context.Context, unit domain.DeploymentUnit) error
	Undeploy(ctx context.Context, identity string) error
}

// JobResults stores the most recent job per deployment identity.
// Update applies fn to the stored job and persists the result atomically.
type JobResults interface {
	Put(ctx context.Context, job domain.Job) error
	MostRecent(ctx context.Context, identity string) (domain.Job, bool, error)
	Get(ctx context.Context, jobID string) (domain.Job, bool, error)
	Update(ctx context.Context, jobID string, fn func(*domain.Job) error) (domain.Job, error)
	Identities(ctx context.Context) ([]string, error)
}

// Store is the full persistence surface of the orchestrator.
type Store interface {
	Registry

	// JobResults returns the durable job result cache.
	JobResults() JobResults

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}
