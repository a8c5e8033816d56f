package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/artpar/deployer/internal/core/deployment"
	"github.com/artpar/deployer/internal/core/domain"
)

// DeploymentSummary describes one live deployment unit in a listing.
type DeploymentSummary struct {
	Identity   domain.DeploymentIdentity `json:"identity"`
	ID         string                    `json:"id"`
	Strategy   domain.RuntimeStrategy    `json:"strategy"`
	MergeMode  domain.MergeMode          `json:"merge_mode"`
	Status     domain.DeploymentStatus   `json:"status"`
	DeployedAt time.Time                 `json:"deployed_at"`
}

// DeploymentList is one page of live deployment units.
type DeploymentList struct {
	Units    []DeploymentSummary `json:"deployment_units"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// ListDeployments lists live deployment units. Every known identity, from the
// registry and the job cache, is checked against the registry; units that
// are not live are skipped.
func (s *Service) ListDeployments(ctx context.Context, page deployment.PageInfo) (DeploymentList, error) {
	ids, err := s.knownIdentities(ctx)
	if err != nil {
		return DeploymentList{}, err
	}

	limit := page.MaxResultsNeeded()
	collected := make([]DeploymentSummary, 0, min(limit, len(ids)))

	for _, raw := range ids {
		if len(collected) >= limit {
			break
		}

		id, err := domain.ParseIdentity(raw)
		if err != nil {
			s.logger.Warn("skipping malformed identity", "identity", raw, "error", err)
			continue
		}

		live, err := s.lookupLive(ctx, id)
		if err != nil {
			return DeploymentList{}, err
		}
		if live == nil {
			continue
		}

		collected = append(collected, DeploymentSummary{
			Identity:   live.Unit.Identity,
			ID:         live.Unit.Identity.String(),
			Strategy:   live.Unit.Strategy,
			MergeMode:  live.Unit.MergeMode,
			Status:     domain.StatusDeployed,
			DeployedAt: live.DeployedAt,
		})
	}

	return DeploymentList{
		Units:    deployment.Paginate(collected, page),
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

func (s *Service) knownIdentities(ctx context.Context) ([]string, error) {
	deployed, err := s.registry.ListDeployedIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing deployed units: %w", err)
	}
	cached, err := s.jobs.Identities(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing cached jobs: %w", err)
	}

	seen := make(map[string]bool, len(deployed)+len(cached))
	ids := make([]string, 0, len(deployed)+len(cached))
	for _, group := range [][]string{deployed, cached} {
		for _, id := range group {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
