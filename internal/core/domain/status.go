package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown deployment status")
)

// =============================================================================
// Deployment Status
// =============================================================================

// DeploymentStatus is the lifecycle state of a deployment unit.
type DeploymentStatus string

const (
	StatusNonexistent    DeploymentStatus = "NONEXISTENT"
	StatusAccepted       DeploymentStatus = "ACCEPTED"
	StatusDeploying      DeploymentStatus = "DEPLOYING"
	StatusDeployed       DeploymentStatus = "DEPLOYED"
	StatusDeployFailed   DeploymentStatus = "DEPLOY_FAILED"
	StatusUndeploying    DeploymentStatus = "UNDEPLOYING"
	StatusUndeployed     DeploymentStatus = "UNDEPLOYED"
	StatusUndeployFailed DeploymentStatus = "UNDEPLOY_FAILED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []DeploymentStatus{
	StatusNonexistent,
	StatusAccepted,
	StatusDeploying,
	StatusDeployed,
	StatusDeployFailed,
	StatusUndeploying,
	StatusUndeployed,
	StatusUndeployFailed,
}

// ParseStatus parses a status name, case-insensitively.
func ParseStatus(s string) (DeploymentStatus, error) {
	candidate := DeploymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range AllStatuses {
		if st == candidate {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// IsLive reports whether the unit is serving. Only DEPLOYED is live.
func (s DeploymentStatus) IsLive() bool {
	return s == StatusDeployed
}

// IsIdle reports whether the unit is externally indistinguishable from never deployed.
func (s DeploymentStatus) IsIdle() bool {
	return s == StatusNonexistent || s == StatusUndeployed
}

// IsTerminal reports whether no further transition is possible for a job in this status.
func (s DeploymentStatus) IsTerminal() bool {
	allowed, ok := validTransitions[s]
	return ok && len(allowed) == 0
}

// IsFailure reports whether the status is one of the failure branches.
func (s DeploymentStatus) IsFailure() bool {
	return s == StatusDeployFailed || s == StatusUndeployFailed
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed job status transitions.
// NONEXISTENT is never held by a job, so it has no entry.
var validTransitions = map[DeploymentStatus][]DeploymentStatus{
	StatusAccepted: {
		StatusDeploying, StatusDeployed, StatusDeployFailed,
		StatusUndeploying, StatusUndeployed, StatusUndeployFailed,
	},
	StatusDeploying:      {StatusDeployed, StatusDeployFailed},
	StatusUndeploying:    {StatusUndeployed, StatusUndeployFailed},
	StatusDeployed:       {},
	StatusDeployFailed:   {},
	StatusUndeployed:     {},
	StatusUndeployFailed: {},
}

// ValidateTransition checks if a status transition is valid.
func ValidateTransition(from, to DeploymentStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
