package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrJobNotFound = errors.New("job not found")
)

// =============================================================================
// Job Type
// =============================================================================

// JobType is the kind of work a job performs.
type JobType string

const (
	JobDeploy   JobType = "DEPLOY"
	JobUndeploy JobType = "UNDEPLOY"
)

// Lower returns the lower case name used in messages.
func (t JobType) Lower() string {
	return strings.ToLower(string(t))
}

// InFlightStatus is the status a job holds while the executor works on it.
func (t JobType) InFlightStatus() DeploymentStatus {
	if t == JobUndeploy {
		return StatusUndeploying
	}
	return StatusDeploying
}

// OutcomeStatus is the terminal status for a job of this type.
func (t JobType) OutcomeStatus(success bool) DeploymentStatus {
	switch {
	case t == JobUndeploy && success:
		return StatusUndeployed
	case t == JobUndeploy:
		return StatusUndeployFailed
	case success:
		return StatusDeployed
	default:
		return StatusDeployFailed
	}
}

// =============================================================================
// Deployment Unit
// =============================================================================

// DeploymentUnit is everything the loader needs to (un)deploy an identity.
type DeploymentUnit struct {
	Identity   DeploymentIdentity    `json:"identity"`
	Strategy   RuntimeStrategy       `json:"strategy"`
	MergeMode  MergeMode             `json:"merge_mode"`
	Descriptor *DeploymentDescriptor `json:"descriptor,omitempty"`
}

// Clone returns a deep copy of the unit.
func (u DeploymentUnit) Clone() DeploymentUnit {
	u.Descriptor = u.Descriptor.Clone()
	return u
}

// DeployedUnit is a unit currently live in the registry.
type DeployedUnit struct {
	Unit       DeploymentUnit `json:"unit"`
	DeployedAt time.Time      `json:"deployed_at"`
}

// =============================================================================
// Unit Status
// =============================================================================

// UnitStatus is the reconciled answer to "what is the status of deployment X".
type UnitStatus struct {
	Identity    DeploymentIdentity `json:"identity"`
	Strategy    RuntimeStrategy    `json:"strategy,omitempty"`
	Status      DeploymentStatus   `json:"status"`
	Explanation string             `json:"explanation,omitempty"`
}

// =============================================================================
// Job
// =============================================================================

// Job tracks one deploy or undeploy request and its eventual outcome.
type Job struct {
	ID             string           `json:"job_id"`
	Type           JobType          `json:"job_type"`
	Unit           DeploymentUnit   `json:"deployment_unit"`
	ExecutorHandle string           `json:"executor_handle,omitempty"`
	Status         DeploymentStatus `json:"status"`
	Explanation    string           `json:"explanation"`
	Success        *bool            `json:"success,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewJob creates an ACCEPTED job for the unit.
func NewJob(id string, jobType JobType, unit DeploymentUnit, now time.Time) *Job {
	return &Job{
		ID:          id,
		Type:        jobType,
		Unit:        unit.Clone(),
		Status:      StatusAccepted,
		Explanation: jobType.Lower() + " job accepted.",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy of the job.
func (j Job) Clone() Job {
	j.Unit = j.Unit.Clone()
	if j.Success != nil {
		v := *j.Success
		j.Success = &v
	}
	return j
}

// SetSuccess records the tri-state success flag.
func (j *Job) SetSuccess(v bool) {
	j.Success = &v
}

// Succeeded reports whether success is set and true.
func (j Job) Succeeded() bool {
	return j.Success != nil && *j.Success
}

// Transition moves the job to a new status, enforcing the state machine.
func (j *Job) Transition(to DeploymentStatus, explanation string, now time.Time) error {
	if err := ValidateTransition(j.Status, to); err != nil {
		return err
	}
	j.Status = to
	if explanation != "" {
		j.Explanation = explanation
	}
	j.UpdatedAt = now
	return nil
}

// UnitStatus projects the job onto the reconciled status record.
func (j Job) UnitStatus() UnitStatus {
	return UnitStatus{
		Identity:    j.Unit.Identity,
		Strategy:    j.Unit.Strategy,
		Status:      j.Status,
		Explanation: j.Explanation,
	}
}

// =============================================================================
// Submission Result
// =============================================================================

// JobSubmissionResult is returned for every deploy/undeploy request that was
// understood. Success=false with an empty JobID means the request was a no-op.
type JobSubmissionResult struct {
	JobID       string     `json:"job_id,omitempty"`
	JobType     JobType    `json:"job_type"`
	Unit        UnitStatus `json:"deployment_unit"`
	Explanation string     `json:"explanation"`
	Success     bool       `json:"success"`
}
