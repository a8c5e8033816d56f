package api

import (
	"time"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/shell/orchestrator"
)

// =============================================================================
// Response Types
// =============================================================================

// DeploymentStatusResponse is the reconciled status of one deployment unit.
type DeploymentStatusResponse struct {
	ID           string `json:"id"`
	GroupID      string `json:"group_id"`
	ArtifactID   string `json:"artifact_id"`
	Version      string `json:"version"`
	KBaseName    string `json:"kbase_name,omitempty"`
	KSessionName string `json:"ksession_name,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
	Status       string `json:"status"`
	Explanation  string `json:"explanation,omitempty"`
}

// JobSubmissionResponse is returned for every understood deploy/undeploy request.
type JobSubmissionResponse struct {
	JobID       string                   `json:"job_id,omitempty"`
	JobType     string                   `json:"job_type"`
	Deployment  DeploymentStatusResponse `json:"deployment"`
	Explanation string                   `json:"explanation"`
	Success     bool                     `json:"success"`
}

// JobResponse is a cached job.
type JobResponse struct {
	JobID          string                       `json:"job_id"`
	JobType        string                       `json:"job_type"`
	DeploymentID   string                       `json:"deployment_id"`
	Strategy       string                       `json:"strategy"`
	MergeMode      string                       `json:"merge_mode"`
	Descriptor     *domain.DeploymentDescriptor `json:"descriptor,omitempty"`
	ExecutorHandle string                       `json:"executor_handle,omitempty"`
	Status         string                       `json:"status"`
	Explanation    string                       `json:"explanation"`
	Success        *bool                        `json:"success,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

// DeploymentSummaryResponse is one live unit in a listing.
type DeploymentSummaryResponse struct {
	ID         string    `json:"id"`
	Strategy   string    `json:"strategy"`
	MergeMode  string    `json:"merge_mode"`
	Status     string    `json:"status"`
	DeployedAt time.Time `json:"deployed_at"`
}

// ListDeploymentsResponse is the response for listing deployments.
type ListDeploymentsResponse struct {
	Deployments []DeploymentSummaryResponse `json:"deployments"`
	Count       int                         `json:"count"`
	Page        int                         `json:"page"`
	PageSize    int                         `json:"page_size"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// =============================================================================
// Conversions
// =============================================================================

func statusToResponse(s domain.UnitStatus) DeploymentStatusResponse {
	return DeploymentStatusResponse{
		ID:           s.Identity.String(),
		GroupID:      s.Identity.GroupID,
		ArtifactID:   s.Identity.ArtifactID,
		Version:      s.Identity.Version,
		KBaseName:    s.Identity.KBaseName,
		KSessionName: s.Identity.KSessionName,
		Strategy:     string(s.Strategy),
		Status:       string(s.Status),
		Explanation:  s.Explanation,
	}
}

func submissionToResponse(r domain.JobSubmissionResult) JobSubmissionResponse {
	return JobSubmissionResponse{
		JobID:       r.JobID,
		JobType:     string(r.JobType),
		Deployment:  statusToResponse(r.Unit),
		Explanation: r.Explanation,
		Success:     r.Success,
	}
}

func jobToResponse(j domain.Job) JobResponse {
	return JobResponse{
		JobID:          j.ID,
		JobType:        string(j.Type),
		DeploymentID:   j.Unit.Identity.String(),
		Strategy:       string(j.Unit.Strategy),
		MergeMode:      string(j.Unit.MergeMode),
		Descriptor:     j.Unit.Descriptor,
		ExecutorHandle: j.ExecutorHandle,
		Status:         string(j.Status),
		Explanation:    j.Explanation,
		Success:        j.Success,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func listToResponse(l orchestrator.DeploymentList) ListDeploymentsResponse {
	resp := ListDeploymentsResponse{
		Deployments: make([]DeploymentSummaryResponse, 0, len(l.Units)),
		Count:       len(l.Units),
		Page:        l.Page,
		PageSize:    l.PageSize,
	}
	for _, u := range l.Units {
		resp.Deployments = append(resp.Deployments, DeploymentSummaryResponse{
			ID:         u.ID,
			Strategy:   string(u.Strategy),
			MergeMode:  string(u.MergeMode),
			Status:     string(u.Status),
			DeployedAt: u.DeployedAt,
		})
	}
	return resp
}
