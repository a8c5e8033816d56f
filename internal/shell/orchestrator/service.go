// Package orchestrator schedules deploy/undeploy jobs and answers status
// queries for deployment units.
//
// It is the imperative shell around internal/core/deployment: it reads the
// live registry and the job result cache, delegates every decision to the
// pure core, and writes the outcome back to the cache.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/deployer/internal/core/deployment"
	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/shell/executor"
	"github.com/artpar/deployer/internal/shell/metrics"
	"github.com/artpar/deployer/internal/shell/store"
)

// DeploymentCommand is the executor command that (un)deploys a unit.
const DeploymentCommand = "DeploymentCmd"

// Executor accepts commands for asynchronous execution.
type Executor interface {
	Submit(ctx context.Context, command string, payload any) (string, error)
}

// CommandPayload is the payload submitted with DeploymentCommand.
type CommandPayload struct {
	JobID   string
	JobType domain.JobType
	Unit    domain.DeploymentUnit
}

// Config holds the collaborators of a Service.
type Config struct {
	Registry store.Registry
	Jobs     store.JobResults
	Executor Executor
	IDs      *deployment.JobIDGenerator
	Now      func() time.Time
	Logger   *slog.Logger
}

// Service is the deployment lifecycle orchestrator.
type Service struct {
	registry store.Registry
	jobs     store.JobResults
	executor Executor
	ids      *deployment.JobIDGenerator
	now      func() time.Time
	locks    *keyedMutex
	logger   *slog.Logger
}

// NewService creates a new orchestrator.
func NewService(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.IDs == nil {
		cfg.IDs = deployment.NewJobIDGenerator(cfg.Now)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		registry: cfg.Registry,
		jobs:     cfg.Jobs,
		executor: cfg.Executor,
		ids:      cfg.IDs,
		now:      cfg.Now,
		locks:    newKeyedMutex(),
		logger:   cfg.Logger.With("component", "orchestrator"),
	}
}

// =============================================================================
// Status
// =============================================================================

// DetermineStatus reports the status of rawID. With checkLive the live
// registry is consulted first and always wins.
func (s *Service) DetermineStatus(ctx context.Context, rawID string, checkLive bool) (domain.UnitStatus, error) {
	id, err := domain.ParseIdentity(rawID)
	if err != nil {
		return domain.UnitStatus{}, err
	}
	return s.determineStatus(ctx, id, checkLive)
}

func (s *Service) determineStatus(ctx context.Context, id domain.DeploymentIdentity, checkLive bool) (domain.UnitStatus, error) {
	var live *domain.DeployedUnit
	if checkLive {
		var err error
		live, err = s.lookupLive(ctx, id)
		if err != nil {
			return domain.UnitStatus{}, err
		}
	}

	var cached *domain.Job
	if live == nil {
		job, ok, err := s.jobs.MostRecent(ctx, id.String())
		if err != nil {
			return domain.UnitStatus{}, fmt.Errorf("reading job cache for %s: %w", id, err)
		}
		if ok {
			cached = &job
		}
	}

	status, source := deployment.Reconcile(id, live, cached)
	metrics.StatusResolutions.WithLabelValues(string(source)).Inc()
	return status, nil
}

// lookupLive returns the live unit, or nil when the registry does not know id.
func (s *Service) lookupLive(ctx context.Context, id domain.DeploymentIdentity) (*domain.DeployedUnit, error) {
	unit, err := s.registry.GetDeployedUnit(ctx, id.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying registry for %s: %w", id, err)
	}
	return unit, nil
}

// GetJob returns a cached job by id.
func (s *Service) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	job, ok, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return job, nil
}

// =============================================================================
// Submission
// =============================================================================

// SubmitDeploy schedules a DEPLOY job for rawID.
//
// A unit that is already live is not an error: the result carries
// success=false and no job id.
func (s *Service) SubmitDeploy(ctx context.Context, rawID string, opts domain.DeployOptions, descriptor *domain.DeploymentDescriptor) (domain.JobSubmissionResult, error) {
	id, err := domain.ParseIdentity(rawID)
	if err != nil {
		return domain.JobSubmissionResult{}, err
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()

	live, err := s.lookupLive(ctx, id)
	if err != nil {
		return domain.JobSubmissionResult{}, err
	}
	if live != nil {
		status, _ := deployment.Reconcile(id, live, nil)
		metrics.JobsRejected.WithLabelValues(string(domain.JobDeploy), "already_deployed").Inc()
		s.logger.Info("deploy rejected", "identity", id.String(), "reason", "already deployed")
		return domain.JobSubmissionResult{
			JobType:     domain.JobDeploy,
			Unit:        status,
			Explanation: deployment.ExplainAlreadyDeployed,
			Success:     false,
		}, nil
	}

	strategy, mergeMode, err := opts.Resolve()
	if err != nil {
		return domain.JobSubmissionResult{}, err
	}

	unit := domain.DeploymentUnit{
		Identity:   id,
		Strategy:   strategy,
		MergeMode:  mergeMode,
		Descriptor: descriptor,
	}
	return s.schedule(ctx, domain.JobDeploy, unit)
}

// SubmitUndeploy schedules an UNDEPLOY job for the live unit rawID. When the
// unit is not live the result explains why nothing was scheduled.
func (s *Service) SubmitUndeploy(ctx context.Context, rawID string) (domain.JobSubmissionResult, error) {
	id, err := domain.ParseIdentity(rawID)
	if err != nil {
		return domain.JobSubmissionResult{}, err
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()

	live, err := s.lookupLive(ctx, id)
	if err != nil {
		return domain.JobSubmissionResult{}, err
	}
	if live != nil {
		return s.schedule(ctx, domain.JobUndeploy, live.Unit)
	}

	status, err := s.determineStatus(ctx, id, false)
	if err != nil {
		return domain.JobSubmissionResult{}, err
	}

	explanation, err := deployment.UndeployRefusal(status.Status)
	if err != nil {
		s.logger.Error("undeploy refused with unexpected status",
			"identity", id.String(), "status", status.Status, "error", err)
		return domain.JobSubmissionResult{}, err
	}

	metrics.JobsRejected.WithLabelValues(string(domain.JobUndeploy), string(status.Status)).Inc()
	s.logger.Info("undeploy rejected", "identity", id.String(), "status", status.Status)
	return domain.JobSubmissionResult{
		JobType:     domain.JobUndeploy,
		Unit:        status,
		Explanation: explanation,
		Success:     false,
	}, nil
}

// schedule registers an ACCEPTED job and hands it to the executor.
// The caller holds the identity lock.
func (s *Service) schedule(ctx context.Context, jobType domain.JobType, unit domain.DeploymentUnit) (domain.JobSubmissionResult, error) {
	job := domain.NewJob(s.ids.Next(), jobType, unit, s.now())
	if err := s.jobs.Put(ctx, *job); err != nil {
		return domain.JobSubmissionResult{}, fmt.Errorf("registering job %s: %w", job.ID, err)
	}

	logger := s.logger.With("job_id", job.ID, "job_type", jobType, "identity", unit.Identity.String())

	handle, submitErr := s.executor.Submit(ctx, DeploymentCommand, CommandPayload{
		JobID:   job.ID,
		JobType: jobType,
		Unit:    job.Unit.Clone(),
	})

	if submitErr != nil {
		explanation := deployment.SubmissionFailure(jobType, unit.Identity, failureKind(submitErr), submitErr.Error())
		failed, err := s.jobs.Update(ctx, job.ID, func(j *domain.Job) error {
			j.SetSuccess(false)
			return j.Transition(jobType.OutcomeStatus(false), explanation, s.now())
		})
		if err != nil {
			logger.Error("failed to record submission failure", "error", err)
			failed = *job
		}

		metrics.JobsSubmitFailed.WithLabelValues(string(jobType)).Inc()
		logger.Warn("job submission failed", "error", submitErr)
		return domain.JobSubmissionResult{
			JobID:       job.ID,
			JobType:     jobType,
			Unit:        failed.UnitStatus(),
			Explanation: explanation,
			Success:     false,
		}, nil
	}

	accepted, err := s.jobs.Update(ctx, job.ID, func(j *domain.Job) error {
		j.ExecutorHandle = handle
		if j.Success == nil {
			j.SetSuccess(true)
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to record executor handle", "handle", handle, "error", err)
		accepted = *job
	}

	metrics.JobsSubmitted.WithLabelValues(string(jobType)).Inc()
	logger.Info("job submitted", "handle", handle)
	return domain.JobSubmissionResult{
		JobID:       job.ID,
		JobType:     jobType,
		Unit:        accepted.UnitStatus(),
		Explanation: job.Explanation,
		Success:     true,
	}, nil
}

// =============================================================================
// Completion
// =============================================================================

// StartJob marks a job as in flight (DEPLOYING or UNDEPLOYING).
func (s *Service) StartJob(ctx context.Context, jobID string) (domain.Job, error) {
	return s.jobs.Update(ctx, jobID, func(j *domain.Job) error {
		return j.Transition(j.Type.InFlightStatus(), "", s.now())
	})
}

// CompleteJob records the terminal outcome of a job. A job replaced by a
// newer submission for the same identity yields ErrJobNotFound.
func (s *Service) CompleteJob(ctx context.Context, jobID string, success bool, explanation string) (domain.Job, error) {
	job, err := s.jobs.Update(ctx, jobID, func(j *domain.Job) error {
		j.SetSuccess(success)
		return j.Transition(j.Type.OutcomeStatus(success), explanation, s.now())
	})
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			s.logger.Warn("completion for unknown or replaced job", "job_id", jobID, "success", success)
		}
		return domain.Job{}, err
	}

	metrics.JobsCompleted.WithLabelValues(string(job.Type), string(job.Status)).Inc()
	metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(job.UpdatedAt.Sub(job.CreatedAt).Seconds())
	s.logger.Info("job completed", "job_id", jobID, "status", job.Status)
	return job, nil
}

// failureKind names the class of a submission error for explanations.
func failureKind(err error) string {
	switch {
	case errors.Is(err, executor.ErrQueueFull):
		return "executor.ErrQueueFull"
	case errors.Is(err, executor.ErrStopped):
		return "executor.ErrStopped"
	case errors.Is(err, executor.ErrUnknownCommand):
		return "executor.ErrUnknownCommand"
	case errors.Is(err, context.Canceled):
		return "context.Canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context.DeadlineExceeded"
	default:
		return fmt.Sprintf("%T", err)
	}
}
