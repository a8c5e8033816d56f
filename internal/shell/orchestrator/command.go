package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/shell/executor"
)

// HandleDeploymentCommand is the executor handler for DeploymentCommand.
// It marks the job in flight, applies the change to the registry and
// records the outcome.
func (s *Service) HandleDeploymentCommand(ctx context.Context, task executor.Task) error {
	payload, ok := task.Payload.(CommandPayload)
	if !ok {
		return fmt.Errorf("%s: unexpected payload type %T", DeploymentCommand, task.Payload)
	}

	identity := payload.Unit.Identity.String()
	logger := s.logger.With("job_id", payload.JobID, "job_type", payload.JobType, "identity", identity, "handle", task.Handle)

	if _, err := s.StartJob(ctx, payload.JobID); err != nil {
		if !errors.Is(err, domain.ErrJobNotFound) {
			return fmt.Errorf("starting job %s: %w", payload.JobID, err)
		}
		// Replaced by a newer submission; the registry change still runs.
		logger.Warn("running job that is no longer cached")
	}

	var opErr error
	switch payload.JobType {
	case domain.JobDeploy:
		opErr = s.registry.Deploy(ctx, payload.Unit)
	case domain.JobUndeploy:
		opErr = s.registry.Undeploy(ctx, identity)
	default:
		opErr = fmt.Errorf("unknown job type %q", payload.JobType)
	}

	success := opErr == nil
	explanation := completionExplanation(payload.JobType, identity, opErr)

	if _, err := s.CompleteJob(ctx, payload.JobID, success, explanation); err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		return fmt.Errorf("completing job %s: %w", payload.JobID, err)
	}

	if opErr != nil {
		return fmt.Errorf("%s %s: %w", payload.JobType.Lower(), identity, opErr)
	}
	return nil
}

func completionExplanation(jobType domain.JobType, identity string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s of deployment '%s' failed: %v", jobType.Lower(), identity, err)
	}
	if jobType == domain.JobUndeploy {
		return fmt.Sprintf("Deployment '%s' undeployed.", identity)
	}
	return fmt.Sprintf("Deployment '%s' deployed.", identity)
}
