package deployment

import (
	"errors"
	"fmt"

	"github.com/artpar/deployer/internal/core/domain"
)

var (
	ErrInternalInvariant = errors.New("internal invariant violated")
)

// Explanations returned when a deploy or undeploy request is a no-op.
const (
	ExplainAlreadyDeployed = "The deployment already exists and must be first undeployed!"

	ExplainUndeployNotCompleted = "The deployment can not be undeployed because the initial deployment has not yet fully completed."
	ExplainUndeployDeployFailed = "The deployment can not be undeployed because the initial deployment failed."
	ExplainUndeployAlreadyGone  = "The deployment can not be undeployed because it has already been undeployed (or is currently being undeployed)"
	ExplainUndeployLastFailed   = "The last undeployment failed, but the deployment unit is no longer present " +
		"(and can not be undeployed, thus). There is probably a very high load on this server. " +
		"Turning on debugging may provide insight."
)

// UndeployRefusal explains why a unit that is not live can not be undeployed.
// status must come from a reconciliation that skipped the registry.
func UndeployRefusal(status domain.DeploymentStatus) (string, error) {
	switch status {
	case domain.StatusAccepted, domain.StatusDeploying, domain.StatusDeployed:
		return ExplainUndeployNotCompleted, nil
	case domain.StatusDeployFailed:
		return ExplainUndeployDeployFailed, nil
	case domain.StatusNonexistent, domain.StatusUndeployed, domain.StatusUndeploying:
		return ExplainUndeployAlreadyGone, nil
	case domain.StatusUndeployFailed:
		return ExplainUndeployLastFailed, nil
	default:
		return "", fmt.Errorf("%w: unknown deployment status %q", ErrInternalInvariant, status)
	}
}

// SubmissionFailure builds the explanation stored on a job the executor refused.
// errType is the short type name of the failure, e.g. "ErrQueueFull".
func SubmissionFailure(jobType domain.JobType, id domain.DeploymentIdentity, errType, message string) string {
	return fmt.Sprintf("Unable to %s deployment '%s': %s thrown [%s]", jobType.Lower(), id, errType, message)
}
