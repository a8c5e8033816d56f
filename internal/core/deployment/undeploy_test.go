package deployment

import (
	"testing"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUndeployRefusal_Table(t *testing.T) {
	tests := []struct {
		status domain.DeploymentStatus
		want   string
	}{
		{domain.StatusAccepted, ExplainUndeployNotCompleted},
		{domain.StatusDeploying, ExplainUndeployNotCompleted},
		{domain.StatusDeployed, ExplainUndeployNotCompleted},
		{domain.StatusDeployFailed, ExplainUndeployDeployFailed},
		{domain.StatusNonexistent, ExplainUndeployAlreadyGone},
		{domain.StatusUndeployed, ExplainUndeployAlreadyGone},
		{domain.StatusUndeploying, ExplainUndeployAlreadyGone},
		{domain.StatusUndeployFailed, ExplainUndeployLastFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got, err := UndeployRefusal(tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUndeployRefusal_CoversEveryStatus(t *testing.T) {
	for _, s := range domain.AllStatuses {
		_, err := UndeployRefusal(s)
		assert.NoError(t, err, s)
	}
}

func TestUndeployRefusal_Unknown(t *testing.T) {
	_, err := UndeployRefusal(domain.DeploymentStatus("RUNNING"))
	assert.ErrorIs(t, err, ErrInternalInvariant)
}

func TestSubmissionFailure(t *testing.T) {
	msg := SubmissionFailure(domain.JobDeploy, domain.MustParseIdentity("g:a:v"), "ErrQueueFull", "queue is full")
	assert.Equal(t, "Unable to deploy deployment 'g:a:v': ErrQueueFull thrown [queue is full]", msg)
}
