package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/shell/executor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSubmitted(t *testing.T, f *fixture, i int) error {
	t.Helper()
	return f.svc.HandleDeploymentCommand(context.Background(), executor.Task{
		Handle:  "h",
		Command: DeploymentCommand,
		Payload: f.exec.submitted[i],
	})
}

func TestHandleDeploymentCommand_DeployThenUndeploy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	deploy, err := f.svc.SubmitDeploy(ctx, "g:a:v", domain.DeployOptions{}, nil)
	require.NoError(t, err)
	require.NoError(t, runSubmitted(t, f, 0))

	job, err := f.svc.GetJob(ctx, deploy.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeployed, job.Status)
	assert.Equal(t, "Deployment 'g:a:v' deployed.", job.Explanation)
	assert.True(t, job.Succeeded())

	status, err := f.svc.DetermineStatus(ctx, "g:a:v", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeployed, status.Status)

	undeploy, err := f.svc.SubmitUndeploy(ctx, "g:a:v")
	require.NoError(t, err)
	require.NoError(t, runSubmitted(t, f, 1))

	job, err = f.svc.GetJob(ctx, undeploy.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUndeployed, job.Status)

	status, err = f.svc.DetermineStatus(ctx, "g:a:v", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUndeployed, status.Status)
}

func TestHandleDeploymentCommand_DeployFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.SubmitDeploy(ctx, "g:a:v", domain.DeployOptions{}, nil)
	require.NoError(t, err)

	f.registry.failNext = errors.New("kjar not found")
	err = runSubmitted(t, f, 0)
	assert.ErrorContains(t, err, "kjar not found")

	job, err := f.svc.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeployFailed, job.Status)
	assert.Contains(t, job.Explanation, "kjar not found")
	assert.False(t, job.Succeeded())

	refusal, err := f.svc.SubmitUndeploy(ctx, "g:a:v")
	require.NoError(t, err)
	assert.False(t, refusal.Success)
}

func TestHandleDeploymentCommand_ReplacedJobStillRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitDeploy(ctx, "g:a:v", domain.DeployOptions{}, nil)
	require.NoError(t, err)
	second, err := f.svc.SubmitDeploy(ctx, "g:a:v", domain.DeployOptions{}, nil)
	require.NoError(t, err)

	require.NoError(t, runSubmitted(t, f, 0))

	status, err := f.svc.DetermineStatus(ctx, "g:a:v", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeployed, status.Status)

	job, err := f.svc.GetJob(ctx, second.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, job.Status)
}

func TestHandleDeploymentCommand_BadPayload(t *testing.T) {
	f := newFixture(t)

	err := f.svc.HandleDeploymentCommand(context.Background(), executor.Task{Payload: "nope"})
	assert.Error(t, err)
}

func TestHandleDeploymentCommand_WithRealExecutor(t *testing.T) {
	registry := newStubRegistry()
	exec := executor.New(executor.DefaultConfig(), nil)
	svc := NewService(Config{Registry: registry, Jobs: newFixture(t).jobs, Executor: exec})
	exec.Register(DeploymentCommand, svc.HandleDeploymentCommand)
	exec.Start()
	t.Cleanup(exec.Stop)

	ctx := context.Background()
	result, err := svc.SubmitDeploy(ctx, "g:a:v", domain.DeployOptions{}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Eventually(t, func() bool {
		job, err := svc.GetJob(ctx, result.JobID)
		return err == nil && job.Status == domain.StatusDeployed
	}, 2*time.Second, 10*time.Millisecond)

	job, err := svc.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	_, err = uuid.Parse(job.ExecutorHandle)
	assert.NoError(t, err)
}

func TestHandleDeploymentCommand_SyncExecutor(t *testing.T) {
	registry := newStubRegistry()
	exec := executor.New(executor.Config{Mode: executor.ModeSync}, nil)
	svc := NewService(Config{Registry: registry, Jobs: newFixture(t).jobs, Executor: exec})
	exec.Register(DeploymentCommand, svc.HandleDeploymentCommand)

	ctx := context.Background()
	result, err := svc.SubmitDeploy(ctx, "g:a:v", domain.DeployOptions{}, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	// The deploy has already run when SubmitDeploy returns.
	job, err := svc.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeployed, job.Status)
	assert.Equal(t, "Deployment 'g:a:v' deployed.", job.Explanation)
	assert.True(t, job.Succeeded())
	assert.NotEmpty(t, job.ExecutorHandle)

	status, err := svc.DetermineStatus(ctx, "g:a:v", true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeployed, status.Status)

	// Undeploy sees the unit live straight away.
	result, err = svc.SubmitUndeploy(ctx, "g:a:v")
	require.NoError(t, err)
	require.True(t, result.Success)
	job, err = svc.GetJob(ctx, result.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUndeployed, job.Status)
}
