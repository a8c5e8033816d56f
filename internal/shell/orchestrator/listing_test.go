package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/artpar/deployer/internal/core/deployment"
	"github.com/artpar/deployer/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(list DeploymentList) []string {
	out := make([]string, 0, len(list.Units))
	for _, u := range list.Units {
		out = append(out, u.ID)
	}
	return out
}

func TestListDeployments_OnlyLiveUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registry.deployLive("g:b:v")
	f.registry.deployLive("g:a:v")

	// Cached but never live.
	_, err := f.svc.SubmitDeploy(ctx, "g:c:v", domain.DeployOptions{}, nil)
	require.NoError(t, err)

	list, err := f.svc.ListDeployments(ctx, deployment.PageInfo{})
	require.NoError(t, err)
	assert.Equal(t, []string{"g:a:v", "g:b:v"}, ids(list))
	for _, u := range list.Units {
		assert.Equal(t, domain.StatusDeployed, u.Status)
	}
}

func TestListDeployments_CachedIdentityThatBecameLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := domain.NewJob("1-1", domain.JobDeploy, domain.DeploymentUnit{Identity: domain.MustParseIdentity("g:a:v")}, time.Now())
	require.NoError(t, f.jobs.Put(ctx, *job))
	f.registry.deployLive("g:a:v")

	list, err := f.svc.ListDeployments(ctx, deployment.PageInfo{})
	require.NoError(t, err)
	assert.Equal(t, []string{"g:a:v"}, ids(list))
}

func TestListDeployments_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		f.registry.deployLive(fmt.Sprintf("g:a%d:v", i))
	}

	list, err := f.svc.ListDeployments(ctx, deployment.NormalizePage(2, 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"g:a3:v", "g:a4:v", "g:a5:v"}, ids(list))
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 3, list.PageSize)

	list, err = f.svc.ListDeployments(ctx, deployment.NormalizePage(0, 5))
	require.NoError(t, err)
	assert.Equal(t, []string{"g:a0:v", "g:a1:v", "g:a2:v", "g:a3:v", "g:a4:v"}, ids(list))

	list, err = f.svc.ListDeployments(ctx, deployment.NormalizePage(4, 3))
	require.NoError(t, err)
	assert.Empty(t, list.Units)
}

func TestListDeployments_StopsLookupsAtCutoff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		f.registry.deployLive(fmt.Sprintf("g:a%d:v", i))
	}

	list, err := f.svc.ListDeployments(ctx, deployment.NormalizePage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"g:a0:v", "g:a1:v"}, ids(list))
	assert.Equal(t, 2, f.registry.lookupCount())
}

func TestListDeployments_CutoffCountsOnlyLiveUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.registry.deployLive(fmt.Sprintf("g:b%d:v", i))
	}
	// Sorts first and is never live.
	job := domain.NewJob("1-1", domain.JobDeploy, domain.DeploymentUnit{Identity: domain.MustParseIdentity("g:a:v")}, time.Now())
	require.NoError(t, f.jobs.Put(ctx, *job))

	list, err := f.svc.ListDeployments(ctx, deployment.NormalizePage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"g:b0:v", "g:b1:v"}, ids(list))
	assert.Equal(t, 3, f.registry.lookupCount())
}

func TestListDeployments_Empty(t *testing.T) {
	f := newFixture(t)

	list, err := f.svc.ListDeployments(context.Background(), deployment.PageInfo{})
	require.NoError(t, err)
	assert.NotNil(t, list.Units)
	assert.Empty(t, list.Units)
}
