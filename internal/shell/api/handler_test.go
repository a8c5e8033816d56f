package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/shell/api/openapi"
	"github.com/artpar/deployer/internal/shell/executor"
	"github.com/artpar/deployer/internal/shell/jobcache"
	"github.com/artpar/deployer/internal/shell/orchestrator"
	"github.com/artpar/deployer/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type testEnv struct {
	handler http.Handler
	store   *store.SQLiteStore
	jobs    *jobcache.Cache
	exec    *executor.Executor
}

// newTestEnv wires a handler to an in-memory store and an executor that is
// never started, so submitted jobs stay ACCEPTED.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	jobs := jobcache.New()
	exec := executor.New(executor.Config{QueueSize: 2, Workers: 1}, nil)
	svc := orchestrator.NewService(orchestrator.Config{
		Registry: s,
		Jobs:     jobs,
		Executor: exec,
	})
	exec.Register(orchestrator.DeploymentCommand, svc.HandleDeploymentCommand)

	return &testEnv{
		handler: NewHandler(svc, nil, opts...).Routes(),
		store:   s,
		jobs:    jobs,
		exec:    exec,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) deployLive(t *testing.T, raw string) {
	t.Helper()
	require.NoError(t, e.store.Deploy(context.Background(), domain.DeploymentUnit{
		Identity:  domain.MustParseIdentity(raw),
		Strategy:  domain.StrategySingleton,
		MergeMode: domain.MergeMergeCollections,
	}))
}

func parseResponse[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

// =============================================================================
// Health Endpoint Tests
// =============================================================================

func TestHealth_Success(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	resp := parseResponse[HealthResponse](t, w.Body)
	assert.Equal(t, "healthy", resp.Status)
}

func TestOpenAPI_ListsRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/openapi.json", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	for _, p := range []string{"/deployment", "/deployment/{id}", "/deployment/{id}/deploy", "/deployment/{id}/undeploy", "/job/{jobId}"} {
		assert.Contains(t, doc.Paths, p)
	}
}

func TestOpenAPI_CustomGenerator(t *testing.T) {
	env := newTestEnv(t, WithOpenAPI(openapi.NewGenerator(openapi.WithVersion("2.3.4"))))

	w := env.do(t, http.MethodGet, "/openapi.json", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&doc))
	assert.Equal(t, "2.3.4", doc.Info.Version)
	assert.Contains(t, doc.Paths, "/deployment/{id}/deploy")
}

func TestMetrics_Toggle(t *testing.T) {
	off := newTestEnv(t)
	assert.Equal(t, http.StatusNotFound, off.do(t, http.MethodGet, "/metrics", nil, "").Code)

	on := newTestEnv(t, WithMetrics(true))
	w := on.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

// =============================================================================
// Status Endpoint Tests
// =============================================================================

func TestGetDeployment_Nonexistent(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/deployment/com.acme:rules:1.0", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse[DeploymentStatusResponse](t, w.Body)
	assert.Equal(t, "com.acme:rules:1.0", resp.ID)
	assert.Equal(t, "com.acme", resp.GroupID)
	assert.Equal(t, "NONEXISTENT", resp.Status)
}

func TestGetDeployment_Live(t *testing.T) {
	env := newTestEnv(t)
	env.deployLive(t, "g:a:v:kb:ks")

	w := env.do(t, http.MethodGet, "/deployment/g:a:v:kb:ks", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse[DeploymentStatusResponse](t, w.Body)
	assert.Equal(t, "DEPLOYED", resp.Status)
	assert.Equal(t, "kb", resp.KBaseName)
	assert.Equal(t, "ks", resp.KSessionName)
	assert.Equal(t, "SINGLETON", resp.Strategy)
}

func TestGetDeployment_Malformed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/deployment/only-one-segment", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := parseResponse[ErrorResponse](t, w.Body)
	assert.Equal(t, "not_found", resp.Code)
}

// =============================================================================
// Deploy Endpoint Tests
// =============================================================================

func TestDeploy_Accepted(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/deployment/com.acme:rules:1.0/deploy?strategy=per_request", nil, "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := parseResponse[JobSubmissionResponse](t, w.Body)
	assert.True(t, resp.Success)
	assert.Regexp(t, `^\d+-\d+$`, resp.JobID)
	assert.Equal(t, "DEPLOY", resp.JobType)
	assert.Equal(t, "deploy job accepted.", resp.Explanation)
	assert.Equal(t, "ACCEPTED", resp.Deployment.Status)
	assert.Equal(t, "PER_REQUEST", resp.Deployment.Strategy)
	assert.Equal(t, 1, env.exec.Pending())

	w = env.do(t, http.MethodGet, "/job/"+resp.JobID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	job := parseResponse[JobResponse](t, w.Body)
	assert.Equal(t, "ACCEPTED", job.Status)
	assert.Equal(t, "MERGE_COLLECTIONS", job.MergeMode)
	assert.NotEmpty(t, job.ExecutorHandle)
}

func TestDeploy_JSONDescriptor(t *testing.T) {
	env := newTestEnv(t)

	body := `{"persistence_unit":"org.jbpm.domain","globals":[{"name":"svc","resolver":"mvel","identifier":"new Service()"}]}`
	w := env.do(t, http.MethodPost, "/deployment/g:a:v/deploy", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := parseResponse[JobSubmissionResponse](t, w.Body)

	job, ok, err := env.jobs.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, job.Unit.Descriptor)
	assert.Equal(t, "org.jbpm.domain", job.Unit.Descriptor.PersistenceUnit)
	require.Len(t, job.Unit.Descriptor.Globals, 1)
	assert.Equal(t, "svc", job.Unit.Descriptor.Globals[0].Name)
	assert.Equal(t, "mvel", job.Unit.Descriptor.Globals[0].Resolver)
}

func TestDeploy_YAMLDescriptor(t *testing.T) {
	env := newTestEnv(t)

	body := "audit_mode: JMS\nrequired_roles:\n  - admin\nwork_item_handlers:\n  - name: Log\n    identifier: new LogHandler()\n"
	w := env.do(t, http.MethodPost, "/deployment/g:a:v/deploy", strings.NewReader(body), "application/yaml")
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := parseResponse[JobSubmissionResponse](t, w.Body)

	job, ok, err := env.jobs.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "JMS", job.Unit.Descriptor.AuditMode)
	assert.Equal(t, []string{"admin"}, job.Unit.Descriptor.RequiredRoles)
	assert.Equal(t, "new LogHandler()", job.Unit.Descriptor.WorkItemHandlers[0].Identifier)
}

func TestDeploy_InvalidDescriptor(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/deployment/g:a:v/deploy", strings.NewReader(`{"unknown_field":1}`), "application/json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.jobs.Len())
}

func TestDeploy_DescriptorRejected(t *testing.T) {
	env := newTestEnv(t)

	body := `{"globals":[{"name":"svc"}]}`
	w := env.do(t, http.MethodPost, "/deployment/g:a:v/deploy", strings.NewReader(body), "application/json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseResponse[ErrorResponse](t, w.Body)
	assert.Equal(t, "globals[0].identifier: identifier is required", resp.Error)
	assert.Equal(t, 0, env.exec.Pending())
}

func TestDeploy_InvalidStrategy(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/deployment/g:a:v/deploy?strategy=sometimes", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseResponse[ErrorResponse](t, w.Body)
	assert.Equal(t, "validation_error", resp.Code)
	assert.Contains(t, resp.Error, "runtime strategy 'SOMETIMES' does not exist")
}

func TestDeploy_Malformed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/deployment/a:b/deploy", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.jobs.Len())
}

func TestDeploy_AlreadyDeployed(t *testing.T) {
	env := newTestEnv(t)
	env.deployLive(t, "g:a:v")

	w := env.do(t, http.MethodPost, "/deployment/g:a:v/deploy", nil, "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := parseResponse[JobSubmissionResponse](t, w.Body)
	assert.False(t, resp.Success)
	assert.Empty(t, resp.JobID)
	assert.Equal(t, "The deployment already exists and must be first undeployed!", resp.Explanation)
}

func TestDeploy_QueueFull(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"g:a:1", "g:a:2"} {
		w := env.do(t, http.MethodPost, "/deployment/"+id+"/deploy", nil, "")
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := env.do(t, http.MethodPost, "/deployment/g:a:3/deploy", nil, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := parseResponse[JobSubmissionResponse](t, w.Body)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "DEPLOY_FAILED", resp.Deployment.Status)
	assert.Contains(t, resp.Explanation, "Unable to deploy deployment 'g:a:3'")

	w = env.do(t, http.MethodGet, "/deployment/g:a:3", nil, "")
	status := parseResponse[DeploymentStatusResponse](t, w.Body)
	assert.Equal(t, "DEPLOY_FAILED", status.Status)
}

// =============================================================================
// Undeploy Endpoint Tests
// =============================================================================

func TestUndeploy_Live(t *testing.T) {
	env := newTestEnv(t)
	env.deployLive(t, "g:a:v")

	w := env.do(t, http.MethodPost, "/deployment/g:a:v/undeploy", nil, "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := parseResponse[JobSubmissionResponse](t, w.Body)
	assert.True(t, resp.Success)
	assert.Equal(t, "UNDEPLOY", resp.JobType)
	assert.Equal(t, "undeploy job accepted.", resp.Explanation)
}

func TestUndeploy_NotDeployed(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/deployment/g:a:v/undeploy", nil, "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := parseResponse[JobSubmissionResponse](t, w.Body)
	assert.False(t, resp.Success)
	assert.Equal(t, "NONEXISTENT", resp.Deployment.Status)
	assert.Equal(t,
		"The deployment can not be undeployed because it has already been undeployed (or is currently being undeployed)",
		resp.Explanation)
	assert.Equal(t, 0, env.exec.Pending())
}

// =============================================================================
// Listing Endpoint Tests
// =============================================================================

func TestListDeployments(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"g:a:1", "g:a:2", "g:a:3"} {
		env.deployLive(t, id)
	}

	w := env.do(t, http.MethodGet, "/deployment", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse[ListDeploymentsResponse](t, w.Body)
	assert.Equal(t, 3, resp.Count)

	w = env.do(t, http.MethodGet, "/deployment?p=2&s=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp = parseResponse[ListDeploymentsResponse](t, w.Body)
	require.Len(t, resp.Deployments, 1)
	assert.Equal(t, "g:a:3", resp.Deployments[0].ID)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 2, resp.PageSize)
}

func TestListDeployments_HugePage(t *testing.T) {
	env := newTestEnv(t)
	env.deployLive(t, "g:a:1")

	w := env.do(t, http.MethodGet, "/deployment?page=4611686018427387904&pagesize=4", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse[ListDeploymentsResponse](t, w.Body)
	assert.Empty(t, resp.Deployments)
	assert.Equal(t, 0, resp.Count)
}

func TestListDeployments_BadPage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/deployment?page=abc", nil, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// Job Endpoint Tests
// =============================================================================

func TestGetJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/job/123-1", nil, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDecodeDescriptor_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("  \n")))
	d, err := decodeDescriptor(req)
	require.NoError(t, err)
	assert.Nil(t, d)
}
