package api

import (
	"net/http"

	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/shell/api/openapi"
)

// registerOpenAPIRoutes documents the routes served by Handler.Routes.
func registerOpenAPIRoutes(g *openapi.Generator) {
	errResp := func(desc string) openapi.Response {
		return openapi.Response{Description: desc, Model: ErrorResponse{}}
	}

	g.RegisterRoute(openapi.Route{
		Method:      http.MethodGet,
		Path:        "/health",
		OperationID: "health",
		Summary:     "Liveness check",
		Tag:         "System",
		Responses: map[int]openapi.Response{
			http.StatusOK: {Description: "healthy", Model: HealthResponse{}},
		},
	})

	g.RegisterRoute(openapi.Route{
		Method:      http.MethodGet,
		Path:        "/deployment",
		OperationID: "listDeployments",
		Summary:     "List live deployment units",
		Tag:         "Deployments",
		Query: []openapi.Param{
			{Name: "page", Type: "integer", Description: "1-based page number (short form: p)"},
			{Name: "pagesize", Type: "integer", Description: "page size, 0 for everything (short form: s)"},
		},
		Responses: map[int]openapi.Response{
			http.StatusOK:         {Description: "live units", Model: ListDeploymentsResponse{}},
			http.StatusBadRequest: errResp("invalid page parameters"),
		},
	})

	g.RegisterRoute(openapi.Route{
		Method:      http.MethodGet,
		Path:        "/deployment/{id}",
		OperationID: "getDeploymentStatus",
		Summary:     "Reconciled status of a deployment unit",
		Tag:         "Deployments",
		Responses: map[int]openapi.Response{
			http.StatusOK:       {Description: "status", Model: DeploymentStatusResponse{}},
			http.StatusNotFound: errResp("malformed deployment id"),
		},
	})

	g.RegisterRoute(openapi.Route{
		Method:      http.MethodPost,
		Path:        "/deployment/{id}/deploy",
		OperationID: "deploy",
		Summary:     "Schedule a deploy job",
		Tag:         "Deployments",
		Query: []openapi.Param{
			{Name: "strategy", Description: "SINGLETON, PER_REQUEST, PER_PROCESS_INSTANCE or PER_CASE"},
			{Name: "mergemode", Description: "KEEP_ALL, OVERRIDE_ALL, OVERRIDE_EMPTY or MERGE_COLLECTIONS"},
		},
		Body: &openapi.Body{
			Model:        domain.DeploymentDescriptor{},
			ContentTypes: []string{"application/json", "application/yaml"},
		},
		Responses: map[int]openapi.Response{
			http.StatusAccepted:   {Description: "request understood", Model: JobSubmissionResponse{}},
			http.StatusBadRequest: errResp("malformed id, option or descriptor"),
		},
	})

	g.RegisterRoute(openapi.Route{
		Method:      http.MethodPost,
		Path:        "/deployment/{id}/undeploy",
		OperationID: "undeploy",
		Summary:     "Schedule an undeploy job",
		Tag:         "Deployments",
		Responses: map[int]openapi.Response{
			http.StatusAccepted:            {Description: "request understood", Model: JobSubmissionResponse{}},
			http.StatusBadRequest:          errResp("malformed deployment id"),
			http.StatusInternalServerError: errResp("unexpected deployment status"),
		},
	})

	g.RegisterRoute(openapi.Route{
		Method:      http.MethodGet,
		Path:        "/job/{jobId}",
		OperationID: "getJob",
		Summary:     "Most recent job by id",
		Tag:         "Jobs",
		Responses: map[int]openapi.Response{
			http.StatusOK:       {Description: "job", Model: JobResponse{}},
			http.StatusNotFound: errResp("unknown or replaced job"),
		},
	})
}
