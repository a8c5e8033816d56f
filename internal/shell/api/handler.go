// Package api provides HTTP handlers for the deployer API.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/artpar/deployer/internal/core/deployment"
	"github.com/artpar/deployer/internal/core/domain"
	"github.com/artpar/deployer/internal/core/validation"
	"github.com/artpar/deployer/internal/shell/api/openapi"
	"github.com/artpar/deployer/internal/shell/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"
)

// maxDescriptorBytes bounds the deploy request body.
const maxDescriptorBytes = 1 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	orchestrator *orchestrator.Service
	openapi      *openapi.Generator
	metrics      bool
	logger       *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics exposes Prometheus metrics on /metrics.
func WithMetrics(enabled bool) Option {
	return func(h *Handler) {
		h.metrics = enabled
	}
}

// WithOpenAPI replaces the default OpenAPI generator.
func WithOpenAPI(g *openapi.Generator) Option {
	return func(h *Handler) {
		h.openapi = g
	}
}

// NewHandler creates a new API handler.
func NewHandler(o *orchestrator.Service, l *slog.Logger, opts ...Option) *Handler {
	if l == nil {
		l = slog.Default()
	}
	h := &Handler{
		orchestrator: o,
		logger:       l.With("component", "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.openapi == nil {
		h.openapi = openapi.NewGenerator()
	}
	registerOpenAPIRoutes(h.openapi)
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	r.Get("/health", h.handleHealth)
	r.Get("/openapi.json", h.openapi.Handler())
	if h.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/deployment", func(r chi.Router) {
		r.Get("/", h.handleListDeployments)
		r.Get("/{id}", h.handleGetDeployment)
		r.Post("/{id}/deploy", h.handleDeploy)
		r.Post("/{id}/undeploy", h.handleUndeploy)
	})

	r.Get("/job/{jobId}", h.handleGetJob)

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := h.orchestrator.DetermineStatus(r.Context(), id, true)
	if err != nil {
		// An id that can not be parsed can not exist.
		if errors.Is(err, domain.ErrMalformedIdentity) {
			h.writeError(w, http.StatusNotFound, err.Error(), "not_found")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, statusToResponse(status))
}

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	descriptor, err := decodeDescriptor(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}
	if field, msg := validation.ValidateDescriptor(descriptor); field != "" {
		h.writeError(w, http.StatusBadRequest, field+": "+msg, "validation_error")
		return
	}

	opts := domain.DeployOptions{
		Strategy:  r.URL.Query().Get("strategy"),
		MergeMode: r.URL.Query().Get("mergemode"),
	}

	result, err := h.orchestrator.SubmitDeploy(r.Context(), id, opts, descriptor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, submissionToResponse(result))
}

func (h *Handler) handleUndeploy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.orchestrator.SubmitUndeploy(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, submissionToResponse(result))
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", "p")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}
	size, err := queryInt(r, "pagesize", "s")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	list, err := h.orchestrator.ListDeployments(r.Context(), deployment.NormalizePage(page, size))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, listToResponse(list))
}

// =============================================================================
// Job Handlers
// =============================================================================

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.orchestrator.GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, jobToResponse(job))
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writeServiceError maps orchestrator errors to HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrMalformedIdentity), errors.Is(err, domain.ErrInvalidOption):
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, domain.ErrJobNotFound):
		h.writeError(w, http.StatusNotFound, err.Error(), "not_found")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error", "internal_error")
	}
}

// queryInt reads the first present query parameter of names as an int.
// A missing parameter reads as 0.
func queryInt(r *http.Request, names ...string) (int, error) {
	q := r.URL.Query()
	for _, name := range names {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("query parameter %q must be an integer", name)
		}
		return v, nil
	}
	return 0, nil
}

// decodeDescriptor reads an optional deployment descriptor from the body.
// YAML is accepted when the request says so; anything else is read as JSON.
func decodeDescriptor(r *http.Request) (*domain.DeploymentDescriptor, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDescriptorBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}
	if len(body) > maxDescriptorBytes {
		return nil, fmt.Errorf("descriptor exceeds %d bytes", maxDescriptorBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var descriptor domain.DeploymentDescriptor
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		if err := yaml.Unmarshal(body, &descriptor); err != nil {
			return nil, fmt.Errorf("invalid YAML descriptor: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&descriptor); err != nil {
			return nil, fmt.Errorf("invalid JSON descriptor: %w", err)
		}
	}
	return &descriptor, nil
}
