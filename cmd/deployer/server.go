package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/deployer/internal/shell/api"
	"github.com/artpar/deployer/internal/shell/api/openapi"
	"github.com/artpar/deployer/internal/shell/executor"
	"github.com/artpar/deployer/internal/shell/jobcache"
	"github.com/artpar/deployer/internal/shell/orchestrator"
	"github.com/artpar/deployer/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the deployer application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	executor   *executor.Executor
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	jobs, err := newJobResults(cfg.Jobs, s)
	if err != nil {
		s.Close()
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitConfigError,
		}
	}
	logger.Info("job result cache selected", "backend", cfg.Jobs.Cache)

	exec := executor.New(executor.Config{
		QueueSize: cfg.Executor.QueueSize,
		Workers:   cfg.Executor.Workers,
		Mode:      cfg.Executor.Mode,
	}, logger)

	svc := orchestrator.NewService(orchestrator.Config{
		Registry: s,
		Jobs:     jobs,
		Executor: exec,
		Logger:   logger,
	})
	exec.Register(orchestrator.DeploymentCommand, svc.HandleDeploymentCommand)

	handler := api.NewHandler(svc, logger,
		api.WithMetrics(cfg.Metrics.Enabled),
		api.WithOpenAPI(openapi.NewGenerator(openapi.WithVersion(Version))),
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		store:      s,
		executor:   exec,
		logger:     logger,
	}, nil
}

// newJobResults picks the job result cache backend.
func newJobResults(cfg JobsConfig, s store.Store) (store.JobResults, error) {
	switch cfg.Cache {
	case JobCacheMemory, "":
		return jobcache.New(), nil
	case JobCacheSQLite:
		return s.JobResults(), nil
	default:
		return nil, fmt.Errorf("unknown job cache backend %q", cfg.Cache)
	}
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	s.executor.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		s.Shutdown(context.Background())
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown stops the HTTP server, then the executor, then closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.executor.Stop()

	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
