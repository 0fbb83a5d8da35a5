// Package api exposes the biomarker worker's synchronous HTTP surface:
// on-demand prediction, health/readiness probes, and a debug endpoint that
// runs one job payload synchronously, all backed by the same domain.Gateway and facade.Facade the
// queue poller uses.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/biomarker-io/worker/internal/api/middleware"
	"github.com/biomarker-io/worker/internal/domain"
	"github.com/biomarker-io/worker/internal/facade"
	"github.com/biomarker-io/worker/internal/job"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	config     *ServerConfig
	startTime  time.Time
	gateway    domain.Gateway
}

// NewServer creates a new HTTP server instance with structured logging and middleware stack.
//
// Dependencies are injected explicitly rather than being part of ServerConfig,
// separating configuration (what) from dependencies (how).
//
// Parameters:
//   - cfg: Pure server configuration (ports, timeouts, CORS settings)
//   - gateway: storage gateway backing health checks and request handlers (REQUIRED)
//   - svc: synchronous inference facade backing /v1/predict* (REQUIRED)
//   - runner: job runner backing /internal/run-once (REQUIRED)
func NewServer(cfg *ServerConfig, gateway domain.Gateway, svc *facade.Facade, runner *job.Runner) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if gateway == nil || svc == nil || runner == nil {
		logger.Error("gateway, facade and runner are required - cannot start server without core functionality")
		panic("api: gateway, facade and runner cannot be nil - this indicates a configuration error")
	}

	mux := http.NewServeMux()

	server := &Server{
		logger:  logger,
		config:  cfg,
		gateway: gateway,
	}

	server.setupRoutes(mux, svc, runner)

	if cfg.RateLimiter != nil {
		logger.Info("rate limiting middleware enabled")
	} else {
		logger.Warn("rate limiter not configured - rate limiting middleware disabled")
	}

	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - generate correlation ID for all responses
	//   2. Recovery - catch panics in all downstream middleware
	//   3. RateLimit - block requests before expensive inference work (optional)
	//   4. RequestLogger - log only legitimate requests (not rate-limited spam)
	//   5. CORS - lightweight header manipulation
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithRateLimit(cfg.RateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// server fails. Callers coordinate shutdown alongside other goroutines
// (e.g. the queue poller) and then call Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting worker http server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown gracefully shuts down the HTTP server, honoring the deadline
// carried by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating server shutdown")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed", slog.String("error", err.Error()))

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server shutdown completed successfully")

	return nil
}
