package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/nerrad567/prodev-core/internal/infrastructure/config"
	"github.com/nerrad567/prodev-core/internal/infrastructure/logging"
	"github.com/nerrad567/prodev-core/internal/user"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// UserStore is the subset of user.Repository the API serves.
type UserStore interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	UpdateEmail(ctx context.Context, id, email string) error
	Delete(ctx context.Context, id string) error
	Page(ctx context.Context, size, offset int) ([]user.User, error)
	Stats(ctx context.Context) (user.Stats, error)
}

// MetricsWriter writes metrics in Prometheus text format. *dbaccess.Layer
// implements it.
type MetricsWriter interface {
	WritePrometheus(w io.Writer)
}

// HealthCheck reports whether one component is usable.
type HealthCheck func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Users   UserStore
	Metrics MetricsWriter

	// PageSize is used when a list request has no page_size.
	PageSize int

	// Checks are run by GET /api/v1/health, keyed by component name.
	Checks map[string]HealthCheck

	Version string
}

// Server is the HTTP API server for prodev.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	users    UserStore
	metrics  MetricsWriter
	pageSize int
	checks   map[string]HealthCheck
	version  string
	server   *http.Server

	// httpMetrics holds per-route request counters and latencies.
	httpMetrics *metrics.Set
}

// New creates a new API server. It is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}

	s := &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		users:    deps.Users,
		metrics:  deps.Metrics,
		pageSize: deps.PageSize,
		checks:   deps.Checks,
		version:  deps.Version,

		httpMetrics: metrics.NewSet(),
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	return s, nil
}

// Start launches the HTTP listener in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close waits up to gracefulShutdownTimeout for in-flight requests, then
// closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
