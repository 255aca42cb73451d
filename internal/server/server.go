package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/driftscope/driftscope/internal/logger"
	"github.com/driftscope/driftscope/internal/orchestrator"
	"github.com/driftscope/driftscope/internal/storage"
	"github.com/driftscope/driftscope/pkg/types"
)

// Config holds API facade settings.
type Config struct {
	Address         string
	Port            int
	RatePerMinute   int
	RatePerHour     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible facade defaults, including the documented
// rate limits of 60 requests per minute and 1000 per hour.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		RatePerMinute:   60,
		RatePerHour:     1000,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server is the thin HTTP adapter over the stores and the orchestrator. It
// performs no diffing or persistence logic itself.
type Server struct {
	config     Config
	httpServer *http.Server
	minuteLim  *rate.Limiter
	hourLim    *rate.Limiter
	orch       *orchestrator.Orchestrator
	snapshots  storage.SnapshotStore
	reports    storage.ReportStore
	log        logger.Logger

	mu          sync.RWMutex
	activeScope *types.Scope
}

// New creates a server instance.
func New(config Config, orch *orchestrator.Orchestrator,
	snapshots storage.SnapshotStore, reports storage.ReportStore, log logger.Logger) *Server {

	if config.Port == 0 {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		config:    config,
		minuteLim: rate.NewLimiter(rate.Limit(float64(config.RatePerMinute)/60.0), config.RatePerMinute),
		hourLim:   rate.NewLimiter(rate.Limit(float64(config.RatePerHour)/3600.0), config.RatePerHour),
		orch:      orch,
		snapshots: snapshots,
		reports:   reports,
		log:       log,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Address, config.Port),
		Handler:      s.routes(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// routes configures all HTTP routes and middleware. Health and metrics are
// exempt from rate limiting.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /initialize", s.withMiddleware(s.handleInitialize))
	mux.HandleFunc("POST /collect", s.withMiddleware(s.handleCollect))
	mux.HandleFunc("GET /latest-snapshot", s.withMiddleware(s.handleLatestSnapshot))
	mux.HandleFunc("GET /latest-drift", s.withMiddleware(s.handleLatestDrift))
	mux.HandleFunc("GET /snapshots", s.withMiddleware(s.handleListSnapshots))
	mux.HandleFunc("GET /drift-reports", s.withMiddleware(s.handleListReports))
	mux.HandleFunc("GET /status", s.withMiddleware(s.handleStatus))

	return mux
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) setActiveScope(scope types.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeScope = &scope
}

// resolveScope reads the scope from query parameters, falling back to the
// scope set by /initialize.
func (s *Server) resolveScope(r *http.Request) (types.Scope, error) {
	q := r.URL.Query()
	scope := types.Scope{
		SubscriptionID: q.Get("subscription_id"),
		ResourceGroup:  q.Get("resource_group"),
	}
	if scope.SubscriptionID != "" || scope.ResourceGroup != "" {
		return scope, scope.Validate()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeScope == nil {
		return types.Scope{}, errors.New("no scope initialized; call /initialize first or pass subscription_id and resource_group")
	}
	return *s.activeScope, nil
}
