package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mermaidai/drive/internal/api"
	"github.com/mermaidai/drive/internal/config"
	"github.com/mermaidai/drive/internal/metrics"
	"github.com/mermaidai/drive/internal/middleware"
	"github.com/mermaidai/drive/internal/namespace"
	"github.com/mermaidai/drive/internal/presigned"
	"github.com/mermaidai/drive/internal/storage"
	"github.com/sirupsen/logrus"
)

// shutdownTimeout bounds how long in-flight requests may run after a stop
const shutdownTimeout = 30 * time.Second

// Server represents the drive API server
type Server struct {
	config           *config.Config
	httpServer       *http.Server
	store            storage.Client
	namespaceManager namespace.Manager
	issuer           presigned.Issuer
	metricsManager   metrics.Manager
	rateLimiter      *middleware.RateLimiter
	startTime        time.Time
}

// New creates a new drive server
func New(cfg *config.Config) (*Server, error) {
	store, err := storage.NewClient(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	return NewWithClient(cfg, store), nil
}

// NewWithClient creates a server over an existing store client
func NewWithClient(cfg *config.Config, store storage.Client) *Server {
	s := &Server{
		config:           cfg,
		store:            store,
		namespaceManager: namespace.NewManager(store, cfg.Namespace),
		issuer:           presigned.NewIssuer(store, cfg.Presign),
		metricsManager:   metrics.NewManager(cfg.Metrics),
		startTime:        time.Now(),
	}
	if cfg.RateLimit.Enable {
		s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit, "/health", "/ready", cfg.Metrics.Path)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		// uploads and large folder moves can run for minutes
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"address": s.config.Listen,
		"backend": s.config.Store.Backend,
		"store":   s.config.Store.URL(),
		"bucket":  s.config.Store.Bucket,
		"tls":     s.config.EnableTLS,
	}).Info("Starting drive server")

	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}

	if err := s.metricsManager.Start(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to start metrics collection")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := s.store.Ping(pingCtx, s.config.Store.Bucket); err != nil {
		logrus.WithError(err).Warn("Object store not reachable yet, /ready will report not ready")
	}
	cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.serve(listener)
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = s.shutdown()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func (s *Server) serve(listener net.Listener) error {
	logrus.WithField("address", listener.Addr().String()).Info("Starting API server")

	if s.config.EnableTLS {
		return s.httpServer.ServeTLS(listener, s.config.CertFile, s.config.KeyFile)
	}
	return s.httpServer.Serve(listener)
}

func (s *Server) shutdown() error {
	logrus.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Failed to shutdown API server")
		shutdownErr = err
	}

	if err := s.metricsManager.Stop(); err != nil {
		logrus.WithError(err).Debug("Metrics manager was not running")
	}

	return shutdownErr
}

// setupRoutes builds the router and wraps it in the middleware chain.
// CORS, tracing and rate limiting sit outside the router so they also see
// preflights and unmatched paths.
func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter()

	apiHandler := api.NewHandler(
		s.namespaceManager,
		s.issuer,
		s.store,
		s.metricsManager,
		s.config.Store.Bucket,
		s.config.Namespace.MaxUploadBytes,
	)

	router.Use(s.metricsManager.Middleware())
	apiHandler.RegisterRoutes(router)

	if s.config.Metrics.Enable {
		router.Handle(s.config.Metrics.Path, s.metricsManager.Handler()).Methods("GET")
	}

	var handler http.Handler = router
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware()(handler)
	}
	handler = middleware.CORS(s.config.CORS)(handler)
	handler = middleware.Logging()(handler)
	handler = middleware.Tracing(handler)

	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(logrus.StandardLogger()),
		handlers.PrintRecoveryStack(false),
	)(handler)
}
