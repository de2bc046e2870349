package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/solwatch/service/config"
	"github.com/brojonat/solwatch/service/db"
	"github.com/brojonat/solwatch/service/metrics"
	"github.com/brojonat/solwatch/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server for the wallet service.
type Server struct {
	addr      string
	cfg       *config.Config
	store     *db.Store
	syncer    Syncer
	scheduler temporal.Scheduler
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The scheduler is optional - if nil, wallets are only synced on demand.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, store *db.Store, syncer Syncer, scheduler temporal.Scheduler, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		cfg:       cfg,
		store:     store,
		syncer:    syncer,
		scheduler: scheduler,
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the routed handler, wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern, route string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, route)(h))
	}

	intervalFor := s.cfg.IntervalForPriority

	// Wallet routes
	handle("GET /api/v1/wallets", "/api/v1/wallets", handleListWallets(s.store, s.logger))
	handle("POST /api/v1/wallets", "/api/v1/wallets", handleCreateWallet(s.store, s.scheduler, intervalFor, s.logger))
	handle("GET /api/v1/wallets/{id}", "/api/v1/wallets/{id}", handleGetWallet(s.store, s.logger))
	handle("PATCH /api/v1/wallets/{id}", "/api/v1/wallets/{id}", handleUpdateWallet(s.store, s.scheduler, intervalFor, s.logger))
	handle("DELETE /api/v1/wallets/{id}", "/api/v1/wallets/{id}", handleDeleteWallet(s.store, s.scheduler, s.logger))

	// Sync routes
	handle("POST /api/v1/wallets/{id}/sync", "/api/v1/wallets/{id}/sync", handleSyncWallet(s.syncer, s.logger))
	handle("POST /api/v1/sync", "/api/v1/sync", handleSyncAll(s.syncer, s.logger))

	// Alert rule routes
	handle("GET /api/v1/alerts", "/api/v1/alerts", handleListAlerts(s.store, s.logger))
	handle("POST /api/v1/alerts", "/api/v1/alerts", handleCreateAlert(s.store, s.logger))
	handle("PATCH /api/v1/alerts/{id}", "/api/v1/alerts/{id}", handleUpdateAlert(s.store, s.logger))
	handle("DELETE /api/v1/alerts/{id}", "/api/v1/alerts/{id}", handleDeleteAlert(s.store, s.logger))

	// Notification routes
	handle("GET /api/v1/notifications", "/api/v1/notifications", handleListNotifications(s.store, s.logger))
	handle("PATCH /api/v1/notifications", "/api/v1/notifications", handleMarkNotifications(s.store, s.logger))

	handle("GET /api/v1/transactions", "/api/v1/transactions", handleListTransactions(s.store, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.scheduler == nil {
		s.logger.Warn("scheduler not configured, wallets will only sync on demand")
	}

	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// on-demand syncs hold the connection for up to the fetch timeout
		WriteTimeout: s.cfg.SyncFetchTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
