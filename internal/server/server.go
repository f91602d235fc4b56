// Package server exposes the monitoring pipeline over HTTP: REST routes
// for the dashboard, a WebSocket feed for live metrics, and Prometheus
// instrumentation.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"device-monitor/internal/cache"
	"device-monitor/internal/config"
	"device-monitor/internal/model"
	"device-monitor/internal/report/excel"
	"device-monitor/internal/service"
	"device-monitor/internal/store"
)

// Assistant is the AI surface the chat and health-check routes use.
// *openrouter.Client implements it; tests substitute fakes.
type Assistant interface {
	Enabled() bool
	Chat(ctx context.Context, message string, agg *model.Aggregate) (string, error)
	HealthCheckMessage(ctx context.Context, agg *model.Aggregate) string
}

// Server is the HTTP surface of the monitor.
type Server struct {
	router    *mux.Router
	store     store.Store
	cache     *cache.Cache // may be nil
	statusLog *service.StatusLog
	host      service.HostReader
	assistant Assistant // may be nil
	exporter  *excel.Writer
	hub       *Hub

	cfg      config.ServerConfig
	deviceID string
	started  time.Time
	logger   zerolog.Logger
}

// NewServer wires the route table. cache and assistant may be nil; the
// affected routes degrade rather than disappear.
func NewServer(
	cfg config.ServerConfig,
	st store.Store,
	c *cache.Cache,
	statusLog *service.StatusLog,
	host service.HostReader,
	assistant Assistant,
	deviceID string,
	broadcastInterval time.Duration,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		store:     st,
		cache:     c,
		statusLog: statusLog,
		host:      host,
		assistant: assistant,
		exporter:  excel.NewWriter(nil),
		cfg:       cfg,
		deviceID:  deviceID,
		started:   time.Now(),
		logger:    logger.With().Str("component", "server").Logger(),
	}
	s.hub = NewHub(s.latestAggregate, broadcastInterval, logger)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.cors)

	s.handle("/health", s.handleHealth, "GET")

	s.handle("/api/metrics/latest", s.handleLatestMetrics, "GET")
	s.handle("/api/metrics/history", s.handleMetricsHistory, "GET")
	s.handle("/api/processes", s.handleProcesses, "GET")
	s.handle("/api/anomalies", s.handleAnomalies, "GET")
	s.handle("/api/status-log", s.handleStatusLog, "GET")
	s.handle("/api/rules", s.handleListRules, "GET")
	s.handle("/api/rules", s.handleCreateRule, "POST")
	s.handle("/api/health-check", s.handleHealthCheck, "GET")
	s.handle("/api/export/csv", s.handleExportCSV, "GET")
	s.handle("/api/export/xlsx", s.handleExportXLSX, "GET")
	s.handle("/api/chat", s.handleChat, "POST")
	s.handle("/api/chat/history", s.handleChatHistory, "GET")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.ServeWS)
}

func (s *Server) handle(path string, h http.HandlerFunc, methods ...string) {
	s.router.HandleFunc(path, instrument(path, h)).Methods(append(methods, "OPTIONS")...)
}

// cors allows the dashboard frontend to call the API from another
// origin. An empty configured origin allows any.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.FrontendOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// latestAggregate reads the latest aggregate, preferring the cache so
// the two-second broadcast path does not hit SQLite.
func (s *Server) latestAggregate(ctx context.Context) (*model.Aggregate, error) {
	if s.cache != nil {
		if agg, err := s.cache.LatestAggregate(ctx, s.deviceID); err == nil && agg != nil {
			return agg, nil
		}
	}
	return s.store.LatestAggregate(ctx, s.deviceID)
}

// Run serves until ctx is cancelled, then drains connections within the
// configured shutdown timeout. The WebSocket broadcast loop runs for the
// same lifetime.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.cfg.Listen).Msg("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	s.logger.Info().Msg("shutting down HTTP server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
