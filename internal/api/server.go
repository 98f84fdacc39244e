// Package api serves the verifier over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/events"
	"github.com/clarkflip/pf-verify/internal/games"
	"github.com/clarkflip/pf-verify/internal/kvstore"
	"github.com/clarkflip/pf-verify/internal/logger"
	"github.com/clarkflip/pf-verify/internal/runs"
	"github.com/clarkflip/pf-verify/internal/scan"
	"github.com/clarkflip/pf-verify/internal/store"
)

// Options wires the server's collaborators. Everything except the
// convention is optional.
type Options struct {
	DB             store.DB
	Cache          *kvstore.OutcomeCache
	Publisher      events.Publisher
	Convention     engine.FloatConvention
	BatchWorkers   int
	ScanWorkers    int
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Server handles HTTP requests
type Server struct {
	db             store.DB
	cache          *kvstore.OutcomeCache
	recorder       *runs.Recorder
	scanner        *scan.Scanner
	conv           engine.FloatConvention
	batchWorkers   int
	requestTimeout time.Duration

	errorHandler   *ErrorHandler
	logger         *slog.Logger
	securityLogger *SecurityLogger
	monitor        *HealthMonitor
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	base := opts.Logger
	if base == nil {
		base = logger.L()
	}
	conv := opts.Convention
	if conv == "" {
		conv = engine.DefaultFloatConvention
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	securityLogger := NewSecurityLogger(base)
	apiLogger := base.With("component", "api")
	s := &Server{
		db:             opts.DB,
		cache:          opts.Cache,
		recorder:       runs.NewRecorder(opts.DB, opts.Publisher, EngineVersion),
		scanner:        scan.NewScanner(opts.ScanWorkers),
		conv:           conv,
		batchWorkers:   opts.BatchWorkers,
		requestTimeout: timeout,
		errorHandler:   NewErrorHandler(apiLogger, securityLogger),
		logger:         apiLogger,
		securityLogger: securityLogger,
		monitor:        NewHealthMonitor(),
	}

	securityLogger.LogSystemStartup("", map[string]any{
		"games_available":  len(games.ListGames()),
		"database_enabled": s.db != nil,
		"cache_enabled":    s.cache != nil,
		"float_convention": string(conv),
	})
	return s
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.SecurityLoggingMiddleware)
	r.Use(s.MetricsMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", s.handleListGames)
		r.Post("/seed/hash", s.handleSeedHash)

		r.Post("/coinflip", s.handleCoinflip)
		r.Post("/squares", s.handleSquares)
		r.Post("/blackjack", s.handleBlackjack)

		r.Get("/verify", s.handleVerifyQuery)
		r.Post("/verify", s.handleVerify)
		r.Post("/verify/batch", s.handleVerifyBatch)

		r.Post("/scan", s.handleScan)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/hits", s.handleGetRunHits)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.securityLogger.LogSystemShutdown("context cancelled", s.monitor.Uptime())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// decodeJSON reads a request body, rejecting unknown fields.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

const maxBodyBytes = 8 << 20
