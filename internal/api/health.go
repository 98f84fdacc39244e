package api

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clarkflip/pf-verify/internal/games"
	"github.com/clarkflip/pf-verify/internal/store"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResponse represents a comprehensive health check response
type HealthCheckResponse struct {
	Status        HealthStatus           `json:"status"`
	Timestamp     string                 `json:"timestamp"`
	EngineVersion string                 `json:"engine_version"`
	GitCommit     string                 `json:"git_commit,omitempty"`
	BuildTime     string                 `json:"build_time,omitempty"`
	Uptime        string                 `json:"uptime"`
	Checks        map[string]HealthCheck `json:"checks"`
	System        SystemInfo             `json:"system"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	MemoryTotal   uint64 `json:"memory_total_bytes"`
	MemorySys     uint64 `json:"memory_sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// MetricsResponse represents basic performance metrics
type MetricsResponse struct {
	Timestamp     string               `json:"timestamp"`
	EngineVersion string               `json:"engine_version"`
	Uptime        string               `json:"uptime"`
	System        SystemInfo           `json:"system"`
	Operations    map[string]OpMetrics `json:"operations"`
	RequestID     string               `json:"request_id,omitempty"`
}

// OpMetrics represents per-route request counters
type OpMetrics struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	ErrorRequests   uint64  `json:"error_requests"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
	LastRequest     string  `json:"last_request,omitempty"`

	totalDuration time.Duration
}

// HealthMonitor counts requests per route pattern
type HealthMonitor struct {
	startTime time.Time

	mu      sync.Mutex
	metrics map[string]*OpMetrics
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		startTime: time.Now(),
		metrics:   make(map[string]*OpMetrics),
	}
}

// Record adds one request to the route's counters.
func (hm *HealthMonitor) Record(op string, status int, d time.Duration) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	m, ok := hm.metrics[op]
	if !ok {
		m = &OpMetrics{}
		hm.metrics[op] = m
	}
	m.TotalRequests++
	if status >= 400 {
		m.ErrorRequests++
	} else {
		m.SuccessRequests++
	}
	m.totalDuration += d
	m.AvgDurationMs = float64(m.totalDuration.Microseconds()) / 1000 / float64(m.TotalRequests)
	m.LastRequest = time.Now().UTC().Format(time.RFC3339)
}

// Snapshot copies the counters.
func (hm *HealthMonitor) Snapshot() map[string]OpMetrics {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	out := make(map[string]OpMetrics, len(hm.metrics))
	for op, m := range hm.metrics {
		out[op] = *m
	}
	return out
}

// Uptime is the time since the monitor was created.
func (hm *HealthMonitor) Uptime() time.Duration { return time.Since(hm.startTime) }

// MetricsMiddleware feeds the health monitor. Requests are keyed by method
// and route pattern so ids in paths do not explode the map.
func (s *Server) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		s.monitor.Record(r.Method+" "+pattern, ww.Status(), time.Since(start))
	})
}

// handleHealthCheck provides comprehensive health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	checks := map[string]HealthCheck{
		"games":    s.checkGamesHealth(),
		"database": s.checkDatabaseHealth(),
		"cache":    s.checkCacheHealth(),
	}

	overallStatus := HealthStatusHealthy
	for _, check := range checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			overallStatus = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overallStatus == HealthStatusHealthy {
				overallStatus = HealthStatusDegraded
			}
		}
	}

	response := HealthCheckResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        s.monitor.Uptime().String(),
		Checks:        checks,
		System:        getSystemInfo(),
		RequestID:     requestID,
	}

	statusCode := http.StatusOK
	if overallStatus == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	s.securityLogger.LogAuditEvent(requestID, "health_check", "system", string(overallStatus),
		map[string]any{"checks": len(checks), "status_code": statusCode})

	s.writeJSON(w, statusCode, response)
}

// handleMetrics reports per-route counters and runtime stats
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	response := MetricsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		Uptime:        s.monitor.Uptime().String(),
		System:        getSystemInfo(),
		Operations:    s.monitor.Snapshot(),
		RequestID:     requestID,
	}

	s.securityLogger.LogAuditEvent(requestID, "metrics_request", "system", "success",
		map[string]any{"operations": len(response.Operations)})

	s.writeJSON(w, http.StatusOK, response)
}

// handleReadiness provides readiness probe endpoint
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	ready := true
	message := "Ready"
	if len(games.ListGames()) == 0 {
		ready = false
		message = "No games available"
	} else if db := s.checkDatabaseHealth(); db.Status == HealthStatusUnhealthy {
		ready = false
		message = db.Message
	}

	response := map[string]any{
		"ready":          ready,
		"message":        message,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"request_id":     requestID,
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	s.writeJSON(w, statusCode, response)
}

// handleLiveness responds whenever the process is serving
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"alive":          true,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"uptime":         s.monitor.Uptime().String(),
		"request_id":     middleware.GetReqID(r.Context()),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// checkGamesHealth expects coinflip, squares and blackjack to be registered
func (s *Server) checkGamesHealth() HealthCheck {
	start := time.Now()

	gameSpecs := games.ListGames()
	status := HealthStatusHealthy
	message := fmt.Sprintf("%d games available", len(gameSpecs))

	if len(gameSpecs) == 0 {
		status = HealthStatusUnhealthy
		message = "No games available"
	} else if len(gameSpecs) < 3 {
		status = HealthStatusDegraded
		message = fmt.Sprintf("Only %d games available (expected 3)", len(gameSpecs))
	}

	return newHealthCheck(status, message, start)
}

// checkDatabaseHealth runs a one-row query. The store is optional, so a
// missing one is reported but healthy.
func (s *Server) checkDatabaseHealth() HealthCheck {
	start := time.Now()
	if s.db == nil {
		return newHealthCheck(HealthStatusHealthy, "Run store disabled", start)
	}
	if _, err := s.db.ListRuns(store.RunsQuery{Page: 1, PerPage: 1}); err != nil {
		return newHealthCheck(HealthStatusUnhealthy, "Run store query failed: "+err.Error(), start)
	}
	return newHealthCheck(HealthStatusHealthy, "Run store healthy", start)
}

// checkCacheHealth reports whether evaluations are memoised.
func (s *Server) checkCacheHealth() HealthCheck {
	start := time.Now()
	if s.cache == nil {
		return newHealthCheck(HealthStatusDegraded, "Outcome cache disabled", start)
	}
	return newHealthCheck(HealthStatusHealthy, "Outcome cache enabled", start)
}

func newHealthCheck(status HealthStatus, message string, start time.Time) HealthCheck {
	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

// getSystemInfo collects system information
func getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		MemoryAlloc:   m.Alloc,
		MemoryTotal:   m.TotalAlloc,
		MemorySys:     m.Sys,
		GCCycles:      m.NumGC,
	}
}
