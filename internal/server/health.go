package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/teemow/inboxchat/internal/gateway"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusNoSession    = "no session"
	healthStatusUnreachable  = "unreachable"
)

// backendCheckTimeout bounds the backend /health probe made by /readyz.
const backendCheckTimeout = 3 * time.Second

// HealthChecker provides liveness and readiness endpoints for the serve
// command.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// serverContext provides access to dependencies for health checks
	serverContext *ServerContext
	// startTime tracks when the server started
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// isServerShuttingDown returns false if serverContext is nil.
func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	Backend       string `json:"backend,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint. The
// server is ready when it is not shutting down, the session holds a
// credential and the backend answers its health check.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks := h.runChecks(r.Context())

		allOk := true
		for _, status := range checks {
			if status != healthStatusOK {
				allOk = false
			}
		}

		response := HealthResponse{Checks: checks, Status: healthStatusOK}
		code := http.StatusOK
		if !allOk {
			response.Status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, response)
	})
}

func (h *HealthChecker) runChecks(ctx context.Context) map[string]string {
	checks := map[string]string{
		"ready":    healthStatusOK,
		"shutdown": healthStatusOK,
	}
	if !h.ready.Load() {
		checks["ready"] = healthStatusNotReady
	}
	if h.isServerShuttingDown() {
		checks["shutdown"] = healthStatusShuttingDown
	}
	if h.serverContext == nil {
		return checks
	}

	checks["session"] = healthStatusOK
	if !h.serverContext.Session().Authenticated() {
		checks["session"] = healthStatusNoSession
	}
	checks["backend"] = h.backendStatus(ctx)
	return checks
}

func (h *HealthChecker) backendStatus(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, backendCheckTimeout)
	defer cancel()

	status, err := h.serverContext.Client().Health(ctx)
	switch {
	case err != nil:
		h.serverContext.Logger().Debug("backend health check failed", "error", gateway.ErrorDetail(err))
		return healthStatusUnreachable
	case status != "" && status != "healthy" && status != healthStatusOK:
		return status
	}
	return healthStatusOK
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if h.serverContext != nil {
			response.Authenticated = h.serverContext.Session().Authenticated()
			response.Backend = h.backendStatus(r.Context())
		}

		code := http.StatusOK
		switch {
		case !h.ready.Load():
			response.Status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		case h.isServerShuttingDown():
			response.Status = healthStatusShuttingDown
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, response)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
