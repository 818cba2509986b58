package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mcpgateway/gateway/internal/federation"
	"github.com/mcpgateway/gateway/internal/gateway"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker provides the admin HTTP API's health/readiness endpoints
// (spec §6.3), backed by the gateway's composition root.
type HealthChecker struct {
	// ready indicates whether the gateway is ready to receive traffic.
	ready atomic.Bool
	// shutdown indicates the gateway has begun its shutdown sequence.
	shutdown atomic.Bool

	app       *gateway.AppState
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker bound to app.
func NewHealthChecker(app *gateway.AppState) *HealthChecker {
	h := &HealthChecker{
		app:       app,
		startTime: time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the gateway.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the gateway is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// SetShuttingDown marks the gateway as draining for in-flight shutdown.
func (h *HealthChecker) SetShuttingDown() {
	h.shutdown.Store(true)
}

// HealthResponse is the JSON response for /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ReadinessResponse is the JSON response for /readyz.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// DetailedHealthResponse is the JSON response for /healthz/detailed,
// covering federation peer health and instrumentation state alongside the
// basic liveness/readiness signal.
type DetailedHealthResponse struct {
	Status          string                      `json:"status"`
	Version         string                      `json:"version,omitempty"`
	Uptime          string                      `json:"uptime"`
	Federation      *FederationHealthStatus     `json:"federation,omitempty"`
	Instrumentation *InstrumentationHealthCheck `json:"instrumentation,omitempty"`
}

// FederationHealthStatus reports the gateway's federation peer state
// (spec §4.4).
type FederationHealthStatus struct {
	PeerCount     int `json:"peer_count"`
	ConnectedPeers int `json:"connected_peers"`
}

// InstrumentationHealthCheck reports whether OpenTelemetry export is
// active and, if so, which exporters are configured.
type InstrumentationHealthCheck struct {
	Enabled         bool   `json:"enabled"`
	MetricsExporter string `json:"metrics_exporter,omitempty"`
	TracingExporter string `json:"tracing_exporter,omitempty"`
}

// LivenessHandler serves /healthz: a cheap check that the process is up,
// for restart-on-failure probes.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := HealthResponse{Status: healthStatusOK}
		if h.app != nil {
			response.Version = h.app.Config.ServerVersion
		}
		_ = json.NewEncoder(w).Encode(response)
	})
}

// ReadinessHandler serves /readyz: whether the gateway can currently serve
// traffic, checking the catalog database connection alongside the
// ready/shutdown flags.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		checks := make(map[string]string)
		allOK := true

		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
			allOK = false
		} else {
			checks["ready"] = healthStatusOK
		}

		if h.shutdown.Load() {
			checks["shutdown"] = healthStatusShuttingDown
			allOK = false
		} else {
			checks["shutdown"] = healthStatusOK
		}

		if h.app != nil {
			if err := h.app.Ping(r.Context()); err != nil {
				checks["catalog_db"] = err.Error()
				allOK = false
			} else {
				checks["catalog_db"] = healthStatusOK
			}
		}

		response := ReadinessResponse{Checks: checks}
		if allOK {
			response.Status = healthStatusOK
			w.WriteHeader(http.StatusOK)
		} else {
			response.Status = healthStatusNotReady
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	})
}

// DetailedHealthHandler serves /healthz/detailed: the ready/shutdown status,
// version and uptime, plus federation peer counts and instrumentation
// configuration, for operator dashboards. Unlike ReadinessHandler it does
// not ping the catalog database and returns no per-check map.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		response := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}

		if h.app != nil {
			response.Version = h.app.Config.ServerVersion
			response.Federation = h.federationStatus()
			response.Instrumentation = h.instrumentationStatus()
		}

		switch {
		case !h.ready.Load():
			response.Status = healthStatusNotReady
			w.WriteHeader(http.StatusServiceUnavailable)
		case h.shutdown.Load():
			response.Status = healthStatusShuttingDown
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(response)
	})
}

// RegisterHealthEndpoints mounts /healthz, /readyz, and /healthz/detailed
// on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
}

func (h *HealthChecker) federationStatus() *FederationHealthStatus {
	if h.app.Federation == nil {
		return nil
	}
	peers := h.app.Federation.Peers()
	status := &FederationHealthStatus{PeerCount: len(peers)}
	for _, p := range peers {
		if p.State == federation.PeerStateConnected {
			status.ConnectedPeers++
		}
	}
	return status
}

func (h *HealthChecker) instrumentationStatus() *InstrumentationHealthCheck {
	if h.app.Instrumentation == nil || !h.app.Instrumentation.Enabled() {
		return &InstrumentationHealthCheck{Enabled: false}
	}
	return &InstrumentationHealthCheck{
		Enabled:         true,
		MetricsExporter: h.app.Config.Instrumentation.MetricsExporter,
		TracingExporter: h.app.Config.Instrumentation.TracingExporter,
	}
}
