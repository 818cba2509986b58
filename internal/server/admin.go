package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/gateway"
	"github.com/mcpgateway/gateway/internal/instrumentation"
	"github.com/mcpgateway/gateway/internal/server/middleware"
)

// DefaultShutdownTimeout bounds how long the admin server waits for
// in-flight requests to finish on shutdown, matching
// internal/transport.RunStreamableHTTP's own timeout.
const DefaultShutdownTimeout = 30 * time.Second

// DefaultAdminMaxRequestBytes bounds the body size of admin API requests
// (catalog CRUD payloads), distinct from the MCP transport's own limits.
const DefaultAdminMaxRequestBytes = 2 * 1024 * 1024

// AdminOptions configures the admin HTTP server (spec §6.2/§6.3).
type AdminOptions struct {
	// Addr is the listen address, e.g. ":9090".
	Addr string

	// MaxRequestBytes caps admin API request bodies. Zero uses
	// DefaultAdminMaxRequestBytes.
	MaxRequestBytes int64
}

// AdminServer exposes health/readiness probes, Prometheus metrics, and the
// platform-admin catalog CRUD API on its own listener, separate from the
// MCP transport's endpoint.
type AdminServer struct {
	app    *gateway.AppState
	health *HealthChecker
	logger *slog.Logger
	opts   AdminOptions
}

// NewAdminServer builds an AdminServer wired to app.
func NewAdminServer(app *gateway.AppState, opts AdminOptions) *AdminServer {
	logger := app.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRequestBytes == 0 {
		opts.MaxRequestBytes = DefaultAdminMaxRequestBytes
	}
	return &AdminServer{
		app:    app,
		health: NewHealthChecker(app),
		logger: logger,
		opts:   opts,
	}
}

// Health returns the server's HealthChecker, so a caller can mark the
// gateway draining before the listener actually closes. Run itself marks it
// shutting down once ctx is cancelled.
func (s *AdminServer) Health() *HealthChecker {
	return s.health
}

func (s *AdminServer) buildMux() http.Handler {
	mux := http.NewServeMux()
	s.health.RegisterHealthEndpoints(mux)

	if s.app.Instrumentation != nil && s.app.Instrumentation.Enabled() {
		if h := s.app.Instrumentation.MetricsHandler(); h != nil {
			mux.Handle("GET /metrics", h)
		}
	}

	if s.app.PushHub != nil {
		mux.Handle("GET /federation/push", s.app.PushHub)
	}

	var onChange func()
	if s.app.Federation != nil {
		onChange = s.app.Federation.BroadcastCatalogChanged
	}

	adminMux := http.NewServeMux()
	mountCRUD[catalog.Tool, *catalog.Tool](adminMux, "/admin/tools", s.app.Catalog.Tools, catalog.KindTool, onChange)
	mountCRUD[catalog.Resource, *catalog.Resource](adminMux, "/admin/resources", s.app.Catalog.Resources, catalog.KindResource, onChange)
	mountCRUD[catalog.Prompt, *catalog.Prompt](adminMux, "/admin/prompts", s.app.Catalog.Prompts, catalog.KindPrompt, onChange)
	mountCRUD[catalog.Server, *catalog.Server](adminMux, "/admin/servers", s.app.Catalog.Servers, catalog.KindServer, onChange)
	mountCRUD[catalog.Gateway, *catalog.Gateway](adminMux, "/admin/gateways", s.app.Catalog.Gateways, catalog.KindGateway, onChange)
	mountCRUD[catalog.A2AAgent, *catalog.A2AAgent](adminMux, "/admin/a2a_agents", s.app.Catalog.A2AAgents, catalog.KindA2AAgent, onChange)

	gated := requirePlatformAdmin(s.app.Issuer, s.app.AuthStore)(adminMux)

	sizeMetrics, err := middleware.NewRequestSizeLimitMetrics(otel.GetMeterProvider().Meter(instrumentation.TracerName))
	if err != nil {
		s.logger.Warn("request size limit metrics unavailable, continuing without them", "error", err)
	}
	sizeLimited := middleware.MaxRequestSizeWithConfig(middleware.MaxRequestSizeConfig{
		MaxBytes: s.opts.MaxRequestBytes,
		Metrics:  sizeMetrics,
	})(gated)
	mux.Handle("/admin/", sizeLimited)

	handler := http.Handler(mux)
	if s.app.Instrumentation != nil {
		handler = middleware.HTTPMetrics(s.app.Instrumentation)(handler)
	}
	handler = middleware.SecurityHeaders(false)(handler)
	return handler
}

// Run starts the admin HTTP server and blocks until ctx is cancelled, then
// gracefully shuts the listener down (mirrors
// internal/transport.RunStreamableHTTP's lifecycle).
func (s *AdminServer) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.buildMux(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", "addr", s.opts.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.SetShuttingDown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown admin server: %w", err)
		}
		return nil
	}
}
