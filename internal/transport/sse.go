package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// HTTPOptions configures the listener shared by the SSE and Streamable
// HTTP transports.
type HTTPOptions struct {
	Addr string
	// Extra lets the caller mount additional handlers (metrics, health)
	// onto the same mux before the server starts listening.
	Extra func(mux *http.ServeMux)
}

// RunSSE runs srv over the legacy SSE transport at sseEndpoint/messageEndpoint
// until ctx is cancelled, then shuts down with a 30s grace period.
func RunSSE(ctx context.Context, srv *Server, opts HTTPOptions, sseEndpoint, messageEndpoint string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	sseHandler := mcpserver.NewSSEServer(srv.MCPServer(),
		mcpserver.WithSSEEndpoint(sseEndpoint),
		mcpserver.WithMessageEndpoint(messageEndpoint),
	)
	mux.Handle(sseEndpoint, sseHandler)
	mux.Handle(messageEndpoint, sseHandler)
	if opts.Extra != nil {
		opts.Extra(mux)
	}

	httpServer := &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("sse transport starting", slog.String("addr", opts.Addr),
		slog.String("sse_endpoint", sseEndpoint), slog.String("message_endpoint", messageEndpoint))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("sse transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shut down sse transport: %w", err)
		}
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("sse transport stopped: %w", err)
		}
		return nil
	}
}
