package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// DefaultShutdownTimeout bounds how long RunStreamableHTTP waits for
// in-flight requests to drain on shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// RunStreamableHTTP runs srv over the Streamable HTTP transport at
// endpoint until ctx is cancelled, then shuts down within
// DefaultShutdownTimeout.
func RunStreamableHTTP(ctx context.Context, srv *Server, opts HTTPOptions, endpoint string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mcpHandler := mcpserver.NewStreamableHTTPServer(srv.MCPServer(),
		mcpserver.WithEndpointPath(endpoint),
	)
	mux.Handle(endpoint, mcpHandler)
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

	logger.Info("streamable http transport starting", slog.String("addr", opts.Addr), slog.String("endpoint", endpoint))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("streamable http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shut down streamable http transport: %w", err)
		}
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("streamable http transport stopped: %w", err)
		}
		return nil
	}
}
