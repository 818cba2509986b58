package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// DefaultShutdownTimeout bounds how long a forward-mode HTTP listener waits
// for in-flight requests to finish during shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// RunForwardSSE spawns/dials spec's upstream and exposes it over SSE at
// sseEndpoint/messageEndpoint until ctx is cancelled.
func RunForwardSSE(ctx context.Context, spec UpstreamSpec, addr, sseEndpoint, messageEndpoint string, logger *slog.Logger) error {
	bridge, err := Dial(ctx, spec, logger)
	if err != nil {
		return err
	}
	defer func() { _ = bridge.Close() }()

	mcpSrv, err := bridge.MCPServer(ctx, "mcp-gateway-translate", "1")
	if err != nil {
		return err
	}

	sseSrv := mcpserver.NewSSEServer(mcpSrv,
		mcpserver.WithSSEEndpoint(sseEndpoint),
		mcpserver.WithMessageEndpoint(messageEndpoint),
	)
	mux := http.NewServeMux()
	mux.Handle(sseEndpoint, sseSrv)
	mux.Handle(messageEndpoint, sseSrv)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return runHTTPUntilDone(ctx, httpSrv, logger)
}

// RunForwardStreamableHTTP is RunForwardSSE's counterpart for the
// Streamable HTTP transport.
func RunForwardStreamableHTTP(ctx context.Context, spec UpstreamSpec, addr, endpoint string, logger *slog.Logger) error {
	bridge, err := Dial(ctx, spec, logger)
	if err != nil {
		return err
	}
	defer func() { _ = bridge.Close() }()

	mcpSrv, err := bridge.MCPServer(ctx, "mcp-gateway-translate", "1")
	if err != nil {
		return err
	}

	streamableSrv := mcpserver.NewStreamableHTTPServer(mcpSrv, mcpserver.WithEndpointPath(endpoint))
	mux := http.NewServeMux()
	mux.Handle(endpoint, streamableSrv)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return runHTTPUntilDone(ctx, httpSrv, logger)
}

func runHTTPUntilDone(ctx context.Context, httpSrv *http.Server, logger *slog.Logger) error {
	serverDone := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("translate: shutdown http server: %w", err)
		}
		return nil
	case err := <-serverDone:
		return err
	}
}

// RunReverse connects to a remote SSE/Streamable upstream and exposes it
// over local stdio, the mirror image of forward mode.
func RunReverse(ctx context.Context, spec UpstreamSpec, logger *slog.Logger) error {
	bridge, err := Dial(ctx, spec, logger)
	if err != nil {
		return err
	}
	defer func() { _ = bridge.Close() }()

	mcpSrv, err := bridge.MCPServer(ctx, "mcp-gateway-translate", "1")
	if err != nil {
		return err
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- mcpserver.ServeStdio(mcpSrv)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("translate: stdio server: %w", err)
		}
		return nil
	}
}
