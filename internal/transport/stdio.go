package transport

import (
	"context"
	"fmt"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RunStdio serves srv over stdin/stdout until ctx is cancelled or the
// stdio transport exits on its own (client disconnect), mirroring the
// teacher's goroutine + serverDone-channel shutdown shape.
func RunStdio(ctx context.Context, srv *Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- mcpserver.ServeStdio(srv.MCPServer())
	}()

	select {
	case <-ctx.Done():
		logger.Info("stdio transport shutting down")
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("stdio transport exited: %w", err)
		}
		return nil
	}
}
