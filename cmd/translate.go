package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcpgateway/gateway/internal/translate"
)

// newTranslateCmd creates the Cobra command for the standalone transport
// bridge (forward: stdio upstream exposed over SSE/Streamable HTTP;
// reverse: remote SSE/Streamable upstream exposed over local stdio).
func newTranslateCmd() *cobra.Command {
	var (
		stdioCmd        string
		sseURL          string
		streamableURL   string
		port            int
		sseEndpoint     string
		messageEndpoint string
		httpEndpoint    string
		transport       string
		debugMode       bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Bridge an MCP server between transports",
		Long: `translate adapts a single upstream MCP server from its native transport
to another.

Forward mode spawns a stdio child and exposes it over SSE or Streamable
HTTP:

  mcpgateway translate --stdio "my-mcp-server --flag" --port 9000

Reverse mode dials a remote SSE or Streamable HTTP endpoint and exposes it
over local stdio, for clients that only speak stdio:

  mcpgateway translate --sse-url http://upstream:9000/sse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if debugMode {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			switch {
			case stdioCmd != "":
				parts := strings.Fields(stdioCmd)
				if len(parts) == 0 {
					return fmt.Errorf("--stdio must not be empty")
				}
				spec := translate.UpstreamSpec{Stdio: parts[0], Args: parts[1:]}
				addr := fmt.Sprintf(":%d", port)
				if transport == transportSSE {
					fmt.Printf("Bridging stdio command %q over SSE at %s%s\n", stdioCmd, addr, sseEndpoint)
					return translate.RunForwardSSE(shutdownCtx, spec, addr, sseEndpoint, messageEndpoint, logger)
				}
				fmt.Printf("Bridging stdio command %q over Streamable HTTP at %s%s\n", stdioCmd, addr, httpEndpoint)
				return translate.RunForwardStreamableHTTP(shutdownCtx, spec, addr, httpEndpoint, logger)
			case sseURL != "":
				return translate.RunReverse(shutdownCtx, translate.UpstreamSpec{URL: sseURL, Transport: "sse"}, logger)
			case streamableURL != "":
				return translate.RunReverse(shutdownCtx, translate.UpstreamSpec{URL: streamableURL, Transport: "streamable-http"}, logger)
			default:
				return fmt.Errorf("exactly one of --stdio, --sse-url, or --streamable-url is required")
			}
		},
	}

	cmd.Flags().StringVar(&stdioCmd, "stdio", "", "Forward mode: command (with arguments) to spawn as the stdio upstream")
	cmd.Flags().StringVar(&sseURL, "sse-url", "", "Reverse mode: remote SSE endpoint to bridge to local stdio")
	cmd.Flags().StringVar(&streamableURL, "streamable-url", "", "Reverse mode: remote Streamable HTTP endpoint to bridge to local stdio")
	cmd.Flags().IntVar(&port, "port", 9000, "Forward mode: local HTTP port to listen on")
	cmd.Flags().StringVar(&transport, "transport", transportSSE, "Forward mode: transport to expose (sse or streamable-http)")
	cmd.Flags().StringVar(&sseEndpoint, "sse-endpoint", "/sse", "Forward mode: SSE endpoint path")
	cmd.Flags().StringVar(&messageEndpoint, "message-endpoint", "/message", "Forward mode: SSE message endpoint path")
	cmd.Flags().StringVar(&httpEndpoint, "http-endpoint", "/mcp", "Forward mode: Streamable HTTP endpoint path")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}
