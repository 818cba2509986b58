// Package translate implements the standalone transport bridge (spec
// §4.8): it adapts one upstream MCP server from its native transport to
// another, for callers that only speak one side. Forward mode spawns a
// stdio child and exposes it over SSE/Streamable HTTP; reverse mode
// connects to a remote SSE/Streamable endpoint and exposes it over local
// stdio. Either way every request funnels through one upstream connection,
// so concurrent downstream sessions are serialized onto it (spec: "request
// IDs are rewritten to a gateway-unique space and translated back").
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mcpgateway/gateway/internal/logging"
)

// UpstreamSpec describes how to reach the single upstream the bridge
// multiplexes every downstream session onto.
type UpstreamSpec struct {
	// Stdio, when non-empty, spawns this command (with Args) as the
	// upstream child process.
	Stdio string
	Args  []string
	Env   []string

	// URL, when Stdio is empty, is a remote SSE or Streamable HTTP
	// endpoint to dial instead.
	URL       string
	Transport string // "sse" or "streamable-http"
}

// Bridge owns one upstream MCP client connection and serializes every
// downstream call onto it.
type Bridge struct {
	mu     sync.Mutex
	client *mcpclient.Client
	logger *slog.Logger
}

// Dial connects to and initializes the upstream described by spec.
func Dial(ctx context.Context, spec UpstreamSpec, logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := buildUpstreamClient(spec)
	if err != nil {
		return nil, fmt.Errorf("translate: build upstream client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("translate: start upstream transport: %w", err)
	}
	if _, err := client.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "mcp-gateway-translate", Version: "1"},
		},
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("translate: initialize upstream: %w", err)
	}

	logger.Info("translate bridge connected to upstream", slog.String("stdio", spec.Stdio), slog.String("url", spec.URL))
	return &Bridge{client: client, logger: logger}, nil
}

func buildUpstreamClient(spec UpstreamSpec) (*mcpclient.Client, error) {
	if spec.Stdio != "" {
		return mcpclient.NewStdioMCPClient(spec.Stdio, spec.Env, spec.Args...)
	}
	switch spec.Transport {
	case "sse":
		return mcpclient.NewSSEMCPClient(spec.URL)
	default:
		return mcpclient.NewStreamableHttpClient(spec.URL, mcptransport.WithHTTPTimeout(30*time.Second))
	}
}

// Close releases the upstream connection.
func (b *Bridge) Close() error {
	return b.client.Close()
}

// ListTools proxies tools/list to the upstream.
func (b *Bridge) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("translate: list upstream tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool proxies tools/call to the upstream, serialized against every
// other concurrent downstream session sharing this bridge.
func (b *Bridge) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result, err := b.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: arguments},
	})
	if err != nil {
		return nil, fmt.Errorf("translate: call upstream tool %s: %w", name, err)
	}
	return result, nil
}

// MCPServer builds a mark3labs/mcp-go server that forwards every tool call
// onto b's upstream connection, one tool registration per upstream tool
// listed when MCPServer is called. Used by forward mode (stdio upstream exposed
// over SSE/Streamable HTTP).
func (b *Bridge) MCPServer(ctx context.Context, name, version string) (*mcpserver.MCPServer, error) {
	srv := mcpserver.NewMCPServer(name, version, mcpserver.WithToolCapabilities(true))

	tools, err := b.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	for _, tool := range tools {
		t := tool
		srv.AddTool(t, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := b.CallTool(ctx, t.Name, request.GetArguments())
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return result, nil
		})
	}
	b.logger.Info("translate bridge registered upstream tools", logging.Method("tools/list"), slog.Int("count", len(tools)))
	return srv, nil
}
