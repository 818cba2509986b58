// Package transport builds the mark3labs/mcp-go server instance this
// gateway exposes over stdio, SSE, and Streamable HTTP, and runs each
// transport the way the teacher's cmd/serve_stdio.go, serve_sse.go, and
// serve_http.go did (spec §4.2, C1). Tools are registered dynamically from
// the catalog rather than a fixed compiled-in set.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/dispatch"
	"github.com/mcpgateway/gateway/internal/plugin"
	"github.com/mcpgateway/gateway/internal/protocol"
)

// ToolExecutor is the single call surface transport needs from the rest of
// the gateway: given a resolved tool name and arguments, run it through the
// plugin pipeline and whatever backend dispatch resolves it to.
// internal/dispatch.Dispatcher satisfies this directly.
type ToolExecutor interface {
	Invoke(ctx context.Context, toolName string, arguments map[string]any, headers dispatch.PassthroughHeaders, pctx *plugin.Context) (map[string]any, error)
}

// Server wraps one mark3labs/mcp-go MCPServer instance and keeps its
// registered tool set in sync with the catalog.
type Server struct {
	mcp      *mcpserver.MCPServer
	executor ToolExecutor
	sessions *protocol.Table

	mu       sync.Mutex
	registered map[string]bool
}

// New builds a Server named name/version, delegating tool execution to
// executor.
func New(name, version string, executor ToolExecutor) *Server {
	mcpSrv := mcpserver.NewMCPServer(name, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
	)
	return &Server{
		mcp:        mcpSrv,
		executor:   executor,
		sessions:   protocol.NewTable(),
		registered: make(map[string]bool),
	}
}

// MCPServer exposes the underlying mark3labs server for transport-specific
// constructors (ServeStdio, NewSSEServer, NewStreamableHTTPServer).
func (s *Server) MCPServer() *mcpserver.MCPServer { return s.mcp }

// Sessions returns the server's session table. RunStdio, RunSSE and
// RunStreamableHTTP do not register their connections into it.
func (s *Server) Sessions() *protocol.Table { return s.sessions }

// SyncTools reconciles the mcp-go server's registered tool set against
// tools, adding new entries and removing any no longer present.
// gateway.AppState.RefreshTools calls it with the catalog's tool list.
func (s *Server) SyncTools(tools []catalog.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(tools))
	for _, t := range tools {
		seen[t.Name] = true
		if s.registered[t.Name] {
			continue
		}
		s.mcp.AddTool(toMCPTool(t), s.handlerFor(t.Name))
		s.registered[t.Name] = true
	}

	var removed []string
	for name := range s.registered {
		if !seen[name] {
			removed = append(removed, name)
			delete(s.registered, name)
		}
	}
	if len(removed) > 0 {
		s.mcp.RemoveTools(removed...)
	}
}

func (s *Server) handlerFor(name string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Calls arriving over mcp-go's own transport loop carry no
		// protocol.Session/auth.Identity to build a richer plugin.Context
		// from, unlike calls routed through protocol.Router.
		pctx := plugin.NewContext(uuid.NewString(), "")
		result, err := s.executor.Invoke(ctx, name, request.GetArguments(), nil, pctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		raw, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			return mcp.NewToolResultError(marshalErr.Error()), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

// toMCPTool adapts a catalog Tool's stored JSON schema into the struct
// mcp-go expects. Catalog schemas are authored as plain JSON Schema
// documents (object/properties/required), which is exactly the shape of
// mcp.ToolInputSchema, so the stored bytes unmarshal directly into it.
func toMCPTool(t catalog.Tool) mcp.Tool {
	tool := mcp.NewTool(t.Name, mcp.WithDescription(t.Description))
	if len(t.InputSchema) > 0 {
		if err := json.Unmarshal(t.InputSchema, &tool.InputSchema); err != nil {
			tool.InputSchema = mcp.ToolInputSchema{Type: "object"}
		}
	}
	return tool
}

// IdleReaper periodically unregisters sessions that have been idle beyond
// timeout from its table; it closes no transport connection. It acts only
// on sessions registered in that table. cmd/serve.go's runServe calls Stop
// to end the loop on shutdown.
type IdleReaper struct {
	sessions *protocol.Table
	timeout  time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewIdleReaper starts a reaper over table, running until ctx is
// cancelled.
func NewIdleReaper(ctx context.Context, table *protocol.Table, timeout time.Duration, logger *slog.Logger) *IdleReaper {
	if logger == nil {
		logger = slog.Default()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &IdleReaper{sessions: table, timeout: timeout, logger: logger, cancel: cancel, done: make(chan struct{})}
	go r.loop(runCtx)
	return r
}

func (r *IdleReaper) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range r.sessions.IdleBeyond(r.timeout) {
				r.sessions.Unregister(id)
				r.logger.Info("closed idle session", slog.String("session_id", id))
			}
		}
	}
}

// Stop ends the reaper loop and waits for it to exit.
func (r *IdleReaper) Stop() {
	r.cancel()
	<-r.done
}
