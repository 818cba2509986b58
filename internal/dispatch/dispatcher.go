// Package dispatch resolves a catalog Tool to whichever backend actually
// executes it — a local in-process handler, a REST adapter, a federated
// peer gateway, or an A2A agent — and invokes it (spec §4.3, C5).
package dispatch

import (
	"context"
	"time"

	"github.com/mcpgateway/gateway/internal/cache"
	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/gwerrors"
	"github.com/mcpgateway/gateway/internal/plugin"
)

// DispatchMetricsRecorder records per-invocation dispatch metrics (spec
// §4.3, C2). internal/instrumentation.Metrics satisfies this.
type DispatchMetricsRecorder interface {
	RecordDispatchInvocation(ctx context.Context, toolName, integrationType, status string, duration time.Duration)
}

// LocalHandler is an in-process tool implementation, registered directly
// by name rather than resolved through the catalog's REST/A2A/federated
// adapters.
type LocalHandler func(ctx context.Context, arguments map[string]any) (map[string]any, error)

// PeerInvoker calls a tool on a federated peer gateway by its local
// (unqualified) name. internal/federation supplies the implementation,
// keeping this package free of federation's connection-management
// concerns.
type PeerInvoker interface {
	InvokeTool(ctx context.Context, gatewayID, toolName string, arguments map[string]any) (map[string]any, error)
}

// A2AInvoker calls an A2A agent's task endpoint. internal/federation (or
// a dedicated a2a client) supplies the implementation.
type A2AInvoker interface {
	InvokeAgent(ctx context.Context, agent catalog.A2AAgent, arguments map[string]any) (map[string]any, error)
}

// PassthroughHeaders is the set of inbound HTTP headers the dispatcher
// forwards to upstream REST/A2A/federated calls when a Tool's
// ExposePassthrough allowlist permits them (spec §4.3).
type PassthroughHeaders map[string]string

// GRPCBackend calls a Tool whose IntegrationType is GRPC, resolving its
// method dynamically rather than through a generated client. Kept as its
// own backend (distinct from RESTInvoker) since it speaks protobuf over
// HTTP/2 instead of JSON over HTTP/1.1.
type GRPCBackend interface {
	Invoke(ctx context.Context, tool *catalog.Tool, arguments map[string]any) (map[string]any, error)
}

// Dispatcher is the single entry point internal/protocol's tools/call
// handler invokes.
type Dispatcher struct {
	tools       catalog.Store[catalog.Tool]
	locals      map[string]LocalHandler
	rest        *RESTInvoker
	grpc        GRPCBackend
	peers       PeerInvoker
	agents      A2AInvoker
	agentsStore catalog.Store[catalog.A2AAgent]
	limiter     cache.Limiter
	plugins     *plugin.Registry
	metrics     DispatchMetricsRecorder

	defaultTimeout time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLocalHandler registers a named in-process tool implementation.
func WithLocalHandler(name string, handler LocalHandler) Option {
	return func(d *Dispatcher) { d.locals[name] = handler }
}

// WithPeerInvoker wires the federation layer's tool-call path.
func WithPeerInvoker(p PeerInvoker) Option {
	return func(d *Dispatcher) { d.peers = p }
}

// WithA2AInvoker wires the A2A agent-call path. agentsStore resolves an
// IntegrationA2A Tool's BaseURL (holding the agent's entity ID) to the
// catalog.A2AAgent passed to the invoker.
func WithA2AInvoker(a A2AInvoker, agentsStore catalog.Store[catalog.A2AAgent]) Option {
	return func(d *Dispatcher) {
		d.agents = a
		d.agentsStore = agentsStore
	}
}

// WithGRPCBackend wires the gRPC dynamic-invocation path.
func WithGRPCBackend(g GRPCBackend) Option {
	return func(d *Dispatcher) { d.grpc = g }
}

// WithRateLimiter wires a shared token-bucket limiter keyed per upstream.
func WithRateLimiter(l cache.Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithDefaultTimeout overrides the fallback timeout used when a Tool
// doesn't set its own TimeoutMS.
func WithDefaultTimeout(d2 time.Duration) Option {
	return func(d *Dispatcher) { d.defaultTimeout = d2 }
}

// WithPlugins wires the tool_pre_invoke/tool_post_invoke hook pipeline
// (spec §4.5) into every Invoke call. Without it Invoke dispatches
// directly, which is what the dispatcher's own unit tests rely on.
func WithPlugins(r *plugin.Registry) Option {
	return func(d *Dispatcher) { d.plugins = r }
}

// WithMetrics wires dispatch-invocation metrics (spec §4.3, C2).
func WithMetrics(m DispatchMetricsRecorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// DefaultTimeout is used when neither the Tool nor an Option specifies
// one.
const DefaultTimeout = 30 * time.Second

// New builds a Dispatcher reading tool definitions from tools.
func New(tools catalog.Store[catalog.Tool], rest *RESTInvoker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tools:          tools,
		locals:         make(map[string]LocalHandler),
		rest:           rest,
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke resolves toolName's catalog entry, runs it through the
// tool_pre_invoke/tool_post_invoke plugin pipeline (spec §4.5, C6) around
// dispatch, applies rate limiting, and routes to the appropriate backend by
// IntegrationType. Invoke takes no principal of its own — visibility was
// already enforced by whatever listed the tool for the caller; the
// caller's identity reaches plugins through pctx.
//
// pctx carries the plugin pipeline's per-request state (caller identity,
// elicitation responses, cross-hook scratch space). A nil pctx still runs
// the pipeline, with an empty identity; callers without a protocol.Session
// to draw one from (the mcp-go direct tool-call path) pass one built with a
// fresh request ID and nothing else.
func (d *Dispatcher) Invoke(ctx context.Context, toolName string, arguments map[string]any, headers PassthroughHeaders, pctx *plugin.Context) (map[string]any, error) {
	tool, err := d.resolveTool(ctx, toolName)
	if err != nil {
		return nil, err
	}
	if !tool.Enabled {
		return nil, gwerrors.InvalidRequest("tool %s is disabled", toolName)
	}

	if d.limiter != nil {
		allowed, err := d.limiter.Allow(ctx, rateLimitKey(tool), 20, 5)
		if err != nil {
			return nil, gwerrors.Upstream(err, "rate limiter unavailable")
		}
		if !allowed {
			return nil, gwerrors.RateLimited("tool %s exceeded its rate limit", toolName)
		}
	}

	if pctx == nil {
		pctx = plugin.NewContext("", "")
	}
	match := plugin.MatchRequest{ToolName: tool.Name, TenantID: pctx.TenantID}

	if d.plugins != nil {
		arguments, err = d.plugins.Run(ctx, plugin.HookToolPreInvoke, pctx, match, arguments)
		if err != nil {
			return nil, err
		}
	}

	timeout := time.Duration(tool.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	filtered := filterPassthrough(headers, tool.ExposePassthrough)

	start := time.Now()
	result, err := d.invokeBackend(callCtx, tool, arguments, filtered)
	if d.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		d.metrics.RecordDispatchInvocation(ctx, tool.Name, string(tool.IntegrationType), status, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	if d.plugins != nil {
		result, err = d.plugins.Run(ctx, plugin.HookToolPostInvoke, pctx, match, result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (d *Dispatcher) invokeBackend(ctx context.Context, tool *catalog.Tool, arguments map[string]any, headers PassthroughHeaders) (map[string]any, error) {
	switch tool.IntegrationType {
	case catalog.IntegrationLocal:
		handler, ok := d.locals[tool.Name]
		if !ok {
			return nil, gwerrors.NotFound("no local handler registered for tool %s", tool.Name)
		}
		return handler(ctx, arguments)

	case catalog.IntegrationREST:
		if d.rest == nil {
			return nil, gwerrors.Internal(nil, "no REST invoker configured for tool %s", tool.Name)
		}
		return d.rest.Invoke(ctx, tool, arguments, headers)

	case catalog.IntegrationGRPC:
		if d.grpc == nil {
			return nil, gwerrors.Internal(nil, "no gRPC invoker configured for tool %s", tool.Name)
		}
		return d.grpc.Invoke(ctx, tool, arguments)

	case catalog.IntegrationFederated:
		if d.peers == nil {
			return nil, gwerrors.Internal(nil, "no peer invoker configured for federated tool %s", tool.Name)
		}
		return d.peers.InvokeTool(ctx, tool.GatewayID, localName(tool.QualifiedName), arguments)

	case catalog.IntegrationA2A:
		if d.agents == nil || d.agentsStore == nil {
			return nil, gwerrors.Internal(nil, "no A2A invoker configured for tool %s", tool.Name)
		}
		agent, err := d.agentsStore.Get(ctx, tool.BaseURL)
		if err != nil {
			return nil, gwerrors.Upstream(err, "resolve a2a agent for tool %s", tool.Name)
		}
		return d.agents.InvokeAgent(ctx, *agent, arguments)

	default:
		return nil, gwerrors.InvalidRequest("tool %s has unknown integration type %q", tool.Name, tool.IntegrationType)
	}
}

func (d *Dispatcher) resolveTool(ctx context.Context, name string) (*catalog.Tool, error) {
	page, err := d.tools.List(ctx, catalog.Filter{NameQuery: name}, catalog.PageRequest{Size: MaxNameQueryMatches})
	if err != nil {
		return nil, gwerrors.Upstream(err, "look up tool %s", name)
	}
	for i := range page.Data {
		if page.Data[i].Name == name {
			return &page.Data[i], nil
		}
	}
	return nil, gwerrors.NotFound("tool %s not found", name)
}

// MaxNameQueryMatches bounds the NameQuery lookup used to resolve an exact
// tool name, since Filter only supports substring matching.
const MaxNameQueryMatches = 50

func rateLimitKey(tool *catalog.Tool) string {
	if tool.GatewayID != "" {
		return "gw:" + tool.GatewayID
	}
	return "tool:" + tool.Name
}

func localName(qualified string) string {
	for i := len(qualified) - 1; i >= 0; i-- {
		if string(qualified[i]) == catalog.QualifiedSep {
			return qualified[i+1:]
		}
	}
	return qualified
}

func filterPassthrough(headers PassthroughHeaders, allowlist []string) PassthroughHeaders {
	if len(allowlist) == 0 || len(headers) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(allowlist))
	for _, h := range allowlist {
		allowed[h] = true
	}
	out := make(PassthroughHeaders)
	for k, v := range headers {
		if allowed[k] {
			out[k] = v
		}
	}
	return out
}
