package plugin

import (
	"context"

	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// Config is the plugins section of gateway configuration (spec §4.5),
// grounded directly on docker-mcp-gateway's pkg/plugins.Config: one slot
// per plugin kind, each independently pointed at an in-process
// implementation or an external MCP server.
type Config struct {
	Plugins []PluginSpec `json:"plugins" yaml:"plugins"`
	// FailOnPluginError mirrors spec §4.5's global fail_on_plugin_error:
	// when true, any plugin exception is fatal regardless of Mode.
	FailOnPluginError bool `json:"fail_on_plugin_error" yaml:"fail_on_plugin_error"`
}

// PluginSpec configures one registered plugin.
type PluginSpec struct {
	Name       string     `json:"name" yaml:"name"`
	Hook       Hook       `json:"hook" yaml:"hook"`
	Priority   int        `json:"priority" yaml:"priority"`
	Mode       Mode       `json:"mode" yaml:"mode"`
	Conditions Conditions `json:"conditions" yaml:"conditions"`

	// Provider selects the implementation kind: "in-memory" or "mcp",
	// matching docker-mcp-gateway's PluginConfig.Provider naming.
	Provider string `json:"provider" yaml:"provider"`
	// Implementation names a built-in in-process implementation (e.g.
	// "always-allow", "stdout-audit"), used when Provider == "in-memory".
	Implementation string `json:"implementation,omitempty" yaml:"implementation,omitempty"`
	// ServerEndpoint is the external plugin's MCP server endpoint, used
	// when Provider == "mcp".
	ServerEndpoint string `json:"server_endpoint,omitempty" yaml:"server_endpoint,omitempty"`
}

// InProcessFactory builds a Handler for a named built-in implementation.
// Registered factories cover the hook framework's reference
// implementations; concrete security plugins (PII masking, content
// moderation, ...) are out of scope (spec §1 Non-goals).
type InProcessFactory func() Handler

// builtins maps Implementation names to factories. AlwaysAllow and
// StdoutAudit are the two reference implementations the spec's examples
// exercise directly (§8 scenario 6's elicitation-decline flow needs
// *some* concrete pre-hook to decline against, and every deployment needs
// a trivial audit sink to develop against before wiring a real one).
var builtins = map[string]InProcessFactory{
	"always-allow": func() Handler { return AlwaysAllowHandler },
	"stdout-audit": func() Handler { return StdoutAuditHandler },
}

// RegisterBuiltin adds or overrides a named in-process implementation,
// letting a deployment ship its own built-ins without forking this
// package.
func RegisterBuiltin(name string, factory InProcessFactory) {
	builtins[name] = factory
}

// AlwaysAllowHandler is the trivial pre-hook reference implementation: it
// never denies and never mutates the payload.
func AlwaysAllowHandler(_ context.Context, _ *Context, payload map[string]any) (Result, error) {
	return Result{ContinueProcessing: true, ModifiedPayload: payload}, nil
}

// StdoutAuditHandler is the trivial post-hook reference implementation: it
// records the request ID under GlobalState["last_audited_request_id"] for a
// later audit sink to read, without touching the payload. It writes nothing
// to stdout.
func StdoutAuditHandler(_ context.Context, pctx *Context, payload map[string]any) (Result, error) {
	pctx.GlobalState["last_audited_request_id"] = pctx.RequestID
	return Result{ContinueProcessing: true, ModifiedPayload: payload}, nil
}

// BuildRegistry constructs a Registry from cfg, wiring each PluginSpec to
// either a built-in in-process Handler or an already-connected
// ExternalPlugin looked up from externalPlugins (keyed by ServerEndpoint).
func BuildRegistry(cfg Config, elicitor Elicitor, externalPlugins map[string]*ExternalPlugin) (*Registry, error) {
	reg := NewRegistry(cfg.FailOnPluginError, elicitor)

	for _, spec := range cfg.Plugins {
		var handler Handler
		var kind Kind

		switch spec.Provider {
		case "in-memory", "":
			factory, ok := builtins[spec.Implementation]
			if !ok {
				return nil, unknownImplementationError(spec)
			}
			handler = factory()
			kind = KindInProcess
		case "mcp":
			ext, ok := externalPlugins[spec.ServerEndpoint]
			if !ok {
				return nil, unknownEndpointError(spec)
			}
			handler = ext.Handler(spec.Hook)
			kind = KindExternal
		default:
			return nil, unknownProviderError(spec)
		}

		reg.Register(&Plugin{
			Name:       spec.Name,
			Kind:       kind,
			Hook:       spec.Hook,
			Priority:   spec.Priority,
			Mode:       spec.Mode,
			Conditions: spec.Conditions,
			Handler:    handler,
		})
	}

	return reg, nil
}

func unknownImplementationError(spec PluginSpec) error {
	return gwerrors.InvalidRequest("plugin %s: unknown in-memory implementation %q", spec.Name, spec.Implementation)
}

func unknownEndpointError(spec PluginSpec) error {
	return gwerrors.InvalidRequest("plugin %s: no connected external plugin for endpoint %q", spec.Name, spec.ServerEndpoint)
}

func unknownProviderError(spec PluginSpec) error {
	return gwerrors.InvalidRequest("plugin %s: unknown provider %q (expected \"in-memory\" or \"mcp\")", spec.Name, spec.Provider)
}
