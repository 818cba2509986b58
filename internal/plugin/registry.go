package plugin

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// Status values recorded against HookMetricsRecorder.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// DefaultPluginTimeout bounds both in-process and external hook
// invocations (spec §4.5 defaults).
const DefaultPluginTimeout = 30 * time.Second

// DefaultElicitationTimeout is used when an ElicitationRequest doesn't set
// its own Timeout.
const DefaultElicitationTimeout = 300 * time.Second

// Elicitor relays an ElicitationRequest to the connected MCP client via
// elicitation/create and returns its response. internal/protocol supplies
// the concrete implementation, since only it owns the client session.
type Elicitor interface {
	Elicit(ctx context.Context, sessionID string, req ElicitationRequest) (ElicitationResponse, error)
}

// HookMetricsRecorder records per-hook-invocation metrics (spec §4.5, C6).
// internal/instrumentation.Metrics satisfies this; tests can supply a fake.
type HookMetricsRecorder interface {
	RecordPluginHook(ctx context.Context, hook, pluginName, mode, status string, duration time.Duration)
}

// Registry holds the plugins configured for each Hook and runs them in
// priority order for a given request (spec §4.5, P5: strict order, halt on
// first blocking plugin).
type Registry struct {
	mu                sync.RWMutex
	plugins           map[Hook][]*Plugin
	failOnPluginError bool
	elicitor          Elicitor
	metrics           HookMetricsRecorder
}

// NewRegistry builds an empty Registry. failOnPluginError mirrors the
// global fail_on_plugin_error setting: when true, any plugin exception is
// fatal (PluginError) regardless of the plugin's own Mode.
func NewRegistry(failOnPluginError bool, elicitor Elicitor) *Registry {
	return &Registry{plugins: make(map[Hook][]*Plugin), failOnPluginError: failOnPluginError, elicitor: elicitor}
}

// Register adds p to its hook's plugin list, keeping the list sorted by
// priority ascending.
func (r *Registry) Register(p *Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := append(r.plugins[p.Hook], p)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority < list[j].Priority })
	r.plugins[p.Hook] = list
}

// SetMetrics wires a HookMetricsRecorder so every Run call records the
// hook's invocation count and duration. Optional; a nil recorder (the
// zero value) leaves Run's behavior unchanged.
func (r *Registry) SetMetrics(m HookMetricsRecorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Unregister removes the named plugin from hook's list (used when an
// admin disables or deletes a plugin at runtime).
func (r *Registry) Unregister(hook Hook, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.plugins[hook]
	for i, p := range list {
		if p.Name == name {
			r.plugins[hook] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Run invokes every applicable, enabled plugin registered for hook in
// priority order, threading pctx through each call. It returns the final
// payload (possibly mutated by ModifiedPayload) and an error only when a
// plugin blocks the request (PolicyDenied) or a fatal PluginError occurs.
func (r *Registry) Run(ctx context.Context, hook Hook, pctx *Context, match MatchRequest, payload map[string]any) (map[string]any, error) {
	r.mu.RLock()
	plugins := make([]*Plugin, len(r.plugins[hook]))
	copy(plugins, r.plugins[hook])
	metrics := r.metrics
	r.mu.RUnlock()

	current := payload
	for _, p := range plugins {
		if p.Mode == ModeDisabled {
			continue
		}
		if !p.Conditions.Matches(match) {
			continue
		}

		start := time.Now()
		result, err := r.invokeWithTimeout(ctx, p, pctx, current)
		if metrics != nil {
			status := StatusOK
			if err != nil {
				status = StatusError
			}
			metrics.RecordPluginHook(ctx, string(hook), p.Name, string(p.Mode), status, time.Since(start))
		}
		if err != nil {
			if r.failOnPluginError || p.Mode == ModeEnforce {
				return current, gwerrors.Wrap(gwerrors.CodePluginError, err, "plugin %s failed on hook %s", p.Name, hook)
			}
			// enforce_ignore_error and permissive both swallow unexpected
			// errors; enforce_ignore_error still honors declared violations,
			// handled below via the result path, not this error path.
			continue
		}

		if result.ModifiedPayload != nil {
			current = result.ModifiedPayload
		}

		if result.ElicitationRequest != nil {
			current, result, err = r.resolveElicitation(ctx, p, pctx, current, *result.ElicitationRequest)
			if err != nil {
				return current, err
			}
		}

		if !result.ContinueProcessing {
			if result.Violation == nil {
				result.Violation = &Violation{Code: "DENIED", Reason: "plugin halted processing"}
			}
			switch p.Mode {
			case ModePermissive:
				// log-and-continue: the violation is recorded, not enforced
				slog.Warn("plugin violation ignored in permissive mode",
					"plugin", p.Name,
					"hook", string(hook),
					"code", result.Violation.Code,
					"reason", result.Violation.Reason,
				)
				continue
			default: // enforce, enforce_ignore_error: declared violations always block
				return current, gwerrors.PolicyDenied("%s", result.Violation.Reason).
					WithDetails(map[string]any{"code": result.Violation.Code, "description": result.Violation.Description, "plugin": p.Name})
			}
		}
	}

	return current, nil
}

func (r *Registry) invokeWithTimeout(ctx context.Context, p *Plugin, pctx *Context, payload map[string]any) (Result, error) {
	hctx, cancel := context.WithTimeout(ctx, DefaultPluginTimeout)
	defer cancel()
	return p.Handler(hctx, pctx, payload)
}

// resolveElicitation relays req to the client, re-injects the response
// into pctx, and re-invokes p's handler exactly once more (spec P6).
func (r *Registry) resolveElicitation(ctx context.Context, p *Plugin, pctx *Context, payload map[string]any, req ElicitationRequest) (map[string]any, Result, error) {
	timeout := time.Duration(req.Timeout) * time.Second
	if timeout <= 0 {
		timeout = DefaultElicitationTimeout
	}

	if r.elicitor == nil {
		return payload, Result{}, gwerrors.PolicyDenied("plugin %s requested elicitation but no elicitor is configured", p.Name)
	}

	ectx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := r.elicitor.Elicit(ectx, pctx.SessionID, req)
	if err != nil {
		return payload, Result{}, gwerrors.PolicyDenied("elicitation for plugin %s timed out or failed: %v", p.Name, err)
	}

	pctx.ElicitationResponses[p.Name] = resp
	if resp.Outcome != ElicitationAccepted {
		return payload, Result{}, gwerrors.PolicyDenied("elicitation declined or cancelled").
			WithDetails(map[string]any{"plugin": p.Name, "outcome": string(resp.Outcome)})
	}

	result, err := r.invokeWithTimeout(ctx, p, pctx, payload)
	if err != nil {
		return payload, Result{}, gwerrors.Wrap(gwerrors.CodePluginError, err, "plugin %s failed re-invocation after elicitation", p.Name)
	}
	if result.ModifiedPayload != nil {
		payload = result.ModifiedPayload
	}
	return payload, result, nil
}

// PluginsFor returns a snapshot of the plugins registered for hook, for
// introspection (admin API, tests).
func (r *Registry) PluginsFor(hook Hook) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plugin, len(r.plugins[hook]))
	copy(out, r.plugins[hook])
	return out
}
