// Package plugin implements the gateway's pre/post hook pipeline (spec
// §4.5): priority-ordered in-process and external plugins inspecting or
// short-circuiting every tool/prompt/resource/agent call and every admin
// mutation, with violation and elicitation support.
//
// The interface split below is grounded directly on docker-mcp-gateway's
// pkg/plugins design: a stable contract gateway code depends on, separate
// from the two provider kinds (in-process Go code vs an external MCP
// server reached over invoke_hook) that implement it.
package plugin

import "context"

// Hook identifies one point in the request lifecycle a plugin can observe.
type Hook string

const (
	HookPromptPreFetch  Hook = "prompt_pre_fetch"
	HookPromptPostFetch Hook = "prompt_post_fetch"

	HookToolPreInvoke  Hook = "tool_pre_invoke"
	HookToolPostInvoke Hook = "tool_post_invoke"

	HookResourcePreFetch  Hook = "resource_pre_fetch"
	HookResourcePostFetch Hook = "resource_post_fetch"

	HookAgentPreInvoke  Hook = "agent_pre_invoke"
	HookAgentPostInvoke Hook = "agent_post_invoke"

	HookHTTPPreRequest         Hook = "http_pre_request"
	HookHTTPAuthResolveUser    Hook = "http_auth_resolve_user"
	HookHTTPAuthCheckPermission Hook = "http_auth_check_permission"
	HookHTTPPostRequest        Hook = "http_post_request"

	HookServerPreRegister       Hook = "server_pre_register"
	HookServerPostRegister      Hook = "server_post_register"
	HookServerPreUpdate         Hook = "server_pre_update"
	HookServerPostUpdate        Hook = "server_post_update"
	HookServerPreDelete         Hook = "server_pre_delete"
	HookServerPostDelete        Hook = "server_post_delete"
	HookServerStatusChange      Hook = "server_status_change"
	HookGatewayPreRegister      Hook = "gateway_pre_register"
	HookGatewayPostRegister     Hook = "gateway_post_register"
	HookGatewayPreUpdate        Hook = "gateway_pre_update"
	HookGatewayPostUpdate       Hook = "gateway_post_update"
	HookGatewayPreDelete        Hook = "gateway_pre_delete"
	HookGatewayPostDelete       Hook = "gateway_post_delete"
	HookGatewayStatusChange     Hook = "gateway_status_change"
)

// Mode controls how a plugin's violations and errors affect the pipeline
// (spec §4.5).
type Mode string

const (
	ModeEnforce            Mode = "enforce"
	ModeEnforceIgnoreError Mode = "enforce_ignore_error"
	ModePermissive         Mode = "permissive"
	ModeDisabled           Mode = "disabled"
)

// Kind distinguishes an in-process plugin from one reached as an external
// MCP server.
type Kind string

const (
	KindInProcess Kind = "in-process"
	KindExternal  Kind = "external"
)

// Violation is a declared policy failure, distinct from an unexpected Go
// error: violations are data the engine acts on, never exceptions it
// catches (spec §REDESIGN FLAGS).
type Violation struct {
	Code        string `json:"code"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// ElicitationRequest asks the client to collect structured input mid-hook
// via MCP's elicitation/create method.
type ElicitationRequest struct {
	Schema  map[string]any `json:"schema"`
	Message string         `json:"message"`
	Timeout int            `json:"timeout_seconds"` // 0 means DefaultElicitationTimeout
}

// ElicitationOutcome is how the client responded to an ElicitationRequest.
type ElicitationOutcome string

const (
	ElicitationAccepted ElicitationOutcome = "accept"
	ElicitationDeclined ElicitationOutcome = "decline"
	ElicitationCancelled ElicitationOutcome = "cancel"
)

// ElicitationResponse is the client's answer to a prior ElicitationRequest,
// re-injected into Context.ElicitationResponses before the originating hook
// is re-invoked.
type ElicitationResponse struct {
	Outcome ElicitationOutcome `json:"outcome"`
	Data    map[string]any     `json:"data,omitempty"`
}

// Context carries cross-hook state for a single request, threaded through
// every plugin invocation in priority order (spec §4.5).
type Context struct {
	RequestID string
	SessionID string
	UserEmail string
	TeamID    string
	TenantID  string

	// GlobalState is shared, mutable scratch space visible to every plugin
	// for the duration of the request (e.g. a PII-masking plugin recording
	// pii_masked=true for a later audit hook to read).
	GlobalState map[string]any

	// PerPluginState isolates state a plugin stashes between its own pre
	// and post hooks from other plugins' state.
	PerPluginState map[string]map[string]any

	// ElicitationResponses accumulates responses keyed by the plugin name
	// that issued the corresponding ElicitationRequest.
	ElicitationResponses map[string]ElicitationResponse
}

// NewContext builds an empty Context for a request.
func NewContext(requestID, sessionID string) *Context {
	return &Context{
		RequestID:            requestID,
		SessionID:            sessionID,
		GlobalState:          make(map[string]any),
		PerPluginState:       make(map[string]map[string]any),
		ElicitationResponses: make(map[string]ElicitationResponse),
	}
}

// StateFor returns (creating if necessary) the per-plugin state map for
// pluginName.
func (c *Context) StateFor(pluginName string) map[string]any {
	s, ok := c.PerPluginState[pluginName]
	if !ok {
		s = make(map[string]any)
		c.PerPluginState[pluginName] = s
	}
	return s
}

// Result is what a hook invocation returns: at most one of Violation or
// ElicitationRequest should be set alongside ContinueProcessing=false.
type Result struct {
	ContinueProcessing bool
	ModifiedPayload    map[string]any
	Violation          *Violation
	ElicitationRequest *ElicitationRequest
	Metadata           map[string]any
}

// Continue builds a passthrough Result, optionally attaching metadata.
func Continue(metadata map[string]any) Result {
	return Result{ContinueProcessing: true, Metadata: metadata}
}

// Deny builds a Result that halts processing with a declared Violation.
func Deny(v Violation) Result {
	return Result{ContinueProcessing: false, Violation: &v}
}

// Conditions scopes which requests a plugin applies to (spec §4.5). Empty
// slices mean "all" for that dimension.
type Conditions struct {
	Prompts   []string
	ServerIDs []string
	TenantIDs []string
	ToolNames []string
}

// Matches reports whether req satisfies every non-empty dimension of c.
func (c Conditions) Matches(req MatchRequest) bool {
	return matchesAny(c.Prompts, req.Prompt) &&
		matchesAny(c.ServerIDs, req.ServerID) &&
		matchesAny(c.TenantIDs, req.TenantID) &&
		matchesAny(c.ToolNames, req.ToolName)
}

// MatchRequest carries the dimensions Conditions.Matches filters on. Zero
// values for a dimension the hook doesn't involve (e.g. ToolName for a
// prompt hook) are treated as wildcards, since an empty Conditions
// dimension already means "all".
type MatchRequest struct {
	Prompt   string
	ServerID string
	TenantID string
	ToolName string
}

func matchesAny(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	if value == "" {
		return false
	}
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// Handler is what a plugin implements for one hook: inspect/mutate
// payload, given context, and return a Result. In-process and external
// plugins both ultimately reduce to this shape; the Handler that
// ExternalPlugin.Handler returns marshals it over invoke_hook.
type Handler func(ctx context.Context, pctx *Context, payload map[string]any) (Result, error)

// Plugin is one registered hook handler plus its scheduling metadata.
type Plugin struct {
	Name       string
	Kind       Kind
	Hook       Hook
	Priority   int // lower runs first; equal priorities run one after another in registration order (there is no parallel execution)
	Mode       Mode
	Conditions Conditions
	Handler    Handler
}
