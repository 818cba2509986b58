package protocol

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// Method names the JSON-RPC 2.0 methods an MCP session can invoke (spec
// §4.2's method families).
type Method string

const (
	MethodInitialize      Method = "initialize"
	MethodInitialized     Method = "notifications/initialized"
	MethodPing            Method = "ping"
	MethodToolsList       Method = "tools/list"
	MethodToolsCall       Method = "tools/call"
	MethodResourcesList   Method = "resources/list"
	MethodResourcesRead   Method = "resources/read"
	MethodPromptsList     Method = "prompts/list"
	MethodPromptsGet      Method = "prompts/get"
	MethodCompletionComplete Method = "completion/complete"
	MethodLoggingSetLevel Method = "logging/setLevel"
)

// Request is a decoded JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an encoded JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error object, populated from gwerrors.Error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// HandlerFunc processes one method call for a session, returning a result
// to marshal into Response.Result (or an error, translated via gwerrors).
type HandlerFunc func(ctx context.Context, sess *Session, params json.RawMessage) (any, error)

// Router is the method dispatch table: one HandlerFunc per Method, shared
// across all sessions and transports.
type Router struct {
	handlers map[Method]HandlerFunc
}

// NewRouter builds an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[Method]HandlerFunc)}
}

// Handle registers fn for method, overwriting any previous registration.
func (r *Router) Handle(method Method, fn HandlerFunc) {
	r.handlers[method] = fn
}

// Dispatch decodes req, enforces the session state machine's method
// gating (only MethodInitialize, MethodInitialized and MethodPing are legal
// before StateReady, per spec §4.2), invokes the registered handler, and
// builds a Response.
func (r *Router) Dispatch(ctx context.Context, sess *Session, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	if err := r.checkStateGate(sess, Method(req.Method)); err != nil {
		resp.Error = toRPCError(err)
		return resp
	}

	fn, ok := r.handlers[Method(req.Method)]
	if !ok {
		resp.Error = toRPCError(gwerrors.InvalidRequest("unknown method %q", req.Method))
		return resp
	}

	sess.Touch()
	result, err := fn(ctx, sess, req.Params)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}

	raw, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		resp.Error = toRPCError(gwerrors.Internal(marshalErr, "marshal result for %s", req.Method))
		return resp
	}
	resp.Result = raw
	return resp
}

// checkStateGate enforces the [New]->[Initializing]->[Ready]->[Closed]
// lifecycle: only initialize, the initialized notification and ping are
// callable before Ready, nothing is callable once Closed.
func (r *Router) checkStateGate(sess *Session, method Method) error {
	state := sess.State()
	if state == StateClosed {
		return gwerrors.InvalidRequest("session %s is closed", sess.ID)
	}
	if state == StateReady {
		return nil
	}
	switch method {
	case MethodInitialize, MethodInitialized, MethodPing:
		return nil
	default:
		return gwerrors.InvalidRequest("method %q called before session initialization completed", method)
	}
}

func toRPCError(err error) *RPCError {
	var gwErr *gwerrors.Error
	if !errors.As(err, &gwErr) {
		gwErr = gwerrors.Internal(err, "unclassified error")
	}
	var data any
	if len(gwErr.Details) > 0 {
		data = gwErr.Details
	}
	return &RPCError{
		Code:    gwErr.JSONRPCCode(),
		Message: gwErr.Error(),
		Data:    data,
	}
}
