package protocol

import (
	"context"
	"encoding/json"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// CatalogReader is the subset of catalog stores the protocol layer needs to
// answer tools/list, resources/list and prompts/list, scoped to the
// session's identity and optional virtual server (spec §4.1, §4.7).
type CatalogReader interface {
	ListTools(ctx context.Context, principal catalog.Principal, virtualServer string, page catalog.PageRequest) (catalog.Page[catalog.Tool], error)
	ListResources(ctx context.Context, principal catalog.Principal, virtualServer string, page catalog.PageRequest) (catalog.Page[catalog.Resource], error)
	ListPrompts(ctx context.Context, principal catalog.Principal, virtualServer string, page catalog.PageRequest) (catalog.Page[catalog.Prompt], error)

	// ResolveToolForCall enforces virtual-server scoping (spec §4.2) ahead
	// of dispatch: nil if toolName is callable in virtualServer (or
	// virtualServer is empty, meaning the session isn't scoped to one),
	// a *gwerrors.Error with CodeMethodNotFound otherwise.
	ResolveToolForCall(ctx context.Context, principal catalog.Principal, virtualServer, toolName string) error
}

// ToolInvoker executes a tools/call by name against whatever backend the
// catalog entry resolves to (local handler, REST adapter, federated peer,
// A2A agent); internal/dispatch supplies the concrete implementation.
type ToolInvoker interface {
	Invoke(ctx context.Context, principal catalog.Principal, sess *Session, toolName string, arguments map[string]any) (map[string]any, error)
}

// InitializeParams is the initialize request body.
type InitializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

// InitializeResult is the initialize response body.
type InitializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
	Capabilities map[string]any `json:"capabilities"`
}

// SupportedProtocolVersion is the single MCP protocol version this gateway
// negotiates.
const SupportedProtocolVersion = "2025-06-18"

// RegisterCoreHandlers wires initialize/ping/tools/resources/prompts onto
// router, backed by reader and invoker.
func RegisterCoreHandlers(router *Router, serverName, serverVersion string, reader CatalogReader, invoker ToolInvoker) {
	router.Handle(MethodInitialize, func(_ context.Context, sess *Session, params json.RawMessage) (any, error) {
		var p InitializeParams
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, gwerrors.InvalidRequest("invalid initialize params: %v", err)
			}
		}
		if err := sess.Transition(StateInitializing); err != nil {
			return nil, gwerrors.InvalidRequest("%v", err)
		}
		sess.ClientName = p.ClientInfo.Name
		sess.ClientVersion = p.ClientInfo.Version
		sess.NegotiatedVersion = SupportedProtocolVersion
		if err := sess.Transition(StateReady); err != nil {
			return nil, gwerrors.InvalidRequest("%v", err)
		}

		result := InitializeResult{ProtocolVersion: SupportedProtocolVersion}
		result.ServerInfo.Name = serverName
		result.ServerInfo.Version = serverVersion
		result.Capabilities = map[string]any{
			"tools":     map[string]any{"listChanged": true},
			"resources": map[string]any{"listChanged": true},
			"prompts":   map[string]any{"listChanged": true},
		}
		return result, nil
	})

	router.Handle(MethodPing, func(_ context.Context, _ *Session, _ json.RawMessage) (any, error) {
		return map[string]any{}, nil
	})

	router.Handle(MethodInitialized, func(_ context.Context, _ *Session, _ json.RawMessage) (any, error) {
		return map[string]any{}, nil
	})

	router.Handle(MethodToolsList, func(ctx context.Context, sess *Session, params json.RawMessage) (any, error) {
		page, err := decodePageRequest(params)
		if err != nil {
			return nil, err
		}
		result, err := reader.ListTools(ctx, sess.Identity, sess.VirtualServer, page)
		if err != nil {
			return nil, err
		}
		return map[string]any{"tools": result.Data, "nextCursor": result.Pagination.NextCursor}, nil
	})

	router.Handle(MethodResourcesList, func(ctx context.Context, sess *Session, params json.RawMessage) (any, error) {
		page, err := decodePageRequest(params)
		if err != nil {
			return nil, err
		}
		result, err := reader.ListResources(ctx, sess.Identity, sess.VirtualServer, page)
		if err != nil {
			return nil, err
		}
		return map[string]any{"resources": result.Data, "nextCursor": result.Pagination.NextCursor}, nil
	})

	router.Handle(MethodPromptsList, func(ctx context.Context, sess *Session, params json.RawMessage) (any, error) {
		page, err := decodePageRequest(params)
		if err != nil {
			return nil, err
		}
		result, err := reader.ListPrompts(ctx, sess.Identity, sess.VirtualServer, page)
		if err != nil {
			return nil, err
		}
		return map[string]any{"prompts": result.Data, "nextCursor": result.Pagination.NextCursor}, nil
	})

	router.Handle(MethodToolsCall, func(ctx context.Context, sess *Session, params json.RawMessage) (any, error) {
		var p struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, gwerrors.InvalidRequest("invalid tools/call params: %v", err)
		}
		if p.Name == "" {
			return nil, gwerrors.InvalidRequest("tools/call requires a name")
		}
		if err := reader.ResolveToolForCall(ctx, sess.Identity, sess.VirtualServer, p.Name); err != nil {
			return nil, err
		}
		return invoker.Invoke(ctx, sess.Identity, sess, p.Name, p.Arguments)
	})
}

func decodePageRequest(params json.RawMessage) (catalog.PageRequest, error) {
	var p struct {
		Cursor string `json:"cursor"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return catalog.PageRequest{}, gwerrors.InvalidRequest("invalid pagination params: %v", err)
		}
	}
	return catalog.PageRequest{Cursor: p.Cursor}, nil
}
