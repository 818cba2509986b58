package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// invokeHookToolName is the standard tool every external plugin MCP server
// must expose; the framework marshals (hook, context, payload) into its
// arguments and reads the Result back out of the tool's structured content
// (spec §4.5 "external plugin kinds").
const invokeHookToolName = "invoke_hook"

// ExternalPlugin wraps a persistent mark3labs/mcp-go client connected to a
// plugin's own MCP server, exposing a Handler that marshals through
// invoke_hook. The connection pattern (one long-lived client per backend,
// closed with the plugin) follows stacklok-toolhive's vmcp session
// connector.
type ExternalPlugin struct {
	client *mcpclient.Client
	name   string
}

// NewExternalPlugin wraps an already-initialized mcp-go client. Callers are
// responsible for having called client.Initialize against the plugin
// server before registering the resulting Handler.
func NewExternalPlugin(name string, client *mcpclient.Client) *ExternalPlugin {
	return &ExternalPlugin{client: client, name: name}
}

// Close releases the underlying MCP client connection.
func (e *ExternalPlugin) Close() error {
	return e.client.Close()
}

// Handler returns a plugin.Handler that invokes this external plugin's
// invoke_hook tool for the given hook.
func (e *ExternalPlugin) Handler(hook Hook) Handler {
	return func(ctx context.Context, pctx *Context, payload map[string]any) (Result, error) {
		args := map[string]any{
			"hook":    string(hook),
			"context": marshalContext(pctx),
			"payload": payload,
		}

		res, err := e.client.CallTool(ctx, mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      invokeHookToolName,
				Arguments: args,
			},
		})
		if err != nil {
			return Result{}, fmt.Errorf("external plugin %s: invoke_hook call failed: %w", e.name, err)
		}
		if res.IsError {
			return Result{}, fmt.Errorf("external plugin %s: invoke_hook reported an error", e.name)
		}

		return parseHookResult(res)
	}
}

func marshalContext(pctx *Context) map[string]any {
	return map[string]any{
		"request_id":            pctx.RequestID,
		"session_id":            pctx.SessionID,
		"user_email":            pctx.UserEmail,
		"team_id":               pctx.TeamID,
		"tenant_id":             pctx.TenantID,
		"global_state":          pctx.GlobalState,
		"elicitation_responses": pctx.ElicitationResponses,
	}
}

// parseHookResult decodes a CallToolResult's structured content into a
// Result. External plugins are expected to return exactly the Result JSON
// shape as structured content; a plugin returning only text content is
// treated as a bare continue-processing with no mutation.
func parseHookResult(res *mcp.CallToolResult) (Result, error) {
	if res.StructuredContent == nil {
		return Result{ContinueProcessing: true}, nil
	}

	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		return Result{}, fmt.Errorf("re-marshal structured content: %w", err)
	}

	var wire struct {
		ContinueProcessing bool                `json:"continue_processing"`
		ModifiedPayload    map[string]any      `json:"modified_payload"`
		Violation          *Violation          `json:"violation"`
		ElicitationRequest *ElicitationRequest `json:"elicitation_request"`
		Metadata           map[string]any      `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Result{}, fmt.Errorf("decode hook result: %w", err)
	}

	return Result{
		ContinueProcessing: wire.ContinueProcessing,
		ModifiedPayload:    wire.ModifiedPayload,
		Violation:          wire.Violation,
		ElicitationRequest: wire.ElicitationRequest,
		Metadata:           wire.Metadata,
	}, nil
}
