// Package gateway is the composition root: it wires catalog stores, auth,
// dispatch, federation, and plugins into the protocol router and transport
// layer, the way the teacher's internal/server.ServerContext wired
// Kubernetes clients, OAuth, and instrumentation into one struct.
package gateway

import (
	"context"
	"time"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/gwerrors"
	"github.com/mcpgateway/gateway/internal/protocol"
)

// maxNameQueryMatches bounds the NameQuery lookups this package uses to
// resolve an exact Server/Tool name to its entity, mirroring
// dispatch.MaxNameQueryMatches.
const maxNameQueryMatches = 50

// CatalogService answers tools/list, resources/list and prompts/list
// against the persisted catalog, applying the visibility predicate (spec
// §4.7) and, when the session is bound to a virtual server, the server's
// association lists (spec §3/§4.2). It satisfies protocol.CatalogReader.
//
// Virtual-server scoping is distinct from Tool.GatewayID: GatewayID records
// federation provenance (which peer a tool came from), while a Server's
// AssociatedTools/AssociatedResources/AssociatedPrompts/AssociatedA2AAgents
// record which catalog entities that named virtual server bundles together.
// A tool federated in from another gateway can belong to any number of
// virtual servers, or none.
type CatalogService struct {
	Tools     catalog.Store[catalog.Tool]
	Resources catalog.Store[catalog.Resource]
	Prompts   catalog.Store[catalog.Prompt]
	Servers   catalog.Store[catalog.Server]
	Gateways  catalog.Store[catalog.Gateway]
	A2AAgents catalog.Store[catalog.A2AAgent]

	// Metrics records catalog CRUD operation counts/durations (spec §6.2).
	// Nil is safe; callers skip recording when unset.
	Metrics CatalogMetricsRecorder
}

// CatalogMetricsRecorder is the subset of *instrumentation.Metrics the
// catalog service needs, kept as a small interface so this package doesn't
// import internal/instrumentation directly.
type CatalogMetricsRecorder interface {
	RecordCatalogOperation(ctx context.Context, kind, operation, status string, duration time.Duration)
}

var _ protocol.CatalogReader = (*CatalogService)(nil)

// ListTools returns the tools principal may see, scoped to virtualServer's
// AssociatedTools when virtualServer is non-empty.
func (c *CatalogService) ListTools(ctx context.Context, principal catalog.Principal, virtualServer string, page catalog.PageRequest) (catalog.Page[catalog.Tool], error) {
	if virtualServer == "" {
		start := time.Now()
		result, err := c.Tools.List(ctx, catalog.Filter{EnabledOnly: true}, page)
		c.recordCatalogOp(ctx, catalog.KindTool, "list", err, start)
		if err != nil {
			return catalog.Page[catalog.Tool]{}, err
		}
		result.Data = filterVisible(principal, result.Data, func(t catalog.Tool) catalog.Entity { return t.Entity })
		return result, nil
	}

	server, err := c.resolveServer(ctx, virtualServer)
	if err != nil {
		return catalog.Page[catalog.Tool]{}, err
	}
	var visible []catalog.Tool
	for _, id := range server.AssociatedTools {
		tool, err := c.Tools.Get(ctx, id)
		if err != nil {
			continue
		}
		if !tool.Enabled || !catalog.Allowed(principal, tool.Entity) {
			continue
		}
		visible = append(visible, *tool)
	}
	return paginate(visible, page), nil
}

// ListResources returns the resources principal may see, scoped to
// virtualServer's AssociatedResources when virtualServer is non-empty.
func (c *CatalogService) ListResources(ctx context.Context, principal catalog.Principal, virtualServer string, page catalog.PageRequest) (catalog.Page[catalog.Resource], error) {
	if virtualServer == "" {
		start := time.Now()
		result, err := c.Resources.List(ctx, catalog.Filter{EnabledOnly: true}, page)
		c.recordCatalogOp(ctx, catalog.KindResource, "list", err, start)
		if err != nil {
			return catalog.Page[catalog.Resource]{}, err
		}
		result.Data = filterVisible(principal, result.Data, func(r catalog.Resource) catalog.Entity { return r.Entity })
		return result, nil
	}

	server, err := c.resolveServer(ctx, virtualServer)
	if err != nil {
		return catalog.Page[catalog.Resource]{}, err
	}
	var visible []catalog.Resource
	for _, id := range server.AssociatedResources {
		resource, err := c.Resources.Get(ctx, id)
		if err != nil {
			continue
		}
		if !resource.Enabled || !catalog.Allowed(principal, resource.Entity) {
			continue
		}
		visible = append(visible, *resource)
	}
	return paginate(visible, page), nil
}

// ListPrompts returns the prompts principal may see, scoped to
// virtualServer's AssociatedPrompts when virtualServer is non-empty.
func (c *CatalogService) ListPrompts(ctx context.Context, principal catalog.Principal, virtualServer string, page catalog.PageRequest) (catalog.Page[catalog.Prompt], error) {
	if virtualServer == "" {
		start := time.Now()
		result, err := c.Prompts.List(ctx, catalog.Filter{EnabledOnly: true}, page)
		c.recordCatalogOp(ctx, catalog.KindPrompt, "list", err, start)
		if err != nil {
			return catalog.Page[catalog.Prompt]{}, err
		}
		result.Data = filterVisible(principal, result.Data, func(p catalog.Prompt) catalog.Entity { return p.Entity })
		return result, nil
	}

	server, err := c.resolveServer(ctx, virtualServer)
	if err != nil {
		return catalog.Page[catalog.Prompt]{}, err
	}
	var visible []catalog.Prompt
	for _, id := range server.AssociatedPrompts {
		prompt, err := c.Prompts.Get(ctx, id)
		if err != nil {
			continue
		}
		if !prompt.Enabled || !catalog.Allowed(principal, prompt.Entity) {
			continue
		}
		visible = append(visible, *prompt)
	}
	return paginate(visible, page), nil
}

// ResolveToolForCall enforces tools/call virtual-server scoping (spec §4.2):
// a session bound to a virtual server may only call tools that server
// associates. Unscoped sessions (virtualServer == "") may call any tool
// dispatch itself can resolve.
func (c *CatalogService) ResolveToolForCall(ctx context.Context, _ catalog.Principal, virtualServer, toolName string) error {
	if virtualServer == "" {
		return nil
	}
	server, err := c.resolveServer(ctx, virtualServer)
	if err != nil {
		return err
	}
	tool, err := c.resolveToolByName(ctx, toolName)
	if err != nil {
		return err
	}
	for _, id := range server.AssociatedTools {
		if id == tool.ID {
			return nil
		}
	}
	return gwerrors.MethodNotFound("tool %s is not associated with virtual server %s", toolName, virtualServer)
}

// resolveServer looks up the virtual server named name. Server names, like
// tool names, are queried by substring match at the store layer, so this
// narrows to the exact match the way dispatch.resolveTool does for tools.
func (c *CatalogService) resolveServer(ctx context.Context, name string) (*catalog.Server, error) {
	if c.Servers == nil {
		return nil, gwerrors.NotFound("virtual server %q not found", name)
	}
	page, err := c.Servers.List(ctx, catalog.Filter{NameQuery: name}, catalog.PageRequest{Size: maxNameQueryMatches})
	if err != nil {
		return nil, err
	}
	for i := range page.Data {
		if page.Data[i].Name == name {
			return &page.Data[i], nil
		}
	}
	return nil, gwerrors.NotFound("virtual server %q not found", name)
}

func (c *CatalogService) resolveToolByName(ctx context.Context, name string) (*catalog.Tool, error) {
	page, err := c.Tools.List(ctx, catalog.Filter{NameQuery: name}, catalog.PageRequest{Size: maxNameQueryMatches})
	if err != nil {
		return nil, err
	}
	for i := range page.Data {
		if page.Data[i].Name == name {
			return &page.Data[i], nil
		}
	}
	return nil, gwerrors.NotFound("tool %q not found", name)
}

// recordCatalogOp reports a catalog store operation's outcome and latency
// when a metrics recorder is wired (spec §6.2). Safe to call with a nil
// recorder.
func (c *CatalogService) recordCatalogOp(ctx context.Context, kind catalog.Kind, operation string, err error, start time.Time) {
	if c.Metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.Metrics.RecordCatalogOperation(ctx, string(kind), operation, status, time.Since(start))
}

// filterVisible narrows items to those principal may see under the
// visibility predicate (spec §4.7).
func filterVisible[T any](principal catalog.Principal, items []T, entityOf func(T) catalog.Entity) []T {
	visible := items[:0:0]
	for _, item := range items {
		if catalog.Allowed(principal, entityOf(item)) {
			visible = append(visible, item)
		}
	}
	return visible
}

// paginate applies offset pagination to an in-memory slice, for the
// association-scoped listings above where the candidate set is already
// bounded by a Server's association lists rather than a store query.
func paginate[T any](items []T, req catalog.PageRequest) catalog.Page[T] {
	req = req.Normalize()
	total := int64(len(items))
	start := (req.Page - 1) * req.Size
	if start > len(items) {
		start = len(items)
	}
	end := start + req.Size
	if end > len(items) {
		end = len(items)
	}
	totalPages := int((total + int64(req.Size) - 1) / int64(req.Size))
	return catalog.Page[T]{
		Data: items[start:end],
		Pagination: catalog.Pagination{
			Page:       req.Page,
			Size:       req.Size,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}
