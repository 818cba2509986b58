package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	// Common attributes (reused across metrics)
	attrMethod          = "method"
	attrPath            = "path"
	attrStatus          = "status"
	attrOperation       = "operation"
	attrEntityKind      = "entity_kind"
	attrIntegrationType = "integration_type"
	attrResult          = "result"
	attrGateway         = "gateway_id"
	attrReason          = "reason"
	attrHook            = "hook"
	attrPlugin          = "plugin"
	attrMode            = "mode"

	// Cardinality-controlled attributes
	attrUserDomain = "user_domain"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeSessions      metric.Int64UpDownCounter

	// Dispatch metrics (spec §4.3, C2 — tool invocation per backend integration type)
	dispatchInvocationsTotal   metric.Int64Counter
	dispatchInvocationDuration metric.Float64Histogram

	// Plugin hook metrics (spec §4.5, C6)
	pluginHookTotal    metric.Int64Counter
	pluginHookDuration metric.Float64Histogram

	// Auth outcome metrics (spec §4.1, C3)
	authOutcomeTotal metric.Int64Counter

	// Client cache metrics
	clientCacheHitsTotal      metric.Int64Counter
	clientCacheMissesTotal    metric.Int64Counter
	clientCacheEvictionsTotal metric.Int64Counter
	clientCacheSize           metric.Int64Gauge

	// Catalog and federation metrics (spec §4.4, §6.2)
	catalogOperationsTotal    metric.Int64Counter
	catalogOperationDuration  metric.Float64Histogram
	federationSyncTotal       metric.Int64Counter
	federationPeerConnections metric.Int64Counter

	// Configuration
	// detailedLabels controls whether high-cardinality labels (tool name on
	// dispatch metrics) are included.
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// HTTP Metrics
	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.activeSessions, err = meter.Int64UpDownCounter(
		"active_mcp_sessions",
		metric.WithDescription("Number of active MCP sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_mcp_sessions gauge: %w", err)
	}

	// Dispatch Metrics
	m.dispatchInvocationsTotal, err = meter.Int64Counter(
		"dispatch_invocations_total",
		metric.WithDescription("Total number of tool invocations dispatched to backends"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch_invocations_total counter: %w", err)
	}

	m.dispatchInvocationDuration, err = meter.Float64Histogram(
		"dispatch_invocation_duration_seconds",
		metric.WithDescription("Tool invocation duration in seconds, by backend integration type"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch_invocation_duration_seconds histogram: %w", err)
	}

	// Plugin Hook Metrics
	m.pluginHookTotal, err = meter.Int64Counter(
		"plugin_hook_invocations_total",
		metric.WithDescription("Total number of plugin hook invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin_hook_invocations_total counter: %w", err)
	}

	m.pluginHookDuration, err = meter.Float64Histogram(
		"plugin_hook_duration_seconds",
		metric.WithDescription("Plugin hook execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin_hook_duration_seconds histogram: %w", err)
	}

	// Auth Outcome Metrics
	m.authOutcomeTotal, err = meter.Int64Counter(
		"auth_outcome_total",
		metric.WithDescription("Total number of authentication outcomes (login, token issuance)"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_outcome_total counter: %w", err)
	}

	// Client Cache Metrics
	m.clientCacheHitsTotal, err = meter.Int64Counter(
		"mcp_client_cache_hits_total",
		metric.WithDescription("Total number of client cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_client_cache_hits_total counter: %w", err)
	}

	m.clientCacheMissesTotal, err = meter.Int64Counter(
		"mcp_client_cache_misses_total",
		metric.WithDescription("Total number of client cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_client_cache_misses_total counter: %w", err)
	}

	m.clientCacheEvictionsTotal, err = meter.Int64Counter(
		"mcp_client_cache_evictions_total",
		metric.WithDescription("Total number of client cache evictions. Label: reason (expired, lru, manual)"),
		metric.WithUnit("{eviction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_client_cache_evictions_total counter: %w", err)
	}

	m.clientCacheSize, err = meter.Int64Gauge(
		"mcp_client_cache_entries",
		metric.WithDescription("Current number of entries in the client cache"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_client_cache_entries gauge: %w", err)
	}

	// Catalog and Federation Metrics
	m.catalogOperationsTotal, err = meter.Int64Counter(
		"catalog_operations_total",
		metric.WithDescription("Total operations performed against the catalog store. Labels: entity_kind, operation, status"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog_operations_total counter: %w", err)
	}

	m.catalogOperationDuration, err = meter.Float64Histogram(
		"catalog_operation_duration_seconds",
		metric.WithDescription("Duration of catalog store operations. Labels: entity_kind, operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog_operation_duration_seconds histogram: %w", err)
	}

	m.federationSyncTotal, err = meter.Int64Counter(
		"federation_sync_total",
		metric.WithDescription("Total federation catalog sync attempts against peer gateways. Labels: gateway_id, result"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create federation_sync_total counter: %w", err)
	}

	m.federationPeerConnections, err = meter.Int64Counter(
		"federation_peer_connections_total",
		metric.WithDescription("Total federation peer connection attempts. Labels: gateway_id, result"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create federation_peer_connections_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDispatchInvocation records a tool invocation dispatched to a backend.
//
// CARDINALITY NOTE: When detailedLabels is false (default), only
// integration_type and status labels are recorded. When detailedLabels is
// true, the tool name is also included, at the cost of one series per tool.
func (m *Metrics) RecordDispatchInvocation(ctx context.Context, toolName, integrationType, status string, duration time.Duration) {
	if m.dispatchInvocationsTotal == nil || m.dispatchInvocationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrIntegrationType, integrationType),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels {
		attrs = append(attrs, attribute.String(attrOperation, toolName))
	}

	m.dispatchInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dispatchInvocationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordPluginHook records a plugin hook invocation with the hook name,
// plugin name, mode, status, and duration (spec §4.5, C6).
func (m *Metrics) RecordPluginHook(ctx context.Context, hook, pluginName, mode, status string, duration time.Duration) {
	if m.pluginHookTotal == nil || m.pluginHookDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrHook, hook),
		attribute.String(attrPlugin, pluginName),
		attribute.String(attrMode, mode),
		attribute.String(attrStatus, status),
	}

	m.pluginHookTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.pluginHookDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAuthOutcome records an authentication outcome (login or token
// issuance). result should be one of AuthOutcomeSuccess/Failure/Denied.
func (m *Metrics) RecordAuthOutcome(ctx context.Context, result string) {
	if m.authOutcomeTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.authOutcomeTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// IncrementActiveSessions increments the active MCP sessions counter.
func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return // Instrumentation not initialized
	}

	m.activeSessions.Add(ctx, 1)
}

// DecrementActiveSessions decrements the active MCP sessions counter.
func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return // Instrumentation not initialized
	}

	m.activeSessions.Add(ctx, -1)
}

// RecordCacheHit records a cache hit event.
func (m *Metrics) RecordCacheHit(ctx context.Context, cacheName string) {
	if m.clientCacheHitsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{}
	if cacheName != "" {
		attrs = append(attrs, attribute.String(attrReason, cacheName))
	}

	m.clientCacheHitsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheMiss records a cache miss event.
func (m *Metrics) RecordCacheMiss(ctx context.Context, cacheName string) {
	if m.clientCacheMissesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{}
	if cacheName != "" {
		attrs = append(attrs, attribute.String(attrReason, cacheName))
	}

	m.clientCacheMissesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheEviction records a cache eviction event with the reason.
// Common reasons: "expired", "lru", "manual"
func (m *Metrics) RecordCacheEviction(ctx context.Context, reason string) {
	if m.clientCacheEvictionsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrReason, reason),
	}

	m.clientCacheEvictionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// SetCacheSize sets the current cache size gauge.
func (m *Metrics) SetCacheSize(ctx context.Context, size int) {
	if m.clientCacheSize == nil {
		return // Instrumentation not initialized
	}

	m.clientCacheSize.Record(ctx, int64(size))
}

// RecordCatalogOperation records a catalog store CRUD operation (spec §6.2).
//
// Parameters:
//   - kind: the catalog entity kind (tool, resource, prompt, server, gateway, a2a_agent)
//   - operation: the operation type (get, list, create, update, delete, enable, disable)
//   - status: result status ("success" or "error")
//   - duration: time taken for the operation
func (m *Metrics) RecordCatalogOperation(ctx context.Context, kind, operation, status string, duration time.Duration) {
	if m.catalogOperationsTotal == nil || m.catalogOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrEntityKind, kind),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.catalogOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	durationAttrs := []attribute.KeyValue{
		attribute.String(attrEntityKind, kind),
		attribute.String(attrOperation, operation),
	}
	m.catalogOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))
}

// RecordFederationSync records a federation catalog sync attempt against a
// peer gateway (spec §4.4).
//
// Parameters:
//   - gatewayID: the peer gateway's ID
//   - result: FederationSyncResultSuccess or FederationSyncResultError
func (m *Metrics) RecordFederationSync(ctx context.Context, gatewayID, result string) {
	if m.federationSyncTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrGateway, gatewayID),
		attribute.String(attrResult, result),
	}

	m.federationSyncTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordFederationPeerConnection records a federation peer connection
// attempt.
//
// Parameters:
//   - gatewayID: the peer gateway's ID
//   - result: "success" or "error"
func (m *Metrics) RecordFederationPeerConnection(ctx context.Context, gatewayID, result string) {
	if m.federationPeerConnections == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrGateway, gatewayID),
		attribute.String(attrResult, result),
	}

	m.federationPeerConnections.Add(ctx, 1, metric.WithAttributes(attrs...))
}
