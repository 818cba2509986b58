// Package instrumentation provides OpenTelemetry instrumentation for the
// gateway.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, dispatch invocations, plugin
//     hooks, auth outcomes, catalog operations, and federation sync
//   - Distributed tracing for request flows across the gateway's pipeline
//   - Prometheus metrics export via /metrics endpoint
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_mcp_sessions: Gauge of active MCP sessions
//
// Dispatch Metrics (spec §4.3, C2):
//   - dispatch_invocations_total: Counter of tool invocations by integration_type, status
//   - dispatch_invocation_duration_seconds: Histogram of tool invocation durations
//
// Plugin Hook Metrics (spec §4.5, C6):
//   - plugin_hook_invocations_total: Counter of plugin hook runs by hook, plugin, mode, status
//   - plugin_hook_duration_seconds: Histogram of plugin hook durations
//
// Auth Outcome Metrics (spec §4.1, C3):
//   - auth_outcome_total: Counter of login/token-issuance outcomes by result
//
// Catalog and Federation Metrics (spec §4.4, §6.2):
//   - catalog_operations_total / catalog_operation_duration_seconds: catalog CRUD
//   - federation_sync_total: catalog sync attempts against peer gateways
//   - federation_peer_connections_total: peer connection attempts
//
// # Cardinality Considerations
//
// IMPORTANT: Some metrics can include the tool name or catalog entity kind,
// which can create high cardinality in gateways with many registered tools.
// Consider:
//   - Using sampling to reduce metric volume
//   - Aggregating metrics at a higher level (e.g., by integration_type only)
//   - Using distributed tracing for detailed per-tool debugging
//   - Monitoring cardinality in your metrics backend (Prometheus, etc.)
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling
//   - MCP tool invocations
//   - Federation peer calls
//   - Catalog CRUD operations
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: false)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: mcp-gateway)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "mcp-gateway",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordHTTPRequest(ctx, "POST", "/mcp", 200, time.Since(start))
//	recorder.RecordDispatchInvocation(ctx, "list_pods", "REST", "success", time.Since(start))
package instrumentation
