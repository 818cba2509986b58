// Package server provides the gateway's operational HTTP surface: health and
// readiness probes, Prometheus metrics scraping, and the platform-admin CRUD
// API over the catalog (tools, resources, prompts, virtual servers, peer
// gateways, A2A agents).
//
// Everything here sits alongside the MCP transport server built in
// internal/transport; this package answers operational and administrative
// requests, not MCP protocol requests.
//
// HealthChecker (health.go) serves /healthz, /readyz, and /healthz/detailed
// against a *gateway.AppState, reporting catalog database reachability,
// federation peer counts, and instrumentation status.
//
// AdminServer (admin.go) mounts the health endpoints, a /metrics endpoint
// backed by the instrumentation Provider, and the platform-admin catalog CRUD
// routes (crud.go), gated by auth_routes.go's bearer-token + IsPlatformAdmin
// check. It follows the same listen/serve/graceful-shutdown shape as
// internal/transport.RunStreamableHTTP.
package server
