// Package server provides the shared state and HTTP side endpoints of the
// `inboxchat serve` MCP server.
//
// # Key Components
//
// ServerContext carries the gateway client (and through it the session),
// the tool metrics and the audit logger to every MCP tool handler. Shutdown
// cancels the context handed to in-flight backend calls.
//
// HealthChecker serves Kubernetes-style probes:
//   - /healthz: the process is alive
//   - /readyz: a session credential is present and the backend's /health answers
//   - /healthz/detailed: uptime, authentication and backend status
//
// MetricsServer exposes the Prometheus scrape endpoint next to the probes on
// a dedicated address, so the stdio transport stays free for MCP traffic.
package server
