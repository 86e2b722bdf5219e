// Package instrumentation provides OpenTelemetry instrumentation for inboxchat.
//
// Instrumentation is off by default because the CLI is short-lived. When
// enabled (INSTRUMENTATION_ENABLED=true) the provider exports:
//
// # Metrics
//
//   - backend_requests_total / backend_request_duration_seconds: every gateway
//     call, labelled by operation and status
//   - session_invalidations_total: credential cleared, by reason (logout, unauthorized)
//   - chat_turns_total: completed chat turns, by response kind and status
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds: MCP bridge tools
//
// # Tracing
//
// Client spans named backend.<operation> wrap every gateway call, and
// tool.<name> server spans wrap MCP tool invocations.
//
// # Exporters
//
// Metrics: prometheus (scraped through MetricsHandler), otlp, stdout.
// Traces: otlp, stdout, none.
package instrumentation
