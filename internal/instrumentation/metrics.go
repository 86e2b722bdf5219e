package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrOperation = "operation"
	attrStatus    = "status"
	attrReason    = "reason"
	attrKind      = "kind"
	attrTool      = "tool"
)

// Metrics records client-side observability metrics.
// A zero Metrics (or a nil *Metrics) records nothing.
type Metrics struct {
	// Backend request metrics
	backendRequestsTotal   metric.Int64Counter
	backendRequestDuration metric.Float64Histogram

	// Session metrics
	sessionInvalidationsTotal metric.Int64Counter

	// Chat metrics
	chatTurnsTotal metric.Int64Counter

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.backendRequestsTotal, err = meter.Int64Counter(
		"backend_requests_total",
		metric.WithDescription("Total number of requests sent to the email assistant backend"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_requests_total counter: %w", err)
	}

	m.backendRequestDuration, err = meter.Float64Histogram(
		"backend_request_duration_seconds",
		metric.WithDescription("Backend request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_request_duration_seconds histogram: %w", err)
	}

	m.sessionInvalidationsTotal, err = meter.Int64Counter(
		"session_invalidations_total",
		metric.WithDescription("Total number of times the local session credential was cleared"),
		metric.WithUnit("{invalidation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session_invalidations_total counter: %w", err)
	}

	m.chatTurnsTotal, err = meter.Int64Counter(
		"chat_turns_total",
		metric.WithDescription("Total number of completed chat turns by response kind"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_turns_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordBackendRequest records one gateway call.
//
// Parameters:
//   - operation: gateway operation name (auth.me, emails.list, chat.turn, ...)
//   - status: "success" or "error"
//   - duration: wall time including response decoding
func (m *Metrics) RecordBackendRequest(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.backendRequestsTotal == nil || m.backendRequestDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.backendRequestsTotal.Add(ctx, 1, attrs)
	m.backendRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSessionInvalidation records the session credential being cleared.
// Reason should be one of: "logout", "unauthorized"
func (m *Metrics) RecordSessionInvalidation(ctx context.Context, reason string) {
	if m == nil || m.sessionInvalidationsTotal == nil {
		return
	}
	m.sessionInvalidationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
}

// RecordChatTurn records a completed chat turn.
// Kind is the decoded response variant; status is "success" or "error".
func (m *Metrics) RecordChatTurn(ctx context.Context, kind, status string) {
	if m == nil || m.chatTurnsTotal == nil {
		return
	}
	m.chatTurnsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}
