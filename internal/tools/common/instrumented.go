package common

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/server"
)

// shuttingDown is returned for calls that arrive after the server context
// was shut down.
const shuttingDown = "The server is shutting down."

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, metrics and an
// audit record. A handler "fails" when it returns an error or an error
// result. The handler's context is canceled when either the request or the
// server context ends, so Shutdown aborts in-flight backend calls.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", true, sc, handler))
func InstrumentedToolHandler(toolName string, readOnly bool, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := logging.WithTool(sc.Logger(), toolName)
		if sc.IsShutdown() {
			logger.Warn("tool call rejected", logging.Reason("shutdown"))
			return mcp.NewToolResultError(shuttingDown), nil
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(sc.Context(), cancel)
		defer stop()

		emailID := EmailIDFromArgs(request.GetArguments())

		var attrs []attribute.KeyValue
		if emailID != "" {
			attrs = append(attrs, attribute.String(instrumentation.SpanAttrEmailID, emailID))
		}
		ctx, span := instrumentation.StartToolSpan(ctx, toolName, attrs...)
		defer span.End()

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithReadOnly(readOnly).
			WithEmailID(emailID).
			WithSpanContext(ctx)
		if email := sc.UserEmail(); email != "" {
			invocation.WithUser(email)
		}

		result, err := handler(ctx, request)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			invocation.Complete(false, err)
			instrumentation.SetSpanError(span, err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			resultErr := errors.New(ResultText(result))
			invocation.Complete(false, resultErr)
			instrumentation.SetSpanError(span, resultErr)
		default:
			invocation.Complete(true, nil)
			instrumentation.SetSpanSuccess(span)
		}

		duration := time.Since(start)
		logger.Debug("tool call finished", logging.Status(status), slog.Duration(logging.KeyDuration, duration))
		sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)
		sc.AuditLogger().LogToolInvocation(invocation)

		return result, err
	}
}
