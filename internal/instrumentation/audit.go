package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/inboxchat/internal/logging"
)

// ToolInvocation captures one MCP tool call for audit logging.
//
// UserEmail is PII. It is only written verbatim when the audit logger is
// configured with IncludePII; otherwise it is hashed.
type ToolInvocation struct {
	Tool      string
	UserEmail string
	EmailID   string
	ReadOnly  bool

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewToolInvocation creates a new ToolInvocation with timing started.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		StartTime: time.Now(),
	}
}

// WithUser sets the authenticated user's email.
func (ti *ToolInvocation) WithUser(email string) *ToolInvocation {
	ti.UserEmail = email
	return ti
}

// WithEmailID sets the email the tool acted on.
func (ti *ToolInvocation) WithEmailID(id string) *ToolInvocation {
	ti.EmailID = id
	return ti
}

// WithReadOnly marks whether the tool mutates the mailbox.
func (ti *ToolInvocation) WithReadOnly(readOnly bool) *ToolInvocation {
	ti.ReadOnly = readOnly
	return ti
}

// WithSpanContext copies the trace ID from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	return ti
}

// Complete marks the invocation as completed and calculates duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

func (ti *ToolInvocation) attrs(includePII bool) []any {
	args := []any{
		logging.Tool(ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
		slog.Bool("read_only", ti.ReadOnly),
	}
	if ti.UserEmail != "" {
		if includePII {
			args = append(args, slog.String("user", ti.UserEmail))
		} else {
			args = append(args, logging.UserHash(ti.UserEmail))
		}
	}
	if ti.EmailID != "" {
		args = append(args, logging.EmailID(ti.EmailID))
	}
	if ti.TraceID != "" {
		args = append(args, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		args = append(args, slog.String(logging.KeyError, ti.Error))
	}
	return args
}

// AuditLogger writes one structured record per MCP tool invocation.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given configuration.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation logs a completed tool invocation.
// Failed invocations are logged at warn level.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}
	if ti.Success {
		al.logger.Info("tool_executed", ti.attrs(al.includePII)...)
	} else {
		al.logger.Warn("tool_failed", ti.attrs(al.includePII)...)
	}
}
