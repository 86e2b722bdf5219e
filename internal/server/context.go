package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/session"
)

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	client      *gateway.Client
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	logger      *slog.Logger

	emailLimit      int
	categorizeLimit int

	mu       sync.RWMutex
	shutdown bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithMetrics records tool metrics.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(sc *ServerContext) { sc.metrics = metrics }
}

// WithAuditLogger writes one audit record per tool call.
func WithAuditLogger(al *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) { sc.auditLogger = al }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = logger }
}

// WithListLimits sets the sizes tools use when the caller gives no limit.
// Non-positive values keep the gateway defaults.
func WithListLimits(email, categorize int) Option {
	return func(sc *ServerContext) {
		if email > 0 {
			sc.emailLimit = email
		}
		if categorize > 0 {
			sc.categorizeLimit = categorize
		}
	}
}

// NewServerContext creates a new server context around the gateway client.
// The context is canceled by Shutdown.
func NewServerContext(ctx context.Context, client *gateway.Client, opts ...Option) (*ServerContext, error) {
	if client == nil {
		return nil, errors.New("gateway client is required")
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		client:          client,
		emailLimit:      gateway.DefaultEmailLimit,
		categorizeLimit: gateway.DefaultCategorizeLimit,
	}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.logger == nil {
		sc.logger = logging.Discard()
	}
	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Client returns the backend client.
func (sc *ServerContext) Client() *gateway.Client {
	return sc.client
}

// Session returns the session the client authenticates with.
func (sc *ServerContext) Session() *session.Session {
	return sc.client.Session()
}

// Metrics returns the metrics recorder, or nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// EmailLimit is the default number of emails a list tool returns.
func (sc *ServerContext) EmailLimit() int {
	return sc.emailLimit
}

// CategorizeLimit is the default number of emails the digest tool categorizes.
func (sc *ServerContext) CategorizeLimit() int {
	return sc.categorizeLimit
}

// UserEmail returns the signed-in user's address from the session token
// claims, or "" when there is no readable token.
func (sc *ServerContext) UserEmail() string {
	claims, err := sc.Session().Inspect()
	if err != nil {
		return ""
	}
	return claims.Email
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	sc.logger.Info("server context shut down")
	return nil
}
