package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
)

// End reasons.
const (
	ReasonLogout       = instrumentation.ReasonLogout
	ReasonUnauthorized = instrumentation.ReasonUnauthorized
)

var (
	// ErrNoCredential is returned when an operation needs a credential and none is stored.
	ErrNoCredential = errors.New("not logged in")
	// ErrEmptyToken is returned by Begin for a blank token.
	ErrEmptyToken = errors.New("empty session token")
)

// EndHook is called after the credential has been cleared.
type EndHook func(reason string)

// Session is the authenticated context shared by the gateway and the views.
// A nil *Session behaves as logged out.
type Session struct {
	store   Store
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu    sync.Mutex
	hooks []EndHook
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics records session invalidations.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(s *Session) {
		s.metrics = metrics
	}
}

// New creates a Session over store.
func New(store Store, opts ...Option) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

// Credential returns the current bearer credential.
func (s *Session) Credential() (string, bool) {
	if s == nil || s.store == nil {
		return "", false
	}
	return s.store.Credential()
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	_, ok := s.Credential()
	return ok
}

// Begin stores token as the session credential, replacing any previous one.
func (s *Session) Begin(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.store.SetCredential(token); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.logger.Info("session started", slog.String("token", logging.SanitizeToken(token)))
	return nil
}

// End clears the credential and notifies every end hook.
// Hooks run even when clearing the store fails so the UI never keeps
// showing an authenticated screen.
func (s *Session) End(reason string) error {
	if s == nil {
		return nil
	}
	err := s.store.ClearCredential()

	s.metrics.RecordSessionInvalidation(context.Background(), reason)
	s.logger.Info("session ended", logging.Reason(reason), logging.Err(err))

	s.mu.Lock()
	hooks := make([]EndHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(reason)
	}
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// OnEnd registers a hook run after every End.
func (s *Session) OnEnd(hook EndHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Token implements oauth2.TokenSource over the stored credential.
func (s *Session) Token() (*oauth2.Token, error) {
	token, ok := s.Credential()
	if !ok {
		return nil, ErrNoCredential
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

var _ oauth2.TokenSource = (*Session)(nil)
