package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
)

// Default assistant texts used when the backend sends none.
const (
	DefaultEmailListMessage   = "Here are your emails:"
	DefaultCategorizedMessage = "Here's your categorized email overview:"
	DefaultPlainMessage       = "Done."
	GenericFailureMessage     = "Sorry, something went wrong. Please try again."
)

var (
	// ErrAuthenticationFailed is returned by Init when the current user
	// cannot be fetched. The caller should return to the landing screen.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrNotReady is returned for turns started before Init succeeded.
	ErrNotReady = errors.New("chat is not ready")
	// ErrBusy is returned while a previous request is outstanding.
	ErrBusy = errors.New("a request is already in progress")
	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// Phase is the orchestrator state.
type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseIdle
	PhaseAwaiting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaiting:
		return "awaiting-response"
	default:
		return "initializing"
	}
}

// Backend is the subset of the gateway the orchestrator needs.
type Backend interface {
	CurrentUser(ctx context.Context) (*gateway.User, error)
	Chat(ctx context.Context, message string, history []gateway.Turn) (gateway.ChatReply, error)
	Categorize(ctx context.Context, limit int) (gateway.ChatReply, error)
	ListEmails(ctx context.Context, limit int) ([]gateway.Email, error)
}

// TurnKind selects the backend call a Turn makes.
type TurnKind int

const (
	TurnChat TurnKind = iota
	TurnDigest
	TurnRefresh
)

// Turn is an outstanding request started by BeginTurn, BeginDigest or
// BeginRefresh.
type Turn struct {
	Kind    TurnKind
	Message string
	History []gateway.Turn
	Limit   int

	seq uint64
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	backend Backend
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	now     func() time.Time

	mu         sync.Mutex
	phase      Phase
	seq        uint64
	user       *gateway.User
	transcript []Message
	results    ResultSet
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics records chat turn metrics.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = metrics }
}

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator in PhaseInitializing.
func New(backend Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	return o
}

// Init fetches the current user and, on success, makes the orchestrator ready.
func (o *Orchestrator) Init(ctx context.Context) error {
	user, err := o.backend.CurrentUser(ctx)
	return o.CompleteInit(user, err)
}

// CompleteInit applies the result of a current-user fetch.
func (o *Orchestrator) CompleteInit(user *gateway.User, err error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err == nil && user == nil {
		err = errors.New("no user returned")
	}
	if err != nil {
		o.phase = PhaseInitializing
		o.logger.Warn("chat init failed", logging.Err(err))
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	if o.phase != PhaseInitializing {
		return nil
	}

	o.user = user
	o.phase = PhaseIdle
	o.appendLocked(RoleAssistant, welcomeMessage(user))
	o.logger.Info("chat ready", logging.UserHash(user.Email))
	return nil
}

func welcomeMessage(user *gateway.User) string {
	name := user.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello %s! I'm your AI email assistant. "+
		"Ask me to show your latest emails or to build a daily digest, "+
		"and use /reply N or /delete N to act on a listed email.", name)
}

// BeginTurn validates text, appends it as a user message and marks the
// orchestrator as awaiting a response.
func (o *Orchestrator) BeginTurn(text string) (Turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.checkIdleLocked(); err != nil {
		return Turn{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyMessage
	}

	history := o.historyLocked()
	o.appendLocked(RoleUser, text)
	return o.startLocked(Turn{Kind: TurnChat, Message: text, History: history}), nil
}

// BeginDigest starts a categorize request.
func (o *Orchestrator) BeginDigest(limit int) (Turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.checkIdleLocked(); err != nil {
		return Turn{}, err
	}
	return o.startLocked(Turn{Kind: TurnDigest, Limit: limit}), nil
}

// BeginRefresh starts a list-emails request.
func (o *Orchestrator) BeginRefresh(limit int) (Turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.checkIdleLocked(); err != nil {
		return Turn{}, err
	}
	return o.startLocked(Turn{Kind: TurnRefresh, Limit: limit}), nil
}

func (o *Orchestrator) checkIdleLocked() error {
	switch o.phase {
	case PhaseInitializing:
		return ErrNotReady
	case PhaseAwaiting:
		return ErrBusy
	}
	return nil
}

func (o *Orchestrator) startLocked(turn Turn) Turn {
	o.seq++
	turn.seq = o.seq
	o.phase = PhaseAwaiting
	return turn
}

// Execute performs the backend call for turn. It does not touch
// orchestrator state and may run on any goroutine.
func (o *Orchestrator) Execute(ctx context.Context, turn Turn) (gateway.ChatReply, error) {
	switch turn.Kind {
	case TurnDigest:
		return o.backend.Categorize(ctx, turn.Limit)
	case TurnRefresh:
		emails, err := o.backend.ListEmails(ctx, turn.Limit)
		if err != nil {
			return gateway.ChatReply{}, err
		}
		return gateway.ChatReply{
			Kind:    gateway.EmailList,
			Message: fmt.Sprintf("Here are your last %d emails:", len(emails)),
			Emails:  emails,
		}, nil
	default:
		return o.backend.Chat(ctx, turn.Message, turn.History)
	}
}

// failedTurnKind labels turns that produced no reply in the chat turn metric.
const failedTurnKind = "error"

// CompleteTurn applies the outcome of turn. Outcomes for a turn that is no
// longer outstanding are ignored.
func (o *Orchestrator) CompleteTurn(turn Turn, reply gateway.ChatReply, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.phase != PhaseAwaiting || turn.seq != o.seq {
		o.logger.Debug("ignoring stale chat response")
		return
	}

	kind, status := reply.Kind.String(), instrumentation.StatusSuccess
	if err != nil {
		kind, status = failedTurnKind, instrumentation.StatusError
		o.failLocked(err)
	} else {
		o.applyLocked(reply)
		o.phase = PhaseIdle
	}
	o.metrics.RecordChatTurn(context.Background(), kind, status)
}

func (o *Orchestrator) failLocked(err error) {
	detail := gateway.ErrorDetail(err)
	if detail == "" {
		o.appendLocked(RoleSystem, GenericFailureMessage)
	} else {
		o.appendLocked(RoleSystem, "Error: "+detail)
	}

	if errors.Is(err, gateway.ErrUnauthorized) {
		o.phase = PhaseInitializing
		o.user = nil
	} else {
		o.phase = PhaseIdle
	}
	o.logger.Warn("chat turn failed", logging.Err(err))
}

func (o *Orchestrator) applyLocked(reply gateway.ChatReply) {
	text := strings.TrimSpace(reply.Message)

	switch reply.Kind {
	case gateway.EmailList:
		o.results = flatResults(reply.Emails)
		if text == "" {
			text = DefaultEmailListMessage
		}
	case gateway.CategorizedBundle:
		o.results = categorizedResults(reply.Categories, reply.Digest)
		if text == "" {
			text = DefaultCategorizedMessage
		}
	default:
		if reply.DeletedEmail != nil && reply.DeletedEmail.ID != "" {
			o.results = o.results.without(reply.DeletedEmail.ID)
		}
		if text == "" {
			text = DefaultPlainMessage
		}
	}
	o.appendLocked(RoleAssistant, text)
}

// Submit runs one chat turn synchronously.
func (o *Orchestrator) Submit(ctx context.Context, text string) (gateway.ChatReply, error) {
	turn, err := o.BeginTurn(text)
	if err != nil {
		return gateway.ChatReply{}, err
	}
	return o.run(ctx, turn)
}

// Digest requests the categorized overview and shows it.
func (o *Orchestrator) Digest(ctx context.Context, limit int) (gateway.ChatReply, error) {
	turn, err := o.BeginDigest(limit)
	if err != nil {
		return gateway.ChatReply{}, err
	}
	return o.run(ctx, turn)
}

// Refresh reloads the flat email list.
func (o *Orchestrator) Refresh(ctx context.Context, limit int) (gateway.ChatReply, error) {
	turn, err := o.BeginRefresh(limit)
	if err != nil {
		return gateway.ChatReply{}, err
	}
	return o.run(ctx, turn)
}

func (o *Orchestrator) run(ctx context.Context, turn Turn) (gateway.ChatReply, error) {
	reply, err := o.Execute(ctx, turn)
	o.CompleteTurn(turn, reply, err)
	return reply, err
}

// RemoveEmail drops id from the flat list and every category bucket.
// It reports whether the email was shown. Removing an absent id is a no-op.
func (o *Orchestrator) RemoveEmail(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, found := o.results.Find(id)
	if found {
		o.results = o.results.without(id)
	}
	return found
}

// Notify appends a message from outside the chat flow, such as the outcome
// of a reply or delete dialog.
func (o *Orchestrator) Notify(role Role, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.appendLocked(role, text)
}

func (o *Orchestrator) appendLocked(role Role, content string) {
	o.transcript = append(o.transcript, Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: o.now(),
	})
}

// historyLocked returns prior user and assistant turns in order.
func (o *Orchestrator) historyLocked() []gateway.Turn {
	history := make([]gateway.Turn, 0, len(o.transcript))
	for _, m := range o.transcript {
		if m.Role == RoleSystem {
			continue
		}
		history = append(history, gateway.Turn{Role: string(m.Role), Content: m.Content})
	}
	return history
}

// Phase returns the current state.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Ready reports whether Init has succeeded and no 401 has been seen since.
func (o *Orchestrator) Ready() bool {
	return o.Phase() != PhaseInitializing
}

// Busy reports whether a request is outstanding.
func (o *Orchestrator) Busy() bool {
	return o.Phase() == PhaseAwaiting
}

// User returns the user fetched by Init.
func (o *Orchestrator) User() *gateway.User {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.user == nil {
		return nil
	}
	u := *o.user
	return &u
}

// Transcript returns a copy of the transcript.
func (o *Orchestrator) Transcript() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.transcript))
	copy(out, o.transcript)
	return out
}

// Results returns a copy of the current result set.
func (o *Orchestrator) Results() ResultSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.results.clone()
}
