package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/logging"
)

// ReplyState is the reply dialog state.
type ReplyState int

const (
	ReplyClosed ReplyState = iota
	ReplyGenerating
	ReplyEditable
	ReplySending
	ReplySent
)

func (s ReplyState) String() string {
	switch s {
	case ReplyGenerating:
		return "generating"
	case ReplyEditable:
		return "editable"
	case ReplySending:
		return "sending"
	case ReplySent:
		return "sent"
	default:
		return "closed"
	}
}

// ReplyBackend generates and sends replies.
type ReplyBackend interface {
	GenerateReply(ctx context.Context, emailID, customContext string) (*gateway.GeneratedReply, error)
	SendEmail(ctx context.Context, req gateway.SendRequest) (*gateway.SendResult, error)
}

// Notifier receives user-visible outcome messages.
type Notifier interface {
	Notify(role chat.Role, text string)
}

// Ticket identifies one in-flight dialog request.
type Ticket struct {
	epoch         uint64
	emailID       string
	customContext string
	request       gateway.SendRequest
}

// EmailID returns the email the request acts on.
func (t Ticket) EmailID() string { return t.emailID }

// ReplyDialog is the generate, edit and send flow for one email at a time.
type ReplyDialog struct {
	backend  ReplyBackend
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	state ReplyState
	email gateway.Email
	draft string
	err   error
	epoch uint64
}

// NewReplyDialog creates a closed reply dialog. notifier may be nil.
func NewReplyDialog(backend ReplyBackend, notifier Notifier, logger *slog.Logger) *ReplyDialog {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ReplyDialog{backend: backend, notifier: notifier, logger: logger}
}

// ReplySubject prefixes subject with "Re: " unless it already has it.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

// BuildReply returns the send request answering email with body.
func BuildReply(email gateway.Email, body string) gateway.SendRequest {
	return gateway.SendRequest{
		To:       email.ReplyAddress(),
		Subject:  ReplySubject(email.Subject),
		Body:     body,
		ThreadID: email.ThreadID,
	}
}

// BeginOpen opens the dialog for email and enters ReplyGenerating.
// customContext is optional guidance for the generated draft.
func (d *ReplyDialog) BeginOpen(email gateway.Email, customContext string) (Ticket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != ReplyClosed && d.state != ReplySent {
		return Ticket{}, fmt.Errorf("open reply: %w (%s)", ErrInvalidState, d.state)
	}
	d.epoch++
	d.state = ReplyGenerating
	d.email = email
	d.draft = ""
	d.err = nil
	return Ticket{epoch: d.epoch, emailID: email.ID, customContext: customContext}, nil
}

// Generate requests the draft for t. It does not touch dialog state.
func (d *ReplyDialog) Generate(ctx context.Context, t Ticket) (string, error) {
	reply, err := d.backend.GenerateReply(ctx, t.emailID, t.customContext)
	if err != nil {
		return "", err
	}
	return reply.Reply, nil
}

// CompleteOpen applies a generation result. On failure the dialog becomes
// editable with an empty draft and keeps the error for display.
func (d *ReplyDialog) CompleteOpen(t Ticket, draft string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t.epoch != d.epoch || d.state != ReplyGenerating {
		return
	}
	d.state = ReplyEditable
	if err != nil {
		d.draft = ""
		d.err = err
		d.logger.Warn("reply generation failed", logging.EmailID(t.emailID), logging.Err(err))
		return
	}
	d.draft = draft
}

// Open runs BeginOpen, Generate and CompleteOpen. The generation error is
// returned but the dialog stays open.
func (d *ReplyDialog) Open(ctx context.Context, email gateway.Email, customContext string) error {
	t, err := d.BeginOpen(email, customContext)
	if err != nil {
		return err
	}
	draft, err := d.Generate(ctx, t)
	d.CompleteOpen(t, draft, err)
	return err
}

// OpenWithDraft opens the dialog for email with a draft written by the user.
// No reply is generated and the dialog starts out editable.
func (d *ReplyDialog) OpenWithDraft(email gateway.Email, draft string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != ReplyClosed && d.state != ReplySent {
		return fmt.Errorf("open reply: %w (%s)", ErrInvalidState, d.state)
	}
	d.epoch++
	d.state = ReplyEditable
	d.email = email
	d.draft = draft
	d.err = nil
	return nil
}

// SetDraft replaces the draft. Only allowed while editable.
func (d *ReplyDialog) SetDraft(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != ReplyEditable {
		return fmt.Errorf("edit reply: %w (%s)", ErrInvalidState, d.state)
	}
	d.draft = text
	return nil
}

// CanConfirm reports whether the send control is enabled.
func (d *ReplyDialog) CanConfirm() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == ReplyEditable && strings.TrimSpace(d.draft) != ""
}

// BeginConfirm enters ReplySending and returns the ticket carrying the
// send request.
func (d *ReplyDialog) BeginConfirm() (Ticket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != ReplyEditable {
		return Ticket{}, fmt.Errorf("send reply: %w (%s)", ErrInvalidState, d.state)
	}
	if strings.TrimSpace(d.draft) == "" {
		return Ticket{}, ErrEmptyDraft
	}
	d.state = ReplySending
	d.err = nil
	return Ticket{epoch: d.epoch, emailID: d.email.ID, request: BuildReply(d.email, d.draft)}, nil
}

// Send performs the send request for t. It does not touch dialog state.
func (d *ReplyDialog) Send(ctx context.Context, t Ticket) (*gateway.SendResult, error) {
	return d.backend.SendEmail(ctx, t.request)
}

// CompleteConfirm applies a send result. Failure returns the dialog to
// ReplyEditable with the error; it is never retried.
func (d *ReplyDialog) CompleteConfirm(t Ticket, err error) {
	d.mu.Lock()
	if t.epoch != d.epoch || d.state != ReplySending {
		d.mu.Unlock()
		return
	}
	if err != nil {
		d.state = ReplyEditable
		d.err = err
		d.mu.Unlock()
		d.logger.Warn("reply send failed", logging.EmailID(t.emailID), logging.Err(err))
		return
	}
	d.state = ReplySent
	d.draft = ""
	notifier := d.notifier
	d.mu.Unlock()

	d.logger.Info("reply sent", logging.EmailID(t.emailID))
	if notifier != nil {
		notifier.Notify(chat.RoleAssistant, fmt.Sprintf("Reply sent to %s.", t.request.To))
	}
}

// Confirm runs BeginConfirm, Send and CompleteConfirm.
func (d *ReplyDialog) Confirm(ctx context.Context) error {
	t, err := d.BeginConfirm()
	if err != nil {
		return err
	}
	_, err = d.Send(ctx, t)
	d.CompleteConfirm(t, err)
	return err
}

// Close resets the dialog. Responses to requests started before Close are
// ignored.
func (d *ReplyDialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epoch++
	d.state = ReplyClosed
	d.email = gateway.Email{}
	d.draft = ""
	d.err = nil
}

// State returns the current state.
func (d *ReplyDialog) State() ReplyState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsOpen reports whether the dialog is showing.
func (d *ReplyDialog) IsOpen() bool {
	s := d.State()
	return s != ReplyClosed && s != ReplySent
}

// Draft returns the current draft text.
func (d *ReplyDialog) Draft() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draft
}

// Err returns the last generation or send error.
func (d *ReplyDialog) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Email returns the email being replied to.
func (d *ReplyDialog) Email() gateway.Email {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.email
}
