package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/logging"
)

// DeleteState is the delete dialog state.
type DeleteState int

const (
	DeleteClosed DeleteState = iota
	DeleteConfirming
	DeleteDeleting
	DeleteDeleted
)

func (s DeleteState) String() string {
	switch s {
	case DeleteConfirming:
		return "confirming"
	case DeleteDeleting:
		return "deleting"
	case DeleteDeleted:
		return "deleted"
	default:
		return "closed"
	}
}

// DeleteBackend trashes emails.
type DeleteBackend interface {
	DeleteEmail(ctx context.Context, emailID string) error
}

// Remover drops an email from the shown result set.
type Remover interface {
	RemoveEmail(id string) bool
}

// DeleteDialog is the confirm-then-trash flow.
type DeleteDialog struct {
	backend  DeleteBackend
	remover  Remover
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	state DeleteState
	email gateway.Email
	err   error
	epoch uint64
}

// NewDeleteDialog creates a closed delete dialog. remover and notifier may be nil.
func NewDeleteDialog(backend DeleteBackend, remover Remover, notifier Notifier, logger *slog.Logger) *DeleteDialog {
	if logger == nil {
		logger = logging.Discard()
	}
	return &DeleteDialog{backend: backend, remover: remover, notifier: notifier, logger: logger}
}

// Open asks for confirmation to delete email.
func (d *DeleteDialog) Open(email gateway.Email) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != DeleteClosed && d.state != DeleteDeleted {
		return fmt.Errorf("open delete: %w (%s)", ErrInvalidState, d.state)
	}
	d.epoch++
	d.state = DeleteConfirming
	d.email = email
	d.err = nil
	return nil
}

// CanConfirm reports whether the confirm control is enabled.
func (d *DeleteDialog) CanConfirm() bool {
	return d.State() == DeleteConfirming
}

// BeginConfirm enters DeleteDeleting.
func (d *DeleteDialog) BeginConfirm() (Ticket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != DeleteConfirming {
		return Ticket{}, fmt.Errorf("confirm delete: %w (%s)", ErrInvalidState, d.state)
	}
	d.state = DeleteDeleting
	d.err = nil
	return Ticket{epoch: d.epoch, emailID: d.email.ID}, nil
}

// Delete performs the delete request for t. It does not touch dialog state.
func (d *DeleteDialog) Delete(ctx context.Context, t Ticket) error {
	return d.backend.DeleteEmail(ctx, t.emailID)
}

// CompleteConfirm applies a delete result. On success the email is removed
// from the result set; on failure the dialog returns to DeleteConfirming.
func (d *DeleteDialog) CompleteConfirm(t Ticket, err error) {
	d.mu.Lock()
	if t.epoch != d.epoch || d.state != DeleteDeleting {
		d.mu.Unlock()
		return
	}
	if err != nil {
		d.state = DeleteConfirming
		d.err = err
		d.mu.Unlock()
		d.logger.Warn("delete failed", logging.EmailID(t.emailID), logging.Err(err))
		return
	}
	d.state = DeleteDeleted
	subject := d.email.Subject
	remover, notifier := d.remover, d.notifier
	d.mu.Unlock()

	d.logger.Info("email moved to trash", logging.EmailID(t.emailID))
	if remover != nil {
		remover.RemoveEmail(t.emailID)
	}
	if notifier != nil {
		notifier.Notify(chat.RoleAssistant, DeletedMessage(subject))
	}
}

// DeletedMessage is the success text for a trashed email.
func DeletedMessage(subject string) string {
	if subject == "" {
		return "Email moved to trash."
	}
	return fmt.Sprintf("Email %q moved to trash.", subject)
}

// Confirm runs BeginConfirm, Delete and CompleteConfirm.
func (d *DeleteDialog) Confirm(ctx context.Context) error {
	t, err := d.BeginConfirm()
	if err != nil {
		return err
	}
	err = d.Delete(ctx, t)
	d.CompleteConfirm(t, err)
	return err
}

// Close resets the dialog.
func (d *DeleteDialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epoch++
	d.state = DeleteClosed
	d.email = gateway.Email{}
	d.err = nil
}

// State returns the current state.
func (d *DeleteDialog) State() DeleteState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsOpen reports whether the dialog is showing.
func (d *DeleteDialog) IsOpen() bool {
	s := d.State()
	return s == DeleteConfirming || s == DeleteDeleting
}

// Err returns the last delete error.
func (d *DeleteDialog) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Email returns the email being deleted.
func (d *DeleteDialog) Email() gateway.Email {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.email
}
