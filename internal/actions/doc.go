// Package actions implements the per-email dialogs of the dashboard: AI reply
// (generate, edit, send) and delete (confirm, trash).
//
// Each dialog is a single state enum guarded by a mutex, so combinations such
// as sending while a draft is still generating cannot occur. Requests are
// split into Begin, run and Complete steps for event-loop callers; every
// Begin hands out a Ticket and Complete ignores tickets from before the last
// Close.
package actions

import "errors"

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// dialog's current state.
	ErrInvalidState = errors.New("action not allowed in current dialog state")
	// ErrEmptyDraft is returned when confirming a reply with a blank draft.
	ErrEmptyDraft = errors.New("reply draft is empty")
)
