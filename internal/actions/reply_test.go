package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxchat/internal/chat"
	"github.com/teemow/inboxchat/internal/gateway"
)

type fakeReplyBackend struct {
	generateCalls int
	draft         string
	generateErr   error

	sent    []gateway.SendRequest
	sendErr error
}

func (f *fakeReplyBackend) GenerateReply(_ context.Context, emailID, _ string) (*gateway.GeneratedReply, error) {
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &gateway.GeneratedReply{Reply: f.draft}, nil
}

func (f *fakeReplyBackend) SendEmail(_ context.Context, req gateway.SendRequest) (*gateway.SendResult, error) {
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &gateway.SendResult{Message: "Email sent successfully", EmailID: "s1"}, nil
}

type recordingNotifier struct {
	messages []string
	roles    []chat.Role
}

func (r *recordingNotifier) Notify(role chat.Role, text string) {
	r.roles = append(r.roles, role)
	r.messages = append(r.messages, text)
}

var testEmail = gateway.Email{
	ID:          "m1",
	ThreadID:    "t1",
	Subject:     "Quarterly report",
	From:        "Ann Lee <ann@example.com>",
	SenderName:  "Ann Lee",
	SenderEmail: "ann@example.com",
}

func TestReplyDialog_HappyPath(t *testing.T) {
	backend := &fakeReplyBackend{draft: "Thanks Ann, looks good."}
	notifier := &recordingNotifier{}
	d := NewReplyDialog(backend, notifier, nil)

	require.NoError(t, d.Open(context.Background(), testEmail, ""))
	assert.Equal(t, 1, backend.generateCalls, "opening triggers exactly one generation")
	assert.Equal(t, ReplyEditable, d.State())
	assert.Equal(t, "Thanks Ann, looks good.", d.Draft())
	assert.True(t, d.CanConfirm())

	require.NoError(t, d.SetDraft("Thanks Ann!"))
	require.NoError(t, d.Confirm(context.Background()))

	require.Len(t, backend.sent, 1)
	assert.Equal(t, gateway.SendRequest{
		To:       "ann@example.com",
		Subject:  "Re: Quarterly report",
		Body:     "Thanks Ann!",
		ThreadID: "t1",
	}, backend.sent[0])
	assert.Equal(t, ReplySent, d.State())
	assert.False(t, d.IsOpen())
	assert.Equal(t, []string{"Reply sent to ann@example.com."}, notifier.messages)
	assert.Equal(t, []chat.Role{chat.RoleAssistant}, notifier.roles)
}

func TestReplyDialog_GenerationFailure(t *testing.T) {
	backend := &fakeReplyBackend{generateErr: errors.New("AI unavailable")}
	d := NewReplyDialog(backend, nil, nil)

	err := d.Open(context.Background(), testEmail, "")
	assert.Error(t, err)
	assert.Equal(t, ReplyEditable, d.State(), "dialog stays open")
	assert.True(t, d.IsOpen())
	assert.Empty(t, d.Draft())
	assert.EqualError(t, d.Err(), "AI unavailable")
	assert.False(t, d.CanConfirm(), "confirm disabled until the user types")

	require.NoError(t, d.SetDraft("   "))
	assert.False(t, d.CanConfirm())
	_, err = d.BeginConfirm()
	assert.ErrorIs(t, err, ErrEmptyDraft)

	require.NoError(t, d.SetDraft("Manual reply"))
	assert.True(t, d.CanConfirm())
}

func TestReplyDialog_ConfirmDisabledWhileInFlight(t *testing.T) {
	backend := &fakeReplyBackend{draft: "draft"}
	d := NewReplyDialog(backend, nil, nil)

	ticket, err := d.BeginOpen(testEmail, "")
	require.NoError(t, err)
	assert.Equal(t, ReplyGenerating, d.State())
	assert.False(t, d.CanConfirm())
	assert.ErrorIs(t, d.SetDraft("x"), ErrInvalidState)
	_, err = d.BeginConfirm()
	assert.ErrorIs(t, err, ErrInvalidState)

	d.CompleteOpen(ticket, "draft", nil)
	send, err := d.BeginConfirm()
	require.NoError(t, err)
	assert.Equal(t, ReplySending, d.State())
	assert.False(t, d.CanConfirm())
	_, err = d.BeginConfirm()
	assert.ErrorIs(t, err, ErrInvalidState, "no second send while sending")
	assert.Equal(t, "m1", send.EmailID())
}

func TestReplyDialog_SendFailureKeepsDialogOpen(t *testing.T) {
	backend := &fakeReplyBackend{draft: "draft", sendErr: &gateway.APIError{StatusCode: 500, Detail: "Failed to send email"}}
	notifier := &recordingNotifier{}
	d := NewReplyDialog(backend, notifier, nil)

	require.NoError(t, d.Open(context.Background(), testEmail, ""))
	err := d.Confirm(context.Background())
	assert.Error(t, err)

	assert.Equal(t, ReplyEditable, d.State())
	assert.Equal(t, "draft", d.Draft(), "draft kept for a manual retry")
	assert.Error(t, d.Err())
	assert.True(t, d.CanConfirm())
	assert.Len(t, backend.sent, 1, "never retried automatically")
	assert.Empty(t, notifier.messages)
}

func TestReplyDialog_LateResponseAfterClose(t *testing.T) {
	d := NewReplyDialog(&fakeReplyBackend{}, nil, nil)

	ticket, err := d.BeginOpen(testEmail, "")
	require.NoError(t, err)
	d.Close()
	d.CompleteOpen(ticket, "late draft", nil)

	assert.Equal(t, ReplyClosed, d.State())
	assert.Empty(t, d.Draft())

	// Reopening for another email ignores the first ticket too.
	second, err := d.BeginOpen(gateway.Email{ID: "m2"}, "")
	require.NoError(t, err)
	d.CompleteOpen(ticket, "late draft", nil)
	assert.Equal(t, ReplyGenerating, d.State())
	d.CompleteOpen(second, "fresh", nil)
	assert.Equal(t, "fresh", d.Draft())
}

func TestReplyDialog_OpenWhileOpen(t *testing.T) {
	d := NewReplyDialog(&fakeReplyBackend{draft: "x"}, nil, nil)
	require.NoError(t, d.Open(context.Background(), testEmail, ""))

	_, err := d.BeginOpen(gateway.Email{ID: "other"}, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReplyDialog_OpenWithDraft(t *testing.T) {
	backend := &fakeReplyBackend{draft: "generated"}
	d := NewReplyDialog(backend, nil, nil)

	require.NoError(t, d.OpenWithDraft(testEmail, "My own words."))
	assert.Equal(t, ReplyEditable, d.State())
	assert.Equal(t, "My own words.", d.Draft())
	assert.True(t, d.CanConfirm())
	assert.Equal(t, 0, backend.generateCalls)

	assert.ErrorIs(t, d.OpenWithDraft(testEmail, "again"), ErrInvalidState)

	require.NoError(t, d.Confirm(context.Background()))
	require.Len(t, backend.sent, 1)
	assert.Equal(t, "My own words.", backend.sent[0].Body)
	assert.Equal(t, "Re: Quarterly report", backend.sent[0].Subject)
	assert.Equal(t, 0, backend.generateCalls)
}

func TestReplyDialog_OpenWithDraftIgnoresEarlierGeneration(t *testing.T) {
	d := NewReplyDialog(&fakeReplyBackend{}, nil, nil)
	ticket, err := d.BeginOpen(testEmail, "")
	require.NoError(t, err)
	d.Close()

	require.NoError(t, d.OpenWithDraft(testEmail, "typed"))
	d.CompleteOpen(ticket, "late draft", nil)

	assert.Equal(t, "typed", d.Draft())
}

func TestReplySubject(t *testing.T) {
	tests := map[string]string{
		"Hello":          "Re: Hello",
		"Re: Hello":      "Re: Hello",
		"RE: Hello":      "RE: Hello",
		"  re:Hello  ":   "re:Hello",
		"Regarding plan": "Re: Regarding plan",
	}
	for in, want := range tests {
		assert.Equal(t, want, ReplySubject(in), in)
	}
}

func TestBuildReply_FallsBackToFromHeader(t *testing.T) {
	req := BuildReply(gateway.Email{Subject: "Hi", From: "Bob <bob@example.com>"}, "body")
	assert.Equal(t, "bob@example.com", req.To)
	assert.Empty(t, req.ThreadID)
}
