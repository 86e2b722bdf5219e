package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/instrumentation"
)

type fakeBackend struct {
	user    *gateway.User
	userErr error

	replies   []gateway.ChatReply
	chatErrs  []error
	histories [][]gateway.Turn

	categorize    gateway.ChatReply
	categorizeErr error
	emails        []gateway.Email
	listErr       error
	listLimits    []int
}

func (f *fakeBackend) CurrentUser(context.Context) (*gateway.User, error) {
	return f.user, f.userErr
}

func (f *fakeBackend) Chat(_ context.Context, _ string, history []gateway.Turn) (gateway.ChatReply, error) {
	i := len(f.histories)
	f.histories = append(f.histories, history)
	var err error
	if i < len(f.chatErrs) {
		err = f.chatErrs[i]
	}
	if err != nil {
		return gateway.ChatReply{}, err
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return gateway.ChatReply{Kind: gateway.PlainMessage}, nil
}

func (f *fakeBackend) Categorize(context.Context, int) (gateway.ChatReply, error) {
	return f.categorize, f.categorizeErr
}

func (f *fakeBackend) ListEmails(_ context.Context, limit int) ([]gateway.Email, error) {
	f.listLimits = append(f.listLimits, limit)
	return f.emails, f.listErr
}

func readyOrchestrator(t *testing.T, fb *fakeBackend) *Orchestrator {
	t.Helper()
	if fb.user == nil && fb.userErr == nil {
		fb.user = &gateway.User{Email: "jane@example.com", Name: "Jane"}
	}
	o := New(fb)
	require.NoError(t, o.Init(context.Background()))
	return o
}

func emails(ids ...string) []gateway.Email {
	out := make([]gateway.Email, len(ids))
	for i, id := range ids {
		out[i] = gateway.Email{ID: id, Subject: "Subject " + id}
	}
	return out
}

func TestInit(t *testing.T) {
	t.Run("success appends welcome", func(t *testing.T) {
		o := readyOrchestrator(t, &fakeBackend{})
		assert.Equal(t, PhaseIdle, o.Phase())
		transcript := o.Transcript()
		require.Len(t, transcript, 1)
		assert.Equal(t, RoleAssistant, transcript[0].Role)
		assert.Contains(t, transcript[0].Content, "Hello Jane!")
		assert.Equal(t, "jane@example.com", o.User().Email)
	})

	t.Run("failure stays initializing", func(t *testing.T) {
		cause := fmt.Errorf("auth.me: %w", gateway.ErrUnauthorized)
		o := New(&fakeBackend{userErr: cause})

		err := o.Init(context.Background())
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.ErrorIs(t, err, gateway.ErrUnauthorized)
		assert.Equal(t, PhaseInitializing, o.Phase())
		assert.Empty(t, o.Transcript())

		_, err = o.BeginTurn("hello")
		assert.ErrorIs(t, err, ErrNotReady)
	})
}

func TestSubmit_EmailListScenario(t *testing.T) {
	fb := &fakeBackend{replies: []gateway.ChatReply{
		{Kind: gateway.CategorizedBundle, Categories: gateway.Categories{Work: emails("w1")}, Digest: "d"},
		{Kind: gateway.EmailList, Message: "Here are your emails:", Emails: emails("a", "b")},
	}}
	o := readyOrchestrator(t, fb)

	_, err := o.Submit(context.Background(), "daily digest")
	require.NoError(t, err)
	require.True(t, o.Results().Categorized())

	_, err = o.Submit(context.Background(), "Show me my latest emails")
	require.NoError(t, err)

	results := o.Results()
	assert.True(t, results.Flat())
	assert.Equal(t, emails("a", "b"), results.Emails)
	assert.Equal(t, 0, results.Categories.Len(), "categorized view cleared")
	assert.Empty(t, results.Digest)

	transcript := o.Transcript()
	last := transcript[len(transcript)-1]
	assert.Equal(t, RoleAssistant, last.Role)
	assert.Equal(t, "Here are your emails:", last.Content)
}

func TestSubmit_DigestScenario(t *testing.T) {
	fb := &fakeBackend{replies: []gateway.ChatReply{
		{Kind: gateway.EmailList, Emails: emails("a")},
		{
			Kind:       gateway.CategorizedBundle,
			Categories: gateway.Categories{Work: emails("a"), Urgent: emails("u")},
			Digest:     "Two things need attention.",
		},
	}}
	o := readyOrchestrator(t, fb)

	_, err := o.Submit(context.Background(), "show emails")
	require.NoError(t, err)
	_, err = o.Submit(context.Background(), "daily digest")
	require.NoError(t, err)

	results := o.Results()
	assert.True(t, results.Categorized())
	assert.Empty(t, results.Emails, "flat list cleared")
	assert.Equal(t, "Two things need attention.", results.Digest)
	assert.Equal(t, 2, results.Categories.Len())

	transcript := o.Transcript()
	assert.Equal(t, DefaultCategorizedMessage, transcript[len(transcript)-1].Content)
}

func TestSubmit_DefaultMessages(t *testing.T) {
	fb := &fakeBackend{replies: []gateway.ChatReply{
		{Kind: gateway.EmailList, Emails: []gateway.Email{}},
		{Kind: gateway.PlainMessage},
		{Kind: gateway.PlainMessage, Message: "  Sure thing  "},
	}}
	o := readyOrchestrator(t, fb)

	for _, text := range []string{"a", "b", "c"} {
		_, err := o.Submit(context.Background(), text)
		require.NoError(t, err)
	}

	var assistant []string
	for _, m := range o.Transcript()[1:] {
		if m.Role == RoleAssistant {
			assistant = append(assistant, m.Content)
		}
	}
	assert.Equal(t, []string{DefaultEmailListMessage, DefaultPlainMessage, "Sure thing"}, assistant)
	assert.True(t, o.Results().Flat(), "plain messages leave the result set alone")
}

func TestSubmit_TranscriptGrowth(t *testing.T) {
	fb := &fakeBackend{
		replies:  make([]gateway.ChatReply, 6),
		chatErrs: []error{nil, errors.New("network down"), nil, &gateway.APIError{StatusCode: 500, Detail: "Failed to process message: boom"}, nil, nil},
	}
	o := readyOrchestrator(t, fb)

	for i := 0; i < 6; i++ {
		_, _ = o.Submit(context.Background(), fmt.Sprintf("turn %d", i))
	}

	transcript := o.Transcript()
	// welcome + one user and one reply per turn
	require.Len(t, transcript, 1+6*2)
	for i := 0; i < 6; i++ {
		user := transcript[1+2*i]
		assert.Equal(t, RoleUser, user.Role)
		assert.Equal(t, fmt.Sprintf("turn %d", i), user.Content)
	}
	assert.Equal(t, RoleSystem, transcript[4].Role)
	assert.Equal(t, "Error: network down", transcript[4].Content)
	assert.Equal(t, "Error: Failed to process message: boom", transcript[8].Content)

	seen := make(map[string]bool)
	for _, m := range transcript {
		assert.False(t, seen[m.ID], "message IDs are unique")
		seen[m.ID] = true
	}
}

func TestSubmit_HistoryExcludesSystemMessages(t *testing.T) {
	fb := &fakeBackend{
		replies:  []gateway.ChatReply{{Message: "first"}, {}, {}},
		chatErrs: []error{nil, errors.New("x"), nil},
	}
	o := readyOrchestrator(t, fb)

	_, _ = o.Submit(context.Background(), "one")
	_, _ = o.Submit(context.Background(), "two")
	_, _ = o.Submit(context.Background(), "three")

	require.Len(t, fb.histories, 3)
	assert.Len(t, fb.histories[0], 1, "welcome only")
	last := fb.histories[2]
	for _, turn := range last {
		assert.NotEqual(t, string(RoleSystem), turn.Role)
	}
	assert.Equal(t, gateway.Turn{Role: "user", Content: "two"}, last[len(last)-1])
}

func TestBeginTurn_Gating(t *testing.T) {
	o := readyOrchestrator(t, &fakeBackend{})

	_, err := o.BeginTurn("   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	turn, err := o.BeginTurn("hello")
	require.NoError(t, err)
	assert.True(t, o.Busy())

	_, err = o.BeginTurn("again")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = o.BeginDigest(0)
	assert.ErrorIs(t, err, ErrBusy)

	o.CompleteTurn(turn, gateway.ChatReply{Message: "hi"}, nil)
	assert.Equal(t, PhaseIdle, o.Phase())

	// A second completion for the same turn is ignored.
	before := len(o.Transcript())
	o.CompleteTurn(turn, gateway.ChatReply{Message: "dup"}, nil)
	assert.Len(t, o.Transcript(), before)
}

func TestSubmit_UnauthorizedLeavesUnready(t *testing.T) {
	fb := &fakeBackend{chatErrs: []error{fmt.Errorf("chat.turn: %w", gateway.ErrUnauthorized)}}
	o := readyOrchestrator(t, fb)

	_, err := o.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.False(t, o.Ready())
	assert.Nil(t, o.User())

	transcript := o.Transcript()
	assert.Equal(t, RoleSystem, transcript[len(transcript)-1].Role)
}

func TestSubmit_GenericFailureMessage(t *testing.T) {
	fb := &fakeBackend{chatErrs: []error{&gateway.APIError{StatusCode: 0}}}
	o := readyOrchestrator(t, fb)

	_, _ = o.Submit(context.Background(), "hello")
	transcript := o.Transcript()
	assert.Equal(t, GenericFailureMessage, transcript[len(transcript)-1].Content)
}

// chatTurns returns the chat_turns_total count for kind and status.
func chatTurns(t *testing.T, reader *sdkmetric.ManualReader, kind, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	want := attribute.NewSet(attribute.String("kind", kind), attribute.String("status", status))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != "chat_turns_total" || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if dp.Attributes.Equals(&want) {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestCompleteTurn_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := instrumentation.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	fb := &fakeBackend{
		user:     &gateway.User{Email: "jane@example.com"},
		replies:  []gateway.ChatReply{{}, {Kind: gateway.PlainMessage, Message: "Hi"}},
		chatErrs: []error{errors.New("boom")},
	}
	o := New(fb, WithMetrics(metrics))
	require.NoError(t, o.Init(context.Background()))

	_, err = o.Submit(context.Background(), "first")
	require.Error(t, err)
	_, err = o.Submit(context.Background(), "second")
	require.NoError(t, err)

	assert.Equal(t, int64(1), chatTurns(t, reader, "error", instrumentation.StatusError))
	assert.Equal(t, int64(0), chatTurns(t, reader, gateway.PlainMessage.String(), instrumentation.StatusError))
	assert.Equal(t, int64(1), chatTurns(t, reader, gateway.PlainMessage.String(), instrumentation.StatusSuccess))
}

func TestResultSetExclusivity(t *testing.T) {
	replies := []gateway.ChatReply{
		{Kind: gateway.EmailList, Emails: emails("a")},
		{Kind: gateway.CategorizedBundle, Categories: gateway.Categories{Personal: emails("p")}},
		{Kind: gateway.PlainMessage},
		{Kind: gateway.EmailList, Emails: emails("b", "c")},
		{Kind: gateway.CategorizedBundle, Categories: gateway.Categories{Urgent: emails("u")}},
	}
	o := readyOrchestrator(t, &fakeBackend{replies: replies})

	for i := range replies {
		_, err := o.Submit(context.Background(), fmt.Sprintf("msg %d", i))
		require.NoError(t, err)

		r := o.Results()
		flat := len(r.Emails) > 0
		categorized := r.Categories.Len() > 0
		assert.True(t, flat != categorized, "after reply %d exactly one view is populated", i)
	}
}

func TestRemoveEmail(t *testing.T) {
	fb := &fakeBackend{replies: []gateway.ChatReply{{
		Kind: gateway.CategorizedBundle,
		Categories: gateway.Categories{
			Work:     emails("e", "w2"),
			Personal: emails("p1"),
			Urgent:   emails("e"),
		},
	}}}
	o := readyOrchestrator(t, fb)
	_, err := o.Submit(context.Background(), "daily digest")
	require.NoError(t, err)

	before := o.Results()
	assert.True(t, o.RemoveEmail("e"))

	after := o.Results()
	assert.Equal(t, emails("w2"), after.Categories.Work)
	assert.Empty(t, after.Categories.Urgent)
	assert.Equal(t, emails("p1"), after.Categories.Personal, "other categories unaffected")

	// earlier snapshots are never mutated
	assert.Len(t, before.Categories.Work, 2)

	assert.False(t, o.RemoveEmail("e"), "second removal is a no-op")
	assert.False(t, o.RemoveEmail("missing"))
	assert.Equal(t, after, o.Results())
}

func TestPlainReplyWithDeletedEmail(t *testing.T) {
	fb := &fakeBackend{replies: []gateway.ChatReply{
		{Kind: gateway.EmailList, Emails: emails("a", "b")},
		{Kind: gateway.PlainMessage, Message: "Deleted", DeletedEmail: &gateway.DeletedEmail{ID: "a"}},
	}}
	o := readyOrchestrator(t, fb)

	_, _ = o.Submit(context.Background(), "show")
	_, _ = o.Submit(context.Background(), "delete the first one")

	assert.Equal(t, emails("b"), o.Results().Emails)
}

func TestDigestAndRefresh(t *testing.T) {
	fb := &fakeBackend{
		categorize: gateway.ChatReply{Kind: gateway.CategorizedBundle, Categories: gateway.Categories{Work: emails("w")}, Digest: "calm"},
		emails:     emails("x", "y", "z"),
	}
	o := readyOrchestrator(t, fb)

	_, err := o.Digest(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, o.Results().Categorized())
	assert.Equal(t, "calm", o.Results().Digest)

	_, err = o.Refresh(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, o.Results().Flat())
	assert.Equal(t, []int{3}, fb.listLimits)

	transcript := o.Transcript()
	assert.Equal(t, "Here are your last 3 emails:", transcript[len(transcript)-1].Content)
	// commands do not add user messages
	for _, m := range transcript {
		assert.NotEqual(t, RoleUser, m.Role)
	}
}

func TestRefreshFailure(t *testing.T) {
	fb := &fakeBackend{listErr: errors.New("timeout")}
	o := readyOrchestrator(t, fb)

	_, err := o.Refresh(context.Background(), 0)
	assert.Error(t, err)
	assert.Equal(t, PhaseIdle, o.Phase())
	transcript := o.Transcript()
	assert.Equal(t, "Error: timeout", transcript[len(transcript)-1].Content)
}

func TestNotify(t *testing.T) {
	o := readyOrchestrator(t, &fakeBackend{})
	o.Notify(RoleAssistant, "Reply sent.")
	transcript := o.Transcript()
	assert.Equal(t, "Reply sent.", transcript[len(transcript)-1].Content)
}
