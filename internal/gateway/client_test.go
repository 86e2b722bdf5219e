package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxchat/internal/session"
)

// fakeBackend records requests and serves canned responses per path.
type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

type recordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{handlers: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fb.mu.Lock()
		fb.requests = append(fb.requests, recordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		})
		h, ok := fb.handlers[r.URL.Path]
		fb.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) handle(path string, status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handlers[path] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (fb *fakeBackend) last() recordedRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.requests[len(fb.requests)-1]
}

func (fb *fakeBackend) count() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.requests)
}

func newTestClient(t *testing.T, token string) (*Client, *session.Session, *fakeBackend) {
	t.Helper()
	fb, srv := newFakeBackend(t)
	sess := session.New(session.NewMemoryStore())
	if token != "" {
		require.NoError(t, sess.Begin(token))
	}
	return New(srv.URL+"/", sess), sess, fb
}

func TestClient_BearerHeader(t *testing.T) {
	client, _, fb := newTestClient(t, "tok-123")
	fb.handle("/health", http.StatusOK, `{"status":"healthy"}`)

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status)
	assert.Equal(t, "Bearer tok-123", fb.last().Authorization)
}

func TestClient_LogsCarryOperation(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.handle("/health", http.StatusOK, `{"status":"healthy"}`)
	var logs bytes.Buffer
	client := New(srv.URL, session.New(session.NewMemoryStore()),
		WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	_, err := client.Health(context.Background())
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "operation=health")
	assert.Contains(t, logs.String(), `endpoint="GET /health"`)
}

func TestClient_NoCredentialOmitsHeader(t *testing.T) {
	client, _, fb := newTestClient(t, "")
	fb.handle("/auth/login", http.StatusOK, `{"authorization_url":"https://accounts.google.com/o/oauth2/auth?x=1"}`)

	u, err := client.AuthURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?x=1", u)
	assert.Empty(t, fb.last().Authorization)
}

func TestClient_UnauthorizedClearsCredential(t *testing.T) {
	client, sess, fb := newTestClient(t, "stale")
	fb.handle("/emails", http.StatusUnauthorized, `{"detail":"Invalid or expired session. Please log in again."}`)
	fb.handle("/auth/me", http.StatusOK, `{"user":{"email":"a@b.c","name":"A"},"authenticated":true}`)

	var ended []string
	sess.OnEnd(func(reason string) { ended = append(ended, reason) })

	_, err := client.ListEmails(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, []string{session.ReasonUnauthorized}, ended)
	assert.False(t, sess.Authenticated())

	// The next call must not carry the stale credential.
	_, err = client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fb.last().Authorization)
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"string detail", http.StatusInternalServerError, `{"detail":"Failed to fetch emails: quota"}`, "Failed to fetch emails: quota"},
		{"validation detail", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"value is not a valid integer"}]}`, "field required; value is not a valid integer"},
		{"plain body", http.StatusBadGateway, `upstream down`, "upstream down"},
		{"empty body", http.StatusNotFound, ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, sess, fb := newTestClient(t, "tok")
			fb.handle("/emails/delete", tt.status, tt.body)

			err := client.DeleteEmail(context.Background(), "m1")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.detail, apiErr.Detail)
			assert.True(t, sess.Authenticated(), "only 401 touches the session")

			if tt.detail != "" {
				assert.Equal(t, tt.detail, ErrorDetail(err))
			} else {
				assert.Equal(t, "Not Found", ErrorDetail(err))
			}
		})
	}
}

func TestClient_ListEmails(t *testing.T) {
	client, _, fb := newTestClient(t, "tok")
	fb.handle("/emails", http.StatusOK, `{"emails":[{"id":"m1","subject":"Hi","sender_name":"Ann","sender_email":"ann@example.com","ai_summary":"greeting"}]}`)

	emails, err := client.ListEmails(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "m1", emails[0].ID)
	assert.Equal(t, "greeting", emails[0].AISummary)
	assert.Equal(t, "limit=5", fb.last().Query)

	fb.handle("/emails", http.StatusOK, `[{"id":"m2"},{"id":"m3"}]`)
	emails, err = client.ListEmails(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, emails, 2)
	assert.Equal(t, "limit=2", fb.last().Query)
}

func TestClient_GenerateReply(t *testing.T) {
	client, _, fb := newTestClient(t, "tok")
	fb.handle("/emails/reply/generate", http.StatusOK, `{"reply":"Thanks!","original_email":{"id":"m1","subject":"Hi"}}`)

	reply, err := client.GenerateReply(context.Background(), "m1", "")
	require.NoError(t, err)
	assert.Equal(t, "Thanks!", reply.Reply)
	require.NotNil(t, reply.OriginalEmail)
	assert.Equal(t, "Hi", reply.OriginalEmail.Subject)

	req := fb.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.JSONEq(t, `{"email_id":"m1"}`, req.Body)

	_, err = client.GenerateReply(context.Background(), "m1", "keep it short")
	require.NoError(t, err)
	assert.JSONEq(t, `{"email_id":"m1","custom_context":"keep it short"}`, fb.last().Body)
}

func TestClient_SendEmail(t *testing.T) {
	client, _, fb := newTestClient(t, "tok")
	fb.handle("/emails/send", http.StatusOK, `{"message":"Email sent successfully","email_id":"s1","thread_id":"t1"}`)

	res, err := client.SendEmail(context.Background(), SendRequest{To: "ann@example.com", Subject: "Re: Hi", Body: "Thanks", ThreadID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", res.EmailID)
	assert.JSONEq(t, `{"to":"ann@example.com","subject":"Re: Hi","body":"Thanks","thread_id":"t1"}`, fb.last().Body)
}

func TestClient_ChatSendsHistory(t *testing.T) {
	client, _, fb := newTestClient(t, "tok")
	fb.handle("/chat", http.StatusOK, `{"intent":"GENERAL_CHAT","confidence":0.9,"message":"Hello!"}`)

	reply, err := client.Chat(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, PlainMessage, reply.Kind)
	assert.Equal(t, "Hello!", reply.Message)
	assert.Equal(t, "GENERAL_CHAT", reply.Intent)
	assert.InDelta(t, 0.9, reply.Confidence, 1e-9)
	assert.JSONEq(t, `{"message":"hi","conversation_history":[]}`, fb.last().Body)

	_, err = client.Chat(context.Background(), "more", []Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "Hello!"}})
	require.NoError(t, err)
	var body struct {
		ConversationHistory []Turn `json:"conversation_history"`
	}
	require.NoError(t, json.Unmarshal([]byte(fb.last().Body), &body))
	assert.Len(t, body.ConversationHistory, 2)
}

func TestClient_Categorize(t *testing.T) {
	client, _, fb := newTestClient(t, "tok")
	fb.handle("/chat/categorize", http.StatusOK, `{"categories":{"Work":[{"id":"w1"}],"Personal":[],"Promotions":[],"Urgent":[{"id":"w1"}]},"digest":"Busy day"}`)

	reply, err := client.Categorize(context.Background(), -3)
	require.NoError(t, err)
	assert.Equal(t, CategorizedBundle, reply.Kind)
	assert.Equal(t, "Busy day", reply.Digest)
	assert.Equal(t, 2, reply.Categories.Len())
	assert.Equal(t, "limit=20", fb.last().Query)
	assert.Equal(t, http.MethodPost, fb.last().Method)
}

func TestClient_Logout(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, sess, fb := newTestClient(t, "tok")
		fb.handle("/auth/logout", http.StatusOK, `{"message":"Logged out successfully"}`)

		var reasons []string
		sess.OnEnd(func(r string) { reasons = append(reasons, r) })

		require.NoError(t, client.Logout(context.Background()))
		assert.False(t, sess.Authenticated())
		assert.Equal(t, []string{session.ReasonLogout}, reasons)
	})

	t.Run("backend failure still ends session", func(t *testing.T) {
		client, sess, fb := newTestClient(t, "tok")
		fb.handle("/auth/logout", http.StatusInternalServerError, `{"detail":"boom"}`)

		err := client.Logout(context.Background())
		assert.Error(t, err)
		assert.False(t, sess.Authenticated())
	})

	t.Run("unauthorized ends session once", func(t *testing.T) {
		client, sess, fb := newTestClient(t, "tok")
		fb.handle("/auth/logout", http.StatusUnauthorized, `{"detail":"Not authenticated. Please log in."}`)

		calls := 0
		sess.OnEnd(func(string) { calls++ })

		assert.NoError(t, client.Logout(context.Background()))
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, fb.count())
	})
}

func TestClient_CurrentUserMissing(t *testing.T) {
	client, _, fb := newTestClient(t, "tok")
	fb.handle("/auth/me", http.StatusOK, `{"user":null,"authenticated":true}`)

	_, err := client.CurrentUser(context.Background())
	assert.Error(t, err)
}
