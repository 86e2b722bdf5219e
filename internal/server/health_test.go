package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/session"
)

func newHealthBackend(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		_, _ = w.Write([]byte(`{"detail":"database down"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServerContext(t *testing.T, backendURL, token string) *ServerContext {
	t.Helper()
	sess := session.New(session.NewMemoryStore())
	if token != "" {
		require.NoError(t, sess.Begin(token))
	}
	sc, err := NewServerContext(context.Background(), gateway.New(backendURL, sess))
	require.NoError(t, err)
	return sc
}

func getHealth(t *testing.T, h http.Handler) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestLivenessHandler(t *testing.T) {
	code, resp := getHealth(t, NewHealthChecker(nil).LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, healthStatusOK, resp.Status)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name          string
		backendStatus int
		token         string
		notReady      bool
		shutdown      bool
		wantCode      int
		wantChecks    map[string]string
	}{
		{
			name:          "ready",
			backendStatus: http.StatusOK,
			token:         "tok",
			wantCode:      http.StatusOK,
			wantChecks:    map[string]string{"ready": "ok", "shutdown": "ok", "session": "ok", "backend": "ok"},
		},
		{
			name:          "no session",
			backendStatus: http.StatusOK,
			wantCode:      http.StatusServiceUnavailable,
			wantChecks:    map[string]string{"ready": "ok", "shutdown": "ok", "session": "no session", "backend": "ok"},
		},
		{
			name:          "backend failing",
			backendStatus: http.StatusInternalServerError,
			token:         "tok",
			wantCode:      http.StatusServiceUnavailable,
			wantChecks:    map[string]string{"ready": "ok", "shutdown": "ok", "session": "ok", "backend": "unreachable"},
		},
		{
			name:          "marked not ready",
			backendStatus: http.StatusOK,
			token:         "tok",
			notReady:      true,
			wantCode:      http.StatusServiceUnavailable,
			wantChecks:    map[string]string{"ready": "not ready", "shutdown": "ok", "session": "ok", "backend": "ok"},
		},
		{
			name:          "shutting down",
			backendStatus: http.StatusOK,
			token:         "tok",
			shutdown:      true,
			wantCode:      http.StatusServiceUnavailable,
			wantChecks:    map[string]string{"ready": "ok", "shutdown": "shutting down", "session": "ok", "backend": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newHealthBackend(t, tt.backendStatus)
			sc := newTestServerContext(t, backend.URL, tt.token)
			h := NewHealthChecker(sc)
			if tt.notReady {
				h.SetReady(false)
			}
			if tt.shutdown {
				require.NoError(t, sc.Shutdown())
			}

			code, resp := getHealth(t, h.ReadinessHandler())
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestReadinessHandler_BackendFailureKeepsSession(t *testing.T) {
	backend := newHealthBackend(t, http.StatusInternalServerError)
	sc := newTestServerContext(t, backend.URL, "tok")

	getHealth(t, NewHealthChecker(sc).ReadinessHandler())
	assert.True(t, sc.Session().Authenticated())
}

func TestDetailedHealthHandler(t *testing.T) {
	backend := newHealthBackend(t, http.StatusOK)
	sc := newTestServerContext(t, backend.URL, "tok")
	h := NewHealthChecker(sc)

	rec := httptest.NewRecorder()
	h.DetailedHealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil))

	var resp DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, healthStatusOK, resp.Status)
	assert.Equal(t, healthStatusOK, resp.Backend)
	assert.True(t, resp.Authenticated)
	assert.NotEmpty(t, resp.Uptime)
}

func TestRegisterHealthEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthChecker(nil).RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
