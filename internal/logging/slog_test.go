package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, FormatJSON)
	WithOperation(logger, "emails.list").Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "emails.list", record[KeyOperation])
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn, FormatText)
	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := WithOperation(New(&buf, slog.LevelInfo, FormatText), "chat.turn")
	logger.Info("x")
	assert.Contains(t, buf.String(), "operation=chat.turn")
}

func TestAttrHelpers(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"endpoint", Endpoint("GET", "/emails"), KeyEndpoint, "GET /emails"},
		{"tool", Tool("inbox_chat"), KeyTool, "inbox_chat"},
		{"status", Status(StatusSuccess), KeyStatus, "success"},
		{"email id", EmailID("msg-1"), KeyEmailID, "msg-1"},
		{"reason", Reason("unauthorized"), KeyReason, "unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKey, tt.attr.Key)
			assert.Equal(t, tt.wantVal, tt.attr.Value.String())
		})
	}
}

func TestErr(t *testing.T) {
	attr := Err(errors.New("test error"))
	assert.Equal(t, KeyError, attr.Key)
	assert.Equal(t, "test error", attr.Value.String())

	// Empty Group has empty key
	assert.Equal(t, "", Err(nil).Key)
}

func TestAnonymizeEmail(t *testing.T) {
	assert.Equal(t, "", AnonymizeEmail(""))

	hash := AnonymizeEmail("jane@example.com")
	assert.Len(t, hash, 21) // "user:" + 16 hex chars
	assert.True(t, strings.HasPrefix(hash, "user:"))

	assert.Equal(t, hash, AnonymizeEmail("Jane@Example.com"), "hash should ignore case")
	assert.NotEqual(t, hash, AnonymizeEmail("other@example.com"))
}

func TestUserHash(t *testing.T) {
	attr := UserHash("jane@example.com")
	assert.Equal(t, KeyUserHash, attr.Key)
	assert.Len(t, attr.Value.String(), 21)
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"eyJhbGciOiJIUzI1NiJ9.e30.sig", "[token:28 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeToken(tt.token))
		})
	}
}
