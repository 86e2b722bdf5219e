package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrUnauthorized is returned when the backend rejects the session credential.
// By the time it is returned the session has already been ended.
var ErrUnauthorized = errors.New("session expired or invalid, please log in again")

// APIError is a non-2xx, non-401 backend response.
type APIError struct {
	Operation  string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = http.StatusText(e.StatusCode)
	}
	if e.Operation == "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, detail)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Operation, e.StatusCode, detail)
}

// ErrorDetail returns the user-facing text for err: the backend's detail
// for an APIError, the error text otherwise. Empty for nil.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return http.StatusText(apiErr.StatusCode)
	}
	if errors.Is(err, ErrUnauthorized) {
		return ErrUnauthorized.Error()
	}
	return err.Error()
}

const maxDetailLen = 300

// parseDetail extracts the "detail" field of an error body. Validation
// errors carry a list of objects with a "msg" field.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return truncate(strings.TrimSpace(string(body)))
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return truncate(string(payload.Detail))
}

// truncate shortens s to at most maxDetailLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	cut := maxDetailLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
