package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/inboxchat/internal/instrumentation"
	"github.com/teemow/inboxchat/internal/logging"
	"github.com/teemow/inboxchat/internal/session"
)

// Default request limits.
const (
	DefaultEmailLimit      = 5
	DefaultCategorizeLimit = 20

	// MaxLimit is the largest list or categorize size callers may ask for.
	MaxLimit = 100
)

const maxResponseSize = 16 << 20

// Client talks to the inboxchat backend on behalf of one session.
type Client struct {
	baseURL    string
	session    *session.Session
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its Timeout bounds every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records per-request metrics.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// New creates a client for the backend at baseURL using sess for credentials.
func New(baseURL string, sess *session.Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    sess,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session {
	return c.session
}

// AuthURL returns the Google authorization URL to open in a browser.
func (c *Client) AuthURL(ctx context.Context) (string, error) {
	var resp struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	if err := c.doJSON(ctx, "auth.login", http.MethodGet, "/auth/login", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.AuthorizationURL == "" {
		return "", fmt.Errorf("auth.login: backend returned no authorization_url")
	}
	return resp.AuthorizationURL, nil
}

// CurrentUser returns the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var resp struct {
		User          *User `json:"user"`
		Authenticated bool  `json:"authenticated"`
	}
	if err := c.doJSON(ctx, "auth.me", http.MethodGet, "/auth/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("auth.me: backend returned no user")
	}
	return resp.User, nil
}

// Logout tells the backend to drop its session cookie and ends the local
// session. The local session is ended even when the backend call fails;
// the backend error is still returned for logging.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, "auth.logout", http.MethodPost, "/auth/logout", nil, nil)
	if errors.Is(err, ErrUnauthorized) {
		// already ended by do
		return nil
	}
	if endErr := c.session.End(session.ReasonLogout); endErr != nil {
		return errors.Join(err, endErr)
	}
	return err
}

// ListEmails returns the most recent emails with AI summaries.
// A non-positive limit selects DefaultEmailLimit.
func (c *Client) ListEmails(ctx context.Context, limit int) ([]Email, error) {
	if limit <= 0 {
		limit = DefaultEmailLimit
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	data, err := c.do(ctx, "emails.list", http.MethodGet, "/emails", query, nil)
	if err != nil {
		return nil, err
	}
	emails, err := decodeEmailList(data)
	if err != nil {
		return nil, fmt.Errorf("emails.list: decode response: %w", err)
	}
	return emails, nil
}

// decodeEmailList accepts {"emails": [...]} or a bare array.
func decodeEmailList(data []byte) ([]Email, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var emails []Email
		if err := json.Unmarshal(trimmed, &emails); err != nil {
			return nil, err
		}
		return emails, nil
	}
	var wrapper struct {
		Emails []Email `json:"emails"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Emails, nil
}

// GenerateReply asks the backend for an AI reply draft to emailID.
// customContext is optional extra instruction text.
func (c *Client) GenerateReply(ctx context.Context, emailID, customContext string) (*GeneratedReply, error) {
	body := struct {
		EmailID       string `json:"email_id"`
		CustomContext string `json:"custom_context,omitempty"`
	}{emailID, customContext}

	var resp GeneratedReply
	if err := c.doJSON(ctx, "emails.reply.generate", http.MethodPost, "/emails/reply/generate", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendEmail sends an email through the user's mailbox.
func (c *Client) SendEmail(ctx context.Context, req SendRequest) (*SendResult, error) {
	var resp SendResult
	if err := c.doJSON(ctx, "emails.send", http.MethodPost, "/emails/send", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteEmail moves emailID to the trash.
func (c *Client) DeleteEmail(ctx context.Context, emailID string) error {
	body := struct {
		EmailID string `json:"email_id"`
	}{emailID}
	_, err := c.do(ctx, "emails.delete", http.MethodPost, "/emails/delete", nil, body)
	return err
}

// Chat sends one free-text instruction with the prior turns.
func (c *Client) Chat(ctx context.Context, message string, history []Turn) (ChatReply, error) {
	if history == nil {
		history = []Turn{}
	}
	body := struct {
		Message             string `json:"message"`
		ConversationHistory []Turn `json:"conversation_history"`
	}{message, history}

	data, err := c.do(ctx, "chat.turn", http.MethodPost, "/chat", nil, body)
	if err != nil {
		return ChatReply{}, err
	}
	return DecodeChatReply(data), nil
}

// Categorize requests a categorized overview and daily digest.
// A non-positive limit selects DefaultCategorizeLimit. The reply is always
// a CategorizedBundle.
func (c *Client) Categorize(ctx context.Context, limit int) (ChatReply, error) {
	if limit <= 0 {
		limit = DefaultCategorizeLimit
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	data, err := c.do(ctx, "chat.categorize", http.MethodPost, "/chat/categorize", query, nil)
	if err != nil {
		return ChatReply{}, err
	}

	var resp struct {
		Categories Categories `json:"categories"`
		Digest     string     `json:"digest"`
		Message    string     `json:"message"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return ChatReply{}, fmt.Errorf("chat.categorize: decode response: %w", err)
	}
	return ChatReply{
		Kind:       CategorizedBundle,
		Message:    resp.Message,
		Categories: resp.Categories,
		Digest:     resp.Digest,
	}, nil
}

// Health returns the backend's health status string.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, "health", http.MethodGet, "/health", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	data, err := c.do(ctx, op, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// do performs one backend request and returns the response body of a 2xx
// response.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (data []byte, err error) {
	logger := logging.WithOperation(c.logger, op)
	ctx, span := instrumentation.StartBackendSpan(ctx, op, method, path)
	start := time.Now()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		span.End()
		c.metrics.RecordBackendRequest(ctx, op, status, time.Since(start))
	}()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, err := c.session.Token(); err == nil {
		token.SetAuthHeader(req)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("backend request failed", logging.Endpoint(method, path), logging.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	data, err = io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	logger.Debug("backend request",
		logging.Endpoint(method, path),
		slog.Int("status_code", res.StatusCode),
		slog.Duration(logging.KeyDuration, time.Since(start)))

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		if endErr := c.session.End(session.ReasonUnauthorized); endErr != nil {
			logger.Error("failed to clear rejected credential", logging.Err(endErr))
		}
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, &APIError{Operation: op, StatusCode: res.StatusCode, Detail: parseDetail(data)}
	}
	return data, nil
}
