// Package logging provides structured logging utilities for inboxchat.
//
// Everything logs through log/slog. This package builds the process handler
// (text or JSON, leveled) and keeps attribute names consistent across the
// gateway, the dashboard, and the MCP bridge.
//
// # Usage Patterns
//
// Create a logger scoped to a backend operation:
//
//	logger := logging.WithOperation(slog.Default(), "emails.list")
//	logger.Info("listed emails", logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("session started",
//	    logging.UserHash(user.Email),
//	    slog.String("token", logging.SanitizeToken(token)))
//
// # Security Considerations
//
//   - User emails are hashed to prevent PII leakage while allowing correlation
//   - Bearer credentials are never logged directly, only their length
package logging
