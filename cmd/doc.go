// Package cmd implements the command-line interface for inboxchat.
//
// This package provides the following commands:
//   - dashboard: Interactive terminal dashboard (default)
//   - login, logout, whoami, session: Manage the signed-in session
//   - emails, digest, chat: Read the inbox through the assistant
//   - reply, delete, send: Act on messages
//   - serve: Start the MCP server to provide inbox tools for AI assistants
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// Every command resolves its settings through internal/config; the
// persistent flags override the file and environment.
package cmd
