// Package inbox_tools exposes the inbox backend as MCP tools.
//
// Read-only tools are always registered:
//   - inbox_whoami, backend_health
//   - inbox_list_emails, inbox_generate_reply
//   - inbox_chat, inbox_digest
//
// Tools that send or trash mail (inbox_send_reply, inbox_send_email,
// inbox_delete_emails) are only registered when the server runs with
// readOnly disabled.
//
// All tools act on behalf of the signed-in session and fail with a hint to
// run `inboxchat login` when there is none.
package inbox_tools
