// Package gateway is the HTTP client for the inboxchat backend.
//
// Every backend call goes through Client. It attaches the session's bearer
// credential, decodes JSON responses and translates failures:
//
//   - 401 ends the session (clearing the credential and running its end
//     hooks) and returns ErrUnauthorized.
//   - any other non-2xx status returns an *APIError carrying the backend's
//     "detail" message.
//
// Chat responses are decoded once, here, into a ChatReply whose Kind tells
// the caller which of the three response shapes it received.
package gateway
