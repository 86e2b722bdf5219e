// Package session holds the single bearer credential issued by the inboxchat
// backend.
//
// A Store persists the credential (file, SQLite or memory). A Session wraps a
// Store with explicit lifecycle: Begin on login, End on logout or when the
// backend answers 401. End hooks let the UI return to the landing screen.
//
// The credential is opaque to the client. Inspect decodes its JWT claims for
// display only and never gates a request; the backend alone decides whether a
// credential is still valid.
package session
