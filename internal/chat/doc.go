// Package chat owns the conversation transcript and the current result set
// of the dashboard.
//
// An Orchestrator starts in PhaseInitializing. Init fetches the current user
// and moves it to PhaseIdle with a welcome message. Each chat turn moves it to
// PhaseAwaiting until the backend answers, so at most one request is
// outstanding. The reply's kind decides what happens to the result set:
//
//	EmailList          replace with a flat list, clear categories
//	CategorizedBundle  replace with categories and digest, clear flat list
//	PlainMessage       leave the result set alone
//
// The transcript is append-only. Failed turns append a system message and
// are never retried.
//
// Event-loop callers use BeginTurn, Execute and CompleteTurn so the request
// can run off the loop; Submit, Digest and Refresh do all three in one call.
package chat
