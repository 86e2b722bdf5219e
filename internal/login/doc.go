// Package login drives the browser sign-in against the inboxchat backend.
//
// The backend owns the Google OAuth exchange. When it finishes it redirects
// the browser to its configured frontend URL, either
//
//	/dashboard?token=<jwt>
//	/?error=<code>
//
// Flow listens on that frontend address (127.0.0.1:3000 by default) so the
// redirect lands in this process, stores the token in the session and shuts
// the listener down. Complete is the manual path for a token pasted by hand.
package login
