package login

import "fmt"

// Error codes sent by the backend's OAuth callback.
const (
	CodeAccessDenied = "access_denied"
	CodeNoCode       = "no_code"
	CodeAuthFailed   = "auth_failed"
	CodeNoToken      = "no_token"
)

// AuthError is a sign-in failure shown on the landing screen.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// ErrorFromCode maps a backend error code to an AuthError with a friendly message.
func ErrorFromCode(code string) *AuthError {
	var msg string
	switch code {
	case CodeAccessDenied:
		msg = "Access was denied. Please grant the requested Gmail permissions and try again."
	case CodeNoCode:
		msg = "Google did not return an authorization code. Please try again."
	case CodeAuthFailed:
		msg = "Authentication failed. Please try again."
	case CodeNoToken:
		msg = "The sign-in redirect carried no session token."
	default:
		msg = fmt.Sprintf("Sign-in failed (%s). Please try again.", code)
	}
	return &AuthError{Code: code, Message: msg}
}
