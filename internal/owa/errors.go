package owa

import (
	"errors"
	"fmt"
)

// ErrFolderNotFound is returned when a folder name matches neither a
// distinguished folder nor any custom folder under the message root.
var ErrFolderNotFound = errors.New("folder not found")

// SessionExpiredError indicates that the OWA session is no longer valid
// and the user needs to log in again. Every failure mode that can mean
// "the server no longer trusts these cookies" folds into this type:
// HTTP 401/440, an HTML response where JSON was expected (the login
// redirect page), a network failure, and an undecodable response body.
// Callers route it to the login flow instead of inspecting the cause.
type SessionExpiredError struct {
	// Reason describes the expiry signal when it is not a plain status code.
	Reason string
	// Status is the HTTP status of the response, if one was received.
	Status int
	// Snippet holds the start of an HTML response body for diagnostics,
	// enough to tell a login redirect from a server error page.
	Snippet string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *SessionExpiredError) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = "session expired"
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Snippet != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Snippet)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Cause
}

// IsSessionExpired reports whether err is (or wraps) a SessionExpiredError.
func IsSessionExpired(err error) bool {
	var se *SessionExpiredError
	return errors.As(err, &se)
}
