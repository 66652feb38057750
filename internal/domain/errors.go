package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired is returned when the quiz service rejects the session token.
var ErrSessionExpired = errors.New("session expired")

// ErrReplyPending is returned when a prompt is submitted before the previous one was answered.
var ErrReplyPending = errors.New("a quiz is already being generated")

// ErrConversationNotFound is returned when a selected conversation no longer exists upstream.
var ErrConversationNotFound = errors.New("conversation not found")

// AuthError reports rejected credentials or a failed registration.
// Message is safe to show to the user.
type AuthError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

// ValidationError reports invalid form input. Message is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TransportError reports a failed call to the quiz service.
// StatusCode is zero when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Unauthorized returns true if the quiz service rejected the session token.
func (e *TransportError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// CookieError reports a failure to write or delete the session cookie.
type CookieError struct {
	Name string
	Err  error
}

func (e *CookieError) Error() string {
	return fmt.Sprintf("cookie %q: %v", e.Name, e.Err)
}

func (e *CookieError) Unwrap() error {
	return e.Err
}

// IsUnauthorized returns true if err carries an upstream 401/403 or ErrSessionExpired.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrSessionExpired) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te) && te.Unauthorized()
}
