// ABOUTME: Classified errors shared by the admin console core
// ABOUTME: Kinds cover authorization, validation, tokens, state, and transport failures

package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers and for user-facing messages.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindValidation    Kind = "validation"
	KindInvalidToken  Kind = "invalid_token"
	KindState         Kind = "state"
	KindTransport     Kind = "transport"
)

// Error is a classified error. Status is the HTTP status that produced it,
// zero when the error was raised locally or the request never completed.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Cause   error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrInvalidToken  = &Error{Kind: KindInvalidToken}
	ErrState         = &Error{Kind: KindState}
	ErrTransport     = &Error{Kind: KindTransport}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Unauthorized reports whether the service rejected the session credential.
func (e *Error) Unauthorized() bool {
	return e.Kind == KindTransport && e.Status == http.StatusUnauthorized
}

// NotFound reports whether the service said the resource is unknown or gone.
func (e *Error) NotFound() bool {
	return e.Status == http.StatusNotFound || e.Status == http.StatusGone
}

// Retryable reports whether repeating the same request may succeed:
// network failures, rate limiting and 5xx responses.
func (e *Error) Retryable() bool {
	if e.Kind != KindTransport {
		return false
	}
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Authorization returns an access-denied error.
func Authorization(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

// Validation returns an input validation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// InvalidToken returns an invalid or expired token error.
func InvalidToken(msg string) *Error {
	return &Error{Kind: KindInvalidToken, Message: msg}
}

// State returns an error for an operation not allowed in the record's state.
func State(msg string) *Error {
	return &Error{Kind: KindState, Message: msg}
}

// Transport wraps a network or service failure.
func Transport(msg string, status int, cause error) *Error {
	return &Error{Kind: KindTransport, Message: msg, Status: status, Cause: cause}
}

// Reclassify copies err under a new kind, keeping message, status and cause.
func Reclassify(err *Error, kind Kind) *Error {
	return &Error{Kind: kind, Message: err.Message, Status: err.Status, Cause: err.Cause}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindTransport for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindTransport
}

// UserMessage returns text safe to show an operator for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	e, ok := As(err)
	if !ok {
		return "Something went wrong. Please try again."
	}

	switch e.Kind {
	case KindAuthorization:
		return "Access denied: your role does not allow this action."
	case KindValidation:
		if e.Message != "" {
			return e.Message
		}
		return "The request contains invalid input."
	case KindInvalidToken:
		return "This invitation link is invalid or has expired."
	case KindState:
		if e.Message != "" {
			return e.Message
		}
		return "This action is not allowed in the account's current state."
	}

	switch {
	case e.Unauthorized():
		return "Your session has expired. Please log in again."
	case e.NotFound():
		return "The requested record was not found."
	case e.Status == http.StatusTooManyRequests && e.Message != "":
		return e.Message
	case e.Retryable():
		return "The admin service is unavailable. Please try again."
	}
	if e.Message != "" {
		return e.Message
	}
	return "The request failed."
}
