// Package apperr defines the error taxonomy shared by every OnyxPrism
// component.
//
// Four kinds reach the user:
//   - validation: a required field is missing, caught before any request
//   - auth: no token, or the backend answered 401
//   - network: the request never produced an HTTP response
//   - server: a non-2xx answer, optionally carrying the backend's message
//
// None of them is retried. An error ends the current operation only.
package apperr

import (
	"errors"
	"fmt"
)

// Kind categorises an error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNetwork    Kind = "network"
	KindServer     Kind = "server"
	KindInternal   Kind = "internal"
)

// Error is a categorised error with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Status  int // HTTP status for server/auth errors, 0 otherwise
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Server creates a server error for an HTTP status.
func Server(status int, message string) *Error {
	return &Error{Kind: KindServer, Message: message, Status: status}
}

// Validation is shorthand for a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the text to show the user: the message of an
// *Error without its cause chain, or err.Error() otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
