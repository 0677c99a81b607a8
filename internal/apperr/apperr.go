// Package apperr classifies the errors that handlers turn into flash
// messages. Anything that is not an *Error is treated as unexpected.
package apperr

import (
	"errors"
	"strings"
)

// Kind groups user-facing failures
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "unexpected"
	}
}

// Error is an expected failure carrying a message that is safe to show
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func Auth(message string) *Error {
	return New(KindAuth, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validations joins several field messages into one validation error
func Validations(messages []string) *Error {
	return Validation(strings.Join(messages, ", "))
}

// KindOf reports the kind of err, KindUnexpected when err is not an *Error
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// Message returns the user-facing message of err if it is expected
func Message(err error) (string, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message, true
	}
	return "", false
}
