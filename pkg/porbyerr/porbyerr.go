// Package porbyerr holds the typed errors that cross an API boundary:
// configuration mistakes the caller made and wire decode failures. It
// is adapted from the teacher's pkg/errors APIError — narrowed to a
// library's boundary (no HTTP status codes, no JSON response writer)
// since porby has no HTTP surface of its own.
package porbyerr

import (
	"errors"
	"fmt"
)

// Kind classifies a boundary error.
type Kind string

const (
	KindInvalidConfig Kind = "invalid_config"
	KindInvalidPort   Kind = "invalid_port"
	KindDecode        Kind = "decode_error"
	KindPairing       Kind = "pairing_error"
	KindNotStarted    Kind = "not_started"
)

// Error is a structured boundary error. Callers that care about the
// category can switch on Kind; everyone else just calls Error().
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("porby: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("porby: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a boundary error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a boundary error that carries an underlying cause,
// so callers using errors.Is/errors.As can still reach it.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err wraps a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
