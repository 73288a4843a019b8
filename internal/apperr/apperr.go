// Package apperr defines the tagged error result shared by every request
// stage. The HTTP layer maps a Kind to a status code in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	// InternalError is anything not attributable to the request itself.
	InternalError Kind = iota
	// InvalidInput covers missing files, disallowed extensions and images
	// that cannot be decoded or normalized.
	InvalidInput
	// ProcessingFailure is an unexpected failure while resizing, converting
	// or running inference.
	ProcessingFailure
	// TooLarge is a request body over the configured limit.
	TooLarge
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case ProcessingFailure:
		return "processing_failure"
	case TooLarge:
		return "too_large"
	default:
		return "internal_error"
	}
}

// Status is the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case InvalidInput:
		return http.StatusBadRequest
	case TooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Error is a failure with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind and message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// From returns err as an *Error. Untagged errors become InternalError
// with the error text as the message.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: InternalError, Message: err.Error(), Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
