package polls

import (
	"errors"
	"fmt"
)

// Kind classifies a poll operation failure. Kinds map 1:1 onto the
// "exception" payload type sent back over a live connection.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindInvalidInput Kind = "invalid_input"
	KindStorage      Kind = "storage"
)

// Error is the failure type returned by Store and Service operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func InvalidState(msg string) *Error { return &Error{Kind: KindInvalidState, Message: msg} }
func InvalidInput(msg string) *Error { return &Error{Kind: KindInvalidInput, Message: msg} }

func StorageError(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// KindOf extracts the Kind from err, or KindStorage when err carries no kind.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindStorage
}

// MessageOf returns the client-facing message for err. Storage faults are
// reported generically so internal detail never reaches a client.
func MessageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Kind != KindStorage {
		return pe.Message
	}
	return "internal server error"
}
