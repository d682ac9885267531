// Package apperr provides the error kinds surfaced to chat users and operators.
// Services return *Error values (usually wrapping a lower-level cause); the
// coordinator maps them to result variants with a short human message.
package apperr

import (
	"errors"
	"fmt"

	"invest-bot-go/internal/store"
)

// Kind classifies a failure for the caller.
type Kind string

const (
	KindNotRegistered       Kind = "not-registered"
	KindUnauthorised        Kind = "unauthorised"
	KindInvalidInput        Kind = "invalid-input"
	KindNotFound            Kind = "not-found"
	KindInsufficientBalance Kind = "insufficient-balance"
	KindExternalUnavailable Kind = "external-unavailable"
	KindConflict            Kind = "conflict"
	KindInternal            Kind = "internal"
)

// Error is a classified application error. Message is safe to show to users;
// Err carries the internal cause and is never shown.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the internal error for use with errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind. An insufficient balance is also an
// out-of-range argument, so it matches invalid-input too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindInvalidInput && e.Kind == KindInsufficientBalance
}

// Sentinels, one per kind.
var (
	ErrNotRegistered       = &Error{Kind: KindNotRegistered, Message: "Please register first with /register"}
	ErrUnauthorised        = &Error{Kind: KindUnauthorised, Message: "This command is for operators only"}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Message: "Invalid input"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "Nothing pending was found for that request"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Message: "Insufficient balance"}
	ErrExternalUnavailable = &Error{Kind: KindExternalUnavailable, Message: "Market data is unavailable right now, please retry later"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "The record changed while we were working on it, please retry"}
	ErrInternal            = &Error{Kind: KindInternal, Message: "Something went wrong, please try again or contact support"}
)

// Wrap creates a new Error with the sentinel's kind and message wrapping an internal error.
func Wrap(sentinel *Error, internal error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: internal}
}

// WithMessage creates a new Error of the sentinel's kind with a custom user message.
func WithMessage(sentinel *Error, message string) *Error {
	return &Error{Kind: sentinel.Kind, Message: message}
}

// Newf is WithMessage with formatting.
func Newf(sentinel *Error, format string, args ...any) *Error {
	return WithMessage(sentinel, fmt.Sprintf(format, args...))
}

// FromStore classifies a storage error. Errors that are already classified are
// returned unchanged; unknown ones become internal.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Wrap(ErrNotFound, err)
	case errors.Is(err, store.ErrStaleState), errors.Is(err, store.ErrConcurrentModification), errors.Is(err, store.ErrDuplicate):
		return Wrap(ErrConflict, err)
	case errors.Is(err, store.ErrNegativeBalance):
		return Wrap(ErrInsufficientBalance, err)
	}
	return Wrap(ErrInternal, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the user-safe message for err. Unclassified errors get
// the generic internal message.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return ErrInternal.Message
}
