package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind string

const (
	KindNotFound             ErrorKind = "NotFound"
	KindAccessDenied         ErrorKind = "AccessDenied"
	KindValidation           ErrorKind = "ValidationError"
	KindConfirmationRequired ErrorKind = "ConfirmationRequired"
	KindBackingStore         ErrorKind = "BackingStoreError"
	KindConflict             ErrorKind = "Conflict"
)

// Error is the structured error every operation returns.
type Error struct {
	Kind    ErrorKind
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

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrAccessDenied         = &Error{Kind: KindAccessDenied}
	ErrValidation           = &Error{Kind: KindValidation}
	ErrConfirmationRequired = &Error{Kind: KindConfirmationRequired}
	ErrBackingStore         = &Error{Kind: KindBackingStore}
	ErrConflict             = &Error{Kind: KindConflict}
)

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func AccessDenied(format string, args ...any) error {
	return &Error{Kind: KindAccessDenied, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func ConfirmationRequired(format string, args ...any) error {
	return &Error{Kind: KindConfirmationRequired, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Backing wraps a storage-layer failure. Errors that already carry a kind
// pass through unchanged.
func Backing(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindBackingStore, Message: op, Err: err}
}

// KindOf reports the kind of err; untyped errors count as backing-store failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindBackingStore
}
