// Package apperr defines the error taxonomy shared by the calendar core and
// its adapters. Every error returned by the core carries one of four codes so
// callers can branch with errors.Is without string matching.
package apperr

import (
	"errors"
	"fmt"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeConflict   = "CONFLICT"
	CodeNotFound   = "NOT_FOUND"
	CodeState      = "STATE_ERROR"
)

// Error represents a typed domain error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, ErrConflict) matches any conflict regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Predefined errors, one per taxonomy entry.
var (
	ErrValidation = New(CodeValidation, "validation failed")
	ErrConflict   = New(CodeConflict, "conflict")
	ErrNotFound   = New(CodeNotFound, "not found")
	ErrState      = New(CodeState, "invalid state")
)

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

func Validationf(format string, args ...any) *Error {
	return Clone(ErrValidation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) *Error {
	return Clone(ErrConflict, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) *Error {
	return Clone(ErrNotFound, fmt.Sprintf(format, args...))
}

func Statef(format string, args ...any) *Error {
	return Clone(ErrState, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first *Error in err's chain, or "" when err
// carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
