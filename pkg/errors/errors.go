// Package errors provides structured error handling for joinbus.
//
// It defines a standard AppError type carrying a stable code, a
// human-readable message, and an optional wrapped cause, so that
// callers can branch on error kind with errors.As/errors.Is while
// still getting a useful log line from Error().
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is a structured error with a stable code for programmatic handling.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with the given code, message and optional cause.
func New(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

// Wrap annotates err with a message, preserving it as the cause.
// If err is nil, Wrap returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the Code of err if it (or something it wraps) is an *AppError.
func CodeOf(err error) (string, bool) {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Code, true
	}
	return "", false
}

// Is reports whether err's code matches code, unwrapping as needed.
func Is(err error, code string) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Category error codes shared across packages. Domain packages define their
// own, more specific codes (e.g. topic.CodeBadTopic) on top of AppError
// directly rather than through these helpers when the spec names a kind.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeInternal        = "INTERNAL"
	CodeForbidden       = "FORBIDDEN"
)

// NotFound builds an AppError for a missing resource.
func NotFound(message string, cause error) *AppError {
	return New(CodeNotFound, message, cause)
}

// Conflict builds an AppError for a resource that already exists or clashes.
func Conflict(message string, cause error) *AppError {
	return New(CodeConflict, message, cause)
}

// InvalidArgument builds an AppError for caller-supplied bad input.
func InvalidArgument(message string, cause error) *AppError {
	return New(CodeInvalidArgument, message, cause)
}

// Internal builds an AppError for an unexpected internal failure.
func Internal(message string, cause error) *AppError {
	return New(CodeInternal, message, cause)
}

// Forbidden builds an AppError for a disallowed operation.
func Forbidden(message string, cause error) *AppError {
	return New(CodeForbidden, message, cause)
}
