// Package apperr provides the coded error vocabulary shared by all layers.
// Repositories wrap low-level store failures, services reject invalid input
// and precondition violations, and the transport layer maps codes to wire
// status without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// ErrCode classifies an error for transport mapping and retry decisions.
type ErrCode string

const (
	ErrCodeInvalidInput       ErrCode = "INVALID_INPUT"
	ErrCodeNotFound           ErrCode = "NOT_FOUND"
	ErrCodeConflict           ErrCode = "CONFLICT"
	ErrCodePermissionDenied   ErrCode = "PERMISSION_DENIED"
	ErrCodeFailedPrecondition ErrCode = "FAILED_PRECONDITION"
	ErrCodeInternal           ErrCode = "INTERNAL"
)

// Error is a coded error, optionally wrapping a cause.
type Error struct {
	Code    ErrCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code ErrCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code ErrCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code ErrCode, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound reports a missing resource by type and identifier.
func NotFound(resource, id string) *Error {
	return Newf(ErrCodeNotFound, "%s %q not found", resource, id)
}

// InvalidInput reports a validation failure on a named field.
func InvalidInput(field, message string) *Error {
	return Newf(ErrCodeInvalidInput, "%s: %s", field, message)
}

// Conflict reports a state conflict (wrong status, duplicate action).
func Conflict(message string) *Error {
	return New(ErrCodeConflict, message)
}

// PermissionDenied reports a role/ownership violation.
func PermissionDenied(message string) *Error {
	return New(ErrCodePermissionDenied, message)
}

// FailedPrecondition reports an unmet business precondition that the caller
// can remedy (e.g. a missing signature upload).
func FailedPrecondition(message string) *Error {
	return New(ErrCodeFailedPrecondition, message)
}

// Code extracts the ErrCode from err, walking the wrap chain. Uncoded errors
// report ErrCodeInternal.
func Code(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrCode) bool {
	return err != nil && Code(err) == code
}
