// Package errors provides coded domain errors for the vision board service.
//
// Services return *Error values; the API layer maps the Code to an HTTP status
// and callers branch on the code with errors.Is:
//
//	if errors.Is(err, errors.ErrQuotaExceeded) {
//	    // prompt for an upgrade
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeValidation    Code = "VALIDATION"
	CodeConflict      Code = "CONFLICT"
	CodeInternal      Code = "INTERNAL"
	CodeRateLimited   Code = "RATE_LIMITED"

	// Quota and sharing denials. The values double as quota.Reason values.
	CodeQuotaExceeded       Code = "QUOTA_EXCEEDED"
	CodeSharingNotPermitted Code = "SHARING_NOT_PERMITTED"
	CodeBoardNotSaved       Code = "BOARD_NOT_SAVED"
	CodeBoardEmpty          Code = "BOARD_EMPTY"

	// Editor and persistence failures.
	CodeUnsavedChanges         Code = "UNSAVED_CHANGES"
	CodePersistenceUnavailable Code = "PERSISTENCE_UNAVAILABLE"
	CodeServiceUnavailable     Code = "SERVICE_UNAVAILABLE"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict, CodeUnsavedChanges:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeQuotaExceeded, CodeSharingNotPermitted:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeBoardNotSaved, CodeBoardEmpty:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodePersistenceUnavailable, CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether repeating the same user action may succeed.
func (c Code) Retryable() bool {
	return c == CodePersistenceUnavailable || c == CodeServiceUnavailable || c == CodeRateLimited
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrUnauthorized  = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden     = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation    = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict      = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal      = &Error{Code: CodeInternal, Message: "internal error"}
	ErrRateLimited   = &Error{Code: CodeRateLimited, Message: "too many requests"}

	ErrQuotaExceeded       = &Error{Code: CodeQuotaExceeded, Message: "saved board limit reached for your plan"}
	ErrSharingNotPermitted = &Error{Code: CodeSharingNotPermitted, Message: "sharing is not included in your plan"}
	ErrBoardNotSaved       = &Error{Code: CodeBoardNotSaved, Message: "save the board before sharing it"}
	ErrBoardEmpty          = &Error{Code: CodeBoardEmpty, Message: "board has no items"}

	ErrUnsavedChanges         = &Error{Code: CodeUnsavedChanges, Message: "board has unsaved changes"}
	ErrPersistenceUnavailable = &Error{Code: CodePersistenceUnavailable, Message: "board storage is unavailable, try again"}
	ErrServiceUnavailable     = &Error{Code: CodeServiceUnavailable, Message: "dependent service is unavailable"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// PersistenceUnavailable wraps a storage failure. Local state is never
// discarded because of it; the user retries by repeating the action.
func PersistenceUnavailable(op string, err error) *Error {
	return &Error{
		Code:    CodePersistenceUnavailable,
		Message: ErrPersistenceUnavailable.Message,
		Details: map[string]string{"operation": op},
		cause:   err,
	}
}

// ServiceUnavailable wraps a failure of an external collaborator.
func ServiceUnavailable(service string, err error) *Error {
	return &Error{
		Code:    CodeServiceUnavailable,
		Message: service + " is unavailable",
		cause:   err,
	}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
