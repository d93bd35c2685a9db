// Package derrors provides typed domain errors with stable codes.
//
// Services construct these instead of raising ad-hoc errors so callers
// branch on a typed outcome rather than matching message text. Each code
// maps to exactly one HTTP status at the transport boundary.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a domain error category. Codes are part of the API
// contract: clients key their behavior off them (e.g. silent
// re-authentication on SESSION_EXPIRED vs. a hard login wall on
// UNAUTHENTICATED), so values must never change.
type Code string

const (
	// Authentication / session lifecycle.
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeSessionExpired    Code = "SESSION_EXPIRED"
	CodeSessionSuperseded Code = "SESSION_SUPERSEDED"
	CodeAccountDisabled   Code = "ACCOUNT_DISABLED"

	// Permission workflow conflicts.
	CodeAlreadyGranted Code = "ALREADY_GRANTED"
	CodeAlreadyPending Code = "ALREADY_PENDING"
	CodeNotPending     Code = "NOT_PENDING"

	// Ambient categories.
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeValidation   Code = "VALIDATION"
	CodeConflict     Code = "CONFLICT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeStoreFailure Code = "STORE_FAILURE"
	CodeInternal     Code = "INTERNAL"
)

// Error is a domain error carrying a stable code, a human-readable
// message, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving
// the cause for errors.Is / errors.As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error
// with the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for {
		if !errors.As(err, &domainErr) {
			return false
		}
		if domainErr.Code == code {
			return true
		}
		err = domainErr.Err
	}
}

// Is is an alias for HasCode, kept for call-site readability in tests.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost domain error code, or CodeInternal when
// err is not a domain error.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost domain error message, or a generic
// fallback for non-domain errors so internals never leak to clients.
func MessageOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a code to its HTTP status. The non-standard 440 and
// 419 statuses mirror the console frontend's session handling contract:
// 440 tells the client to show the login wall, 419 to attempt a silent
// token refresh first.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthenticated, CodeSessionSuperseded:
		return 440
	case CodeSessionExpired:
		return 419
	case CodeAccountDisabled, CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeAlreadyGranted, CodeAlreadyPending, CodeNotPending, CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
