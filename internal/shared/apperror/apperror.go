// Package apperror defines the error taxonomy shared by middleware, domain
// services and handlers, and the JSON envelope returned to clients.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

const (
	KindFatal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
	KindRateLimited
	KindConflict
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failed"
	case KindRateLimited:
		return "rate_limited"
	case KindConflict:
		return "conflict"
	default:
		return "fatal"
	}
}

// FieldError describes a single invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified application error
type Error struct {
	Kind       Kind
	Message    string
	Code       string
	Details    []FieldError
	RetryAfter int
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Response renders the client-facing envelope. Fatal errors never expose
// their message or cause.
func (e *Error) Response() Response {
	resp := Response{Error: e.Message, Code: e.Code, Details: e.Details}
	if e.Kind == KindFatal {
		resp = Response{Error: MessageInternal}
	}
	if e.Kind == KindRateLimited {
		retry := e.RetryAfter
		resp.RetryAfter = &retry
	}
	return resp
}

// MessageInternal is the only message a client sees for unexpected faults.
const MessageInternal = "Internal server error"

// Response is the failure envelope written to clients
type Response struct {
	Success    bool         `json:"success"`
	Error      string       `json:"error"`
	Code       string       `json:"code,omitempty"`
	Details    []FieldError `json:"details,omitempty"`
	RetryAfter *int         `json:"retryAfter,omitempty"`
}

// Unauthenticated reports a missing or invalid credential
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// Forbidden reports an authenticated caller lacking a required role
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound reports a referenced entity that does not exist
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Validation reports malformed input
func Validation(message string, details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// RateLimited reports a rejected request with the seconds until retry
func RateLimited(message string, retryAfter int) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfter: retryAfter}
}

// Conflict reports a duplicate unique key
func Conflict(message, code string) *Error {
	return &Error{Kind: KindConflict, Message: message, Code: code}
}

// Fatal wraps an unexpected failure
func Fatal(err error) *Error {
	return &Error{Kind: KindFatal, Message: MessageInternal, Err: err}
}

// As extracts an *Error from an error chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an application error of the given kind
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
