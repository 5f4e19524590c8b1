// Package apperr defines the error taxonomy shared by services and the HTTP layer.
//
// Every error carries an HTTP status, a machine-readable code, an internal
// message for logs, and a user-facing message that the HTTP layer renders.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeValidation      = "VALIDATION_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeProcessing      = "PROCESSING_ERROR"
	CodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	CodeInternal        = "INTERNAL_ERROR"
)

// Error is a structured application error.
type Error struct {
	Code        string
	Status      int
	Message     string // internal message, for logs
	UserMessage string // safe to show to the caller
	Details     map[string]any
	Retryable   bool
	RetryAfter  int // seconds, for rate limit errors
	cause       error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// NotFound reports a missing resource.
func NotFound(resourceType, resourceID string) *Error {
	return &Error{
		Code:        CodeNotFound,
		Status:      http.StatusNotFound,
		Message:     fmt.Sprintf("%s not found: %s", resourceType, resourceID),
		UserMessage: fmt.Sprintf("The requested %s was not found.", resourceType),
		Details:     map[string]any{"resource_type": resourceType, "resource_id": resourceID},
	}
}

// Unauthorized reports missing or invalid authentication.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{
		Code:        CodeUnauthorized,
		Status:      http.StatusUnauthorized,
		Message:     message,
		UserMessage: "Please log in to access this resource.",
	}
}

// Forbidden reports an access violation.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access forbidden"
	}
	return &Error{
		Code:        CodeForbidden,
		Status:      http.StatusForbidden,
		Message:     message,
		UserMessage: "You don't have permission to access this resource.",
	}
}

// Validation reports invalid input. field may be empty.
func Validation(message, field string) *Error {
	e := &Error{
		Code:        CodeValidation,
		Status:      http.StatusBadRequest,
		Message:     message,
		UserMessage: message,
	}
	if field != "" {
		e.Details = map[string]any{"field": field}
	}
	return e
}

// RequestValidation reports a malformed request body, with per-field errors.
func RequestValidation(fieldErrors []map[string]any) *Error {
	return &Error{
		Code:        CodeValidation,
		Status:      http.StatusUnprocessableEntity,
		Message:     "request body validation failed",
		UserMessage: "Invalid request data. Please check your input.",
		Details:     map[string]any{"errors": fieldErrors},
	}
}

// Gone reports a resource that was deleted while a long-running operation was
// still using it.
func Gone(message string) *Error {
	return &Error{
		Code:        CodeNotFound,
		Status:      http.StatusGone,
		Message:     message,
		UserMessage: message,
	}
}

// ExternalService reports a failure in an upstream dependency.
func ExternalService(service, message string, retryable bool) *Error {
	return &Error{
		Code:        CodeExternalService,
		Status:      http.StatusServiceUnavailable,
		Message:     fmt.Sprintf("%s error: %s", service, message),
		UserMessage: "Service temporarily unavailable. Please try again in a moment.",
		Details:     map[string]any{"service": service, "retryable": retryable},
		Retryable:   retryable,
	}
}

// Processing reports a document or clause processing failure. stage may be empty.
func Processing(message, stage string) *Error {
	e := &Error{
		Code:        CodeProcessing,
		Status:      http.StatusInternalServerError,
		Message:     message,
		UserMessage: "An error occurred while processing your request. Please try again.",
	}
	if stage != "" {
		e.Details = map[string]any{"stage": stage}
	}
	return e
}

// RateLimit reports a rate limit from an upstream service.
// retryAfter is in seconds; zero means unknown.
func RateLimit(message string, retryAfter int) *Error {
	if message == "" {
		message = "Rate limit exceeded"
	}
	e := &Error{
		Code:        CodeRateLimit,
		Status:      http.StatusTooManyRequests,
		Message:     message,
		UserMessage: "Too many requests. Please wait a moment before trying again.",
		Retryable:   true,
		RetryAfter:  retryAfter,
	}
	if retryAfter > 0 {
		e.Details = map[string]any{"retry_after": retryAfter}
	}
	return e
}

// Internal wraps an unexpected error.
func Internal(err error) *Error {
	return &Error{
		Code:        CodeInternal,
		Status:      http.StatusInternalServerError,
		Message:     err.Error(),
		UserMessage: "An unexpected error occurred. Please try again.",
		cause:       err,
	}
}

// From converts any error into an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsRetryable reports whether err may succeed on retry. Unknown errors are
// treated as retryable; structured errors decide for themselves.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return true
}
