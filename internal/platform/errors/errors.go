// Package errors provides structured errors with a category, a human-readable
// message and HTTP status mapping for the coordinator's message channel.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sleepydirt/vision/internal/domain"
)

// ErrorType is the category of an error, used for logging and response shaping.
type ErrorType string

const (
	TypeValidation  ErrorType = "validation"  // 400
	TypeNotFound    ErrorType = "not_found"   // 404
	TypeConflict    ErrorType = "conflict"    // 409
	TypeUnavailable ErrorType = "unavailable" // 503
	TypeTimeout     ErrorType = "timeout"     // 504
	TypeInternal    ErrorType = "internal"    // 500
	TypeExternal    ErrorType = "external"    // 502
)

// Error is a structured error with type, message and context fields.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	case TypeTimeout:
		return http.StatusGatewayTimeout
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }

func NotFoundError(message string) *Error { return newError(TypeNotFound, message, nil) }

func ConflictError(message string) *Error { return newError(TypeConflict, message, nil) }

func UnavailableError(message string, cause error) *Error {
	return newError(TypeUnavailable, message, cause)
}

func TimeoutError(message string, cause error) *Error { return newError(TypeTimeout, message, cause) }

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

// WithField adds a context field (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent for a structured error.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError converts any error into a structured Error. Structured
// errors anywhere in the chain are returned as-is. Known domain sentinels and
// context errors get their own category; everything else is internal.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	switch {
	case errors.Is(err, domain.ErrUnknownRequest), errors.Is(err, domain.ErrWorkItemNotFound):
		return newError(TypeNotFound, err.Error(), err)
	case errors.Is(err, domain.ErrModelLoading), errors.Is(err, domain.ErrSubmissionDisabled):
		return newError(TypeConflict, err.Error(), err)
	case errors.Is(err, domain.ErrResourceNotLoaded), errors.Is(err, domain.ErrSessionTornDown):
		return newError(TypeUnavailable, err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(TypeTimeout, "operation timed out", err)
	}

	return InternalError("internal server error", err)
}
