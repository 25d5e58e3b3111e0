package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrBackend           = errors.New("backend error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrRender            = errors.New("render error")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// The gateway maps backend 403 responses to this.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for a rejected credential (backend 401).
// Receiving one of these is the sole signal that triggers session
// invalidation.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Backend wraps a non-401 backend failure. The message is the backend's
// detail string when one was provided, else a generic description — it is
// shown to the user verbatim next to the action that triggered it.
func Backend(message string) *AppError {
	return &AppError{
		Err:     ErrBackend,
		Message: message,
	}
}

// MalformedResponse marks a backend payload that decoded but is missing
// required fields. Field names the offender.
func MalformedResponse(field, message string) *AppError {
	return &AppError{
		Err:     ErrMalformedResponse,
		Message: message,
		Field:   field,
	}
}

// Render marks a failure inside the markdown/diagram pipeline. These are
// surfaced inline at the failing block, never as a document-wide error.
func Render(message string) *AppError {
	return &AppError{
		Err:     ErrRender,
		Message: message,
	}
}
