package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind classifies application errors for transport mapping and tests.
type ErrorKind string

const (
	// KindNotFound covers missing entities and callers that are not a
	// participant of the entity. The two are deliberately indistinguishable
	// so lookups cannot be used to probe for existence.
	KindNotFound ErrorKind = "not_found"
	// KindConflict covers duplicate requests, already-linked relations and
	// already-resolved requests.
	KindConflict ErrorKind = "conflict"
	// KindInvalidState marks operations that are illegal for the entity's
	// current lifecycle state.
	KindInvalidState ErrorKind = "invalid_state"
	// KindInvalidInput marks malformed or out-of-range caller input.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindStalePeer marks protocol operations whose friend link was severed
	// while the request was in flight.
	KindStalePeer ErrorKind = "stale_peer"
	// KindUnauthorized marks authentication failures.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindInternal marks unexpected infrastructure failures.
	KindInternal ErrorKind = "internal"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError is a typed application error carrying a taxonomy kind.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err, or KindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// NewNotFoundError returns a NotFound error for the given resource.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewConflictError returns a Conflict error with the given message.
func NewConflictError(message string) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewInvalidStateError returns an InvalidState error with the given message.
func NewInvalidStateError(message string) *AppError {
	return &AppError{
		Kind:    KindInvalidState,
		Code:    "INVALID_STATE",
		Message: message,
	}
}

// NewValidationError returns an InvalidInput error with the given message.
func NewValidationError(message string) *AppError {
	return &AppError{
		Kind:    KindInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

// NewStalePeerError returns a StalePeer error with the given message.
func NewStalePeerError(message string) *AppError {
	return &AppError{
		Kind:    KindStalePeer,
		Code:    "STALE_PEER",
		Message: message,
	}
}

// NewUnauthorizedError returns an Unauthorized error with the given message.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusForError maps an error's kind to an HTTP status code.
func StatusForError(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindInvalidState, KindStalePeer:
		return fiber.StatusUnprocessableEntity
	case KindInvalidInput:
		return fiber.StatusBadRequest
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError writes a standardized error response.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
