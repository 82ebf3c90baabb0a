// Package apperror provides the typed error returned by every auth operation.
// An AppError carries an HTTP status code and a client-safe message; the
// underlying cause is kept in Internal for logging and never serialized.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the uniform domain error converted into the error envelope at
// the HTTP boundary.
type AppError struct {
	// Code is the HTTP status code (e.g., 404, 400, 500).
	Code int

	// Type is a machine-readable classifier (e.g., "conflict").
	Type string

	// Message is a human-readable description safe for the client.
	Message string

	// Internal holds the underlying error for logging.
	Internal error
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithInternal returns a copy of e that records err as its cause.
func (e *AppError) WithInternal(err error) *AppError {
	cp := *e
	cp.Internal = err
	return &cp
}

// NewValidation creates a 400 error for missing or malformed input.
func NewValidation(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Type: "validation", Message: message}
}

// NewConflict creates a 409 error for duplicate identities.
func NewConflict(message string) *AppError {
	return &AppError{Code: http.StatusConflict, Type: "conflict", Message: message}
}

// NewNotFound creates a 404 error.
func NewNotFound(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Type: "not_found", Message: message}
}

// NewUnauthorized creates a 401 error for bad credentials or tokens.
func NewUnauthorized(message string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Type: "unauthorized", Message: message}
}

// NewInternal creates a 500 error. The message is shown to the client; err is
// kept only for logging.
func NewInternal(message string, err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  message,
		Internal: err,
	}
}

// From extracts an AppError from err, wrapping anything else as a generic 500.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternal("internal server error", err)
}

// StatusCode returns the HTTP status associated with err.
func StatusCode(err error) int {
	return From(err).Code
}
