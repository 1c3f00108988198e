package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad input shape or range.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing collection, config or model.
	ErrNotFound = errors.New("not found")
	// ErrBackendUnavailable marks a vector-index backend that cannot serve.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrNoBackendAvailable is returned when no collection backend initialized.
	ErrNoBackendAvailable = fmt.Errorf("no collection backend available: %w", ErrBackendUnavailable)
	// ErrArityMismatch means chunks, vectors and metadatas differ in length.
	ErrArityMismatch = errors.New("chunks, vectors and metadatas must have equal length")
	// ErrEmbeddingUnavailable means no embedding backend is loaded.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")
	// ErrProvider wraps upstream generation or download failures.
	ErrProvider = errors.New("provider error")
	// ErrUnsupportedFormat is returned for file types the extractor does not handle.
	ErrUnsupportedFormat = fmt.Errorf("unsupported file format: %w", ErrValidation)
)

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError returns a NotFoundError for resource.
func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

// ValidationError describes one rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
