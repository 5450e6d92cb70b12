package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors.
var (
	// ErrUnknownTask indicates a task identifier outside the catalog.
	ErrUnknownTask = errors.New("unknown task")

	// ErrInvalidMode indicates a discovery mode other than standard or adventure.
	ErrInvalidMode = errors.New("invalid discovery mode")

	// ErrEmptyValue indicates that a required value is empty.
	ErrEmptyValue = errors.New("empty value")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ValidationError collects every problem found in one request or entity so
// callers can report them together.
type ValidationError struct {
	// Entity names what failed validation, e.g. "search request".
	Entity string

	// Errors contains the individual messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %s", e.Entity, strings.Join(e.Errors, "; "))
}

// AddError records one more problem.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if any problem was recorded.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// Err returns e when it holds errors and nil otherwise, so callers can
// write `return v.Err()`.
func (e *ValidationError) Err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
