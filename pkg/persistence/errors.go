// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrUserNotFound indicates a user was not found by the given identifier.
	ErrUserNotFound = errors.New("user not found")

	// ErrJourneyNotFound indicates a journey was not found by the given identifier.
	ErrJourneyNotFound = errors.New("journey not found")

	// ErrListNotFound indicates a list was not found by the given identifier.
	ErrListNotFound = errors.New("list not found")

	// ErrUserStepNotFound indicates a history row was not found.
	ErrUserStepNotFound = errors.New("journey user step not found")

	// ErrDeliveryNotFound indicates no delivery exists for the given key.
	ErrDeliveryNotFound = errors.New("delivery not found")
)

// RepositoryError wraps storage errors with the operation and entity context.
type RepositoryError struct {
	Op     string // Operation being performed (e.g. "GetByID", "Save")
	Entity string // Entity kind (e.g. "journey", "user_step")
	ID     string // Entity identifier if applicable
	Err    error  // Underlying error
}

func (e *RepositoryError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for repository errors.
func (e *RepositoryError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRepositoryError creates a repository error with context.
func NewRepositoryError(op, entity, id string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsNotFound checks whether an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrJourneyNotFound) ||
		errors.Is(err, ErrListNotFound) ||
		errors.Is(err, ErrUserStepNotFound) ||
		errors.Is(err, ErrDeliveryNotFound)
}
