package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the tracker.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	if e.ID == "" {
		return capitalize(e.Resource) + " not found"
	}
	return fmt.Sprintf("%s not found: %s", capitalize(e.Resource), e.ID)
}

// ErrExternalService indicates a failure in a call to the store API.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrDuplicate indicates a unique field is already taken.
type ErrDuplicate struct {
	Resource string
	Field    string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("%s with this %s already exists", capitalize(e.Resource), e.Field)
}

// DuplicateCategoryName is returned when a category name is taken,
// ignoring case.
func DuplicateCategoryName() *ErrDuplicate {
	return &ErrDuplicate{Resource: "category", Field: "name"}
}

// ErrConflict indicates the operation conflicts with existing data,
// e.g. deleting a category that still has transactions.
type ErrConflict struct {
	Message string
	// References counts the transactions blocking a category delete.
	References int
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// CategoryInUse is returned when n transactions still reference a category.
func CategoryInUse(n int) *ErrConflict {
	return &ErrConflict{
		Message:    fmt.Sprintf("Cannot delete category. It has %d transactions.", n),
		References: n,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
