package trust

import (
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// NotFoundError is returned by top-level entry points when an agent,
// episode, or criteria record cannot be resolved. Internal lookups prefer
// safe-default degradation over raising this.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound creates a new NotFoundError.
func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// InvalidInputError indicates a caller-supplied value that cannot be
// interpreted, such as an unknown target maturity.
type InvalidInputError struct {
	Field string
	Value string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// NewInvalidInput creates a new InvalidInputError.
func NewInvalidInput(field, value string) *InvalidInputError {
	return &InvalidInputError{Field: field, Value: value}
}

// ExternalFailureError wraps a failure from an external collaborator
// (persistence, sandbox executor, constitutional validator).
type ExternalFailureError struct {
	Op    string
	Cause error
}

func (e *ExternalFailureError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Cause)
}

func (e *ExternalFailureError) Unwrap() error {
	return e.Cause
}

// NewExternalFailure creates a new ExternalFailureError.
func NewExternalFailure(op string, cause error) *ExternalFailureError {
	return &ExternalFailureError{Op: op, Cause: cause}
}
