package domain

import (
	"errors"
	"fmt"
)

// Common domain errors raised while building permutations and prompts.
var (
	// ErrInvalidPermutation indicates that a set of entries does not form a
	// bijection.
	ErrInvalidPermutation = errors.New("invalid label permutation")

	// ErrNoDerangement indicates that a label set is too small to remap every
	// label onto a different one.
	ErrNoDerangement = errors.New("label set admits no derangement")

	// ErrDecoyPoolExhausted indicates that the decoy pool holds fewer unused
	// tokens than the label set needs.
	ErrDecoyPoolExhausted = errors.New("decoy label pool exhausted")

	// ErrMissingDefinition indicates that a label needed for rendering or
	// scoring has no definition text.
	ErrMissingDefinition = errors.New("missing label definition")

	// ErrPermutationSpaceTooLarge indicates that |L|! orderings cannot be
	// enumerated for the label set.
	ErrPermutationSpaceTooLarge = errors.New("permutation space too large to enumerate")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ConfigurationError reports a fatal setup problem detected before or during
// an evaluation: a bad taxonomy, an undersized decoy pool, or a label without
// a definition. The evaluation cannot proceed meaningfully.
type ConfigurationError struct {
	// Field names the configuration item or label that is at fault.
	Field string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: field=%s, err=%v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: err}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match any validation failure against
// ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
