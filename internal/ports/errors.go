package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrCacheCorrupted indicates that cached data is corrupted or invalid.
	ErrCacheCorrupted = errors.New("cache corrupted")

	// ErrUnknownDomain indicates that the guideline store has no such domain.
	ErrUnknownDomain = errors.New("unknown guideline domain")

	// ErrUnknownConcept indicates that the domain has no such concept.
	ErrUnknownConcept = errors.New("unknown guideline concept")

	// ErrEmptyDataset indicates that no samples were left to classify.
	ErrEmptyDataset = errors.New("empty dataset")
)

// ClassifierError represents a failed classifier run.
type ClassifierError struct {
	// RunID is the run that failed.
	RunID string

	// Operation is the stage of the run that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ClassifierError.
func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier error: run=%s, operation=%s, err=%v", e.RunID, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *ClassifierError) Unwrap() error { return e.Err }

// NewClassifierError creates a new ClassifierError with the given details.
func NewClassifierError(runID, operation string, err error) *ClassifierError {
	return &ClassifierError{
		RunID:     runID,
		Operation: operation,
		Err:       err,
	}
}

// CacheError represents an error from cache operations.
// It includes the key and operation that failed.
type CacheError struct {
	// Key is the cache key that was involved in the failed operation.
	Key string

	// Operation is the name of the cache operation that failed.
	Operation string

	// Err is the underlying error that caused the cache operation to fail.
	Err error
}

// Error implements the error interface for CacheError.
func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError creates a new CacheError with the given details.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
