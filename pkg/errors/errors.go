package errors

import (
	"errors"
	"fmt"
)

// Generic error types

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates the caller exceeded the request rate
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrConflict indicates a concurrent operation holds the resource
	ErrConflict = errors.New("operation already in progress")
)

// Catalog and sampling errors

var (
	// ErrUnknownEvent indicates an event label with no definition or probability table
	ErrUnknownEvent = errors.New("unknown event")

	// ErrUnknownCategory indicates a category label absent from the catalog snapshot in use
	ErrUnknownCategory = errors.New("unknown category")

	// ErrInvalidDistribution indicates a probability table entry that cannot be sampled
	ErrInvalidDistribution = errors.New("invalid distribution")

	// ErrCatalogConflict indicates a write that would replace a record's frozen catalogs
	ErrCatalogConflict = errors.New("catalog conflict")
)

// Model errors

var (
	// ErrNoModelsForTag indicates a tag holds no model records for the algorithm
	ErrNoModelsForTag = errors.New("no models for tag")

	// ErrEmptyModelSet indicates the classifier received no candidates
	ErrEmptyModelSet = errors.New("empty model set")

	// ErrInputShape indicates training data or parameters with an unusable shape
	ErrInputShape = errors.New("input shape error")

	// ErrConvergence indicates the estimator failed to produce finite parameters
	ErrConvergence = errors.New("convergence error")

	// ErrScoring indicates a sequence could not be scored against a model
	ErrScoring = errors.New("scoring error")

	// ErrUnsupportedAlgorithm indicates no engine is registered for an algorithm
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrRegistry indicates a model registry read or write failure
	ErrRegistry = errors.New("registry error")
)

// codes lists sentinels in match order; the first match wins so the most specific come first.
// ErrScoring leads: a failed prediction is reported as such even when it wraps its catalog cause.
var codes = []struct {
	err  error
	code string
}{
	{ErrScoring, "scoring"},
	{ErrUnknownEvent, "unknown_event"},
	{ErrUnknownCategory, "unknown_category"},
	{ErrInvalidDistribution, "invalid_distribution"},
	{ErrCatalogConflict, "catalog_conflict"},
	{ErrNoModelsForTag, "no_models_for_tag"},
	{ErrEmptyModelSet, "empty_model_set"},
	{ErrInputShape, "input_shape"},
	{ErrConvergence, "convergence"},
	{ErrUnsupportedAlgorithm, "unsupported_algorithm"},
	{ErrNotFound, "not_found"},
	{ErrInvalidInput, "invalid_input"},
	{ErrRateLimitExceeded, "rate_limited"},
	{ErrConflict, "conflict"},
	{ErrRegistry, "registry"},
	{ErrUnavailable, "unavailable"},
}

// Code returns the machine-readable status code for err.
// Errors outside the taxonomy map to "internal".
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	var de *DomainError
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "invalid_input"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// IsExpected reports whether err belongs to the domain taxonomy and can be shown to callers as is.
func IsExpected(err error) bool {
	switch Code(err) {
	case "ok", "internal", "registry", "unavailable":
		return false
	}
	return true
}

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("validation error: field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets errors.Is match ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is / errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Join wraps err with a second sentinel so both match errors.Is
func Join(sentinel, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func New(message string) error {
	return errors.New(message)
}
