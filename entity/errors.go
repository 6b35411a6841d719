package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("entity: validation failed")

	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("entity: invalid configuration")

	// ErrCollectionNotFound is returned when no collection is registered under a name.
	ErrCollectionNotFound = errors.New("entity: collection not found")

	// ErrAccessorNotFound is returned when calling an accessor that was never installed.
	ErrAccessorNotFound = errors.New("entity: accessor not found")
)

// ValidationError reports a rejected value before any store call is made.
type ValidationError struct {
	Entity    string
	Attribute string
	Message   string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationErrorf(entity, attribute, format string, args ...any) error {
	return &ValidationError{
		Entity:    entity,
		Attribute: attribute,
		Message:   fmt.Sprintf(format, args...),
	}
}

// ConfigurationError reports a malformed schema, reference or registry binding.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "entity: " + e.Message
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}
