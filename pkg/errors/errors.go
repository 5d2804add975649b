package errors

import (
	"errors"
	"fmt"
)

// Common application errors with proper types for error handling

var (
	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrMisconfigured indicates a required server setting is missing
	ErrMisconfigured = errors.New("misconfigured")

	// ErrUpstream indicates an external service answered with a failure
	ErrUpstream = errors.New("upstream error")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)

// InvalidInputError creates an invalid input error with context
func InvalidInputError(field, reason string) error {
	return fmt.Errorf("%s: %s: %w", field, reason, ErrInvalidInput)
}

// MisconfiguredError names the missing setting
func MisconfiguredError(setting string) error {
	return fmt.Errorf("%s is not set: %w", setting, ErrMisconfigured)
}

// UpstreamError creates an upstream error for the named service
func UpstreamError(service string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", service, ErrUpstream)
	}
	return fmt.Errorf("%s: %w: %w", service, ErrUpstream, err)
}

// InternalError creates an internal error with context
func InternalError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInternal)
}

// Is checks if an error matches a target error (works with wrapped errors)
func Is(err, target error) bool {
	return errors.Is(err, target)
}
