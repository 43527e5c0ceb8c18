// Package errors holds the sentinel errors shared by keysample packages,
// plus helpers for wrapping and classifying them.
//
// The sampling core has no recoverable errors of its own. Everything here
// belongs to the surfaces around it: configuration, the sharded accountant,
// workload parsing and snapshot export.
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Validation errors
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidUnit     = errors.New("metric units per sample must be positive")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidQueue    = errors.New("invalid expiry queue kind")
	ErrMissingField    = errors.New("missing required field")

	// Parse errors
	ErrParse = errors.New("parse error")

	// State errors
	ErrNotRunning     = errors.New("accountant is not running")
	ErrAlreadyRunning = errors.New("accountant is already running")

	// Export errors
	ErrWriterClosed = errors.New("snapshot writer is closed")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidUnit) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidQueue) ||
		errors.Is(err, ErrMissingField)
}

// IsStateError returns true if err is a lifecycle error.
func IsStateError(err error) bool {
	return errors.Is(err, ErrNotRunning) ||
		errors.Is(err, ErrAlreadyRunning)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewParse creates a parse error for the given line.
func NewParse(line int, reason string) error {
	return fmt.Errorf("line %d: %s: %w", line, reason, ErrParse)
}
