package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Handlers map these to HTTP statuses;
// anything not matching one of them is treated as a storage/internal failure.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrNoAnchor      = errors.New("no balance anchor")
	ErrInvalidDate   = errors.New("invalid date")
	ErrRangeTooLarge = errors.New("date range too large")
	ErrConsistency   = errors.New("consistency check failed")
)

// ValidationErrorf wraps ErrValidation with a formatted detail message.
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundErrorf wraps ErrNotFound with a formatted detail message.
func NotFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// ErrorCode returns the machine-readable code for a known error kind,
// or empty string for unclassified errors.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNoAnchor):
		return "no_anchor"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, ErrRangeTooLarge):
		return "range_too_large"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConsistency):
		return "consistency"
	}
	return ""
}
