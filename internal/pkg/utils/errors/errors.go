// Package errors provides error constructors and aggregation used across the project.
//
// It is a thin layer over the standard library: constructors keep the standard
// wrapping semantics (%w, Is, As), PrefixError adds a message prefix without
// losing the wrapped chain, and MultiError aggregates independent errors from
// cleanup and scan loops.
package errors

import (
	"errors"
	"fmt"
)

func New(message string) error {
	return errors.New(message)
}

func Errorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// PrefixError adds a prefix to the error message, the original error remains unwrappable.
func PrefixError(err error, prefix string) error {
	return fmt.Errorf("%s: %w", prefix, err)
}

// PrefixErrorf adds a formatted prefix to the error message.
func PrefixErrorf(err error, format string, a ...any) error {
	return PrefixError(err, fmt.Sprintf(format, a...))
}
