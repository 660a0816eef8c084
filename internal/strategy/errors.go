package strategy

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned (wrapped in an *InputError) when a backtest is
// asked to run on structurally invalid input.
var ErrInvalidInput = errors.New("invalid input")

// InputError names the offending field of a rejected backtest request.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput, e.Field, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidInput).
func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NewInputError builds an *InputError for use by policy constructors and
// loaders outside this package.
func NewInputError(field, format string, args ...any) error {
	return invalid(field, format, args...)
}
