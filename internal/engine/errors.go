package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a missing or malformed seed, stain or index.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration marks game parameters that cannot produce a valid game.
	ErrConfiguration = errors.New("configuration error")
)

// InputError describes which field was rejected and why.
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%v: %s %s", e.Err, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }

func invalidInput(field, reason string) error {
	return &InputError{Field: field, Reason: reason, Err: ErrInvalidInput}
}

func invalidConfig(field, reason string) error {
	return &InputError{Field: field, Reason: reason, Err: ErrConfiguration}
}

// InvalidInput builds an ErrInvalidInput for callers outside this package.
func InvalidInput(field, reason string) error { return invalidInput(field, reason) }

// InvalidConfig builds an ErrConfiguration for callers outside this package.
func InvalidConfig(field, reason string) error { return invalidConfig(field, reason) }
