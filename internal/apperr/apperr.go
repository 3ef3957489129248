// Package apperr holds the error kinds shared by every domain package.
// Domain errors wrap one of the kinds so callers can match either the
// specific sentinel or the kind with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrDependency = errors.New("dependency error")
)

// Validation returns a validation error with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Dependency marks err as a failure of a backing service while running op.
// A nil err stays nil.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDependency, err)
}

// Kind returns the kind wrapped by err, or nil when err carries none.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrForbidden, ErrDependency} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
