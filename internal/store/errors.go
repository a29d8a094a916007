package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is a generic version of the entity-specific not found
	// errors (e.g., ErrJobNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidTransition is returned when a guarded state-transition update
	// matches no row because the entity is not in the expected source state.
	// This is how the store enforces the single-writer discipline: a
	// transition only succeeds against the exact state it departs from.
	ErrInvalidTransition = errors.New("entity not in expected state")

	// ErrJobNotFound indicates that the requested job does not exist in the store.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// ErrScheduleNotFound indicates that the requested organization schedule
	// does not exist in the store.
	ErrScheduleNotFound = fmt.Errorf("%w: organization schedule", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
