// Package dberr holds the error taxonomy shared by every pagedb layer.
// Lower layers wrap these sentinels with context; callers match them with
// errors.Is.
package dberr

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrValidationFailed = errors.New("pagedb: validation failed")
	ErrCapacityExceeded = errors.New("pagedb: capacity exceeded")
	ErrNotFound         = errors.New("pagedb: not found")
	ErrAlreadyExists    = errors.New("pagedb: already exists")
	ErrCorruptRecord    = errors.New("pagedb: corrupt record")
	ErrIOFailure        = errors.New("pagedb: i/o failure")
)

// Validation wraps ErrValidationFailed with a formatted reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

// IO classifies an error coming from the filesystem. Missing files become
// ErrNotFound, everything else ErrIOFailure. nil stays nil.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrIOFailure, op, err)
}
