package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a block id or codec name cannot be
	// resolved.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyPresent is returned when inserting a key that already
	// exists in a mem rowset.
	ErrAlreadyPresent = errors.New("key already present")
)

// CorruptionError reports a structurally invalid on-disk descriptor or
// block. It wraps the underlying decode failure when there is one.
type CorruptionError struct {
	Message string
	Err     error
}

func (e *CorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corruption: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("corruption: %s", e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// NewCorruptionError builds a CorruptionError with a formatted message.
func NewCorruptionError(format string, args ...any) *CorruptionError {
	return &CorruptionError{Message: fmt.Sprintf(format, args...)}
}

// IsCorruption checks if an error (or any error in its chain) is a
// CorruptionError.
func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}
