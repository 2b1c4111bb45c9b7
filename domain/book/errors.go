package book

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder marks a malformed submission. No entry is created.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrDuplicateOrder marks a redelivered orderRef. The first submission
	// already owns the book entry.
	ErrDuplicateOrder = errors.New("duplicate order ref")
)

// StorageError wraps a store failure. The submit call aborted without a
// partial mutation; the whole call may be retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError tags err with the failed store operation.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
