package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when an insert collides with a unique key.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrForeignKey is returned when a referenced room or user is missing.
	ErrForeignKey = errors.New("persistence: foreign key violation")
	// ErrConstraint is returned when a CHECK constraint rejects a row.
	ErrConstraint = errors.New("persistence: constraint violation")
	// ErrLastAdmin is returned when an operation would leave no admin account.
	ErrLastAdmin = errors.New("persistence: last admin")
	// ErrStorage matches every StorageError.
	ErrStorage = errors.New("persistence: storage failure")
)

// StorageError reports an I/O or driver failure. Callers may retry.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err with the failing operation.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
