package tokenstore

import (
	"errors"
	"fmt"
)

// ErrStorage classifies every backend read, write or delete failure.
var ErrStorage = errors.New("tokenstore: storage failure")

// StorageError records which operation failed on which key.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("tokenstore: %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both ErrStorage and the backend cause to errors.Is/As.
func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

func storageErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}
