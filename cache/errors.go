package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHash indicates a content hash that is not 64 lowercase hex characters
	ErrInvalidHash = errors.New("invalid content hash")

	// ErrStoreIO indicates the durable store could not be read or written
	ErrStoreIO = errors.New("cache store i/o failure")
)

// IOError records which store operation failed and for which hash
type IOError struct {
	Op    string
	Hash  string
	Cause error
}

func (e *IOError) Error() string {
	if e.Hash == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Hash, e.Cause)
}

func (e *IOError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrStoreIO
func (e *IOError) Is(target error) bool {
	return target == ErrStoreIO
}

func ioError(op, hash string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Hash: hash, Cause: err}
}
