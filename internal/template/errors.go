package template

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document type or template does not exist.
	ErrNotFound = errors.New("template not found")

	// ErrConflict is returned by Save when the store file was changed by
	// someone else since it was last read or written.
	ErrConflict = errors.New("template store changed on disk")

	// ErrInvalidTemplate wraps every validation problem.
	ErrInvalidTemplate = errors.New("invalid template")
)

// PersistenceError reports a failure reading or writing the store file.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("template store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
