package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid marks input the caller has to fix (HTTP 400).
	ErrInvalid = errors.New("invalid input")
	// ErrNotFound marks a missing record (HTTP 404).
	ErrNotFound = errors.New("not found")
)

// Invalid builds an ErrInvalid carrying a readable reason.
func Invalid(format string, args ...any) error {
	return &reasonError{kind: ErrInvalid, msg: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound for the named resource, e.g. "student".
func NotFound(resource string) error {
	return &reasonError{kind: ErrNotFound, msg: resource + " not found"}
}

type reasonError struct {
	kind error
	msg  string
}

func (e *reasonError) Error() string { return e.msg }

func (e *reasonError) Unwrap() error { return e.kind }
