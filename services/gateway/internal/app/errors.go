package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced book does not exist (or is not
	// yet ingested).
	ErrNotFound = errors.New("book not found")
	// ErrForbidden indicates an authenticated caller lacking the admin role
	// for an admin-only operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUpstream indicates the object store failed.
	ErrUpstream = errors.New("object store unavailable")
)

// ValidationError reports a malformed or out-of-range request field.
// Validation runs before any store mutation.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
