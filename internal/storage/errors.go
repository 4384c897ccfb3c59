package storage

import "errors"

var (
	// ErrNotFound is returned when a request or driver does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by UpdateConditional when the stored status
	// no longer matches the expected one, i.e. a concurrent writer won.
	ErrConflict = errors.New("status conflict")
)
