package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a write would violate the
// unique index on the email column.
var ErrDuplicateEmail = errors.New("email already in use")
