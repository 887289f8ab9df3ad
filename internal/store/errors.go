package store

import "errors"

// ErrNotFound is returned when a referenced list, item or user does not
// exist. Callers decide whether absence is an error or a normal outcome.
var ErrNotFound = errors.New("store: not found")
