// Package apperr holds the sentinel errors shared across notegraph layers.
package apperr

import "errors"

var (
	// ErrNotFound means "no note here"; it is ordinary control flow, not a failure.
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

// ErrInvalidPath is returned for paths that cannot name a note.
var ErrInvalidPath = errors.New("invalid note path")
