package goban

import "errors"

// Sentinel errors shared by the persistence layer and the HTTP surface.
// Handlers map these onto status codes; anything unrecognized becomes a
// 500 with a generic body.
var (
	// ErrNotFound means no session matched the owner/state filter.
	ErrNotFound = errors.New("no matching game")

	// ErrConflict means a uniqueness constraint was violated.
	ErrConflict = errors.New("already exists")

	// ErrValidation means required input was missing or malformed.
	ErrValidation = errors.New("invalid input")
)
