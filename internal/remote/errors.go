package remote

import "errors"

// Common remote store errors.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("unauthorized: check the remote token")
	// ErrForbidden is returned when authorization fails.
	ErrForbidden = errors.New("forbidden: token may not write this collection")
	// ErrConflict is returned when a conditional write loses to a newer version.
	ErrConflict = errors.New("conflict: document changed since it was read")
	// ErrUnavailable is returned when the store cannot be reached at all.
	ErrUnavailable = errors.New("remote store unavailable")
)
