package repository

import "errors"

// Sentinel errors crossing the repository boundary. Services translate these
// into the API error taxonomy.
var (
	// ErrInvalidState signals a guarded status transition attempted from the
	// wrong lifecycle state.
	ErrInvalidState = errors.New("invalid lifecycle state")

	// ErrCapacityExceeded signals that seats or resource quantity ran out
	// during a transactional check-and-mutate.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrRoomInUse signals a room deletion attempt while schedule days still
	// reference it.
	ErrRoomInUse = errors.New("room referenced by schedule days")

	// ErrResourceUnavailable signals a booking attempt against a resource
	// whose availability flag is off.
	ErrResourceUnavailable = errors.New("resource not available for booking")
)
