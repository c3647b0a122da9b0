package state

import "errors"

var (
	// ErrValidation indicates a malformed intent payload.
	ErrValidation = errors.New("validation error")
	// ErrNotFound indicates an intent referencing an id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidIntent indicates an intent kind no reducer is registered for.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrPersistence indicates a failed save. It is only ever logged and notified.
	ErrPersistence = errors.New("persistence failure")
)
