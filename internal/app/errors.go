package app

import "errors"

// ErrNotFound and related errors describe host-service failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("concurrent modification")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTrackingCode    = errors.New("could not allocate a unique tracking code")
)
