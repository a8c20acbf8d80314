package session

import "errors"

// Session errors.
var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session closed")

	// ErrInvalidConfig is returned by New for incomplete configuration.
	ErrInvalidConfig = errors.New("invalid session config")

	// ErrInvalidArgument is returned synchronously for bad operation input.
	ErrInvalidArgument = errors.New("invalid argument")
)
