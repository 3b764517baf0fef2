package daemon

import "errors"

var (
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("already running")

	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("already stopped")

	// ErrUnknownBackend is returned for an unrecognized watch backend name.
	ErrUnknownBackend = errors.New("unknown watch backend")
)
