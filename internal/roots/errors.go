package roots

import "errors"

var (
	// ErrNoRoots is returned when no root directories are configured.
	ErrNoRoots = errors.New("no root directories configured")

	// ErrOutsideRoot is returned when a relative identifier would resolve
	// to a path outside its root (for example via "..").
	ErrOutsideRoot = errors.New("path escapes root directory")
)
