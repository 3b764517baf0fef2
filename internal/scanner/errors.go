package scanner

import "errors"

var (
	// ErrNotFound is returned when a requested identifier is not present
	// under any root.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidIdentifier is returned when an identifier is empty or
	// would resolve outside its root.
	ErrInvalidIdentifier = errors.New("invalid file identifier")

	// ErrRootMissing is reported (as a warning) for configured roots that
	// do not exist.
	ErrRootMissing = errors.New("root directory not found")

	// ErrInvalidSince is returned when a since expression cannot be parsed.
	ErrInvalidSince = errors.New("unrecognized time expression")
)
