package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Delta is a byte range read from a file.
type Delta struct {
	// Content holds the bytes in [Offset, End).
	Content []byte
	// Offset is where the read started.
	Offset int64
	// End is the offset just past the last byte read. It becomes the new
	// ledger value for the file.
	End int64
}

// Truncated reports whether the read restarted from zero because the file
// shrank below the previously recorded size.
func (d *Delta) Truncated(previous int64) bool {
	return d.Offset == 0 && previous > 0
}

// ReadDelta reads the bytes appended to path since previous.
//
// When the file is larger than previous, only [previous, size) is read with
// a positioned read. When it is smaller the file was truncated or
// rewritten, and the whole file is read from offset 0. When the size is
// unchanged the returned Delta is empty and End equals previous.
func ReadDelta(path string, previous int64) (*Delta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	current := info.Size()

	from := previous
	if current < previous || previous < 0 {
		from = 0
	}
	return readRange(f, path, from, current)
}

// ReadWhole reads the entire current content of path.
func ReadWhole(path string) (*Delta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return readRange(f, path, 0, info.Size())
}

// readRange reads [from, to) from f. Bytes written after the stat that
// produced to are left for the next event. If the file shrank in between,
// the range ends at the last byte actually read.
func readRange(f *os.File, path string, from, to int64) (*Delta, error) {
	if to <= from {
		return &Delta{Content: []byte{}, Offset: from, End: from}, nil
	}

	buf := make([]byte, to-from)
	n, err := f.ReadAt(buf, from)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read %s at %d: %w", path, from, err)
	}

	return &Delta{Content: buf[:n], Offset: from, End: from + int64(n)}, nil
}
