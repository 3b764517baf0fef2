package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentlogs/logmon/internal/roots"
)

const tailChunkSize = 8 * 1024

// Locate returns the absolute path of id under the first root that has it.
func (s *Scanner) Locate(id string) (string, error) {
	if id == "" {
		return "", ErrInvalidIdentifier
	}

	for _, root := range s.resolver.Roots() {
		p, err := roots.Join(root, id)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
		}
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ReadFile returns the content of id. When lines > 0 only the last lines
// lines are returned, joined by "\n" and without a trailing newline.
func (s *Scanner) ReadFile(id string, lines int) (string, error) {
	p, err := s.Locate(id)
	if err != nil {
		return "", err
	}

	if lines <= 0 {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", id, err)
		}
		return string(data), nil
	}

	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", id, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", id, err)
	}

	return tailLines(f, info.Size(), lines)
}

// tailLines reads backwards from size in fixed chunks until it holds n
// complete lines or reaches the start of the file. A single trailing
// newline does not count as an empty last line.
func tailLines(r io.ReaderAt, size int64, n int) (string, error) {
	if size == 0 || n <= 0 {
		return "", nil
	}

	end := size
	var last [1]byte
	if _, err := r.ReadAt(last[:], size-1); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if last[0] == '\n' {
		end--
	}

	var buf []byte
	off := end
	for off > 0 {
		chunk := int64(tailChunkSize)
		if chunk > off {
			chunk = off
		}
		off -= chunk

		b := make([]byte, chunk)
		read, err := r.ReadAt(b, off)
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		buf = append(b[:read], buf...)

		if bytes.Count(buf, []byte{'\n'}) >= n {
			break
		}
	}

	parts := strings.Split(string(buf), "\n")
	if len(parts) > n {
		parts = parts[len(parts)-n:]
	}
	return strings.Join(parts, "\n"), nil
}
