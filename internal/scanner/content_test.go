package scanner

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadFile_Whole(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "team", "a.json"), "line1\nline2\n", time.Time{})

	got, err := newScanner(t, tmp).ReadFile("team/a.json", 0)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if got != "line1\nline2\n" {
		t.Errorf("Unexpected content %q", got)
	}
}

func TestReadFile_SearchesRootsInOrder(t *testing.T) {
	tmp := t.TempDir()
	first := filepath.Join(tmp, "first")
	second := filepath.Join(tmp, "second")
	writeFile(t, filepath.Join(second, "a.json"), "second", time.Time{})

	got, err := newScanner(t, first, second).ReadFile("a.json", 0)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if got != "second" {
		t.Errorf("Expected content from second root, got %q", got)
	}

	writeFile(t, filepath.Join(first, "a.json"), "first", time.Time{})
	got, err = newScanner(t, first, second).ReadFile("a.json", 0)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if got != "first" {
		t.Errorf("Expected content from first root, got %q", got)
	}
}

func TestReadFile_NotFound(t *testing.T) {
	_, err := newScanner(t, t.TempDir()).ReadFile("nope.json", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReadFile_RejectsEscapes(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "root")
	writeFile(t, filepath.Join(tmp, "secret.json"), "secret", time.Time{})
	writeFile(t, filepath.Join(root, "a.json"), "{}", time.Time{})

	_, err := newScanner(t, root).ReadFile("../secret.json", 0)
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("Expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestReadFile_TailLines(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.log.json"), "l1\nl2\nl3\nl4\n", time.Time{})
	s := newScanner(t, tmp)

	cases := []struct {
		lines int
		want  string
	}{
		{1, "l4"},
		{2, "l3\nl4"},
		{4, "l1\nl2\nl3\nl4"},
		{10, "l1\nl2\nl3\nl4"},
	}
	for _, tc := range cases {
		got, err := s.ReadFile("a.log.json", tc.lines)
		if err != nil {
			t.Fatalf("ReadFile(lines=%d) failed: %v", tc.lines, err)
		}
		if got != tc.want {
			t.Errorf("ReadFile(lines=%d) = %q, want %q", tc.lines, got, tc.want)
		}
	}
}

func TestTailLines_NoTrailingNewlineAndBlankLines(t *testing.T) {
	r := strings.NewReader("a\n\nb")
	got, err := tailLines(r, int64(r.Len()), 2)
	if err != nil {
		t.Fatalf("tailLines() failed: %v", err)
	}
	if got != "\nb" {
		t.Errorf("Expected %q, got %q", "\nb", got)
	}
}

func TestTailLines_SpansChunks(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 5000; i++ {
		sb.WriteString("0123456789\n")
	}
	sb.WriteString("last-but-one\nlast\n")
	content := sb.String()

	r := strings.NewReader(content)
	got, err := tailLines(r, int64(len(content)), 3)
	if err != nil {
		t.Fatalf("tailLines() failed: %v", err)
	}
	if got != "0123456789\nlast-but-one\nlast" {
		t.Errorf("Unexpected tail %q", got)
	}

	got, err = tailLines(r, int64(len(content)), 5002)
	if err != nil {
		t.Fatalf("tailLines() failed: %v", err)
	}
	if got != strings.TrimSuffix(content, "\n") {
		t.Error("Expected all lines when n exceeds line count")
	}
}
