package daemon

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func appendTestFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("Failed to append to %s: %v", path, err)
	}
}

func TestReadDelta_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	writeTestFile(t, path, "line1\nline2\n")

	d, err := ReadDelta(path, 6)
	if err != nil {
		t.Fatalf("ReadDelta() failed: %v", err)
	}
	if string(d.Content) != "line2\n" {
		t.Errorf("Content = %q, want %q", d.Content, "line2\n")
	}
	if d.Offset != 6 || d.End != 12 {
		t.Errorf("range = [%d, %d), want [6, 12)", d.Offset, d.End)
	}
	if d.Truncated(6) {
		t.Error("append should not report truncation")
	}
}

func TestReadDelta_FromZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	writeTestFile(t, path, "line1\n")

	d, err := ReadDelta(path, 0)
	if err != nil {
		t.Fatalf("ReadDelta() failed: %v", err)
	}
	if string(d.Content) != "line1\n" || d.End != 6 {
		t.Errorf("got %q end %d, want whole file end 6", d.Content, d.End)
	}
	if d.Truncated(0) {
		t.Error("first read should not report truncation")
	}
}

func TestReadDelta_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	writeTestFile(t, path, "line3\n")

	d, err := ReadDelta(path, 12)
	if err != nil {
		t.Fatalf("ReadDelta() failed: %v", err)
	}
	if string(d.Content) != "line3\n" {
		t.Errorf("Content = %q, want full re-read", d.Content)
	}
	if d.Offset != 0 || d.End != 6 {
		t.Errorf("range = [%d, %d), want [0, 6)", d.Offset, d.End)
	}
	if !d.Truncated(12) {
		t.Error("shrunk file should report truncation")
	}
}

func TestReadDelta_Unchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	writeTestFile(t, path, "line1\n")

	d, err := ReadDelta(path, 6)
	if err != nil {
		t.Fatalf("ReadDelta() failed: %v", err)
	}
	if len(d.Content) != 0 {
		t.Errorf("Content = %q, want empty", d.Content)
	}
	if d.End != 6 {
		t.Errorf("End = %d, want 6", d.End)
	}
}

func TestReadDelta_Missing(t *testing.T) {
	_, err := ReadDelta(filepath.Join(t.TempDir(), "missing.log"), 0)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadDelta() error = %v, want fs.ErrNotExist", err)
	}
}

func TestReadWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inbox.json")
	writeTestFile(t, path, `[{"from":"lead"}]`)

	d, err := ReadWhole(path)
	if err != nil {
		t.Fatalf("ReadWhole() failed: %v", err)
	}
	if string(d.Content) != `[{"from":"lead"}]` || d.Offset != 0 || d.End != int64(len(d.Content)) {
		t.Errorf("unexpected delta: %+v", d)
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	writeTestFile(t, empty, "")
	d, err = ReadWhole(empty)
	if err != nil {
		t.Fatalf("ReadWhole(empty) failed: %v", err)
	}
	if d.Content == nil || len(d.Content) != 0 || d.End != 0 {
		t.Errorf("empty file delta = %+v", d)
	}
}

func TestSizeLedger(t *testing.T) {
	l := NewSizeLedger()

	if _, ok := l.Get("a.log"); ok {
		t.Error("empty ledger should not have entries")
	}

	l.Set("a.log", 6)
	l.Set("b.log", 10)
	if size, ok := l.Get("a.log"); !ok || size != 6 {
		t.Errorf("Get(a.log) = %d, %v", size, ok)
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}

	l.Delete("a.log")
	if _, ok := l.Get("a.log"); ok {
		t.Error("deleted entry still present")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestSizeLedger_Concurrent(t *testing.T) {
	l := NewSizeLedger()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			for n := int64(0); n < 100; n++ {
				l.Set(id, n)
				l.Get(id)
			}
		}(i)
	}
	wg.Wait()

	if l.Len() != 16 {
		t.Errorf("Len() = %d, want 16", l.Len())
	}
}
