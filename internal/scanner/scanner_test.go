package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentlogs/logmon/internal/roots"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("Failed to set mtime: %v", err)
		}
	}
}

func newScanner(t *testing.T, dirs ...string) *Scanner {
	t.Helper()
	r, err := roots.NewResolver(dirs)
	if err != nil {
		t.Fatalf("NewResolver() failed: %v", err)
	}
	return New(r, zaptest.NewLogger(t))
}

func TestScan_RecursiveNewestFirst(t *testing.T) {
	tmp := t.TempDir()
	tasks := filepath.Join(tmp, "tasks")
	teams := filepath.Join(tmp, "teams")

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeFile(t, filepath.Join(tasks, "old.json"), "{}", base)
	writeFile(t, filepath.Join(tasks, "sub", "newest.json"), "[1]", base.Add(30*time.Minute))
	writeFile(t, filepath.Join(teams, "alpha", "inboxes", "lead.json"), "[]", base.Add(10*time.Minute))

	s := newScanner(t, tasks, teams)
	res, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", res.Warnings)
	}

	want := []string{"sub/newest.json", "alpha/inboxes/lead.json", "old.json"}
	if len(res.Files) != len(want) {
		t.Fatalf("Expected %d files, got %d: %+v", len(want), len(res.Files), res.Files)
	}
	for i, id := range want {
		if res.Files[i].ID != id {
			t.Errorf("files[%d] = %s, want %s", i, res.Files[i].ID, id)
		}
	}

	lead := res.Files[1]
	if lead.Root != teams {
		t.Errorf("Expected root %s, got %s", teams, lead.Root)
	}
	if lead.Size != 2 {
		t.Errorf("Expected size 2, got %d", lead.Size)
	}
	if lead.Path != filepath.Join(teams, "alpha", "inboxes", "lead.json") {
		t.Errorf("Unexpected path %s", lead.Path)
	}
}

func TestScan_TiesBrokenByIdentifier(t *testing.T) {
	tmp := t.TempDir()
	same := time.Now().Add(-time.Minute).Truncate(time.Second)
	writeFile(t, filepath.Join(tmp, "b.json"), "b", same)
	writeFile(t, filepath.Join(tmp, "a.json"), "a", same)
	writeFile(t, filepath.Join(tmp, "c.json"), "c", same)

	res, err := newScanner(t, tmp).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	var got []string
	for _, f := range res.Files {
		got = append(got, f.ID)
	}
	if strings.Join(got, ",") != "a.json,b.json,c.json" {
		t.Errorf("Expected ties ordered by identifier, got %v", got)
	}
}

func TestScan_MissingRootIsWarning(t *testing.T) {
	tmp := t.TempDir()
	present := filepath.Join(tmp, "present")
	writeFile(t, filepath.Join(present, "a.json"), "{}", time.Time{})

	s := newScanner(t, filepath.Join(tmp, "missing"), present)
	res, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}

	if len(res.Files) != 1 || res.Files[0].ID != "a.json" {
		t.Errorf("Expected the present root to be scanned, got %+v", res.Files)
	}
	if len(res.Warnings) != 1 || !errors.Is(res.Warnings[0], ErrRootMissing) {
		t.Errorf("Expected one ErrRootMissing warning, got %v", res.Warnings)
	}
}

func TestScan_NestedRootsClaimedOnce(t *testing.T) {
	tmp := t.TempDir()
	outer := filepath.Join(tmp, "outer")
	inner := filepath.Join(outer, "inner")
	writeFile(t, filepath.Join(inner, "x.json"), "{}", time.Time{})

	res, err := newScanner(t, outer, inner).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(res.Files) != 1 {
		t.Fatalf("Expected file to be listed once, got %+v", res.Files)
	}
	if res.Files[0].ID != "inner/x.json" || res.Files[0].Root != outer {
		t.Errorf("Expected outer root to claim inner/x.json, got %+v", res.Files[0])
	}
}

func TestScan_Cancelled(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "a.json"), "{}", time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newScanner(t, tmp).Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestList_Since(t *testing.T) {
	tmp := t.TempDir()
	now := time.Now().Truncate(time.Second)
	writeFile(t, filepath.Join(tmp, "old.json"), "{}", now.Add(-48*time.Hour))
	writeFile(t, filepath.Join(tmp, "new.json"), "{}", now.Add(-time.Minute))

	files, err := newScanner(t, tmp).List(context.Background(), ListOptions{Since: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(files) != 1 || files[0].ID != "new.json" {
		t.Errorf("Expected only new.json, got %+v", files)
	}
}
