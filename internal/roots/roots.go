// Package roots normalizes watched root directories and maps absolute file
// paths to stable identifiers relative to the root that owns them.
//
// An identifier is the slash-separated path of a file relative to the first
// configured root containing it. Identifiers are the only key shared by the
// scanner, the watchers, the size ledger and the broadcast hub.
package roots

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps absolute paths to identifiers for an ordered root set.
// It is immutable after construction and safe for concurrent use.
type Resolver struct {
	roots []string
}

// NewResolver resolves raw and returns a Resolver over the result.
func NewResolver(raw []string) (*Resolver, error) {
	resolved, err := Resolve(raw)
	if err != nil {
		return nil, err
	}
	return &Resolver{roots: resolved}, nil
}

// Resolve normalizes raw root directories: a leading "~" is expanded to the
// user's home directory, paths are made absolute and cleaned (which strips
// trailing separators). Order is preserved and duplicates are dropped.
func Resolve(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, ErrNoRoots
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		norm, err := Normalize(r)
		if err != nil {
			return nil, err
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}

	if len(out) == 0 {
		return nil, ErrNoRoots
	}
	return out, nil
}

// Normalize expands a leading home marker and returns the cleaned absolute path.
func Normalize(dir string) (string, error) {
	expanded, err := ExpandHome(dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return filepath.Clean(abs), nil
}

// ExpandHome replaces a leading "~" (alone or followed by a separator)
// with the current user's home directory. "~user" forms are left alone.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", p, err)
	}
	return filepath.Join(home, p[1:]), nil
}

// Roots returns a copy of the resolved roots in configured order.
func (r *Resolver) Roots() []string {
	out := make([]string, len(r.roots))
	copy(out, r.roots)
	return out
}

// Identify returns the identifier of absPath relative to the first root that
// contains it, along with that root. When no root contains the path, the
// base name is returned with ok=false so the caller can report the degraded
// mapping.
func (r *Resolver) Identify(absPath string) (string, string, bool) {
	p := filepath.Clean(absPath)
	for _, root := range r.roots {
		if rel, ok := relativeTo(root, p); ok {
			return filepath.ToSlash(rel), root, true
		}
	}
	return filepath.Base(p), "", false
}

// Owner returns the root that contains absPath, if any.
func (r *Resolver) Owner(absPath string) (string, bool) {
	_, root, ok := r.Identify(absPath)
	return root, ok
}

// Join returns the absolute path id would have under root. It fails with
// ErrOutsideRoot when id is absolute or climbs out of root.
func Join(root, id string) (string, error) {
	if id == "" || filepath.IsAbs(filepath.FromSlash(id)) {
		return "", fmt.Errorf("%q: %w", id, ErrOutsideRoot)
	}
	p := filepath.Join(root, filepath.FromSlash(id))
	if _, ok := relativeTo(root, p); !ok {
		return "", fmt.Errorf("%q: %w", id, ErrOutsideRoot)
	}
	return p, nil
}

// relativeTo reports whether p lies strictly below root and returns the
// relative path. Comparison is on cleaned paths and requires a separator
// after the root, so /data/logs never claims /data/logs2/x.
func relativeTo(root, p string) (string, bool) {
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(p, prefix) || len(p) == len(prefix) {
		return "", false
	}
	return p[len(prefix):], true
}
