// Package scanner enumerates files under the watched roots and serves their
// content on demand.
//
// It backs two request/response services: the listing service (a snapshot
// of every file, newest first) and the content service (whole-file or
// last-N-lines reads by identifier). Neither is part of the incremental
// pipeline, but both share its identifier scheme.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentlogs/logmon/internal/metrics"
	"github.com/agentlogs/logmon/internal/roots"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FileRecord describes one regular file found under a root.
type FileRecord struct {
	ID       string    `json:"filename"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Root     string    `json:"directory"`
}

// Result holds a complete scan. Warnings collects non-fatal problems such
// as missing roots or unreadable subdirectories.
type Result struct {
	Files    []FileRecord
	Warnings []error
}

// ListOptions filters a listing.
type ListOptions struct {
	// Since drops files modified before this instant. Zero keeps everything.
	Since time.Time
}

// Scanner scans the roots of a Resolver.
type Scanner struct {
	resolver *roots.Resolver
	logger   *zap.Logger
}

// New creates a Scanner. A nil logger disables logging.
func New(resolver *roots.Resolver, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{resolver: resolver, logger: logger}
}

// Roots returns the resolved roots being scanned.
func (s *Scanner) Roots() []string {
	return s.resolver.Roots()
}

// Scan walks every root and returns all regular files, newest first.
// Roots are scanned concurrently; a failure in one root is recorded as a
// warning and never prevents the others from being scanned. The only
// error returned is cancellation of ctx.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	rootList := s.resolver.Roots()
	perRoot := make([]*Result, len(rootList))

	g, gctx := errgroup.WithContext(ctx)
	for i, root := range rootList {
		g.Go(func() error {
			res, err := s.scanRoot(gctx, root)
			perRoot[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Files: make([]FileRecord, 0)}
	for _, res := range perRoot {
		result.Files = append(result.Files, res.Files...)
		result.Warnings = append(result.Warnings, res.Warnings...)
	}
	SortNewestFirst(result.Files)

	for _, w := range result.Warnings {
		s.logger.Warn("scan warning", zap.Error(w))
	}

	return result, nil
}

// List returns the listing snapshot used for client requests.
func (s *Scanner) List(ctx context.Context, opts ListOptions) ([]FileRecord, error) {
	start := time.Now()
	res, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ObserveListing(time.Since(start).Seconds())

	return FilterSince(res.Files, opts.Since), nil
}

func (s *Scanner) scanRoot(ctx context.Context, root string) (*Result, error) {
	res := &Result{}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		res.Warnings = append(res.Warnings, fmt.Errorf("%s: %w", root, ErrRootMissing))
		return res, nil
	}
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Errorf("failed to stat root %s: %w", root, err))
		return res, nil
	}
	if !info.IsDir() {
		res.Warnings = append(res.Warnings, fmt.Errorf("root %s is not a directory", root))
		return res, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			res.Warnings = append(res.Warnings, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			res.Warnings = append(res.Warnings, err)
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		id, owner, ok := s.resolver.Identify(path)
		if !ok || owner != root {
			// Claimed by an earlier root that nests this one.
			return nil
		}

		res.Files = append(res.Files, FileRecord{
			ID:       id,
			Path:     path,
			Size:     fi.Size(),
			Modified: fi.ModTime(),
			Root:     root,
		})
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Errorf("failed to walk %s: %w", root, err))
	}

	return res, nil
}

// SortNewestFirst orders records by modification time, most recent first,
// breaking ties by identifier.
func SortNewestFirst(files []FileRecord) {
	sort.Slice(files, func(i, j int) bool {
		if !files[i].Modified.Equal(files[j].Modified) {
			return files[i].Modified.After(files[j].Modified)
		}
		return files[i].ID < files[j].ID
	})
}

// FilterSince returns the records modified at or after since.
func FilterSince(files []FileRecord, since time.Time) []FileRecord {
	if since.IsZero() {
		return files
	}
	out := make([]FileRecord, 0, len(files))
	for _, f := range files {
		if !f.Modified.Before(since) {
			out = append(out, f)
		}
	}
	return out
}
