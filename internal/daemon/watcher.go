package daemon

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/agentlogs/logmon/internal/logging"
	"github.com/agentlogs/logmon/internal/roots"
	"go.uber.org/zap"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a file was added (or seen for the first time).
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileEvent is a normalized change notification for one file.
type FileEvent struct {
	// ID is the identifier of the file relative to its owning root. Files
	// with the same relative path under different roots share an ID.
	ID string
	// Path is the absolute path to the file that changed. It is unique per
	// file and keys all per-file pipeline state.
	Path string
	// Root is the root that owns Path, empty when no root contains it.
	Root string
	// Op is the operation that occurred.
	Op EventOp
}

// ChangeWatcher reports create/modify/delete events for matching files
// under a set of roots. Every matching file present at Start is reported
// as OpCreate.
//
// Events and Errors are closed once Stop returns. Stop is idempotent.
type ChangeWatcher interface {
	Start() error
	Stop() error
	Events() <-chan FileEvent
	Errors() <-chan error
}

// Watch backends.
const (
	BackendPoll     = "poll"
	BackendFSNotify = "fsnotify"
)

// WatchConfig configures a ChangeWatcher.
type WatchConfig struct {
	// Pattern is a glob matched against file base names (default: *.json).
	Pattern string

	// Interval is the polling period for the poll backend (default: 100ms).
	Interval time.Duration

	// Logger for watcher activity
	Logger *zap.Logger
}

// DefaultWatchConfig returns sensible defaults.
func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		Pattern:  "*.json",
		Interval: 100 * time.Millisecond,
		Logger:   logging.L().Named("watcher"),
	}
}

func (c *WatchConfig) withDefaults() *WatchConfig {
	out := DefaultWatchConfig()
	if c == nil {
		return out
	}
	if c.Pattern != "" {
		out.Pattern = c.Pattern
	}
	if c.Interval > 0 {
		out.Interval = c.Interval
	}
	if c.Logger != nil {
		out.Logger = c.Logger
	}
	return out
}

// NewWatcher creates a ChangeWatcher for the named backend.
func NewWatcher(backend string, resolver *roots.Resolver, config *WatchConfig) (ChangeWatcher, error) {
	switch backend {
	case "", BackendPoll:
		return NewPollWatcher(resolver, config), nil
	case BackendFSNotify:
		return NewFSNotifyWatcher(resolver, config)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// matches reports whether the base name of path matches pattern.
func matches(pattern, path string) bool {
	ok, err := filepath.Match(pattern, filepath.Base(path))
	return err == nil && ok
}

// newEvent builds the event for path, logging a degraded mapping.
func newEvent(resolver *roots.Resolver, logger *zap.Logger, path string, op EventOp) FileEvent {
	id, root, ok := resolver.Identify(path)
	if !ok {
		logger.Warn("Path mapping failed, using base name",
			zap.String("path", path),
			zap.String("id", id),
		)
	}
	return FileEvent{ID: id, Path: path, Root: root, Op: op}
}
