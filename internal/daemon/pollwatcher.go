package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/agentlogs/logmon/internal/roots"
	"go.uber.org/zap"
)

// fileState is what the poll watcher remembers about a file between cycles.
type fileState struct {
	root    string
	size    int64
	modTime time.Time
	// info identifies the underlying file so a replacement at the same
	// path is not mistaken for a modification.
	info fs.FileInfo
}

// PollWatcher detects changes by rescanning every root at a fixed interval
// and diffing against the previous scan. It works on network and virtual
// filesystems where native events are unreliable.
type PollWatcher struct {
	resolver *roots.Resolver
	config   *WatchConfig
	logger   *zap.Logger

	// state and rootErrs are only touched by the poll goroutine.
	state    map[string]fileState
	rootErrs map[string]string

	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stopped bool
}

// NewPollWatcher creates a PollWatcher. It must be started with Start.
func NewPollWatcher(resolver *roots.Resolver, config *WatchConfig) *PollWatcher {
	config = config.withDefaults()
	return &PollWatcher{
		resolver: resolver,
		config:   config,
		logger:   config.Logger,
		state:    make(map[string]fileState),
		rootErrs: make(map[string]string),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}
}

// Start begins polling. The first cycle runs immediately and reports every
// existing matching file as OpCreate.
func (w *PollWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return fmt.Errorf("poll watcher: %w", ErrStopped)
	}
	if w.running {
		return fmt.Errorf("poll watcher: %w", ErrAlreadyRunning)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()

	w.logger.Info("Watching roots (polling)",
		zap.Strings("roots", w.resolver.Roots()),
		zap.String("pattern", w.config.Pattern),
		zap.Duration("interval", w.config.Interval),
	)
	return nil
}

// Stop stops polling and closes the Events and Errors channels.
// It blocks until the poll goroutine has exited.
func (w *PollWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.running = false
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()

	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel that emits FileEvent notifications.
func (w *PollWatcher) Events() <-chan FileEvent {
	return w.events
}

// Errors returns the channel that emits watch errors.
func (w *PollWatcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *PollWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *PollWatcher) loop() {
	defer w.wg.Done()

	if !w.poll() {
		return
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if !w.poll() {
				return
			}
		}
	}
}

// poll runs one scan-and-diff cycle. It returns false if the watcher was
// stopped while events were being delivered.
func (w *PollWatcher) poll() bool {
	next := make(map[string]fileState, len(w.state))

	for _, root := range w.resolver.Roots() {
		found, err := w.scanRoot(root)
		if err != nil {
			// Keep what we knew about this root so a transient failure
			// does not look like every file was deleted.
			for p, st := range w.state {
				if st.root == root {
					next[p] = st
				}
			}
			if msg := err.Error(); w.rootErrs[root] != msg {
				w.rootErrs[root] = msg
				if !w.sendError(err) {
					return false
				}
			}
			continue
		}
		if w.rootErrs[root] != errRootMissingMsg {
			delete(w.rootErrs, root)
		}
		for p, st := range found {
			next[p] = st
		}
	}

	events := diffStates(w.state, next)
	w.state = next

	for _, ev := range events {
		ev = newEvent(w.resolver, w.logger, ev.Path, ev.Op)
		select {
		case w.events <- ev:
		case <-w.done:
			return false
		}
	}
	return true
}

// scanRoot returns the matching files under root. A root that does not
// exist yields an empty set (its files are gone) and is logged once.
func (w *PollWatcher) scanRoot(root string) (map[string]fileState, error) {
	found := make(map[string]fileState)

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		if w.rootErrs[root] != errRootMissingMsg {
			w.rootErrs[root] = errRootMissingMsg
			w.logger.Warn("Root directory not found, skipping", zap.String("root", root))
		}
		return found, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}
	if w.rootErrs[root] == errRootMissingMsg {
		delete(w.rootErrs, root)
		w.logger.Info("Root directory appeared", zap.String("root", root))
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries removed mid-walk are simply gone this cycle.
			if path != root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !matches(w.config.Pattern, path) {
			return nil
		}

		fi, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// Removed between readdir and stat.
			return nil
		}
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		if owner, ok := w.resolver.Owner(path); !ok || owner != root {
			return nil
		}

		found[path] = fileState{root: root, size: fi.Size(), modTime: fi.ModTime(), info: fi}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return found, nil
}

func (w *PollWatcher) sendError(err error) bool {
	select {
	case w.errors <- err:
		return true
	case <-w.done:
		return false
	}
}

const errRootMissingMsg = "root missing"

// diffStates compares two scans. Deletions come first, then additions and
// modifications ordered by path. A path now backed by a different file is
// reported as a deletion and an addition. IDs are left for the caller to
// fill in.
func diffStates(prev, next map[string]fileState) []FileEvent {
	var deleted, changed []FileEvent

	for p, old := range prev {
		if st, ok := next[p]; !ok || replaced(old, st) {
			deleted = append(deleted, FileEvent{Path: p, Op: OpDelete})
		}
	}
	for p, st := range next {
		old, ok := prev[p]
		switch {
		case !ok || replaced(old, st):
			changed = append(changed, FileEvent{Path: p, Op: OpCreate})
		case old.size != st.size || !old.modTime.Equal(st.modTime):
			changed = append(changed, FileEvent{Path: p, Op: OpModify})
		}
	}

	sort.Slice(deleted, func(i, j int) bool { return deleted[i].Path < deleted[j].Path })
	sort.Slice(changed, func(i, j int) bool { return changed[i].Path < changed[j].Path })

	return append(deleted, changed...)
}

// replaced reports whether two states for one path describe different
// files. States without file info are treated as the same file.
func replaced(old, next fileState) bool {
	if old.info == nil || next.info == nil {
		return false
	}
	return !os.SameFile(old.info, next.info)
}
