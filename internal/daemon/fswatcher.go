package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agentlogs/logmon/internal/roots"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FSNotifyWatcher watches every root recursively using native file system
// notifications. New subdirectories are added to the watch as they appear.
//
// A root that does not exist at Start is skipped with a warning and is not
// picked up later; use the poll backend when roots come and go.
type FSNotifyWatcher struct {
	resolver *roots.Resolver
	config   *WatchConfig
	logger   *zap.Logger
	watcher  *fsnotify.Watcher

	// dirs and files are what is currently known under the roots. They are
	// filled by Start and then only touched by the event goroutine.
	dirs  map[string]bool
	files map[string]bool

	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stopped bool
}

// NewFSNotifyWatcher creates a new FSNotifyWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFSNotifyWatcher(resolver *roots.Resolver, config *WatchConfig) (*FSNotifyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	config = config.withDefaults()
	return &FSNotifyWatcher{
		resolver: resolver,
		config:   config,
		logger:   config.Logger,
		watcher:  watcher,
		dirs:     make(map[string]bool),
		files:    make(map[string]bool),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}, nil
}

// Start adds every existing root tree to the watch and begins emitting
// events. Files already present are reported as OpCreate before any live
// event.
func (fw *FSNotifyWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return fmt.Errorf("fsnotify watcher: %w", ErrStopped)
	}
	if fw.running {
		return fmt.Errorf("fsnotify watcher: %w", ErrAlreadyRunning)
	}

	var initial []string
	for _, root := range fw.resolver.Roots() {
		files, err := fw.addTree(root)
		if errors.Is(err, fs.ErrNotExist) {
			fw.logger.Warn("Root directory not found, skipping", zap.String("root", root))
			continue
		}
		if err != nil {
			fw.watcher.Close()
			return fmt.Errorf("failed to watch root %s: %w", root, err)
		}
		initial = append(initial, files...)
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents(initial)

	fw.logger.Info("Watching roots (fsnotify)",
		zap.Strings("roots", fw.resolver.Roots()),
		zap.String("pattern", fw.config.Pattern),
	)
	return nil
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FSNotifyWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	wasRunning := fw.running
	fw.stopped = true
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)

	var closeErr error
	if err := fw.watcher.Close(); err != nil {
		closeErr = fmt.Errorf("failed to close watcher: %w", err)
	}

	if wasRunning {
		fw.wg.Wait()
	}

	close(fw.events)
	close(fw.errors)

	return closeErr
}

// Events returns the channel that emits FileEvent notifications.
// This channel is closed when the watcher is stopped.
func (fw *FSNotifyWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FSNotifyWatcher) Errors() <-chan error {
	return fw.errors
}

// IsRunning returns true if the watcher is currently running.
func (fw *FSNotifyWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

// addTree watches dir and every directory below it, returning the matching
// files found along the way.
func (fw *FSNotifyWatcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if err := fw.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			fw.dirs[path] = true
			return nil
		}
		if d.Type().IsRegular() && matches(fw.config.Pattern, path) && !fw.files[path] {
			fw.files[path] = true
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (fw *FSNotifyWatcher) emit(path string, op EventOp) bool {
	ev := newEvent(fw.resolver, fw.logger, path, op)
	select {
	case fw.events <- ev:
		return true
	case <-fw.done:
		return false
	}
}

// processEvents is the main event loop that converts fsnotify events
// to FileEvent notifications.
func (fw *FSNotifyWatcher) processEvents(initial []string) {
	defer fw.wg.Done()

	for _, path := range initial {
		if !fw.emit(path, OpCreate) {
			return
		}
	}

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.handle(event) {
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}

			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// handle converts one fsnotify event. It returns false once the watcher
// is shutting down.
func (fw *FSNotifyWatcher) handle(event fsnotify.Event) bool {
	if event.Has(fsnotify.Create) {
		info, err := os.Lstat(event.Name)
		if err == nil && info.IsDir() {
			// Files may already exist in a directory created under us.
			files, err := fw.addTree(event.Name)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				fw.logger.Warn("Failed to watch new directory",
					zap.String("path", event.Name),
					zap.Error(err),
				)
			}
			for _, path := range files {
				if !fw.emit(path, OpCreate) {
					return false
				}
			}
			return true
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if fw.dirs[event.Name] {
			return fw.dropTree(event.Name)
		}
	}

	if !matches(fw.config.Pattern, event.Name) {
		return true
	}
	if _, ok := fw.resolver.Owner(event.Name); !ok {
		return true
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
		fw.files[event.Name] = true
	case event.Has(fsnotify.Write):
		op = OpModify
		fw.files[event.Name] = true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// The new name of a rename, if it is watched, arrives as a create.
		op = OpDelete
		delete(fw.files, event.Name)
	default:
		return true
	}

	return fw.emit(event.Name, op)
}

// dropTree forgets a directory that was removed or moved away and emits
// OpDelete for every known file below it. Only the directory itself is
// reported by the kernel in that case.
func (fw *FSNotifyWatcher) dropTree(dir string) bool {
	prefix := dir + string(filepath.Separator)

	for d := range fw.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(fw.dirs, d)
			// A moved directory keeps its kernel watch; the error for an
			// already removed one is expected.
			_ = fw.watcher.Remove(d)
		}
	}

	var gone []string
	for f := range fw.files {
		if strings.HasPrefix(f, prefix) {
			gone = append(gone, f)
			delete(fw.files, f)
		}
	}
	sort.Strings(gone)

	for _, path := range gone {
		if !fw.emit(path, OpDelete) {
			return false
		}
	}
	return true
}
