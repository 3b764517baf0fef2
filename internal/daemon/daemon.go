package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/agentlogs/logmon/internal/logging"
	"github.com/agentlogs/logmon/internal/metrics"
)

// Listener receives the results of the update pipeline. Calls for one
// identifier are made from a single goroutine, in order. Calls for
// different identifiers may be concurrent.
type Listener interface {
	// OnFileAdded is called when a file is observed for the first time.
	OnFileAdded(id, path string)
	// OnContentUpdate carries new content for id. For append logs after the
	// first observation content is only the appended bytes. size is the
	// number of bytes of the file delivered so far.
	OnContentUpdate(id string, content []byte, size int64)
	// OnFileDeleted is called when a file disappears.
	OnFileDeleted(id string)
}

// Config holds configuration for the daemon.
type Config struct {
	// Workers is the number of pipeline shards. Every event for one
	// identifier is handled by the same shard.
	Workers int

	// QueueSize is the per-shard event buffer.
	QueueSize int

	// Classifier decides between delta and full reads. Nil uses the
	// default rules.
	Classifier *Classifier

	// Logger for daemon activity
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:    8,
		QueueSize:  256,
		Classifier: NewClassifier(nil),
		Logger:     logging.L().Named("daemon"),
	}
}

// Daemon runs the update pipeline: it consumes a ChangeWatcher, computes
// what is new in each file using the SizeLedger, and hands the result to a
// Listener.
//
// Per-file state is keyed by absolute path, so two roots holding the same
// relative path never share a ledger entry or a worker.
type Daemon struct {
	watcher  ChangeWatcher
	listener Listener
	config   *Config
	logger   *zap.Logger
	ledger   *SizeLedger

	// owners maps each identifier to the path that currently announces it.
	ownersMu sync.Mutex
	owners   map[string]string

	queues []chan FileEvent

	mu         sync.Mutex
	started    bool
	stopOnce   sync.Once
	stopped    chan struct{}
	dispatchWG sync.WaitGroup
	workersWG  sync.WaitGroup
}

// New creates a new Daemon with the default configuration.
//
// Use Start() to begin processing events.
func New(watcher ChangeWatcher, listener Listener) (*Daemon, error) {
	return NewWithConfig(watcher, listener, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(watcher ChangeWatcher, listener Listener, config *Config) (*Daemon, error) {
	if watcher == nil {
		return nil, fmt.Errorf("watcher cannot be nil")
	}
	if listener == nil {
		return nil, fmt.Errorf("listener cannot be nil")
	}

	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Classifier == nil {
		cfg.Classifier = defaults.Classifier
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}

	queues := make([]chan FileEvent, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan FileEvent, cfg.QueueSize)
	}

	return &Daemon{
		watcher:  watcher,
		listener: listener,
		config:   &cfg,
		logger:   cfg.Logger,
		ledger:   NewSizeLedger(),
		owners:   make(map[string]string),
		queues:   queues,
		stopped:  make(chan struct{}),
	}, nil
}

// Start begins the daemon's operation.
//
// The workers are started before the watcher so that the initial Added
// events have somewhere to go. This blocks until ctx is cancelled or Stop
// is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	select {
	case <-d.stopped:
		d.mu.Unlock()
		return ErrStopped
	default:
	}
	d.started = true

	d.logger.Info("Starting daemon", zap.Int("workers", len(d.queues)))

	d.workersWG.Add(len(d.queues))
	for i, q := range d.queues {
		go d.work(i, q)
	}

	if err := d.watcher.Start(); err != nil {
		d.mu.Unlock()
		d.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	d.dispatchWG.Add(1)
	go d.dispatch()
	d.mu.Unlock()

	select {
	case <-ctx.Done():
		d.logger.Info("Shutdown signal received")
		return d.Stop()
	case <-d.stopped:
		return nil
	}
}

// Stop gracefully shuts down the daemon. The watcher is stopped first, then
// every event it already produced is processed before Stop returns.
// Stop is idempotent.
func (d *Daemon) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		d.logger.Info("Stopping daemon")

		if werr := d.watcher.Stop(); werr != nil {
			err = fmt.Errorf("failed to stop watcher: %w", werr)
		}

		// dispatch exits once the watcher channels are closed.
		d.dispatchWG.Wait()
		for _, q := range d.queues {
			close(q)
		}
		d.workersWG.Wait()

		close(d.stopped)
		d.logger.Info("Daemon stopped", zap.Int("tracked", d.ledger.Len()))
	})
	return err
}

// Done is closed once the daemon has fully stopped.
func (d *Daemon) Done() <-chan struct{} {
	return d.stopped
}

// Size returns the ledger size recorded for the file at path.
func (d *Daemon) Size(path string) (int64, bool) {
	return d.ledger.Get(path)
}

// Tracked returns the number of files in the ledger.
func (d *Daemon) Tracked() int {
	return d.ledger.Len()
}

// shard returns the queue index for the file at path.
func (d *Daemon) shard(path string) int {
	return int(xxhash.Sum64String(path) % uint64(len(d.queues)))
}

// dispatch routes watcher events to shards and logs watcher errors until
// both watcher channels are closed.
func (d *Daemon) dispatch() {
	defer d.dispatchWG.Done()

	events := d.watcher.Events()
	errs := d.watcher.Errors()

	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.queues[d.shard(ev.Path)] <- ev

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			metrics.RecordWatchError()
			d.logger.Error("Watch error", zap.Error(err))
		}
	}
}

func (d *Daemon) work(shard int, queue <-chan FileEvent) {
	defer d.workersWG.Done()

	for ev := range queue {
		d.handle(ev)
	}
	d.logger.Debug("Worker exited", zap.Int("shard", shard))
}

// handle processes one event. Errors are logged and the event is dropped;
// the ledger keeps its last successfully delivered size.
func (d *Daemon) handle(ev FileEvent) {
	var err error
	switch ev.Op {
	case OpCreate:
		err = d.onAdded(ev)
	case OpModify:
		err = d.onModified(ev)
	case OpDelete:
		d.onDeleted(ev)
	default:
		return
	}

	if err != nil {
		metrics.RecordFileEventError(ev.Op.String())
		d.logger.Warn("Dropped file event",
			zap.String("id", ev.ID),
			zap.String("path", ev.Path),
			zap.Stringer("op", ev.Op),
			zap.Error(err),
		)
		return
	}
	metrics.RecordFileEvent(ev.Op.String())
	metrics.SetLedgerEntries(d.ledger.Len())
}

func (d *Daemon) onAdded(ev FileEvent) error {
	delta, err := ReadWhole(ev.Path)
	if err != nil {
		return err
	}

	d.claim(ev)
	d.listener.OnFileAdded(ev.ID, ev.Path)
	d.publish(ev.ID, delta, "full")
	d.ledger.Set(ev.Path, delta.End)
	return nil
}

func (d *Daemon) onModified(ev FileEvent) error {
	previous, known := d.ledger.Get(ev.Path)
	if !known {
		// Never announced, e.g. the first read failed.
		return d.onAdded(ev)
	}

	if d.config.Classifier.Classify(ev.ID) == Structured {
		delta, err := ReadWhole(ev.Path)
		if err != nil {
			return err
		}
		d.publish(ev.ID, delta, "full")
		d.ledger.Set(ev.Path, delta.End)
		return nil
	}

	delta, err := ReadDelta(ev.Path, previous)
	if err != nil {
		return err
	}

	if delta.Truncated(previous) {
		d.logger.Info("File truncated, re-reading from start",
			zap.String("id", ev.ID),
			zap.Int64("previous", previous),
			zap.Int64("size", delta.End),
		)
	}
	if len(delta.Content) > 0 {
		d.publish(ev.ID, delta, "delta")
	}
	d.ledger.Set(ev.Path, delta.End)
	return nil
}

func (d *Daemon) onDeleted(ev FileEvent) {
	if _, known := d.ledger.Get(ev.Path); !known {
		d.logger.Debug("Ignoring delete of unannounced file",
			zap.String("id", ev.ID),
			zap.String("path", ev.Path),
		)
		return
	}
	d.ledger.Delete(ev.Path)
	d.release(ev)
	d.listener.OnFileDeleted(ev.ID)
}

// claim records ev.Path as the file announced under ev.ID and warns when
// another live file already uses that identifier.
func (d *Daemon) claim(ev FileEvent) {
	d.ownersMu.Lock()
	defer d.ownersMu.Unlock()

	if other, ok := d.owners[ev.ID]; ok && other != ev.Path {
		d.logger.Warn("Identifier shared by files in different roots",
			zap.String("id", ev.ID),
			zap.String("path", ev.Path),
			zap.String("other", other),
		)
		return
	}
	d.owners[ev.ID] = ev.Path
}

func (d *Daemon) release(ev FileEvent) {
	d.ownersMu.Lock()
	if d.owners[ev.ID] == ev.Path {
		delete(d.owners, ev.ID)
	}
	d.ownersMu.Unlock()
}

func (d *Daemon) publish(id string, delta *Delta, kind string) {
	metrics.RecordDeltaBytes(kind, len(delta.Content))
	d.listener.OnContentUpdate(id, delta.Content, delta.End)
}
