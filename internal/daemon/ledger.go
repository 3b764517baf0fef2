package daemon

import "sync"

// SizeLedger records, per absolute file path, how many bytes of the file
// have already been delivered to subscribers. It is the only input used to
// compute append deltas.
//
// The map itself is safe for concurrent use. The read-check-write sequence
// for one file is only safe because the Daemon routes every event for that
// path to the same worker; no other component writes here.
type SizeLedger struct {
	mu    sync.RWMutex
	sizes map[string]int64
}

// NewSizeLedger creates an empty ledger.
func NewSizeLedger() *SizeLedger {
	return &SizeLedger{sizes: make(map[string]int64)}
}

// Get returns the recorded size for path.
func (l *SizeLedger) Get(path string) (int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	size, ok := l.sizes[path]
	return size, ok
}

// Set records size for path.
func (l *SizeLedger) Set(path string, size int64) {
	l.mu.Lock()
	l.sizes[path] = size
	l.mu.Unlock()
}

// Delete forgets path. A later Added event for it starts from scratch.
func (l *SizeLedger) Delete(path string) {
	l.mu.Lock()
	delete(l.sizes, path)
	l.mu.Unlock()
}

// Len returns the number of tracked files.
func (l *SizeLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sizes)
}
