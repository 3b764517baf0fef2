// Package daemon implements incremental file-change tracking for logmon.
//
// The package watches a set of roots for JSON files that are either append
// logs or whole-rewrite (structured) documents, and turns each change into
// exactly the content a subscriber has not seen yet.
//
// # Architecture
//
//   - ChangeWatcher: emits create/modify/delete events carrying the
//     identifier, the absolute path and the owning root.
//     PollWatcher rescans the roots on a fixed interval and works on any
//     filesystem. FSNotifyWatcher uses native notifications.
//   - Classifier: decides from the identifier alone whether a file is an
//     append log or a structured file.
//   - SizeLedger: the number of bytes of each file already delivered, keyed
//     by absolute path.
//   - ReadDelta / ReadWhole: positioned reads of the new byte range.
//   - Daemon: routes events to worker shards by path hash and calls a
//     Listener with the results.
//
// Usage:
//
//	resolver, _ := roots.NewResolver([]string{"~/.claude/tasks"})
//	w, _ := daemon.NewWatcher(daemon.BackendPoll, resolver, nil)
//	d, _ := daemon.New(w, listener)
//	err := d.Start(ctx) // blocks until ctx is cancelled
//
// Every event for one file is handled by the same worker, so the read of
// the previous size, the delta read and the ledger update never interleave
// for one file. Events for different files run in parallel. Two roots may
// hold the same relative path; the files then share an identifier on the
// wire but keep separate ledger entries.
//
// A file seen for the first time (including every file present at start)
// produces OnFileAdded followed by OnContentUpdate with the whole content.
// Later modifications of append logs deliver only [previous, current). A
// file that shrank is re-read from offset 0. An unchanged size delivers
// nothing. Structured files are always delivered in full. A Modified event
// for a file that was never announced is handled as Added, and a Deleted
// event for one is dropped.
package daemon
