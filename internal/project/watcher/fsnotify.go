package watcher

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dshills/fragments/internal/project/vfs"
)

// FSWatcher implements Watcher using fsnotify.
type FSWatcher struct {
	mu sync.RWMutex

	watcher *fsnotify.Watcher
	fs      vfs.VFS
	config  Config
	log     zerolog.Logger
	ignore  *IgnorePatterns

	// paths holds watched directories; recursive marks trees whose new
	// subdirectories are watched automatically.
	paths     map[string]bool
	recursive map[string]bool

	events chan Event
	errors chan error

	startTime   time.Time
	totalEvents int64
	dropped     int64
	totalErrors int64
	lastError   error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSWatcher creates a new fsnotify-based watcher.
func NewFSWatcher(opts ...Option) (*FSWatcher, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	bufSize := config.BufferSize
	if bufSize <= 0 {
		bufSize = 256
	}

	w := &FSWatcher{
		watcher:   fsw,
		fs:        vfs.NewOSFS(),
		config:    config,
		log:       config.Logger.With().Str("component", "watcher").Logger(),
		ignore:    NewIgnorePatterns(),
		paths:     make(map[string]bool),
		recursive: make(map[string]bool),
		events:    make(chan Event, bufSize),
		errors:    make(chan error, bufSize),
		startTime: time.Now(),
		closeCh:   make(chan struct{}),
	}
	w.ignore.AddPatterns(config.IgnorePatterns)

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Ignore returns the watcher's ignore rules. Patterns added later apply
// to subsequent events.
func (w *FSWatcher) Ignore() *IgnorePatterns {
	return w.ignore
}

// Watch starts watching a path.
func (w *FSWatcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if !w.fs.Exists(absPath) {
		return ErrPathNotExist
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addLocked(absPath)
}

func (w *FSWatcher) addLocked(absPath string) error {
	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[absPath] {
		return ErrAlreadyWatching
	}
	if w.config.MaxWatches > 0 && len(w.paths) >= w.config.MaxWatches {
		return ErrWatchLimit
	}
	if err := w.watcher.Add(absPath); err != nil {
		return err
	}
	w.paths[absPath] = true
	return nil
}

// WatchRecursive watches a directory and all non-ignored subdirectories.
func (w *FSWatcher) WatchRecursive(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if !w.fs.Exists(absPath) {
		return ErrPathNotExist
	}
	if !w.fs.IsDir(absPath) {
		return w.Watch(absPath)
	}

	w.mu.Lock()
	w.recursive[absPath] = true
	w.mu.Unlock()

	return w.addTree(absPath)
}

// addTree watches dir and its subdirectories. Errors on individual
// directories are recorded and the walk continues.
func (w *FSWatcher) addTree(dir string) error {
	return w.fs.WalkDir(dir, func(p string, info vfs.FileInfo, err error) error {
		if err != nil {
			w.recordError(err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if p != dir && w.shouldIgnore(p, true) {
			return vfs.SkipDir
		}

		w.mu.Lock()
		addErr := w.addLocked(p)
		w.mu.Unlock()
		switch {
		case addErr == nil, errors.Is(addErr, ErrAlreadyWatching):
		case errors.Is(addErr, ErrWatcherClosed), errors.Is(addErr, ErrWatchLimit):
			return addErr
		default:
			w.recordError(addErr)
		}
		return nil
	})
}

// Unwatch stops watching a path.
func (w *FSWatcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.paths[absPath] {
		return ErrNotWatching
	}
	if err := w.watcher.Remove(absPath); err != nil {
		return err
	}
	delete(w.paths, absPath)
	delete(w.recursive, absPath)
	return nil
}

// Events returns the event channel.
func (w *FSWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher.
func (w *FSWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

// Stats returns watcher statistics.
func (w *FSWatcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return Stats{
		WatchedPaths:  len(w.paths),
		PendingEvents: len(w.events),
		TotalEvents:   atomic.LoadInt64(&w.totalEvents),
		Dropped:       atomic.LoadInt64(&w.dropped),
		Errors:        atomic.LoadInt64(&w.totalErrors),
		LastError:     w.lastError,
		StartTime:     w.startTime,
	}
}

// WatchedPaths returns all watched paths, sorted.
func (w *FSWatcher) WatchedPaths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// IsWatching returns true if the path is being watched.
func (w *FSWatcher) IsWatching(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.paths[absPath]
}

func (w *FSWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.recordError(err)
			w.sendError(err)
		}
	}
}

func (w *FSWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}
	if vfs.IsAtomicTemp(filepath.Base(fsEvent.Name)) {
		return
	}

	isDir := op.Has(OpCreate) && w.fs.IsDir(fsEvent.Name)
	if w.shouldIgnore(fsEvent.Name, isDir) {
		return
	}

	if isDir {
		// New directories inside a recursive tree are watched and not
		// reported; files created in them produce their own events.
		if w.inRecursiveTree(fsEvent.Name) {
			if err := w.addTree(fsEvent.Name); err != nil {
				w.recordError(err)
			}
		}
		return
	}

	event := Event{
		Path: fsEvent.Name,
		Op:   op,
		Time: time.Now(),
	}
	if w.config.EventFilter != nil && !w.config.EventFilter(event) {
		return
	}
	w.sendEvent(event)
}

func (w *FSWatcher) inRecursiveTree(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for root := range w.recursive {
		if strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// convertOp converts fsnotify.Op to watcher.Op.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

func (w *FSWatcher) shouldIgnore(path string, isDir bool) bool {
	if w.config.Root != "" {
		return w.ignore.MatchRelative(path, w.config.Root, isDir)
	}
	return w.ignore.Match(path, isDir)
}

func (w *FSWatcher) sendEvent(event Event) {
	select {
	case w.events <- event:
		atomic.AddInt64(&w.totalEvents, 1)
	default:
		atomic.AddInt64(&w.dropped, 1)
		w.log.Warn().Str("path", event.Path).Stringer("op", event.Op).Msg("event channel full, dropping event")
	}
}

func (w *FSWatcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

func (w *FSWatcher) recordError(err error) {
	atomic.AddInt64(&w.totalErrors, 1)
	w.log.Debug().Err(err).Msg("watch error")
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
}

// Ensure FSWatcher implements Watcher.
var _ Watcher = (*FSWatcher)(nil)
