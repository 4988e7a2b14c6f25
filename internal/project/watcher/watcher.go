// Package watcher reports file changes inside a fragments workspace.
//
// An FSWatcher turns fsnotify events into Events, skipping ignored paths
// and the temporary files written by atomic saves. A DebouncedWatcher
// coalesces bursts of events per path so each edit is reported once.
package watcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrNotWatching     = errors.New("path is not being watched")
	ErrPathNotExist    = errors.New("path does not exist")
	ErrWatchLimit      = errors.New("maximum watch limit reached")
)

// Op is a set of file system operations.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed away.
	OpRename
	// OpChmod indicates file permissions were changed.
	OpChmod
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "CREATE"},
	{OpWrite, "WRITE"},
	{OpRemove, "REMOVE"},
	{OpRename, "RENAME"},
	{OpChmod, "CHMOD"},
}

// String returns the operation names joined with "|".
func (op Op) String() string {
	var parts []string
	for _, n := range opNames {
		if op.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(parts, "|")
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return o != 0 && op&o == o
}

// Gone reports whether the path no longer exists after the operation.
func (op Op) Gone() bool {
	return (op.Has(OpRemove) || op.Has(OpRename)) && !op.Has(OpCreate) && !op.Has(OpWrite)
}

// Event represents a file system change event.
type Event struct {
	// Path is the absolute path of the affected file or directory.
	Path string

	// Op is the set of operations that occurred.
	Op Op

	// Time is when the (last coalesced) event occurred.
	Time time.Time
}

// Stats provides watcher status information.
type Stats struct {
	WatchedPaths  int
	PendingEvents int
	TotalEvents   int64
	Dropped       int64
	Errors        int64
	LastError     error
	StartTime     time.Time
}

// Watcher monitors file system changes.
type Watcher interface {
	// Watch starts watching a single directory or file.
	Watch(path string) error

	// WatchRecursive watches a directory and every non-ignored
	// subdirectory. New subdirectories are picked up as they appear.
	WatchRecursive(path string) error

	// Unwatch stops watching a path.
	Unwatch(path string) error

	// Events returns the channel of file change events.
	// The channel is closed when the watcher is closed.
	Events() <-chan Event

	// Errors returns the channel of watcher errors.
	// The channel is closed when the watcher is closed.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error

	// Stats returns watcher statistics.
	Stats() Stats
}

// Handler handles file system events.
type Handler func(event Event)

// ErrorHandler handles watcher errors.
type ErrorHandler func(err error)

// EventFilter returns true to keep an event.
type EventFilter func(event Event) bool

// Config holds watcher configuration options.
type Config struct {
	// Root anchors rooted ignore patterns. Empty means patterns are
	// matched against absolute paths.
	Root string

	// DebounceDelay is the quiet period used by NewDebounced.
	DebounceDelay time.Duration

	// BufferSize is the size of the event and error channels.
	BufferSize int

	// IgnorePatterns are gitignore-style patterns for paths to ignore.
	IgnorePatterns []string

	// MaxWatches limits watched directories; 0 means unlimited.
	MaxWatches int

	// EventFilter is an optional filter for events.
	EventFilter EventFilter

	// Logger receives watch errors and dropped events.
	Logger zerolog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 150 * time.Millisecond,
		BufferSize:    256,
		Logger:        zerolog.Nop(),
	}
}

// Option configures a watcher.
type Option func(*Config)

// WithRoot sets the directory ignore patterns are relative to.
func WithRoot(root string) Option {
	return func(c *Config) {
		c.Root = root
	}
}

// WithDebounceDelay sets the debounce delay.
func WithDebounceDelay(d time.Duration) Option {
	return func(c *Config) {
		c.DebounceDelay = d
	}
}

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) Option {
	return func(c *Config) {
		c.BufferSize = size
	}
}

// WithIgnorePatterns sets the ignore patterns.
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Config) {
		c.IgnorePatterns = patterns
	}
}

// WithMaxWatches sets the maximum number of watched directories.
func WithMaxWatches(max int) Option {
	return func(c *Config) {
		c.MaxWatches = max
	}
}

// WithEventFilter sets the event filter.
func WithEventFilter(filter EventFilter) Option {
	return func(c *Config) {
		c.EventFilter = filter
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// Dispatcher fans events out to registered handlers.
type Dispatcher struct {
	handlers      []Handler
	errorHandlers []ErrorHandler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// OnEvent registers a handler for file events.
func (d *Dispatcher) OnEvent(handler Handler) {
	d.handlers = append(d.handlers, handler)
}

// OnError registers a handler for errors.
func (d *Dispatcher) OnError(handler ErrorHandler) {
	d.errorHandlers = append(d.errorHandlers, handler)
}

// Dispatch sends an event to all handlers.
func (d *Dispatcher) Dispatch(event Event) {
	for _, handler := range d.handlers {
		handler(event)
	}
}

// DispatchError sends an error to all error handlers.
func (d *Dispatcher) DispatchError(err error) {
	for _, handler := range d.errorHandlers {
		handler(err)
	}
}

// Run dispatches events from w until ctx is cancelled or w is closed.
// Handlers run on the calling goroutine, one event at a time.
func (d *Dispatcher) Run(ctx context.Context, w Watcher) error {
	events, errs := w.Events(), w.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			d.Dispatch(event)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.DispatchError(err)
		}
	}
}
