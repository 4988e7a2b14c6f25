package app

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/project"
	"github.com/dshills/fragments/internal/project/watcher"
)

// RemoveHandler receives the identity of a file that went away.
type RemoveHandler func(file index.FileRef)

// Notifier turns watcher events into buffer lifecycle notifications.
// A created file is opened; a written file is changed and then saved; a
// removed or renamed-away file is removed. Files outside the scan set
// are ignored.
type Notifier struct {
	mu      sync.RWMutex
	open    []project.BufferHandler
	save    []project.BufferHandler
	change  []project.BufferHandler
	remove  []RemoveHandler
	project *project.Project
	log     zerolog.Logger
}

// NewNotifier creates a Notifier for files of p.
func NewNotifier(p *project.Project, log zerolog.Logger) *Notifier {
	return &Notifier{project: p, log: log}
}

// OnOpen registers a handler for files that appear.
func (n *Notifier) OnOpen(h project.BufferHandler) {
	n.mu.Lock()
	n.open = append(n.open, h)
	n.mu.Unlock()
}

// OnSave registers a handler for files written to disk.
func (n *Notifier) OnSave(h project.BufferHandler) {
	n.mu.Lock()
	n.save = append(n.save, h)
	n.mu.Unlock()
}

// OnChange registers a handler for files whose content changed.
func (n *Notifier) OnChange(h project.BufferHandler) {
	n.mu.Lock()
	n.change = append(n.change, h)
	n.mu.Unlock()
}

// OnRemove registers a handler for files that were deleted or moved away.
func (n *Notifier) OnRemove(h RemoveHandler) {
	n.mu.Lock()
	n.remove = append(n.remove, h)
	n.mu.Unlock()
}

// Handle dispatches one watcher event.
func (n *Notifier) Handle(ev watcher.Event) {
	ref, err := n.project.Ref(ev.Path)
	if err != nil {
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if ev.Op.Gone() {
		for _, h := range n.remove {
			n.safely(ev, func() { h(ref) })
		}
		return
	}

	info, err := n.project.FS().Stat(ev.Path)
	if err != nil || info.IsDir() || !n.project.Included(ev.Path, info.Size()) {
		return
	}
	buf := project.NewFileBuffer(n.project.FS(), ev.Path, ref)

	if ev.Op.Has(watcher.OpCreate) {
		n.call(ev, n.open, buf)
	}
	if ev.Op.Has(watcher.OpWrite) {
		n.call(ev, n.change, buf)
		n.call(ev, n.save, buf)
	}
}

// Run dispatches events from w until ctx is done or w is closed.
func (n *Notifier) Run(ctx context.Context, w watcher.Watcher) error {
	d := watcher.NewDispatcher()
	d.OnEvent(n.Handle)
	d.OnError(func(err error) {
		n.log.Warn().Err(err).Msg("watch error")
	})
	return d.Run(ctx, w)
}

func (n *Notifier) call(ev watcher.Event, hs []project.BufferHandler, buf project.TextBuffer) {
	for _, h := range hs {
		n.safely(ev, func() { h(buf) })
	}
}

func (n *Notifier) safely(ev watcher.Event, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := &RecoveredPanicError{Value: r, Stack: string(debug.Stack())}
			n.log.Error().Err(err).Str("path", ev.Path).Str("op", ev.Op.String()).Msg("handler panicked")
		}
	}()
	fn()
}

var _ project.ChangeNotifier = (*Notifier)(nil)
