package watcher

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// mockWatcher is a simple mock for testing DebouncedWatcher.
type mockWatcher struct {
	mu       sync.Mutex
	events   chan Event
	errors   chan error
	watching map[string]bool
	closed   bool
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{
		events:   make(chan Event, 100),
		errors:   make(chan error, 100),
		watching: make(map[string]bool),
	}
}

func (m *mockWatcher) Watch(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watching[path] = true
	return nil
}

func (m *mockWatcher) WatchRecursive(path string) error {
	return m.Watch(path)
}

func (m *mockWatcher) Unwatch(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.watching[path] {
		return ErrNotWatching
	}
	delete(m.watching, path)
	return nil
}

func (m *mockWatcher) Events() <-chan Event { return m.events }

func (m *mockWatcher) Errors() <-chan error { return m.errors }

func (m *mockWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
		close(m.errors)
	}
	return nil
}

func (m *mockWatcher) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{WatchedPaths: len(m.watching)}
}

// waitPending polls until the debouncer has n pending paths.
func waitPending(t *testing.T, dw *DebouncedWatcher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for dw.PendingCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("PendingCount() = %d, want %d", dw.PendingCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewDebouncedWatcher_DefaultDelay(t *testing.T) {
	dw := NewDebouncedWatcher(newMockWatcher(), 0)
	defer dw.Close()

	if dw.delay != DefaultConfig().DebounceDelay {
		t.Errorf("delay = %v, want default", dw.delay)
	}
}

func TestDebouncedWatcher_PassThrough(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, 50*time.Millisecond)
	defer dw.Close()

	if err := dw.WatchRecursive("/ws"); err != nil {
		t.Errorf("WatchRecursive error = %v", err)
	}
	if got := dw.Stats().WatchedPaths; got != 1 {
		t.Errorf("Stats().WatchedPaths = %d, want 1", got)
	}
	if err := dw.Unwatch("/ws"); err != nil {
		t.Errorf("Unwatch error = %v", err)
	}
	if err := dw.Unwatch("/ws"); !errors.Is(err, ErrNotWatching) {
		t.Errorf("second Unwatch = %v, want ErrNotWatching", err)
	}
}

func TestDebouncedWatcher_SingleEvent(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, 20*time.Millisecond)
	defer dw.Close()

	mock.events <- Event{Path: "/ws/main.go", Op: OpWrite, Time: time.Now()}

	select {
	case got := <-dw.Events():
		if got.Path != "/ws/main.go" || got.Op != OpWrite {
			t.Errorf("event = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name string
		prev Op
		next Op
		want Op
		keep bool
	}{
		{"write after write", OpWrite, OpWrite, OpWrite, true},
		{"create then write", OpCreate, OpWrite, OpCreate | OpWrite, true},
		{"atomic replace", OpRename, OpCreate, OpWrite, true},
		{"remove then create", OpRemove, OpCreate, OpWrite, true},
		{"write then remove", OpWrite, OpRemove, OpRemove, true},
		{"transient file", OpCreate, OpRemove, 0, false},
		{"created, written, renamed away", OpCreate | OpWrite, OpRename, 0, false},
		{"chmod then write", OpChmod, OpWrite, OpChmod | OpWrite, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := coalesce(tt.prev, tt.next)
			if got != tt.want || keep != tt.keep {
				t.Errorf("coalesce(%v, %v) = %v, %v; want %v, %v", tt.prev, tt.next, got, keep, tt.want, tt.keep)
			}
		})
	}
}

func TestDebouncedWatcher_Coalescing(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, time.Hour)
	defer dw.Close()

	path := "/ws/.fragments/f1.json"
	mock.events <- Event{Path: path, Op: OpRename}
	mock.events <- Event{Path: path, Op: OpCreate}
	mock.events <- Event{Path: "/ws/other.go", Op: OpWrite}
	waitPending(t, dw, 2)

	dw.Flush()

	got := map[string]Op{}
	for range 2 {
		select {
		case e := <-dw.Events():
			got[e.Path] = e.Op
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for flushed events")
		}
	}
	if got[path] != OpWrite {
		t.Errorf("replaced file op = %v, want WRITE", got[path])
	}
	if got["/ws/other.go"] != OpWrite {
		t.Errorf("other op = %v, want WRITE", got["/ws/other.go"])
	}
	if dw.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d after Flush", dw.PendingCount())
	}
}

func TestDebouncedWatcher_TransientFileDropped(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, time.Hour)
	defer dw.Close()

	mock.events <- Event{Path: "/ws/scratch.go", Op: OpCreate}
	waitPending(t, dw, 1)
	mock.events <- Event{Path: "/ws/scratch.go", Op: OpRemove}
	waitPending(t, dw, 0)

	dw.Flush()
	select {
	case e := <-dw.Events():
		t.Errorf("unexpected event %+v", e)
	default:
	}
}

func TestDebouncedWatcher_ErrorForwarding(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, 50*time.Millisecond)
	defer dw.Close()

	boom := errors.New("inotify overflow")
	mock.errors <- boom

	select {
	case err := <-dw.Errors():
		if err != boom {
			t.Errorf("error = %v, want %v", err, boom)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error")
	}
}

func TestDebouncedWatcher_CloseWithPending(t *testing.T) {
	mock := newMockWatcher()
	dw := NewDebouncedWatcher(mock, time.Hour)

	mock.events <- Event{Path: "/ws/a.go", Op: OpWrite}
	waitPending(t, dw, 1)

	if err := dw.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := dw.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
	if _, ok := <-dw.Events(); ok {
		t.Error("events channel should be closed")
	}
	if !mock.closed {
		t.Error("inner watcher not closed")
	}
}
