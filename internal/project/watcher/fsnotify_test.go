package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/fragments/internal/project/vfs"
)

func newTestWatcher(t *testing.T, opts ...Option) *FSWatcher {
	t.Helper()
	w, err := NewFSWatcher(opts...)
	if err != nil {
		t.Fatalf("NewFSWatcher error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// waitFor drains events until one matches or the timeout expires.
func waitFor(t *testing.T, events <-chan Event, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatal("events channel closed")
			}
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timeout waiting for event")
			return Event{}
		}
	}
}

func TestFSWatcher_WatchUnwatch(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()

	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch error = %v", err)
	}
	if !w.IsWatching(dir) {
		t.Error("IsWatching() = false after Watch")
	}
	if err := w.Watch(dir); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("second Watch = %v, want ErrAlreadyWatching", err)
	}
	if err := w.Unwatch(dir); err != nil {
		t.Fatalf("Unwatch error = %v", err)
	}
	if err := w.Unwatch(dir); !errors.Is(err, ErrNotWatching) {
		t.Errorf("second Unwatch = %v, want ErrNotWatching", err)
	}
	if err := w.Watch(filepath.Join(dir, "missing")); !errors.Is(err, ErrPathNotExist) {
		t.Errorf("Watch(missing) = %v, want ErrPathNotExist", err)
	}
}

func TestFSWatcher_WatchRecursiveSkipsIgnored(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"src/pkg", ".git/objects", ".fragments", "node_modules/lib"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	w := newTestWatcher(t, WithRoot(root), WithIgnorePatterns(DefaultIgnorePatterns))
	if err := w.WatchRecursive(root); err != nil {
		t.Fatalf("WatchRecursive error = %v", err)
	}

	want := []string{root, filepath.Join(root, "src"), filepath.Join(root, "src", "pkg")}
	got := w.WatchedPaths()
	if len(got) != len(want) {
		t.Fatalf("WatchedPaths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("WatchedPaths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFSWatcher_MaxWatches(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a", "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	w := newTestWatcher(t, WithMaxWatches(2))
	if err := w.WatchRecursive(root); !errors.Is(err, ErrWatchLimit) {
		t.Errorf("WatchRecursive = %v, want ErrWatchLimit", err)
	}
	if got := w.Stats().WatchedPaths; got != 2 {
		t.Errorf("WatchedPaths = %d, want 2", got)
	}
}

func TestFSWatcher_FileEvents(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, WithRoot(root))
	if err := w.WatchRecursive(root); err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(root, "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w.Events(), func(e Event) bool { return e.Path == file && e.Op.Has(OpCreate) })

	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w.Events(), func(e Event) bool { return e.Path == file && e.Op.Has(OpRemove) })
}

func TestFSWatcher_NewSubdirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, WithRoot(root))
	if err := w.WatchRecursive(root); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "lib")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for !w.IsWatching(sub) {
		if time.Now().After(deadline) {
			t.Fatal("new subdirectory was not watched")
		}
		time.Sleep(10 * time.Millisecond)
	}

	file := filepath.Join(sub, "lib.go")
	if err := os.WriteFile(file, []byte("package lib\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, w.Events(), func(e Event) bool { return e.Path == file })
}

func TestFSWatcher_SkipsAtomicTempAndIgnored(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, WithRoot(root), WithIgnorePatterns([]string{"*.log"}))
	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(root, "debug.log"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(root, "unit.go")
	if err := vfs.NewOSFS().WriteFileAtomic(target, []byte("package unit\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := waitFor(t, w.Events(), func(e Event) bool { return e.Path == target })
	if e.Path != target {
		t.Errorf("event path = %q", e.Path)
	}

	// Everything delivered so far must be the target.
	time.Sleep(100 * time.Millisecond)
	for {
		select {
		case e := <-w.Events():
			if e.Path != target {
				t.Errorf("unexpected event for %q (%v)", e.Path, e.Op)
			}
		default:
			return
		}
	}
}

func TestFSWatcher_EventFilter(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, WithEventFilter(func(e Event) bool {
		return filepath.Ext(e.Path) == ".go"
	}))
	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}

	_ = os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)
	goFile := filepath.Join(root, "a.go")
	_ = os.WriteFile(goFile, []byte("x"), 0o644)

	e := waitFor(t, w.Events(), func(Event) bool { return true })
	if e.Path != goFile {
		t.Errorf("first event = %q, want %q", e.Path, goFile)
	}
}

func TestFSWatcher_Close(t *testing.T) {
	w, err := NewFSWatcher()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close error = %v", err)
	}
	if err := w.Watch(t.TempDir()); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Watch after Close = %v, want ErrWatcherClosed", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel should be closed")
	}
}
