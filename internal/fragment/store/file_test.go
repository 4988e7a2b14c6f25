package store

import (
	"context"
	"errors"
	"io/fs"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/fragments/internal/project/vfs"
)

// failingFS fails atomic writes whose path contains failOn.
type failingFS struct {
	*vfs.MemFS
	failOn string
}

var errDiskFull = errors.New("disk full")

func (f *failingFS) WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	if f.failOn != "" && strings.Contains(path, f.failOn) {
		return errDiskFull
	}
	return f.MemFS.WriteFileAtomic(path, data, perm)
}

func TestFileStore_Path(t *testing.T) {
	s, err := NewFileStore(vfs.NewMemFS(), "/ws/.fragments", WithPattern("{id}.fragment.json"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Path("f1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/ws/.fragments/f1.fragment.json" {
		t.Errorf("Path(f1) = %q", got)
	}
}

func TestFileStore_InvalidIDs(t *testing.T) {
	s, _ := NewFileStore(vfs.NewMemFS(), "/ws/.fragments")
	ctx := context.Background()

	for _, id := range []string{"..", "a/b", `a\b`, "nul\x00", "."} {
		err := s.Save(ctx, id, "user", "x")
		if !errors.Is(err, ErrInvalidID) {
			t.Errorf("Save(%q) = %v, want ErrInvalidID", id, err)
		}
		var se *Error
		if !errors.As(err, &se) || se.ID != id {
			t.Errorf("Save(%q) error does not name the id: %v", id, err)
		}
	}
}

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		pattern string
		ok      bool
	}{
		{"{id}.json", true},
		{"snip-{id}", true},
		{"{id}", false},
		{"static.json", false},
		{"{id}-{id}.json", false},
		{"sub/{id}.json", false},
	}
	for _, tt := range tests {
		err := ValidatePattern(tt.pattern)
		if (err == nil) != tt.ok {
			t.Errorf("ValidatePattern(%q) = %v, want ok=%v", tt.pattern, err, tt.ok)
		}
	}
	if _, err := NewFileStore(vfs.NewMemFS(), "/d", WithPattern("plain")); err == nil {
		t.Error("NewFileStore with invalid pattern should fail")
	}
}

func TestFileStore_FailedWriteKeepsPreviousUnit(t *testing.T) {
	mem := vfs.NewMemFS()
	fsys := &failingFS{MemFS: mem}
	s, _ := NewFileStore(fsys, "/ws/.fragments")
	ctx := context.Background()

	if err := s.Save(ctx, "f1", "user", "good"); err != nil {
		t.Fatal(err)
	}

	fsys.failOn = "f1"
	err := s.Save(ctx, "f1", "user", "bad")
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("Save error = %v, want disk full", err)
	}
	if !strings.Contains(err.Error(), `"f1"`) {
		t.Errorf("error message %q should name the fragment id", err)
	}

	fsys.failOn = ""
	got, ok, err := s.Load(ctx, "f1", "user")
	if err != nil || !ok || got != "good" {
		t.Errorf("Load after failed save = %q, %v, %v; want good", got, ok, err)
	}
}

func TestFileStore_CorruptUnit(t *testing.T) {
	mem := vfs.NewMemFS()
	if err := mem.AddFile("/ws/.fragments/@bad.json", "{oops"); err != nil {
		t.Fatal(err)
	}
	s, _ := NewFileStore(mem, "/ws/.fragments")
	ctx := context.Background()

	if _, _, err := s.Load(ctx, "bad", "user"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load(corrupt) = %v, want ErrCorrupt", err)
	}
	if err := s.Save(ctx, "bad", "user", "x"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Save(corrupt) = %v, want ErrCorrupt", err)
	}
	data, _ := mem.ReadFile("/ws/.fragments/@bad.json")
	if string(data) != "{oops" {
		t.Errorf("corrupt unit was overwritten: %q", data)
	}
}

func TestFileStore_IDsIgnoresForeignFiles(t *testing.T) {
	mem := vfs.NewMemFS()
	for _, p := range []string{
		"/ws/.fragments/@a.json",
		"/ws/.fragments/@b.json",
		"/ws/.fragments/c.json",
		"/ws/.fragments/README.md",
		"/ws/.fragments/.a.json.tmp-123",
		"/ws/.fragments/sub/@c.json",
	} {
		if err := mem.AddFile(p, "{}"); err != nil {
			t.Fatal(err)
		}
	}
	s, _ := NewFileStore(mem, "/ws/.fragments")

	ids, err := s.IDs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Errorf("IDs() = %v, want [a b]", ids)
	}
}

func TestFileStore_IDsMissingFolder(t *testing.T) {
	s, _ := NewFileStore(vfs.NewMemFS(), "/nowhere")
	ids, err := s.IDs(context.Background())
	if err != nil || len(ids) != 0 {
		t.Errorf("IDs() = %v, %v; want empty", ids, err)
	}
}

func TestFileStore_UnitIsPretty(t *testing.T) {
	mem := vfs.NewMemFS()
	s, _ := NewFileStore(mem, "/ws/.fragments")
	if err := s.Save(context.Background(), "f1", "user", "x"); err != nil {
		t.Fatal(err)
	}
	data, _ := mem.ReadFile("/ws/.fragments/@f1.json")
	if !strings.Contains(string(data), "\n  \"versions\"") {
		t.Errorf("unit is not formatted:\n%s", data)
	}
}

func TestFileStore_CanceledContext(t *testing.T) {
	s, _ := NewFileStore(vfs.NewMemFS(), "/ws/.fragments")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, "f1", "user", "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("Save(canceled) = %v, want context.Canceled", err)
	}
}

func TestFileStore_PluginUnit(t *testing.T) {
	mem := vfs.NewMemFS()
	unit := `{"id":"f1","metadata":{},"versions":{"USER":{"code":"int x = 42;"}}}`
	if err := mem.AddFile("/ws/.fragments/@f1.json", unit); err != nil {
		t.Fatal(err)
	}
	s, _ := NewFileStore(mem, "/ws/.fragments")
	ctx := context.Background()

	got, ok, err := s.Load(ctx, "f1", "user")
	if err != nil || !ok || got != "int x = 42;" {
		t.Fatalf("Load(user) = %q, %v, %v; want the plugin's USER code", got, ok, err)
	}
	if _, ok, _ := s.Load(ctx, "f1", "maintainer"); ok {
		t.Error("Load(maintainer) found a version that was never saved")
	}

	if err := s.Save(ctx, "f1", "maintainer", "int x = 0;"); err != nil {
		t.Fatal(err)
	}
	ids, err := s.IDs(ctx)
	if err != nil || !reflect.DeepEqual(ids, []string{"f1"}) {
		t.Errorf("IDs() = %v, %v; want [f1]", ids, err)
	}
	rec, _, err := s.Record(ctx, "f1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rec.Variants(), []string{"USER", "maintainer"}) {
		t.Errorf("Variants() = %v, want [USER maintainer]", rec.Variants())
	}
}
