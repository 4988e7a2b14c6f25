package vfs

import (
	"errors"
	"io/fs"
	"strings"
	"sync"
	"testing"
)

// TestVFSInterface runs the same suite against both implementations.
func TestVFSInterface(t *testing.T) {
	t.Run("MemFS", func(t *testing.T) {
		testVFSOperations(t, NewMemFS(), "/")
	})

	t.Run("OSFS", func(t *testing.T) {
		testVFSOperations(t, NewOSFS(), t.TempDir())
	})
}

func testVFSOperations(t *testing.T, v VFS, root string) {
	t.Run("WriteFile_ReadFile", func(t *testing.T) {
		path := v.Join(root, "test.txt")
		content := []byte("hello world")

		if err := v.WriteFile(path, content, 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		got, err := v.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("content mismatch: got %q, want %q", got, content)
		}
	})

	t.Run("WriteFileAtomic_Replaces", func(t *testing.T) {
		dir := v.Join(root, "atomic")
		if err := v.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		path := v.Join(dir, "unit.json")

		if err := v.WriteFileAtomic(path, []byte("first"), 0644); err != nil {
			t.Fatalf("WriteFileAtomic failed: %v", err)
		}
		if err := v.WriteFileAtomic(path, []byte("second"), 0644); err != nil {
			t.Fatalf("WriteFileAtomic failed: %v", err)
		}

		got, err := v.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(got) != "second" {
			t.Errorf("content = %q, want %q", got, "second")
		}

		// No temporary files are left behind.
		entries, err := v.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 1 || entries[0].Name() != "unit.json" {
			names := make([]string, len(entries))
			for i, e := range entries {
				names[i] = e.Name()
			}
			t.Errorf("directory contents = %v, want [unit.json]", names)
		}
	})

	t.Run("WriteFileAtomic_MissingDir", func(t *testing.T) {
		path := v.Join(root, "nope", "unit.json")
		if err := v.WriteFileAtomic(path, []byte("x"), 0644); err == nil {
			t.Error("expected error writing into a missing directory")
		}
	})

	t.Run("Stat", func(t *testing.T) {
		path := v.Join(root, "stat_test.txt")
		content := []byte("test content")

		if err := v.WriteFile(path, content, 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		info, err := v.Stat(path)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Name() != "stat_test.txt" {
			t.Errorf("Name: got %q, want %q", info.Name(), "stat_test.txt")
		}
		if info.Size() != int64(len(content)) {
			t.Errorf("Size: got %d, want %d", info.Size(), len(content))
		}
		if info.IsDir() {
			t.Error("IsDir: expected false for file")
		}
	})

	t.Run("Stat_NotExist", func(t *testing.T) {
		_, err := v.Stat(v.Join(root, "missing"))
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Stat(missing) error = %v, want ErrNotExist", err)
		}
	})

	t.Run("MkdirAll_ReadDir", func(t *testing.T) {
		dir := v.Join(root, "a", "b")
		if err := v.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if !v.IsDir(dir) {
			t.Error("IsDir: expected true")
		}

		for _, name := range []string{"z.txt", "m.txt"} {
			if err := v.WriteFile(v.Join(dir, name), []byte(name), 0644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
		}

		entries, err := v.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("ReadDir returned %d entries, want 2", len(entries))
		}
		if entries[0].Name() != "m.txt" || entries[1].Name() != "z.txt" {
			t.Errorf("entries not sorted: %s, %s", entries[0].Name(), entries[1].Name())
		}
	})

	t.Run("Remove", func(t *testing.T) {
		path := v.Join(root, "remove.txt")
		if err := v.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if err := v.Remove(path); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if v.Exists(path) {
			t.Error("file still exists after Remove")
		}
		if err := v.Remove(path); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("second Remove error = %v, want ErrNotExist", err)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		oldPath := v.Join(root, "old.txt")
		newPath := v.Join(root, "new.txt")
		if err := v.WriteFile(oldPath, []byte("moved"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if err := v.Rename(oldPath, newPath); err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		if v.Exists(oldPath) {
			t.Error("old path still exists")
		}
		got, err := v.ReadFile(newPath)
		if err != nil || string(got) != "moved" {
			t.Errorf("ReadFile(new) = %q, %v", got, err)
		}
	})

	t.Run("Rel", func(t *testing.T) {
		rel, err := v.Rel(root, v.Join(root, "a", "b", "c.txt"))
		if err != nil {
			t.Fatalf("Rel failed: %v", err)
		}
		if rel != "a/b/c.txt" && rel != `a\b\c.txt` {
			t.Errorf("Rel = %q", rel)
		}
	})

	t.Run("WalkDir_SkipDir", func(t *testing.T) {
		base := v.Join(root, "walk")
		for _, p := range []string{"keep/one.txt", "skip/two.txt", "three.txt"} {
			full := v.Join(base, p)
			if err := v.MkdirAll(v.Dir(full), 0755); err != nil {
				t.Fatalf("MkdirAll failed: %v", err)
			}
			if err := v.WriteFile(full, []byte(p), 0644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
		}

		var files []string
		err := v.WalkDir(base, func(p string, info FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() && info.Name() == "skip" {
				return SkipDir
			}
			if !info.IsDir() {
				files = append(files, info.Name())
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WalkDir failed: %v", err)
		}

		got := strings.Join(files, ",")
		if got != "one.txt,three.txt" {
			t.Errorf("walked files = %s, want one.txt,three.txt", got)
		}
	})
}

func TestMemFS_WriteRequiresParent(t *testing.T) {
	m := NewMemFS()
	if err := m.WriteFile("/missing/file.txt", []byte("x"), 0644); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("WriteFile error = %v, want ErrNotExist", err)
	}
}

func TestMemFS_ReadFileReturnsCopy(t *testing.T) {
	m := NewMemFS()
	if err := m.AddFile("/a.txt", "abc"); err != nil {
		t.Fatal(err)
	}
	got, _ := m.ReadFile("/a.txt")
	got[0] = 'X'

	again, _ := m.ReadFile("/a.txt")
	if string(again) != "abc" {
		t.Errorf("ReadFile content mutated: %q", again)
	}
}

func TestMemFS_RemoveNonEmptyDir(t *testing.T) {
	m := NewMemFS()
	if err := m.AddFile("/d/f.txt", "x"); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove("/d"); err == nil {
		t.Error("expected error removing non-empty directory")
	}
}

func TestMemFS_ConcurrentAtomicWrites(t *testing.T) {
	m := NewMemFS()
	a := strings.Repeat("a", 512)
	b := strings.Repeat("b", 512)
	if err := m.AddFile("/f.json", a); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			data := a
			if i%2 == 0 {
				data = b
			}
			_ = m.WriteFileAtomic("/f.json", []byte(data), 0644)
		}(i)
		go func() {
			defer wg.Done()
			got, err := m.ReadFile("/f.json")
			if err != nil {
				t.Errorf("ReadFile: %v", err)
				return
			}
			if s := string(got); s != a && s != b {
				t.Errorf("observed torn write of %d bytes", len(s))
			}
		}()
	}
	wg.Wait()
}

func TestIsAtomicTemp(t *testing.T) {
	tests := map[string]bool{
		".f1.json.tmp-123456": true,
		".main.go.tmp-9":      true,
		"f1.json":             false,
		".gitignore":          false,
		"notes.tmp-1":         false,
	}
	for name, want := range tests {
		if got := IsAtomicTemp(name); got != want {
			t.Errorf("IsAtomicTemp(%q) = %v, want %v", name, got, want)
		}
	}
}
