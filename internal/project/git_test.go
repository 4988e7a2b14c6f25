package project

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	git "github.com/go-git/go-git/v5"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	return resolved
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindRoot(t *testing.T) {
	root := initRepo(t)
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := FindRoot(sub)
	if err != nil {
		t.Fatalf("FindRoot() error = %v", err)
	}
	if got != root {
		t.Errorf("FindRoot() = %q, want %q", got, root)
	}
}

func TestFindRoot_NoRepository(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	got, err := FindRoot(dir)
	if err != nil {
		t.Fatalf("FindRoot() error = %v", err)
	}
	if got != dir {
		t.Errorf("FindRoot() = %q, want %q", got, dir)
	}

	if _, err := GitDir(dir); !errors.Is(err, ErrNoGitRepository) {
		t.Errorf("GitDir() = %v, want ErrNoGitRepository", err)
	}
}

func TestGitDir(t *testing.T) {
	root := initRepo(t)
	got, err := GitDir(root)
	if err != nil {
		t.Fatalf("GitDir() error = %v", err)
	}
	if want := filepath.Join(root, ".git"); got != want {
		t.Errorf("GitDir() = %q, want %q", got, want)
	}
}

func TestModifiedFiles(t *testing.T) {
	root := initRepo(t)
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, "lib", "util.go"), "package lib\n")

	got, err := ModifiedFiles(root)
	if err != nil {
		t.Fatalf("ModifiedFiles() error = %v", err)
	}
	want := []string{"lib/util.go", "main.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ModifiedFiles() = %v, want %v", got, want)
	}
}
