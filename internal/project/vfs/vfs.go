// Package vfs provides the file system abstraction used by the fragment
// store and the CLI's text buffers.
//
// Two implementations exist: OSFS for real files and MemFS for tests.
// Both offer WriteFileAtomic, which never leaves a partially written file
// observable at the destination path.
package vfs

import (
	"io/fs"
	"strings"
	"time"
)

// tempMarker appears in the names of WriteFileAtomic's temporary files.
const tempMarker = ".tmp-"

// IsAtomicTemp reports whether a base name looks like a WriteFileAtomic
// temporary file. Watchers use it to skip the intermediate files.
func IsAtomicTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, tempMarker)
}

// VFS is a virtual file system.
type VFS interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// ReadDir reads a directory and returns its entries sorted by name.
	ReadDir(path string) ([]FileInfo, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// WriteFileAtomic writes data to a sibling temporary file and renames
	// it over path. Readers observe either the old or the new content.
	WriteFileAtomic(path string, data []byte, perm fs.FileMode) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// Remove removes a file or empty directory.
	Remove(path string) error

	// Rename renames (moves) a file.
	Rename(oldPath, newPath string) error

	// Join joins path elements.
	Join(elem ...string) string

	// Dir returns the directory portion of a path.
	Dir(path string) string

	// Base returns the last element of a path.
	Base(path string) string

	// Rel returns the relative path from base to target.
	Rel(basePath, targetPath string) (string, error)

	// Exists returns true if the path exists.
	Exists(path string) bool

	// IsDir returns true if the path is a directory.
	IsDir(path string) bool

	// WalkDir walks the file tree rooted at root in lexical order.
	WalkDir(root string, fn WalkDirFunc) error
}

// FileInfo describes a file or directory.
type FileInfo struct {
	path    string
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

// NewFileInfo creates a FileInfo from the given parameters.
func NewFileInfo(path, name string, size int64, mode fs.FileMode, modTime time.Time, isDir bool) FileInfo {
	return FileInfo{
		path:    path,
		name:    name,
		size:    size,
		mode:    mode,
		modTime: modTime,
		isDir:   isDir,
	}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Name returns the base name.
func (fi FileInfo) Name() string { return fi.name }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode.
func (fi FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.isDir }

// IsRegular returns true if this is a regular file.
func (fi FileInfo) IsRegular() bool { return fi.mode.IsRegular() }

// WalkDirFunc is the type of function called by WalkDir.
// Returning SkipDir from a directory skips its contents.
type WalkDirFunc func(path string, info FileInfo, err error) error

// SkipDir is used as a return value from WalkDirFunc to indicate that
// the directory named in the call should be skipped.
var SkipDir = fs.SkipDir

// SkipAll is used as a return value from WalkDirFunc to stop walking.
var SkipAll = fs.SkipAll
