package vfs

import (
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Standard error values for MemFS operations.
// These align with POSIX errors for consistency with OSFS.
var (
	errIsDir    = syscall.EISDIR
	errNotDir   = syscall.ENOTDIR
	errNotEmpty = syscall.ENOTEMPTY
	errNotUnder = errors.New("target is not under base")
)

// MemFS implements VFS using an in-memory file system.
// It is primarily used for testing.
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu    sync.RWMutex
	files map[string]*memFile
	dirs  map[string]bool
}

type memFile struct {
	content []byte
	mode    fs.FileMode
	modTime time.Time
}

// NewMemFS creates a new in-memory file system.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string]*memFile),
		dirs:  map[string]bool{"/": true},
	}
}

// Ensure MemFS implements VFS.
var _ VFS = (*MemFS)(nil)

// ReadFile reads the entire file content.
func (m *MemFS) ReadFile(filePath string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	f, ok := m.files[filePath]
	if !ok {
		if m.dirs[filePath] {
			return nil, &fs.PathError{Op: "read", Path: filePath, Err: errIsDir}
		}
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: fs.ErrNotExist}
	}

	// Return a copy to prevent modification
	content := make([]byte, len(f.content))
	copy(content, f.content)
	return content, nil
}

// Stat returns file information.
func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statLocked(m.cleanPath(filePath))
}

func (m *MemFS) statLocked(filePath string) (FileInfo, error) {
	if f, ok := m.files[filePath]; ok {
		return NewFileInfo(filePath, path.Base(filePath), int64(len(f.content)), f.mode, f.modTime, false), nil
	}
	if m.dirs[filePath] {
		return NewFileInfo(filePath, path.Base(filePath), 0, fs.ModeDir|0755, time.Time{}, true), nil
	}
	return FileInfo{}, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
}

// ReadDir reads a directory and returns its entries sorted by name.
func (m *MemFS) ReadDir(dirPath string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dirPath = m.cleanPath(dirPath)

	if !m.dirs[dirPath] {
		if _, ok := m.files[dirPath]; ok {
			return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: errNotDir}
		}
		return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: fs.ErrNotExist}
	}

	prefix := dirPrefix(dirPath)
	var entries []FileInfo

	for filePath, f := range m.files {
		rest, ok := directChild(filePath, prefix)
		if !ok {
			continue
		}
		entries = append(entries, NewFileInfo(filePath, rest, int64(len(f.content)), f.mode, f.modTime, false))
	}
	for d := range m.dirs {
		rest, ok := directChild(d, prefix)
		if !ok {
			continue
		}
		entries = append(entries, NewFileInfo(d, rest, 0, fs.ModeDir|0755, time.Time{}, true))
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

// WriteFile writes data to a file, creating it if necessary.
func (m *MemFS) WriteFile(filePath string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked("write", m.cleanPath(filePath), data, perm)
}

// WriteFileAtomic replaces the file content in one step. Concurrent
// readers see either the previous or the new content.
func (m *MemFS) WriteFileAtomic(filePath string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked("replace", m.cleanPath(filePath), data, perm)
}

func (m *MemFS) writeLocked(op, filePath string, data []byte, perm fs.FileMode) error {
	if m.dirs[filePath] {
		return &fs.PathError{Op: op, Path: filePath, Err: errIsDir}
	}

	dir := path.Dir(filePath)
	if dir != "/" && !m.dirs[dir] {
		return &fs.PathError{Op: op, Path: filePath, Err: fs.ErrNotExist}
	}

	content := make([]byte, len(data))
	copy(content, data)

	m.files[filePath] = &memFile{
		content: content,
		mode:    perm,
		modTime: time.Now(),
	}
	return nil
}

// MkdirAll creates a directory and all parent directories.
func (m *MemFS) MkdirAll(dirPath string, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dirPath = m.cleanPath(dirPath)

	current := ""
	for _, part := range strings.Split(strings.Trim(dirPath, "/"), "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		if _, ok := m.files[current]; ok {
			return &fs.PathError{Op: "mkdir", Path: current, Err: errNotDir}
		}
		m.dirs[current] = true
	}
	return nil
}

// Remove removes a file or empty directory.
func (m *MemFS) Remove(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = m.cleanPath(filePath)

	if _, ok := m.files[filePath]; ok {
		delete(m.files, filePath)
		return nil
	}
	if !m.dirs[filePath] {
		return &fs.PathError{Op: "remove", Path: filePath, Err: fs.ErrNotExist}
	}

	prefix := dirPrefix(filePath)
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			return &fs.PathError{Op: "remove", Path: filePath, Err: errNotEmpty}
		}
	}
	for d := range m.dirs {
		if d != filePath && strings.HasPrefix(d, prefix) {
			return &fs.PathError{Op: "remove", Path: filePath, Err: errNotEmpty}
		}
	}

	delete(m.dirs, filePath)
	return nil
}

// Rename renames a file. Directories are not supported.
func (m *MemFS) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldPath = m.cleanPath(oldPath)
	newPath = m.cleanPath(newPath)

	f, ok := m.files[oldPath]
	if !ok {
		if m.dirs[oldPath] {
			return &fs.PathError{Op: "rename", Path: oldPath, Err: errIsDir}
		}
		return &fs.PathError{Op: "rename", Path: oldPath, Err: fs.ErrNotExist}
	}

	newParent := path.Dir(newPath)
	if newParent != "/" && !m.dirs[newParent] {
		return &fs.PathError{Op: "rename", Path: newPath, Err: fs.ErrNotExist}
	}

	m.files[newPath] = f
	delete(m.files, oldPath)
	return nil
}

// Rel returns the relative path from base to target.
func (m *MemFS) Rel(basePath, targetPath string) (string, error) {
	basePath = m.cleanPath(basePath)
	targetPath = m.cleanPath(targetPath)

	if targetPath == basePath {
		return ".", nil
	}
	prefix := dirPrefix(basePath)
	if !strings.HasPrefix(targetPath, prefix) {
		return "", errNotUnder
	}
	return strings.TrimPrefix(targetPath, prefix), nil
}

// Join joins path elements.
func (m *MemFS) Join(elem ...string) string {
	return path.Join(elem...)
}

// Dir returns the directory portion of a path.
func (m *MemFS) Dir(filePath string) string {
	return path.Dir(filePath)
}

// Base returns the last element of a path.
func (m *MemFS) Base(filePath string) string {
	return path.Base(filePath)
}

// Exists returns true if the path exists.
func (m *MemFS) Exists(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = m.cleanPath(filePath)
	_, isFile := m.files[filePath]
	return isFile || m.dirs[filePath]
}

// IsDir returns true if the path is a directory.
func (m *MemFS) IsDir(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirs[m.cleanPath(filePath)]
}

// WalkDir walks the file tree rooted at root in lexical order.
func (m *MemFS) WalkDir(root string, fn WalkDirFunc) error {
	root = m.cleanPath(root)

	info, err := m.Stat(root)
	if err != nil {
		return fn(root, FileInfo{}, err)
	}

	err = m.walk(root, info, fn)
	if errors.Is(err, SkipDir) || errors.Is(err, SkipAll) {
		return nil
	}
	return err
}

func (m *MemFS) walk(p string, info FileInfo, fn WalkDirFunc) error {
	if err := fn(p, info, nil); err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := m.ReadDir(p)
	if err != nil {
		return fn(p, info, err)
	}

	for _, entry := range entries {
		if err := m.walk(entry.Path(), entry, fn); err != nil {
			if errors.Is(err, SkipDir) {
				if entry.IsDir() {
					continue
				}
				return nil // SkipDir on a file skips the remaining siblings
			}
			return err
		}
	}
	return nil
}

// cleanPath normalizes a path.
func (m *MemFS) cleanPath(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// AddFile is a convenience method for adding files during setup.
func (m *MemFS) AddFile(filePath string, content string) error {
	dir := path.Dir(m.cleanPath(filePath))
	if dir != "/" {
		if err := m.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return m.WriteFile(filePath, []byte(content), 0644)
}

// Files returns all file paths in the file system.
func (m *MemFS) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]string, 0, len(m.files))
	for f := range m.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func dirPrefix(dir string) string {
	if dir == "/" {
		return dir
	}
	return dir + "/"
}

func directChild(p, prefix string) (string, bool) {
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
