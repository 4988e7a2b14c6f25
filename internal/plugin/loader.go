package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/fragments/internal/project/vfs"
)

// ScriptsDir is the folder under a search root that holds scripts.
const ScriptsDir = "scripts"

// entryPoint is the file run for a directory script.
const entryPoint = "init.lua"

// Loader discovers scripts in its search paths.
type Loader struct {
	fs vfs.VFS

	// Search paths (checked in order)
	paths []string
}

// ScriptInfo describes a discovered script.
type ScriptInfo struct {
	Name string
	// Path is the file to run.
	Path  string
	Error error
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the search paths.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = paths
	}
}

// NewLoader creates a new script loader over fsys.
func NewLoader(fsys vfs.VFS, opts ...LoaderOption) *Loader {
	l := &Loader{fs: fsys}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultPaths returns the search paths for a workspace whose storage
// folder is storageDir.
func DefaultPaths(storageDir string) []string {
	paths := []string{filepath.Join(storageDir, ScriptsDir)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "fragments", ScriptsDir))
	}
	return paths
}

// Paths returns the configured search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// Discover finds all scripts in the search paths, sorted by name.
// Missing paths are skipped.
func (l *Loader) Discover() ([]ScriptInfo, error) {
	found := make(map[string]ScriptInfo)
	for _, base := range l.paths {
		if err := l.discoverInPath(base, found); err != nil {
			return nil, err
		}
	}

	scripts := make([]ScriptInfo, 0, len(found))
	for _, info := range found {
		scripts = append(scripts, info)
	}
	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].Name < scripts[j].Name
	})
	return scripts, nil
}

func (l *Loader) discoverInPath(base string, found map[string]ScriptInfo) error {
	entries, err := l.fs.ReadDir(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", base, err)
	}

	for _, entry := range entries {
		var info ScriptInfo
		switch {
		case entry.IsDir():
			info = l.inspectDir(entry.Name(), l.fs.Join(base, entry.Name()))
		case filepath.Ext(entry.Name()) == ".lua":
			name := strings.TrimSuffix(entry.Name(), ".lua")
			info = ScriptInfo{Name: name, Path: l.fs.Join(base, entry.Name())}
		default:
			continue
		}
		// First path wins.
		if _, exists := found[info.Name]; !exists {
			found[info.Name] = info
		}
	}
	return nil
}

func (l *Loader) inspectDir(name, dir string) ScriptInfo {
	main := l.fs.Join(dir, entryPoint)
	if l.fs.Exists(main) {
		return ScriptInfo{Name: name, Path: main}
	}
	return ScriptInfo{Name: name, Path: dir, Error: ErrNoEntryPoint}
}

// Find returns the script called name. A name ending in .lua that names
// an existing file is taken as a path.
func (l *Loader) Find(name string) (ScriptInfo, error) {
	if strings.HasSuffix(name, ".lua") && l.fs.Exists(name) && !l.fs.IsDir(name) {
		return ScriptInfo{Name: strings.TrimSuffix(l.fs.Base(name), ".lua"), Path: name}, nil
	}

	for _, base := range l.paths {
		dir := l.fs.Join(base, name)
		if l.fs.IsDir(dir) {
			info := l.inspectDir(name, dir)
			if info.Error == nil {
				return info, nil
			}
		}
		file := l.fs.Join(base, name+".lua")
		if l.fs.Exists(file) {
			return ScriptInfo{Name: name, Path: file}, nil
		}
	}
	return ScriptInfo{}, fmt.Errorf("%w: %s", ErrScriptNotFound, name)
}

// Read returns the source of a script.
func (l *Loader) Read(info ScriptInfo) (string, error) {
	if info.Error != nil {
		return "", info.Error
	}
	data, err := l.fs.ReadFile(info.Path)
	if err != nil {
		return "", fmt.Errorf("read script %s: %w", info.Name, err)
	}
	return string(data), nil
}
