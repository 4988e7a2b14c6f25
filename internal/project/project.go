// Package project maps a fragments workspace onto the file system.
//
// A Project knows its root directory, which files are scanned for
// fragment markers (include globs, gitignore-style ignore rules, a size
// limit), and how to turn paths into index.FileRef identities. Files are
// exposed to the engine as TextBuffers.
package project

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/match"

	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/project/vfs"
	"github.com/dshills/fragments/internal/project/watcher"
)

// Config controls which files belong to the scan set.
type Config struct {
	// Include holds glob patterns matched against base names. Empty
	// includes every file.
	Include []string

	// Ignore holds gitignore-style patterns relative to the root.
	Ignore []string

	// MaxFileSize skips larger files; 0 disables the limit.
	MaxFileSize int64

	// UseGitignore adds the root .gitignore to the ignore rules.
	UseGitignore bool
}

// DefaultConfig returns the scan settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Ignore:       watcher.DefaultIgnorePatterns,
		MaxFileSize:  4 << 20,
		UseGitignore: true,
	}
}

// Project is an open workspace.
type Project struct {
	root   string
	fs     vfs.VFS
	config Config
	ignore *watcher.IgnorePatterns
}

// Option configures a Project.
type Option func(*Project)

// WithVFS sets the file system. The default is the OS file system.
func WithVFS(v vfs.VFS) Option {
	return func(p *Project) {
		p.fs = v
	}
}

// WithConfig sets the scan configuration.
func WithConfig(cfg Config) Option {
	return func(p *Project) {
		p.config = cfg
	}
}

// Open opens the workspace rooted at root.
func Open(root string, opts ...Option) (*Project, error) {
	p := &Project{config: DefaultConfig()}
	for _, opt := range opts {
		opt(p)
	}
	if p.fs == nil {
		p.fs = vfs.NewOSFS()
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, &WorkspaceError{Root: root, Err: err}
		}
		root = abs
	}
	if !p.fs.Exists(root) {
		return nil, &WorkspaceError{Root: root, Err: ErrNotFound}
	}
	if !p.fs.IsDir(root) {
		return nil, &WorkspaceError{Root: root, Err: ErrNotDirectory}
	}
	p.root = root

	p.ignore = watcher.NewIgnorePatterns(p.config.Ignore...)
	if p.config.UseGitignore {
		gi := p.fs.Join(root, ".gitignore")
		if p.fs.Exists(gi) {
			if err := p.ignore.AddFromFile(p.fs, gi); err != nil {
				return nil, &WorkspaceError{Root: root, Err: err}
			}
		}
	}
	return p, nil
}

// Root returns the workspace root directory.
func (p *Project) Root() string {
	return p.root
}

// FS returns the project's file system.
func (p *Project) FS() vfs.VFS {
	return p.fs
}

// IgnorePatterns returns the effective ignore patterns, for watchers.
func (p *Project) IgnorePatterns() []string {
	return p.ignore.Patterns()
}

// Abs resolves path against the root when it is relative.
func (p *Project) Abs(path string) string {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return path
	}
	return p.fs.Join(p.root, path)
}

// Ref returns the index identity of path: its slash-separated path
// relative to the root.
func (p *Project) Ref(path string) (index.FileRef, error) {
	rel, err := p.fs.Rel(p.root, p.Abs(path))
	rel = filepath.ToSlash(rel)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", &PathError{Op: "ref", Path: path, Err: ErrNotInWorkspace}
	}
	return index.FileRef(rel), nil
}

// Path returns the absolute path for an index identity.
func (p *Project) Path(ref index.FileRef) string {
	return p.fs.Join(p.root, filepath.FromSlash(string(ref)))
}

// Ignored reports whether path is excluded by the ignore rules.
func (p *Project) Ignored(path string, isDir bool) bool {
	return p.ignore.MatchRelative(p.Abs(path), p.root, isDir)
}

// Included reports whether a file of the given size is part of the scan
// set: not ignored, matching an include glob, within the size limit.
func (p *Project) Included(path string, size int64) bool {
	return p.selected(path) && !p.tooLarge(size)
}

func (p *Project) selected(path string) bool {
	if p.Ignored(path, false) || vfs.IsAtomicTemp(p.fs.Base(path)) {
		return false
	}
	return p.matchesInclude(p.fs.Base(path))
}

func (p *Project) tooLarge(size int64) bool {
	return p.config.MaxFileSize > 0 && size > p.config.MaxFileSize
}

func (p *Project) matchesInclude(name string) bool {
	if len(p.config.Include) == 0 {
		return true
	}
	for _, pattern := range p.config.Include {
		if match.Match(name, pattern) {
			return true
		}
	}
	return false
}

// Files returns the sorted absolute paths of the scan set. With no
// arguments the whole root is walked. Directory arguments are walked
// with the same filters; file arguments are taken as given, provided
// they lie inside the workspace. Files over the size limit are listed;
// reading them through Buffer fails with ErrFileTooLarge.
func (p *Project) Files(ctx context.Context, paths ...string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{p.root}
	}

	seen := make(map[string]bool)
	var out []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, arg := range paths {
		abs := p.Abs(arg)
		if _, err := p.Ref(abs); err != nil {
			return nil, err
		}
		info, err := p.fs.Stat(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &PathError{Op: "scan", Path: arg, Err: ErrNotFound}
			}
			return nil, &PathError{Op: "scan", Path: arg, Err: err}
		}
		if !info.IsDir() {
			add(abs)
			continue
		}
		if err := p.walk(ctx, abs, add); err != nil {
			return nil, err
		}
	}

	sort.Strings(out)
	return out, nil
}

func (p *Project) walk(ctx context.Context, dir string, add func(string)) error {
	return p.fs.WalkDir(dir, func(path string, info vfs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == dir {
				return &PathError{Op: "walk", Path: path, Err: err}
			}
			return nil
		}
		if info.IsDir() {
			if path != dir && p.Ignored(path, true) {
				return vfs.SkipDir
			}
			return nil
		}
		if !info.IsRegular() {
			return nil
		}
		if p.selected(path) {
			add(path)
		}
		return nil
	})
}

// Buffer returns a TextBuffer for path.
func (p *Project) Buffer(path string) (*FileBuffer, error) {
	abs := p.Abs(path)
	ref, err := p.Ref(abs)
	if err != nil {
		return nil, err
	}
	buf := NewFileBuffer(p.fs, abs, ref)
	buf.maxSize = p.config.MaxFileSize
	return buf, nil
}
