package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/dshills/fragments/internal/project/vfs"
)

// Defaults for the file backend.
const (
	DefaultFolder  = ".fragments"
	DefaultPattern = "@{id}.json"
	idPlaceholder  = "{id}"
)

// FileStore keeps one unit file per fragment id inside a folder.
type FileStore struct {
	fs      vfs.VFS
	dir     string
	prefix  string
	suffix  string
	perm    fs.FileMode
	dirPerm fs.FileMode
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithPattern sets the unit file name pattern. The pattern must contain
// "{id}" exactly once.
func WithPattern(pattern string) FileOption {
	return func(s *FileStore) {
		s.prefix, s.suffix, _ = strings.Cut(pattern, idPlaceholder)
	}
}

// WithPerm sets the permissions for unit files.
func WithPerm(perm fs.FileMode) FileOption {
	return func(s *FileStore) {
		s.perm = perm
	}
}

// NewFileStore creates a store rooted at dir on fsys. The directory is
// created on first save.
func NewFileStore(fsys vfs.VFS, dir string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{
		fs:      fsys,
		dir:     dir,
		perm:    0644,
		dirPerm: 0755,
	}
	WithPattern(DefaultPattern)(s)
	for _, opt := range opts {
		opt(s)
	}
	if err := ValidatePattern(s.prefix + idPlaceholder + s.suffix); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidatePattern checks a unit file name pattern.
func ValidatePattern(pattern string) error {
	if strings.Count(pattern, idPlaceholder) != 1 {
		return fmt.Errorf("storage pattern %q must contain %s exactly once", pattern, idPlaceholder)
	}
	if strings.ContainsAny(pattern, `/\`) {
		return fmt.Errorf("storage pattern %q must not contain path separators", pattern)
	}
	if pattern == idPlaceholder {
		return fmt.Errorf("storage pattern %q needs a prefix or suffix", pattern)
	}
	return nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)

// Dir returns the storage folder.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the unit file path for id.
func (s *FileStore) Path(id string) (string, error) {
	if err := checkFileID(id); err != nil {
		return "", err
	}
	return s.fs.Join(s.dir, s.prefix+id+s.suffix), nil
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, id, variant, content string) error {
	if err := checkArgs(id, variant); err != nil {
		return opError("save", id, err)
	}
	if err := ctx.Err(); err != nil {
		return opError("save", id, err)
	}
	path, err := s.Path(id)
	if err != nil {
		return opError("save", id, err)
	}

	existing, err := s.read(path)
	if err != nil {
		return opError("save", id, err)
	}
	unit, err := setVersion(existing, id, variant, content)
	if err != nil {
		return opError("save", id, err)
	}

	if err := s.fs.MkdirAll(s.dir, s.dirPerm); err != nil {
		return opError("save", id, err)
	}
	return opError("save", id, s.fs.WriteFileAtomic(path, unit, s.perm))
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, id, variant string) (string, bool, error) {
	if err := checkArgs(id, variant); err != nil {
		return "", false, opError("load", id, err)
	}
	if err := ctx.Err(); err != nil {
		return "", false, opError("load", id, err)
	}
	path, err := s.Path(id)
	if err != nil {
		return "", false, opError("load", id, err)
	}

	unit, err := s.read(path)
	if err != nil || unit == nil {
		return "", false, opError("load", id, err)
	}
	content, ok, err := getVersion(unit, variant)
	return content, ok, opError("load", id, err)
}

// Forget implements Store.
func (s *FileStore) Forget(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return opError("forget", id, err)
	}
	path, err := s.Path(id)
	if err != nil {
		return opError("forget", id, err)
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return opError("forget", id, err)
	}
	return nil
}

// Record implements Store.
func (s *FileStore) Record(ctx context.Context, id string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, opError("record", id, err)
	}
	path, err := s.Path(id)
	if err != nil {
		return Record{}, false, opError("record", id, err)
	}
	unit, err := s.read(path)
	if err != nil || unit == nil {
		return Record{}, false, opError("record", id, err)
	}
	rec, err := decodeRecord(unit, id)
	if err != nil {
		return Record{}, false, opError("record", id, err)
	}
	return rec, true, nil
}

// IDs implements Store. Files that do not match the pattern are ignored.
func (s *FileStore) IDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.fs.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) <= len(s.prefix)+len(s.suffix) ||
			!strings.HasPrefix(name, s.prefix) || !strings.HasSuffix(name, s.suffix) {
			continue
		}
		id := name[len(s.prefix) : len(name)-len(s.suffix)]
		if checkFileID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// read returns the unit bytes at path, or nil when the file is absent.
func (s *FileStore) read(path string) ([]byte, error) {
	data, err := s.fs.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// checkFileID rejects ids that would escape the storage folder or cannot
// be file names.
func checkFileID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return ErrInvalidID
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator or NUL", ErrInvalidID, id)
	}
	return nil
}
