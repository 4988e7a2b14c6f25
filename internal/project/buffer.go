package project

import (
	"bytes"
	"errors"
	"io/fs"

	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/project/vfs"
)

// TextBuffer is a document the engine reads and rewrites.
type TextBuffer interface {
	// Text returns the full current content.
	Text() (string, error)

	// SetText replaces the full content.
	SetText(text string) error

	// Identity returns the stable identity used by the fragment index.
	Identity() index.FileRef
}

// BufferHandler receives buffer lifecycle notifications.
type BufferHandler func(buf TextBuffer)

// ChangeNotifier reports buffer lifecycle events to registered handlers.
type ChangeNotifier interface {
	// OnOpen registers a handler for buffers that appear.
	OnOpen(h BufferHandler)

	// OnSave registers a handler for buffers written to storage.
	OnSave(h BufferHandler)

	// OnChange registers a handler for buffers whose text changed.
	OnChange(h BufferHandler)
}

// binarySniffLen is how much of a file is checked for NUL bytes.
const binarySniffLen = 8000

// FileBuffer is a TextBuffer backed by a file. Writes are atomic.
type FileBuffer struct {
	fs      vfs.VFS
	path    string
	ref     index.FileRef
	maxSize int64
}

// NewFileBuffer creates a FileBuffer for path with identity ref.
func NewFileBuffer(fsys vfs.VFS, path string, ref index.FileRef) *FileBuffer {
	return &FileBuffer{fs: fsys, path: path, ref: ref}
}

// Path returns the file path.
func (b *FileBuffer) Path() string {
	return b.path
}

// Identity returns the buffer's index identity.
func (b *FileBuffer) Identity() index.FileRef {
	return b.ref
}

// Text reads the file. Files that look binary are rejected with
// ErrBinaryFile, files over the project's size limit with ErrFileTooLarge.
func (b *FileBuffer) Text() (string, error) {
	if b.maxSize > 0 {
		if info, err := b.fs.Stat(b.path); err == nil && !info.IsDir() && info.Size() > b.maxSize {
			return "", &PathError{Op: "read", Path: b.path, Err: ErrFileTooLarge}
		}
	}
	data, err := b.fs.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &PathError{Op: "read", Path: b.path, Err: ErrNotFound}
		}
		return "", &PathError{Op: "read", Path: b.path, Err: err}
	}
	if isBinary(data) {
		return "", &PathError{Op: "read", Path: b.path, Err: ErrBinaryFile}
	}
	return string(data), nil
}

// SetText atomically replaces the file content, keeping its permissions.
func (b *FileBuffer) SetText(text string) error {
	perm := fs.FileMode(0o644)
	if info, err := b.fs.Stat(b.path); err == nil {
		if info.IsDir() {
			return &PathError{Op: "write", Path: b.path, Err: ErrIsDirectory}
		}
		perm = info.Mode().Perm()
	}
	if err := b.fs.WriteFileAtomic(b.path, []byte(text), perm); err != nil {
		return &PathError{Op: "write", Path: b.path, Err: err}
	}
	return nil
}

func isBinary(data []byte) bool {
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// Ensure FileBuffer implements TextBuffer.
var _ TextBuffer = (*FileBuffer)(nil)
