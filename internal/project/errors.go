package project

import (
	"errors"
	"fmt"
)

// Standard errors returned by the project package.
var (
	// ErrNotFound indicates a file or directory was not found.
	ErrNotFound = errors.New("not found")

	// ErrNotInWorkspace indicates the path is outside the workspace.
	ErrNotInWorkspace = errors.New("path not in workspace")

	// ErrIsDirectory indicates the path is a directory, not a file.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrNotDirectory indicates the path is a file, not a directory.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrFileTooLarge indicates the file exceeds the maximum size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrBinaryFile indicates the file appears to be binary.
	ErrBinaryFile = errors.New("binary file")

	// ErrNoGitRepository indicates no git repository encloses the path.
	ErrNoGitRepository = errors.New("not inside a git repository")

	// ErrBadLocation indicates an unparsable or out-of-range location.
	ErrBadLocation = errors.New("bad location")
)

// PathError represents an error associated with a file path.
type PathError struct {
	Op   string // Operation that failed (read, write, walk, ...)
	Path string // File path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// WorkspaceError represents an error related to workspace operations.
type WorkspaceError struct {
	Root string // Workspace root path
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s: %v", e.Root, e.Err)
}

// Unwrap returns the underlying error.
func (e *WorkspaceError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a file was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotInWorkspace returns true if the error indicates path is outside workspace.
func IsNotInWorkspace(err error) bool {
	return errors.Is(err, ErrNotInWorkspace)
}
