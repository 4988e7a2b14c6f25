// Package app wires the fragments subsystems together: logging,
// configuration, the store backend, the engine workspace, the project
// file set, and the file watcher. Commands and scripts drive the
// workspace through an Application.
package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrClosed indicates use of a closed Application.
	ErrClosed = errors.New("application closed")

	// ErrInitialization indicates an initialization failure.
	ErrInitialization = errors.New("initialization failed")

	// ErrCaptureIncomplete indicates a toggle stopped because not every
	// fragment could be saved; applying would lose the unsaved content.
	ErrCaptureIncomplete = errors.New("capture incomplete, variant not switched")
)

// OperationError represents an error during an operation on one target.
type OperationError struct {
	Op     string // Operation name (e.g., "capture", "apply", "insert")
	Target string // Target of the operation (file or fragment id)
	Err    error  // Underlying error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{
		Op:     op,
		Target: target,
		Err:    err,
	}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InitError reports a component that failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Is matches ErrInitialization as well as the wrapped error.
func (e *InitError) Is(target error) bool {
	return target == ErrInitialization
}

// RecoveredPanicError wraps a panic value recovered from a handler.
type RecoveredPanicError struct {
	Value any
	Stack string
}

func (e *RecoveredPanicError) Error() string {
	if e == nil {
		return ""
	}
	if e.Stack != "" {
		return fmt.Sprintf("panic: %v\n%s", e.Value, e.Stack)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}
