package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when execution times out.
	ErrExecutionTimeout = errors.New("lua execution timeout")
)

// ScriptError is a Lua error raised while running a named chunk.
type ScriptError struct {
	Chunk string
	Err   error
}

func (e *ScriptError) Error() string {
	return e.Chunk + ": " + e.Err.Error()
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
