package plugin

import "errors"

// Script lookup errors.
var (
	// ErrScriptNotFound is returned when no search path holds the script.
	ErrScriptNotFound = errors.New("script not found")

	// ErrNoEntryPoint is returned when a script directory has no init.lua.
	ErrNoEntryPoint = errors.New("script has no entry point (init.lua)")
)
