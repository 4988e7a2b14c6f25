// Package api provides the Lua modules exposed to fragments scripts.
//
// Scripts reach the workspace through the "fragments" module, which
// aggregates several submodules:
//
//   - fragments.ws: scanning, capture, variants, collisions and the store
//   - fragments.edit: operations that rewrite workspace files
//   - fragments.fs: reading workspace files
//
// # Architecture
//
// Each API module implements the Module interface:
//
//	type Module interface {
//	    Name() string
//	    RequiredCapability() lua.Capability
//	    Register(L *glua.LState) (glua.LValue, error)
//	}
//
// Modules are collected in a Registry, which injects the modules a
// script's sandbox is allowed to use and preloads the aggregate module.
// A module whose capability has not been granted is absent from the
// aggregate table, so fragments.edit is nil for a read-only script.
//
// # Conventions
//
// Bad arguments raise a Lua error. Failures of the operation itself are
// returned Go style, as nil plus a message:
//
//	local fr = require("fragments")
//	local reports, err = fr.ws.capture()
//	if err then print("capture failed: " .. err) end
//
// Results are plain tables with the same field names as the JSON output
// of the command line tool.
package api
