// Package plugin locates the Lua scripts fragments can run.
//
// Scripts are found by name in the search paths, checked in order:
//
//	<workspace>/.fragments/scripts/
//	~/.config/fragments/scripts/
//
// A script is either a single file:
//
//	.fragments/scripts/reset.lua
//
// or a directory with an init.lua entry point:
//
//	.fragments/scripts/release/init.lua
//
// The first path holding a name wins. Running a script is the job of
// package api, which exposes the workspace to it; see package lua for
// the sandbox.
package plugin
