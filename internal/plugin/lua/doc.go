// Package lua runs fragments scripts in a sandboxed gopher-lua state.
//
// Scripts get the base, table, string and math libraries only. dofile,
// loadfile, load and loadstring are removed, require resolves only the
// safe built-in libraries and modules preloaded by the host, and print
// writes to the state's output writer. Execution is bounded by a timeout
// and by the caller's context.
//
//	state := lua.NewState(lua.WithOutput(os.Stdout))
//	defer state.Close()
//	state.Preload("fragments", loader)
//	err := state.Run(ctx, "batch.lua", code)
package lua
