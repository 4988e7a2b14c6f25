package api

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/fragments/internal/plugin/lua"
)

// EditModule implements fragments.edit, the operations that rewrite
// workspace files.
type EditModule struct {
	host Host
}

// NewEditModule creates a new edit module.
func NewEditModule(host Host) *EditModule {
	return &EditModule{host: host}
}

// Name returns the module name.
func (m *EditModule) Name() string {
	return "edit"
}

// RequiredCapability returns the capability required for this module.
func (m *EditModule) RequiredCapability() lua.Capability {
	return lua.CapabilityFileWrite
}

// Register builds the module table.
func (m *EditModule) Register(L *glua.LState) (glua.LValue, error) {
	mod := L.NewTable()

	L.SetField(mod, "apply", L.NewFunction(m.apply))
	L.SetField(mod, "toggle", L.NewFunction(m.toggle))
	L.SetField(mod, "set_variant", L.NewFunction(m.setVariant))
	L.SetField(mod, "insert", L.NewFunction(m.insert))
	L.SetField(mod, "delete", L.NewFunction(m.delete))
	L.SetField(mod, "write", L.NewFunction(m.write))
	return mod, nil
}

// apply(variant, paths...) -> {reports}[, err]
func (m *EditModule) apply(L *glua.LState) int {
	variant := L.CheckString(1)
	paths := lua.NewBridge(L).StringArgs(2)
	reports, err := m.host.Apply(scriptContext(L), variant, paths...)
	return pushPartial(L, reports, err)
}

// toggle(paths...) -> variant, {reports}[, err]
func (m *EditModule) toggle(L *glua.LState) int {
	paths := lua.NewBridge(L).StringArgs(1)
	variant, reports, err := m.host.Toggle(scriptContext(L), paths...)
	L.Push(glua.LString(variant))
	return 1 + pushPartial(L, reports, err)
}

// set_variant(name) -> true | nil, err
// Switches the active variant without touching files.
func (m *EditModule) setVariant(L *glua.LState) int {
	if err := m.host.SetVariant(L.CheckString(1)); err != nil {
		return pushError(L, err)
	}
	L.Push(glua.LTrue)
	return 1
}

// insert(path, loc) -> id, {line, col} | nil, err
// loc is a byte offset or line:col.
func (m *EditModule) insert(L *glua.LState) int {
	path := L.CheckString(1)
	loc := locationArg(L, 2)
	id, pos, err := m.host.Insert(scriptContext(L), path, loc)
	if err != nil {
		return pushError(L, err)
	}
	L.Push(glua.LString(id))
	return 1 + pushResult(L, pos, nil)
}

// delete(path, loc[, forget]) -> id | nil, err
func (m *EditModule) delete(L *glua.LState) int {
	path := L.CheckString(1)
	loc := locationArg(L, 2)
	forget := L.OptBool(3, false)
	id, err := m.host.Delete(scriptContext(L), path, loc, forget)
	if err != nil {
		return pushError(L, err)
	}
	L.Push(glua.LString(id))
	return 1
}

// write(path, text) -> true | nil, err
func (m *EditModule) write(L *glua.LState) int {
	path := L.CheckString(1)
	text := L.CheckString(2)
	buf, err := m.host.Project().Buffer(path)
	if err != nil {
		return pushError(L, err)
	}
	if err := buf.SetText(text); err != nil {
		return pushError(L, err)
	}
	L.Push(glua.LTrue)
	return 1
}

// locationArg accepts a byte offset or a "line:col" string.
func locationArg(L *glua.LState, n int) string {
	switch v := L.Get(n).(type) {
	case glua.LNumber:
		return v.String()
	case glua.LString:
		return string(v)
	default:
		L.ArgError(n, "offset or line:col expected")
		return ""
	}
}
