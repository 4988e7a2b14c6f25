package api

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/fragments/internal/plugin/lua"
)

// WorkspaceModule implements fragments.ws: indexing, capture, variants
// and the store. Capture only writes to the store, so the module needs
// no capability.
type WorkspaceModule struct {
	host Host
}

// NewWorkspaceModule creates a new workspace module.
func NewWorkspaceModule(host Host) *WorkspaceModule {
	return &WorkspaceModule{host: host}
}

// Name returns the module name.
func (m *WorkspaceModule) Name() string {
	return "ws"
}

// RequiredCapability returns the capability required for this module.
func (m *WorkspaceModule) RequiredCapability() lua.Capability {
	return ""
}

// Register builds the module table.
func (m *WorkspaceModule) Register(L *glua.LState) (glua.LValue, error) {
	mod := L.NewTable()

	L.SetField(mod, "scan", L.NewFunction(m.scan))
	L.SetField(mod, "capture", L.NewFunction(m.capture))
	L.SetField(mod, "capture_variant", L.NewFunction(m.captureVariant))
	L.SetField(mod, "check", L.NewFunction(m.check))
	L.SetField(mod, "status", L.NewFunction(m.status))

	L.SetField(mod, "variant", L.NewFunction(m.variant))
	L.SetField(mod, "variants", L.NewFunction(m.variants))
	L.SetField(mod, "next", L.NewFunction(m.next))
	L.SetField(mod, "label", L.NewFunction(m.label))

	L.SetField(mod, "ids", L.NewFunction(m.ids))
	L.SetField(mod, "stored", L.NewFunction(m.stored))
	L.SetField(mod, "show", L.NewFunction(m.show))
	L.SetField(mod, "forget", L.NewFunction(m.forget))
	return mod, nil
}

// scan(paths...) -> {reports}[, err]
func (m *WorkspaceModule) scan(L *glua.LState) int {
	paths := lua.NewBridge(L).StringArgs(1)
	reports, err := m.host.Scan(scriptContext(L), paths...)
	return pushPartial(L, reports, err)
}

// capture(paths...) -> {reports}[, err]
// Saves regions under the active variant.
func (m *WorkspaceModule) capture(L *glua.LState) int {
	paths := lua.NewBridge(L).StringArgs(1)
	reports, err := m.host.Capture(scriptContext(L), "", paths...)
	return pushPartial(L, reports, err)
}

// capture_variant(variant, paths...) -> {reports}[, err]
func (m *WorkspaceModule) captureVariant(L *glua.LState) int {
	variant := L.CheckString(1)
	paths := lua.NewBridge(L).StringArgs(2)
	reports, err := m.host.Capture(scriptContext(L), variant, paths...)
	return pushPartial(L, reports, err)
}

// check(paths...) -> {collisions} | nil, err
func (m *WorkspaceModule) check(L *glua.LState) int {
	paths := lua.NewBridge(L).StringArgs(1)
	reports, err := m.host.Check(scriptContext(L), paths...)
	return pushResult(L, reports, err)
}

// status() -> {status} | nil, err
func (m *WorkspaceModule) status(L *glua.LState) int {
	st, err := m.host.Status(scriptContext(L))
	return pushResult(L, st, err)
}

// variant() -> string
func (m *WorkspaceModule) variant(L *glua.LState) int {
	L.Push(glua.LString(m.host.Workspace().Variant()))
	return 1
}

// variants() -> {names}
func (m *WorkspaceModule) variants(L *glua.LState) int {
	return pushResult(L, m.host.Workspace().Variants(), nil)
}

// next() -> string
// Returns the variant a toggle would switch to.
func (m *WorkspaceModule) next(L *glua.LState) int {
	L.Push(glua.LString(m.host.Workspace().Next()))
	return 1
}

// label([variant]) -> string
func (m *WorkspaceModule) label(L *glua.LState) int {
	ws := m.host.Workspace()
	if L.GetTop() >= 1 {
		L.Push(glua.LString(ws.VariantLabel(L.CheckString(1))))
		return 1
	}
	L.Push(glua.LString(ws.Label()))
	return 1
}

// ids() -> {ids}
// Returns the ids present in the index.
func (m *WorkspaceModule) ids(L *glua.LState) int {
	return pushResult(L, m.host.Workspace().Index().IDs(), nil)
}

// stored() -> {ids} | nil, err
// Returns the ids that have a stored unit.
func (m *WorkspaceModule) stored(L *glua.LState) int {
	ids, err := m.host.Workspace().Store().IDs(scriptContext(L))
	return pushResult(L, ids, err)
}

// show(id) -> {record} | nil | nil, err
func (m *WorkspaceModule) show(L *glua.LState) int {
	rec, ok, err := m.host.Show(scriptContext(L), L.CheckString(1))
	if err != nil {
		return pushError(L, err)
	}
	if !ok {
		L.Push(glua.LNil)
		return 1
	}
	return pushResult(L, rec, nil)
}

// forget(id) -> true | nil, err
func (m *WorkspaceModule) forget(L *glua.LState) int {
	if err := m.host.Forget(scriptContext(L), L.CheckString(1)); err != nil {
		return pushError(L, err)
	}
	L.Push(glua.LTrue)
	return 1
}
