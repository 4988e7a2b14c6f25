package api

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/fragments/internal/fragment/index"
	"github.com/dshills/fragments/internal/plugin/lua"
)

// FilesModule implements fragments.fs.
type FilesModule struct {
	host Host
}

// NewFilesModule creates a new files module.
func NewFilesModule(host Host) *FilesModule {
	return &FilesModule{host: host}
}

// Name returns the module name.
func (m *FilesModule) Name() string {
	return "fs"
}

// RequiredCapability returns the capability required for this module.
func (m *FilesModule) RequiredCapability() lua.Capability {
	return lua.CapabilityFileRead
}

// Register builds the module table.
func (m *FilesModule) Register(L *glua.LState) (glua.LValue, error) {
	mod := L.NewTable()
	L.SetField(mod, "read", L.NewFunction(m.read))
	L.SetField(mod, "list", L.NewFunction(m.list))
	return mod, nil
}

// read(path) -> string | nil, err
func (m *FilesModule) read(L *glua.LState) int {
	buf, err := m.host.Project().Buffer(L.CheckString(1))
	if err != nil {
		return pushError(L, err)
	}
	text, err := buf.Text()
	if err != nil {
		return pushError(L, err)
	}
	L.Push(glua.LString(text))
	return 1
}

// list(paths...) -> {files} | nil, err
// Returns the scan set as workspace-relative paths.
func (m *FilesModule) list(L *glua.LState) int {
	p := m.host.Project()
	files, err := p.Files(scriptContext(L), lua.NewBridge(L).StringArgs(1)...)
	if err != nil {
		return pushError(L, err)
	}
	refs := make([]index.FileRef, 0, len(files))
	for _, f := range files {
		ref, err := p.Ref(f)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	return pushResult(L, refs, nil)
}
