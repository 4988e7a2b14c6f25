package api

import (
	"fmt"
	"sort"
	"sync"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/fragments/internal/plugin/lua"
)

// ModuleName is the name scripts require.
const ModuleName = "fragments"

// APIVersion is bumped when a module changes incompatibly.
const APIVersion = 1

// Module represents a Lua API module that can be registered with a script state.
type Module interface {
	// Name returns the field the module appears under (e.g., "ws", "edit").
	Name() string

	// RequiredCapability returns the capability required to use this module.
	// Returns empty string if no capability is required.
	RequiredCapability() lua.Capability

	// Register builds the module table in L.
	Register(L *glua.LState) (glua.LValue, error)
}

// Registry manages API modules and their registration.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates a new API registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Register adds a module to the registry.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[mod.Name()]; exists {
		return fmt.Errorf("module %q already registered", mod.Name())
	}
	r.modules[mod.Name()] = mod
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[name]
	return mod, ok
}

// List returns all registered module names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

// InjectAll registers every module the sandbox of st allows and makes
// require("fragments") return them. It returns the names injected.
func (r *Registry) InjectAll(st *lua.State) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	L := st.L
	root := L.NewTable()
	var injected []string
	for _, name := range r.sortedNames() {
		mod := r.modules[name]
		if c := mod.RequiredCapability(); c != "" && !st.Sandbox().HasCapability(c) {
			continue
		}
		tbl, err := mod.Register(L)
		if err != nil {
			return injected, fmt.Errorf("failed to register module %q: %w", name, err)
		}
		L.SetField(root, name, tbl)
		injected = append(injected, name)
	}
	L.SetField(root, "api_version", glua.LNumber(APIVersion))

	st.Preload(ModuleName, func(L *glua.LState) int {
		L.Push(root)
		return 1
	})
	return injected, nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry creates a registry with the standard modules bound to host.
func DefaultRegistry(host Host) (*Registry, error) {
	r := NewRegistry()
	modules := []Module{
		NewWorkspaceModule(host),
		NewEditModule(host),
		NewFilesModule(host),
	}
	for _, mod := range modules {
		if err := r.Register(mod); err != nil {
			return nil, err
		}
	}
	return r, nil
}
