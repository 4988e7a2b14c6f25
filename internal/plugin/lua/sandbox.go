package lua

import (
	"io"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Capability represents a permission a script can be granted.
type Capability string

// Available capabilities.
const (
	// CapabilityFileRead allows reading workspace files.
	CapabilityFileRead Capability = "filesystem.read"
	// CapabilityFileWrite allows rewriting workspace files.
	CapabilityFileWrite Capability = "filesystem.write"
)

// safeModules are the built-in libraries require may return.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
}

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L *lua.LState

	mu           sync.RWMutex
	capabilities map[Capability]bool
	modules      map[string]bool
	output       io.Writer
}

// NewSandbox creates a new sandbox for the Lua state. print writes to out.
func NewSandbox(L *lua.LState, out io.Writer) *Sandbox {
	if out == nil {
		out = io.Discard
	}
	return &Sandbox{
		L:            L,
		capabilities: make(map[Capability]bool),
		modules:      make(map[string]bool),
		output:       out,
	}
}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.installSafePrint()
	s.installSafeRequire()
}

// installSafePrint replaces print so output goes to the sandbox writer.
func (s *Sandbox) installSafePrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		_, _ = io.WriteString(s.output, strings.Join(parts, "\t")+"\n")
		return 0
	}))
}

// installSafeRequire clears the package search paths and replaces require
// with one that resolves only safe built-ins and host-preloaded modules.
func (s *Sandbox) installSafeRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	originalRequire := s.L.GetGlobal("require")
	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)

		s.mu.RLock()
		allowed := safeModules[modName] || s.modules[modName]
		s.mu.RUnlock()
		if !allowed {
			L.RaiseError("module %q is not available", modName)
			return 0
		}

		L.Push(originalRequire)
		L.Push(lua.LString(modName))
		L.Call(1, 1)
		return 1
	}))
}

func (s *Sandbox) allowModule(name string) {
	s.mu.Lock()
	s.modules[name] = true
	s.mu.Unlock()
}

// Grant enables a capability.
func (s *Sandbox) Grant(c Capability) {
	s.mu.Lock()
	s.capabilities[c] = true
	s.mu.Unlock()
}

// Revoke disables a capability.
func (s *Sandbox) Revoke(c Capability) {
	s.mu.Lock()
	delete(s.capabilities, c)
	s.mu.Unlock()
}

// HasCapability returns true if the capability is granted.
func (s *Sandbox) HasCapability(c Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities[c]
}

// Capabilities returns all granted capabilities, sorted.
func (s *Sandbox) Capabilities() []Capability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	caps := make([]Capability, 0, len(s.capabilities))
	for c := range s.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// CheckCapability returns an error if the capability is not granted.
func (s *Sandbox) CheckCapability(c Capability) error {
	if !s.HasCapability(c) {
		return &CapabilityError{Capability: c}
	}
	return nil
}

// CapabilityError is returned when a capability is not granted.
type CapabilityError struct {
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return "capability not granted: " + string(e.Capability)
}
