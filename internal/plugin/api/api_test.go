package api

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/fragments/internal/app"
	"github.com/dshills/fragments/internal/fragment/marker"
	"github.com/dshills/fragments/internal/plugin/lua"
	"github.com/dshills/fragments/internal/project/vfs"
)

func newTestHost(t *testing.T, files map[string]string) (*app.Application, *vfs.MemFS) {
	t.Helper()
	memfs := vfs.NewMemFS()
	if err := memfs.MkdirAll("/ws", 0o755); err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := memfs.AddFile(p, content); err != nil {
			t.Fatal(err)
		}
	}
	a, err := app.New(context.Background(), app.Options{FS: memfs, WorkspacePath: "/ws", LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, memfs
}

func TestRegistry(t *testing.T) {
	host, _ := newTestHost(t, nil)
	reg, err := DefaultRegistry(host)
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.List(); !reflect.DeepEqual(got, []string{"edit", "fs", "ws"}) {
		t.Errorf("List() = %v", got)
	}
	if err := reg.Register(NewWorkspaceModule(host)); err == nil {
		t.Error("Register() accepted a duplicate module")
	}
	if _, ok := reg.Get("ws"); !ok {
		t.Error("Get(ws) not found")
	}

	tests := []struct {
		name string
		caps []lua.Capability
		want []string
	}{
		{"no capabilities", nil, []string{"ws"}},
		{"read", []lua.Capability{lua.CapabilityFileRead}, []string{"fs", "ws"}},
		{"read write", []lua.Capability{lua.CapabilityFileRead, lua.CapabilityFileWrite}, []string{"edit", "fs", "ws"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := lua.NewState(lua.WithCapabilities(tt.caps...))
			defer st.Close()
			got, err := reg.InjectAll(st)
			if err != nil {
				t.Fatalf("InjectAll() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("InjectAll() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRun_Workspace(t *testing.T) {
	host, _ := newTestHost(t, map[string]string{
		"/ws/a.go": "package a\n" + marker.Region("greet", "hi\n", "\n") + "\n",
	})

	var out bytes.Buffer
	err := Run(context.Background(), host, "ws.lua", `
		local fr = require("fragments")
		assert(fr.edit == nil and fr.fs == nil, "write modules exposed")

		local reports, err = fr.ws.scan()
		assert(err == nil, err)
		assert(#reports == 1 and reports[1].file == "a.go", "scan")
		assert(reports[1].ids[1] == "greet", "ids")

		local captured, err = fr.ws.capture()
		assert(err == nil, err)
		assert(captured[1].saved[1] == "greet", "saved")

		print(fr.ws.ids()[1], fr.ws.label(), fr.ws.next(), #fr.ws.variants())
		print(fr.ws.show("greet").versions.user.code)
		assert(fr.ws.show("missing") == nil, "show missing")
		assert(#fr.ws.check() == 0, "collisions")

		local st = fr.ws.status()
		print(st.variant, st.files, st.fragments)
	`, lua.WithOutput(&out))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "greet\tFragments: User\tmaintainer\t2\nhi\n\nuser\t1\t1\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRun_Edit(t *testing.T) {
	host, memfs := newTestHost(t, map[string]string{
		"/ws/a.go": "package a\n" + marker.Region("greet", "hi\n", "\n") + "\n",
	})

	var out bytes.Buffer
	err := Run(context.Background(), host, "edit.lua", `
		local fr = require("fragments")

		assert(fr.edit.write("b.go", "x\n"))
		assert(fr.fs.read("b.go") == "x\n", "read back")

		local id, pos = fr.edit.insert("b.go", 0)
		assert(id, pos)
		print(pos.line, pos.col)
		assert(string.find(fr.fs.read("b.go"), "@" .. id, 1, true), "region missing")

		assert(fr.edit.delete("b.go", "1:1") == id, "deleted id")
		assert(fr.fs.read("b.go") == "\nx\n" or fr.fs.read("b.go") == "x\n", "after delete")

		local files = fr.fs.list()
		print(table.concat(files, ","))

		local _, err = fr.edit.apply("nobody")
		assert(err ~= nil, "unknown variant applied")

		local _, err = fr.edit.insert("missing.go", 0)
		assert(err ~= nil, "insert into missing file")

		local reports, err = fr.edit.apply("maintainer")
		assert(err == nil, err)
		print(fr.ws.variant())
	`, lua.WithOutput(&out), lua.WithCapabilities(lua.CapabilityFileRead, lua.CapabilityFileWrite))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "1\t1\na.go,b.go\nmaintainer\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if host.Workspace().Variant() != "maintainer" {
		t.Errorf("Variant() = %q", host.Workspace().Variant())
	}
	if data, _ := memfs.ReadFile("/ws/.fragments/state.toml"); !strings.Contains(string(data), "maintainer") {
		t.Errorf("state not persisted: %q", data)
	}
}

func TestRun_Errors(t *testing.T) {
	host, _ := newTestHost(t, nil)

	tests := []struct {
		name string
		code string
	}{
		{"bad argument", `require("fragments").ws.capture_variant()`},
		{"bad path argument", `require("fragments").ws.scan(42)`},
		{"edit without capability", `require("fragments").edit.apply("user")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Run(context.Background(), host, tt.name, tt.code)
			var se *lua.ScriptError
			if !errors.As(err, &se) {
				t.Errorf("Run() = %v, want ScriptError", err)
			}
		})
	}
}

func TestToLua(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	v, err := toLua(L, map[string]any{"n": 1.5, "list": []string{"a"}, "ok": false, "none": nil})
	if err != nil {
		t.Fatal(err)
	}
	got := lua.NewBridge(L).ToGoValue(v)
	want := map[string]any{"n": 1.5, "list": []any{"a"}, "ok": false}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("toLua() = %#v, want %#v", got, want)
	}
}
