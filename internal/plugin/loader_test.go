package plugin

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/fragments/internal/project/vfs"
)

func newTestLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	memfs := vfs.NewMemFS()
	for p, content := range files {
		if err := memfs.AddFile(p, content); err != nil {
			t.Fatal(err)
		}
	}
	return NewLoader(memfs, WithPaths("/ws/.fragments/scripts", "/home/scripts"))
}

func TestLoader_Discover(t *testing.T) {
	l := newTestLoader(t, map[string]string{
		"/ws/.fragments/scripts/reset.lua":        "print('project')",
		"/ws/.fragments/scripts/release/init.lua": "",
		"/ws/.fragments/scripts/broken/notes.txt": "",
		"/ws/.fragments/scripts/README.md":        "",
		"/home/scripts/reset.lua":                 "print('user')",
		"/home/scripts/stats.lua":                 "",
	})

	scripts, err := l.Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	var names []string
	for _, s := range scripts {
		names = append(names, s.Name)
	}
	if want := []string{"broken", "release", "reset", "stats"}; !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
	if !errors.Is(scripts[0].Error, ErrNoEntryPoint) {
		t.Errorf("broken.Error = %v", scripts[0].Error)
	}
	if scripts[1].Path != "/ws/.fragments/scripts/release/init.lua" {
		t.Errorf("release.Path = %q", scripts[1].Path)
	}
	if scripts[2].Path != "/ws/.fragments/scripts/reset.lua" {
		t.Errorf("reset.Path = %q, want the project script", scripts[2].Path)
	}
}

func TestLoader_DiscoverMissingPaths(t *testing.T) {
	l := newTestLoader(t, nil)
	scripts, err := l.Discover()
	if err != nil || len(scripts) != 0 {
		t.Errorf("Discover() = %v, %v", scripts, err)
	}
}

func TestLoader_FindAndRead(t *testing.T) {
	l := newTestLoader(t, map[string]string{
		"/ws/.fragments/scripts/release/init.lua": "-- release",
		"/home/scripts/stats.lua":                 "-- stats",
		"/tmp/adhoc.lua":                          "-- adhoc",
	})

	tests := []struct {
		name     string
		wantName string
		wantSrc  string
	}{
		{"release", "release", "-- release"},
		{"stats", "stats", "-- stats"},
		{"/tmp/adhoc.lua", "adhoc", "-- adhoc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := l.Find(tt.name)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if info.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", info.Name, tt.wantName)
			}
			src, err := l.Read(info)
			if err != nil || src != tt.wantSrc {
				t.Errorf("Read() = %q, %v", src, err)
			}
		})
	}

	if _, err := l.Find("nope"); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("Find(nope) = %v, want ErrScriptNotFound", err)
	}
}
