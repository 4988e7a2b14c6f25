package loader

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/fragments/internal/project/vfs"
)

func newFS(t *testing.T, files map[string]string) *vfs.MemFS {
	t.Helper()
	m := vfs.NewMemFS()
	for p, c := range files {
		if err := m.AddFile(p, c); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestTOMLLoader_Load(t *testing.T) {
	memfs := newFS(t, map[string]string{"/ws/.fragments.toml": `
[storage]
backend = "redis"
folder = ".store"

[storage.redis]
url = "redis://localhost:6379/1"

[variants]
names = ["user", "maintainer"]
`})

	config, err := NewTOMLLoaderWithFS(memfs, "/ws/.fragments.toml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if v, _ := GetByPath(config, "storage.backend"); v != "redis" {
		t.Errorf("storage.backend = %v, want redis", v)
	}
	if v, _ := GetByPath(config, "storage.redis.url"); v != "redis://localhost:6379/1" {
		t.Errorf("storage.redis.url = %v", v)
	}
	names, _ := GetByPath(config, "variants.names")
	if !reflect.DeepEqual(names, []any{"user", "maintainer"}) {
		t.Errorf("variants.names = %#v", names)
	}
}

func TestTOMLLoader_LoadNonExistent(t *testing.T) {
	config, err := NewTOMLLoaderWithFS(vfs.NewMemFS(), "/nonexistent.toml").Load()
	if err != nil {
		t.Fatalf("expected no error for non-existent file, got: %v", err)
	}
	if config != nil {
		t.Error("expected nil config for non-existent file")
	}
}

func TestTOMLLoader_LoadInvalid(t *testing.T) {
	memfs := newFS(t, map[string]string{"/invalid.toml": "\n[storage\nfolder = 4\n"})

	_, err := NewTOMLLoaderWithFS(memfs, "/invalid.toml").Load()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
	if parseErr.Path != "/invalid.toml" {
		t.Errorf("Path = %q, want '/invalid.toml'", parseErr.Path)
	}
	if parseErr.Line == 0 {
		t.Error("expected a line number")
	}
}

func TestTOMLLoader_LoadFromReader(t *testing.T) {
	config, err := (&TOMLLoader{}).LoadFromReader(strings.NewReader("level = \"debug\"\nsize = 12\n"))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if config["level"] != "debug" {
		t.Errorf("level = %v, want debug", config["level"])
	}
	if config["size"] != int64(12) {
		t.Errorf("size = %v, want 12", config["size"])
	}
}

func TestYAMLLoader_Load(t *testing.T) {
	memfs := newFS(t, map[string]string{"/ws/.fragments.yaml": `
storage:
  folder: .yfrag
variants:
  names: [student, instructor]
  labels:
    student: Student
scan:
  max_file_size: 1024
`})

	config, err := NewYAMLLoaderWithFS(memfs, "/ws/.fragments.yaml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v, _ := GetByPath(config, "storage.folder"); v != ".yfrag" {
		t.Errorf("storage.folder = %v", v)
	}
	if v, _ := GetByPath(config, "variants.labels.student"); v != "Student" {
		t.Errorf("variants.labels.student = %v", v)
	}
	if v, _ := GetByPath(config, "scan.max_file_size"); v != int64(1024) {
		t.Errorf("scan.max_file_size = %v (%T), want int64 1024", v, v)
	}
}

func TestYAMLLoader_Invalid(t *testing.T) {
	tests := map[string]string{
		"syntax": "storage: [unclosed",
		"scalar": "just a string",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			memfs := newFS(t, map[string]string{"/c.yaml": content})
			_, err := NewYAMLLoaderWithFS(memfs, "/c.yaml").Load()
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("expected *ParseError, got %v", err)
			}
		})
	}
}

func TestYAMLLoader_Empty(t *testing.T) {
	memfs := newFS(t, map[string]string{"/c.yaml": ""})
	config, err := NewYAMLLoaderWithFS(memfs, "/c.yaml").Load()
	if err != nil || len(config) != 0 {
		t.Errorf("Load(empty) = %v, %v", config, err)
	}
}

func TestPropertiesLoader_Load(t *testing.T) {
	memfs := newFS(t, map[string]string{"/ws/.fragments.cfg": `
# legacy settings
fragments.folder = .old-store
! another comment
snippetStoragePath: .snippets
log.level=debug
`})
	aliases := map[string]string{
		"fragments.folder":   "storage.folder",
		"snippetStoragePath": "legacy.folder",
	}

	config, err := NewPropertiesLoaderWithFS(memfs, "/ws/.fragments.cfg", aliases).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	checks := map[string]string{
		"storage.folder": ".old-store",
		"legacy.folder":  ".snippets",
		"log.level":      "debug",
	}
	for path, want := range checks {
		if v, _ := GetByPath(config, path); v != want {
			t.Errorf("%s = %v, want %q", path, v, want)
		}
	}
}

func TestPropertiesLoader_Invalid(t *testing.T) {
	memfs := newFS(t, map[string]string{"/c.cfg": "ok = 1\nnot a pair\n"})
	_, err := NewPropertiesLoaderWithFS(memfs, "/c.cfg", nil).Load()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) || parseErr.Line != 2 {
		t.Errorf("Load = %v, want ParseError on line 2", err)
	}
}

func TestEnvLoader_Load(t *testing.T) {
	l := NewEnvLoader("FRAGMENTS_")
	l.environ = func() []string {
		return []string{
			"HOME=/root",
			"FRAGMENTS_LOG_LEVEL=warn",
			"FRAGMENTS_REDIS_URL=redis://cache:6379/0",
			"FRAGMENTS_SCAN_MAX_FILE_SIZE=2048",
			"FRAGMENTS_VARIANTS_NAMES=[user, maintainer, reviewer]",
			"FRAGMENTS_WATCH_DEBOUNCE=250ms",
		}
	}

	config, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		path string
		want any
	}{
		{"log.level", "warn"},
		{"storage.redis.url", "redis://cache:6379/0"},
		{"scan.max_file_size", int64(2048)},
		{"variants.names", []any{"user", "maintainer", "reviewer"}},
		{"watch.debounce", "250ms"},
	}
	for _, tt := range tests {
		got, ok := GetByPath(config, tt.path)
		if !ok || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s = %#v, want %#v", tt.path, got, tt.want)
		}
	}
	if _, ok := config["home"]; ok {
		t.Error("unprefixed variable leaked into config")
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", ""},
		{"true", true},
		{"OFF", false},
		{"42", int64(42)},
		{"1", int64(1)},
		{"fragments:", "fragments:"},
		{"[a]", []any{"a"}},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name     string
		dst      map[string]any
		src      map[string]any
		expected map[string]any
	}{
		{
			name:     "nil dst",
			dst:      nil,
			src:      map[string]any{"a": 1},
			expected: map[string]any{"a": 1},
		},
		{
			name:     "nil src",
			dst:      map[string]any{"a": 1},
			src:      nil,
			expected: map[string]any{"a": 1},
		},
		{
			name:     "src overrides dst",
			dst:      map[string]any{"a": 1},
			src:      map[string]any{"a": 2},
			expected: map[string]any{"a": 2},
		},
		{
			name: "nested merge",
			dst: map[string]any{
				"storage": map[string]any{"folder": ".fragments"},
			},
			src: map[string]any{
				"storage": map[string]any{"backend": "redis"},
			},
			expected: map[string]any{
				"storage": map[string]any{"folder": ".fragments", "backend": "redis"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DeepMerge(tt.dst, tt.src)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("DeepMerge() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestClone(t *testing.T) {
	original := map[string]any{
		"string": "value",
		"nested": map[string]any{"deep": "data"},
		"array":  []any{"a", "b", "c"},
	}

	cloned := Clone(original)

	original["string"] = "changed"
	original["nested"].(map[string]any)["deep"] = "modified"
	original["array"].([]any)[0] = "x"

	if cloned["string"] != "value" {
		t.Error("clone was affected by original modification")
	}
	if cloned["nested"].(map[string]any)["deep"] != "data" {
		t.Error("nested clone was affected by original modification")
	}
	if cloned["array"].([]any)[0] != "a" {
		t.Error("array clone was affected by original modification")
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) should return nil")
	}
}
