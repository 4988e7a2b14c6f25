// Package config loads the layered fragments configuration.
//
// Layers, lowest priority first: built-in defaults, the legacy
// .fragments.cfg properties file, .fragments.toml, .fragments.yaml, an
// explicit file given with WithFile, FRAGMENTS_* environment variables,
// and finally values set at runtime with Set (command-line flags).
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dshills/fragments/internal/config/loader"
	"github.com/dshills/fragments/internal/fragment/store"
)

// Well-known file names, relative to the workspace root.
const (
	LegacyFile = ".fragments.cfg"
	TOMLFile   = ".fragments.toml"
	YAMLFile   = ".fragments.yaml"
	EnvPrefix  = "FRAGMENTS_"
)

// legacyAliases maps keys of the old properties files to config paths.
var legacyAliases = map[string]string{
	"fragments.folder":   "storage.folder",
	"snippetStoragePath": "legacy.folder",
}

// Config provides access to the merged configuration.
type Config struct {
	mu sync.RWMutex

	fs       loader.FileSystem
	root     string
	explicit string
	envPref  string

	// merged holds every layer except overrides.
	merged    map[string]any
	overrides map[string]any
	sources   []string

	// configErrors stores type errors met while reading typed sections.
	configErrors map[string]error
}

// Option configures a Config instance.
type Option func(*Config)

// WithFS sets the file system config files are read from.
func WithFS(fsys loader.FileSystem) Option {
	return func(c *Config) {
		c.fs = fsys
	}
}

// WithRoot sets the workspace root searched for config files.
func WithRoot(dir string) Option {
	return func(c *Config) {
		c.root = dir
	}
}

// WithFile adds an explicit config file above the workspace files.
func WithFile(path string) Option {
	return func(c *Config) {
		c.explicit = path
	}
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPref = prefix
	}
}

// New creates a Config holding only the defaults. Call Load to read the
// other layers.
func New(opts ...Option) *Config {
	c := &Config{
		envPref:   EnvPrefix,
		merged:    defaultConfig(),
		overrides: make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fs == nil {
		c.fs = loader.DefaultFS()
	}
	if c.root == "" {
		c.root = "."
	}
	return c
}

// Load reads all configuration sources, replacing previously loaded
// layers. Overrides made with Set are kept.
func (c *Config) Load(_ context.Context) error {
	type layer struct {
		name string
		l    loader.Loader
	}
	layers := []layer{
		{LegacyFile, loader.NewPropertiesLoaderWithFS(c.fs, filepath.Join(c.root, LegacyFile), legacyAliases)},
		{TOMLFile, loader.NewTOMLLoaderWithFS(c.fs, filepath.Join(c.root, TOMLFile))},
		{YAMLFile, loader.NewYAMLLoaderWithFS(c.fs, filepath.Join(c.root, YAMLFile))},
	}
	if c.explicit != "" {
		l, err := fileLoader(c.fs, c.explicit)
		if err != nil {
			return err
		}
		layers = append(layers, layer{c.explicit, l})
	}
	layers = append(layers, layer{"env", loader.NewEnvLoader(c.envPref)})

	merged := defaultConfig()
	sources := []string{"defaults"}
	for _, ly := range layers {
		data, err := ly.l.Load()
		if err != nil {
			return fmt.Errorf("loading %s: %w", ly.name, err)
		}
		if len(data) == 0 {
			continue
		}
		merged = loader.DeepMerge(merged, data)
		sources = append(sources, ly.name)
	}

	c.mu.Lock()
	c.merged = merged
	c.sources = sources
	c.configErrors = nil
	c.mu.Unlock()
	return nil
}

// fileLoader picks a loader by file extension.
func fileLoader(fsys loader.FileSystem, path string) (loader.Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return loader.NewTOMLLoaderWithFS(fsys, path), nil
	case ".yaml", ".yml":
		return loader.NewYAMLLoaderWithFS(fsys, path), nil
	case ".cfg", ".properties":
		return loader.NewPropertiesLoaderWithFS(fsys, path, legacyAliases), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Root returns the workspace root the config was read from.
func (c *Config) Root() string {
	return c.root
}

// Sources returns the names of the layers that contributed values.
func (c *Config) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.sources))
	copy(out, c.sources)
	return out
}

// Get returns the value at the given path from the merged configuration.
func (c *Config) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := loader.GetByPath(c.overrides, path); ok {
		return v, true
	}
	return loader.GetByPath(c.merged, path)
}

// Set overrides the value at path above every loaded layer.
func (c *Config) Set(path string, value any) error {
	if path == "" || strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") || strings.Contains(path, "..") {
		return ErrInvalidPath
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	loader.SetByPath(c.overrides, path, value)
	return nil
}

// Merged returns a deep copy of the effective configuration.
func (c *Config) Merged() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return loader.DeepMerge(loader.Clone(c.merged), loader.Clone(c.overrides))
}

// GetString returns a string value at the given path.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetInt returns an integer value at the given path.
func (c *Config) GetInt(path string) (int64, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		return int64(val), nil
	default:
		return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
	}
}

// GetBool returns a boolean value at the given path.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	b, ok := v.(bool)
	if !ok {
		return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
	}
	return b, nil
}

// GetDuration returns a duration. Strings use time.ParseDuration syntax;
// bare integers are milliseconds.
func (c *Config) GetDuration(path string) (time.Duration, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, &TypeError{Path: path, Expected: "duration", Actual: fmt.Sprintf("string %q", val)}
		}
		return d, nil
	case int64:
		return time.Duration(val) * time.Millisecond, nil
	case int:
		return time.Duration(val) * time.Millisecond, nil
	case time.Duration:
		return val, nil
	default:
		return 0, &TypeError{Path: path, Expected: "duration", Actual: typeName(v)}
	}
}

// GetStringSlice returns a string slice at the given path. A single
// string is treated as a one-element list.
func (c *Config) GetStringSlice(path string) ([]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}

	switch val := v.(type) {
	case string:
		return []string{val}, nil
	case []string:
		return val, nil
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
			}
			result[i] = s
		}
		return result, nil
	default:
		return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
	}
}

// GetStringMap returns a map of strings at the given path.
func (c *Config) GetStringMap(path string) (map[string]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &TypeError{Path: path, Expected: "map", Actual: typeName(v)}
	}
	out := make(map[string]string, len(m))
	for k, item := range m {
		s, ok := item.(string)
		if !ok {
			return nil, &TypeError{Path: path + "." + k, Expected: "string", Actual: typeName(item)}
		}
		out[k] = s
	}
	return out, nil
}

// defaultConfig returns the default configuration values.
func defaultConfig() map[string]any {
	return map[string]any{
		"storage": map[string]any{
			"backend": "file",
			"folder":  store.DefaultFolder,
			"pattern": store.DefaultPattern,
			"redis": map[string]any{
				"url":    "redis://localhost:6379/0",
				"prefix": store.DefaultRedisPrefix,
			},
		},
		"legacy": map[string]any{
			"folder": store.LegacyFolder,
		},
		"variants": map[string]any{
			"names":   []any{"user", "maintainer"},
			"default": "user",
			"labels": map[string]any{
				"user":       "User",
				"maintainer": "Maintainer",
			},
		},
		"scan": map[string]any{
			"include":       []any{"*.go", "*.c", "*.h", "*.cc", "*.cpp", "*.hpp", "*.java", "*.kt", "*.rs", "*.ts", "*.js", "*.cs", "*.swift"},
			"ignore":        []any{".git/", ".fragments/", ".snippets/", "node_modules/", "vendor/"},
			"max_file_size": int64(4 << 20),
		},
		"watch": map[string]any{
			"debounce": "150ms",
		},
		"log": map[string]any{
			"level": "info",
		},
	}
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}
