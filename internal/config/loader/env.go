package loader

import (
	"os"
	"strconv"
	"strings"
)

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "FRAGMENTS_")
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "FRAGMENTS_").
func NewEnvLoader(prefix string) *EnvLoader {
	return NewEnvLoaderWithMapping(prefix, defaultEnvMapping())
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		environ: os.Environ,
	}
}

// defaultEnvMapping returns the default environment variable mappings.
// Variables not listed are mapped by envToPath.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"FRAGMENTS_LOG_LEVEL":    "log.level",
		"FRAGMENTS_BACKEND":      "storage.backend",
		"FRAGMENTS_FOLDER":       "storage.folder",
		"FRAGMENTS_PATTERN":      "storage.pattern",
		"FRAGMENTS_REDIS_URL":    "storage.redis.url",
		"FRAGMENTS_REDIS_PREFIX": "storage.redis.prefix",
		"FRAGMENTS_VARIANT":      "variants.default",
	}
}

// Load reads environment variables and returns a configuration map.
// Empty values are treated as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			path = l.envToPath(name)
		}
		if path == "" {
			continue
		}
		SetByPath(config, path, parseValue(value))
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// envToPath converts FRAGMENTS_SCAN_MAX_FILE_SIZE to scan.max_file_size:
// the first component is the section, the rest is the snake_case key.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok || section == "" || key == "" {
		return name
	}
	return section + "." + key
}

// parseValue converts booleans and integers; everything else stays a
// string. Durations are left as strings and parsed by the typed config.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return splitList(s[1 : len(s)-1])
	}
	return s
}

// splitList parses "[a, b]" style lists.
func splitList(s string) []any {
	var out []any
	for _, item := range strings.Split(s, ",") {
		item = strings.Trim(strings.TrimSpace(item), `"'`)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}
