package loader

import (
	"bufio"
	"bytes"
	"strings"
)

// PropertiesLoader loads the legacy key=value configuration file.
//
// Lines starting with '#' or '!' are comments. Keys are mapped to config
// paths through aliases; unknown keys are kept as dotted paths.
type PropertiesLoader struct {
	fs      FileSystem
	path    string
	aliases map[string]string
}

// NewPropertiesLoaderWithFS creates a properties loader. aliases maps
// legacy keys to config paths.
func NewPropertiesLoaderWithFS(fsys FileSystem, path string, aliases map[string]string) *PropertiesLoader {
	return &PropertiesLoader{
		fs:      fsys,
		path:    path,
		aliases: aliases,
	}
}

// Load reads configuration from the configured path.
func (l *PropertiesLoader) Load() (map[string]any, error) {
	data, err := readOptional(l.fs, l.path)
	if err != nil || data == nil {
		return nil, err
	}
	return l.parse(data)
}

func (l *PropertiesLoader) parse(data []byte) (map[string]any, error) {
	config := make(map[string]any)

	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' || text[0] == '!' {
			continue
		}

		sep := strings.IndexAny(text, "=:")
		if sep <= 0 {
			return nil, &ParseError{Path: l.path, Line: line, Message: "expected key=value"}
		}
		key := strings.TrimSpace(text[:sep])
		value := strings.TrimSpace(text[sep+1:])

		path := key
		if alias, ok := l.aliases[key]; ok {
			path = alias
		}
		SetByPath(config, path, value)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Path: l.path, Message: err.Error(), Err: err}
	}
	return config, nil
}
