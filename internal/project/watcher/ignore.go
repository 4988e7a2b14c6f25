package watcher

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/match"

	"github.com/dshills/fragments/internal/project/vfs"
)

// IgnorePatterns manages gitignore-style ignore rules. It supports:
//   - *.log                - files ending in .log at any depth
//   - /build/              - the build directory at the root
//   - **/node_modules/**   - node_modules anywhere
//   - !keep.log            - negation; later rules override earlier ones
//
// Globs are matched with tidwall/match, where '*' also matches '/'.
type IgnorePatterns struct {
	mu       sync.RWMutex
	patterns []ignorePattern
}

type ignorePattern struct {
	original string
	pattern  string
	negation bool
	dirOnly  bool
	rooted   bool
}

// NewIgnorePatterns creates an empty matcher.
func NewIgnorePatterns(patterns ...string) *IgnorePatterns {
	ip := &IgnorePatterns{}
	ip.AddPatterns(patterns)
	return ip
}

// AddPattern adds one gitignore-style pattern. Blank lines and comments
// are skipped.
func (ip *IgnorePatterns) AddPattern(pattern string) {
	pattern = strings.TrimRight(pattern, " \t\r")
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return
	}

	p := ignorePattern{original: pattern}
	if strings.HasPrefix(pattern, "!") {
		p.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.rooted = true
		pattern = pattern[1:]
	}
	if pattern == "" {
		return
	}
	p.pattern = pattern

	ip.mu.Lock()
	ip.patterns = append(ip.patterns, p)
	ip.mu.Unlock()
}

// AddPatterns adds multiple patterns.
func (ip *IgnorePatterns) AddPatterns(patterns []string) {
	for _, pattern := range patterns {
		ip.AddPattern(pattern)
	}
}

// AddFromFile loads patterns from a file such as .gitignore.
func (ip *IgnorePatterns) AddFromFile(fsys vfs.VFS, path string) error {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		ip.AddPattern(scanner.Text())
	}
	return scanner.Err()
}

// Match reports whether path should be ignored.
func (ip *IgnorePatterns) Match(path string, isDir bool) bool {
	return ip.MatchRelative(path, "", isDir)
}

// MatchRelative reports whether path should be ignored, with rooted
// patterns anchored at basePath. Files under an ignored directory are
// ignored too.
func (ip *IgnorePatterns) MatchRelative(path, basePath string, isDir bool) bool {
	relPath := path
	if basePath != "" {
		if rel, err := filepath.Rel(basePath, path); err == nil {
			relPath = rel
		}
	}
	relPath = strings.TrimPrefix(strings.TrimPrefix(filepath.ToSlash(relPath), "./"), "/")

	ip.mu.RLock()
	defer ip.mu.RUnlock()

	if len(ip.patterns) == 0 {
		return false
	}

	// An ignored ancestor directory ignores everything below it.
	parts := strings.Split(relPath, "/")
	for i := 1; i < len(parts); i++ {
		if ip.matchLocked(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return ip.matchLocked(relPath, isDir)
}

func (ip *IgnorePatterns) matchLocked(relPath string, isDir bool) bool {
	ignored := false
	for _, p := range ip.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if matchPattern(p, relPath) {
			ignored = !p.negation
		}
	}
	return ignored
}

func matchPattern(p ignorePattern, relPath string) bool {
	pattern := p.pattern

	if strings.Contains(pattern, "**") {
		return matchDoubleGlob(pattern, relPath)
	}

	if p.rooted {
		if strings.Contains(pattern, "/") {
			return match.Match(relPath, pattern)
		}
		first, _, _ := strings.Cut(relPath, "/")
		return match.Match(first, pattern)
	}

	if !strings.Contains(pattern, "/") {
		return match.Match(baseName(relPath), pattern)
	}

	// Patterns with a slash match any path suffix.
	parts := strings.Split(relPath, "/")
	for i := range parts {
		if match.Match(strings.Join(parts[i:], "/"), pattern) {
			return true
		}
	}
	return false
}

// matchDoubleGlob handles ** patterns that match any number of path components.
func matchDoubleGlob(pattern, path string) bool {
	pathParts := strings.Split(path, "/")

	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		if middle, ok := strings.CutSuffix(rest, "/**"); ok {
			for _, part := range pathParts {
				if match.Match(part, middle) {
					return true
				}
			}
			return false
		}
		for i := range pathParts {
			if match.Match(strings.Join(pathParts[i:], "/"), rest) {
				return true
			}
		}
		return false
	}

	prefix, suffix, _ := strings.Cut(pattern, "**")
	prefix = strings.TrimSuffix(prefix, "/")
	suffix = strings.TrimPrefix(suffix, "/")

	if prefix != "" && path != prefix && !strings.HasPrefix(path, prefix+"/") {
		return false
	}
	if suffix == "" {
		return true
	}
	for i := range pathParts {
		if match.Match(strings.Join(pathParts[i:], "/"), suffix) {
			return true
		}
	}
	return false
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Count returns the number of patterns.
func (ip *IgnorePatterns) Count() int {
	ip.mu.RLock()
	defer ip.mu.RUnlock()
	return len(ip.patterns)
}

// Patterns returns a copy of all patterns as written.
func (ip *IgnorePatterns) Patterns() []string {
	ip.mu.RLock()
	defer ip.mu.RUnlock()

	patterns := make([]string, len(ip.patterns))
	for i, p := range ip.patterns {
		patterns[i] = p.original
	}
	return patterns
}

// DefaultIgnorePatterns are directories that never hold fragment sources.
var DefaultIgnorePatterns = []string{
	".git/",
	".hg/",
	".svn/",
	".fragments/",
	".snippets/",
	".idea/",
	".vscode/",
	"node_modules/",
	"vendor/",
	"__pycache__/",
	"*.swp",
	"*~",
	".DS_Store",
}
