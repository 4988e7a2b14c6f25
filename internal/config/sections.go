package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/fragments/internal/fragment/store"
)

// Storage backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// StorageConfig provides type-safe access to storage settings.
type StorageConfig struct {
	// Backend is "file" or "redis".
	Backend string

	// Folder is the unit folder, relative to the workspace root.
	Folder string

	// Pattern names unit files; it contains "{id}" once.
	Pattern string

	// RedisURL is the connection URL for the redis backend.
	RedisURL string

	// RedisPrefix is prepended to every redis key.
	RedisPrefix string
}

// LegacyConfig locates data written by the older snippet layout.
type LegacyConfig struct {
	Folder string
}

// VariantsConfig provides type-safe access to variant settings.
type VariantsConfig struct {
	// Names is the toggle cycle, in order.
	Names []string

	// Default is the variant active when no state is saved.
	Default string

	// Labels maps variant names to display labels.
	Labels map[string]string
}

// ScanConfig controls which workspace files are scanned for fragments.
type ScanConfig struct {
	// Include is a list of glob patterns matched against file names.
	Include []string

	// Ignore is a list of gitignore-style patterns.
	Ignore []string

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
}

// WatchConfig provides type-safe access to watcher settings.
type WatchConfig struct {
	// Debounce is the quiet period before a changed file is processed.
	Debounce time.Duration
}

// LoggingConfig provides type-safe access to logging settings.
type LoggingConfig struct {
	// Level is the logging verbosity level ("debug", "info", "warn", "error").
	Level string
}

// Storage returns type-safe access to storage settings.
func (c *Config) Storage() StorageConfig {
	return StorageConfig{
		Backend:     c.getStringOr("storage.backend", BackendFile),
		Folder:      c.getStringOr("storage.folder", store.DefaultFolder),
		Pattern:     c.getStringOr("storage.pattern", store.DefaultPattern),
		RedisURL:    c.getStringOr("storage.redis.url", "redis://localhost:6379/0"),
		RedisPrefix: c.getStringOr("storage.redis.prefix", store.DefaultRedisPrefix),
	}
}

// Legacy returns the legacy snippet settings.
func (c *Config) Legacy() LegacyConfig {
	return LegacyConfig{
		Folder: c.getStringOr("legacy.folder", store.LegacyFolder),
	}
}

// Variants returns type-safe access to variant settings.
func (c *Config) Variants() VariantsConfig {
	names := c.getStringSliceOr("variants.names", []string{"user", "maintainer"})
	def := c.getStringOr("variants.default", "")
	if def == "" && len(names) > 0 {
		def = names[0]
	}
	return VariantsConfig{
		Names:   names,
		Default: def,
		Labels:  c.getStringMapOr("variants.labels", nil),
	}
}

// Scan returns type-safe access to scan settings.
func (c *Config) Scan() ScanConfig {
	return ScanConfig{
		Include:     c.getStringSliceOr("scan.include", nil),
		Ignore:      c.getStringSliceOr("scan.ignore", nil),
		MaxFileSize: c.getIntOr("scan.max_file_size", 4<<20),
	}
}

// Watch returns type-safe access to watcher settings.
func (c *Config) Watch() WatchConfig {
	return WatchConfig{
		Debounce: c.getDurationOr("watch.debounce", 150*time.Millisecond),
	}
}

// Logging returns type-safe access to logging settings.
func (c *Config) Logging() LoggingConfig {
	return LoggingConfig{
		Level: c.getStringOr("log.level", "info"),
	}
}

// Validate checks the typed sections and returns every problem found,
// joined. Type errors recorded while reading sections are included.
func (c *Config) Validate() error {
	var errs []error

	st := c.Storage()
	switch st.Backend {
	case BackendFile:
		if st.Folder == "" {
			errs = append(errs, &ValidationError{Path: "storage.folder", Message: "must not be empty", Value: st.Folder, Code: ErrCodeRequiredMissing})
		}
		if err := store.ValidatePattern(st.Pattern); err != nil {
			errs = append(errs, &ValidationError{Path: "storage.pattern", Message: err.Error(), Value: st.Pattern, Code: ErrCodePatternMismatch})
		}
	case BackendRedis:
		if st.RedisURL == "" {
			errs = append(errs, &ValidationError{Path: "storage.redis.url", Message: "must not be empty", Value: st.RedisURL, Code: ErrCodeRequiredMissing})
		}
	default:
		errs = append(errs, &ValidationError{Path: "storage.backend", Message: "must be file or redis", Value: st.Backend, Code: ErrCodeInvalidEnum})
	}

	v := c.Variants()
	if len(v.Names) == 0 {
		errs = append(errs, &ValidationError{Path: "variants.names", Message: "at least one variant is required", Value: v.Names, Code: ErrCodeRequiredMissing})
	}
	seen := make(map[string]bool, len(v.Names))
	for _, name := range v.Names {
		if strings.TrimSpace(name) == "" || seen[name] {
			errs = append(errs, &ValidationError{Path: "variants.names", Message: "names must be non-empty and unique", Value: name, Code: ErrCodeInvalidEnum})
		}
		seen[name] = true
	}
	if len(v.Names) > 0 && !slices.Contains(v.Names, v.Default) {
		errs = append(errs, &ValidationError{Path: "variants.default", Message: "must be one of " + strings.Join(v.Names, ", "), Value: v.Default, Code: ErrCodeInvalidEnum})
	}

	if sc := c.Scan(); sc.MaxFileSize <= 0 {
		errs = append(errs, &ValidationError{Path: "scan.max_file_size", Message: "must be positive", Value: sc.MaxFileSize, Code: ErrCodeOutOfRange})
	}
	if w := c.Watch(); w.Debounce < 0 {
		errs = append(errs, &ValidationError{Path: "watch.debounce", Message: "must not be negative", Value: w.Debounce, Code: ErrCodeOutOfRange})
	}
	if lvl := c.Logging().Level; lvl != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(lvl)); err != nil {
			errs = append(errs, &ValidationError{Path: "log.level", Message: "unknown level", Value: lvl, Code: ErrCodeInvalidEnum})
		}
	}

	for path, err := range c.ConfigErrors() {
		errs = append(errs, &ValidationError{Path: path, Message: err.Error(), Code: ErrCodeTypeMismatch})
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidationFailed, errors.Join(errs...))
}

// These methods only return the default for ErrSettingNotFound.
// Type errors are recorded and return the default; Validate reports them.

func (c *Config) getStringOr(path string, defaultValue string) string {
	v, err := c.GetString(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getIntOr(path string, defaultValue int64) int64 {
	v, err := c.GetInt(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getDurationOr(path string, defaultValue time.Duration) time.Duration {
	v, err := c.GetDuration(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getStringSliceOr(path string, defaultValue []string) []string {
	v, err := c.GetStringSlice(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		v = defaultValue
	}
	// Return a copy to enforce snapshot guarantee
	result := make([]string, len(v))
	copy(result, v)
	return result
}

func (c *Config) getStringMapOr(path string, defaultValue map[string]string) map[string]string {
	v, err := c.GetStringMap(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		v = defaultValue
	}
	result := make(map[string]string, len(v))
	for k, s := range v {
		result[k] = s
	}
	return result
}

// recordConfigError stores configuration errors for later retrieval.
// Only the first error for each path is recorded to preserve the original cause.
func (c *Config) recordConfigError(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configErrors == nil {
		c.configErrors = make(map[string]error)
	}
	if _, exists := c.configErrors[path]; !exists {
		c.configErrors[path] = err
	}
}

// ConfigErrors returns any configuration errors encountered during access.
func (c *Config) ConfigErrors() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.configErrors == nil {
		return nil
	}
	result := make(map[string]error, len(c.configErrors))
	for k, v := range c.configErrors {
		result[k] = v
	}
	return result
}
