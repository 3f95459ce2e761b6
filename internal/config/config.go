package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Config is the host configuration.
type Config struct {
	Packages  PackagesConfig `toml:"packages"`
	Settings  SettingsConfig `toml:"settings"`
	Logging   LoggingConfig  `toml:"logging"`
	Lua       LuaConfig      `toml:"lua"`
	Metrics   MetricsConfig  `toml:"metrics"`
	Constants map[string]any `toml:"constants"`
}

// PackagesConfig controls package discovery and loading.
type PackagesConfig struct {
	// Dirs are the packages directories, each listed for package subdirectories.
	Dirs []string `toml:"dirs"`

	// AllowOverride reloads packages whose name is already registered.
	AllowOverride bool `toml:"allow_override"`

	// RegisterOnCompletion registers packages only once initialized.
	RegisterOnCompletion bool `toml:"register_on_completion"`

	// WaitTimeout bounds the wait for outstanding completions. Zero waits forever.
	WaitTimeout Duration `toml:"wait_timeout"`
}

// SettingsConfig locates the settings file.
type SettingsConfig struct {
	Path     string   `toml:"path"`
	Watch    bool     `toml:"watch"`
	Debounce Duration `toml:"debounce"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json, logfmt
	Caller bool   `toml:"caller"`
}

// LuaConfig configures Lua execution.
type LuaConfig struct {
	// CallTimeout bounds each call into a Lua state. Zero disables it.
	CallTimeout Duration `toml:"call_timeout"`
}

// MetricsConfig configures loader metrics.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Duration is a time.Duration read from a string such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Packages: PackagesConfig{
			Dirs: DefaultPackagesDirs(),
		},
		Settings: SettingsConfig{
			Path:     filepath.Join(configDir(), "settings.json"),
			Debounce: Duration{100 * time.Millisecond},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Lua: LuaConfig{
			CallTimeout: Duration{5 * time.Second},
		},
		Metrics: MetricsConfig{
			Namespace: "luashell",
		},
		Constants: map[string]any{},
	}
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// DefaultPackagesDirs returns the default packages directories.
func DefaultPackagesDirs() []string {
	dirs := make([]string, 0, 2)

	// User packages: ~/.config/luashell/packages/
	dirs = append(dirs, filepath.Join(configDir(), "packages"))

	// Project packages: ./packages/
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, "packages"))
	}

	return dirs
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "luashell")
	}
	return ".luashell"
}

// Load builds the configuration from defaults, the file at path and the
// process environment. An empty path reads DefaultPath, which may be absent;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if err := LoadFile(OSFS{}, path, cfg); err != nil {
		if explicit || !errors.Is(err, ErrFileNotFound) {
			return nil, err
		}
	}

	if err := LoadEnv(cfg); err != nil {
		return nil, err
	}

	cfg.ExpandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandPaths expands environment variables and a leading "~" in paths.
func (c *Config) ExpandPaths() {
	for i, d := range c.Packages.Dirs {
		c.Packages.Dirs[i] = expandPath(d)
	}
	c.Settings.Path = expandPath(c.Settings.Path)
}

func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true, "logfmt": true}
)

// Validate checks field ranges and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, &ValidationError{Path: "logging.level", Message: "must be debug, info, warn or error", Value: c.Logging.Level})
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, &ValidationError{Path: "logging.format", Message: "must be text, json or logfmt", Value: c.Logging.Format})
	}
	for i, d := range c.Packages.Dirs {
		if strings.TrimSpace(d) == "" {
			errs = append(errs, &ValidationError{Path: fmt.Sprintf("packages.dirs[%d]", i), Message: "must not be empty", Value: d})
		}
	}

	durations := map[string]Duration{
		"packages.wait_timeout": c.Packages.WaitTimeout,
		"settings.debounce":     c.Settings.Debounce,
		"lua.call_timeout":      c.Lua.CallTimeout,
	}
	paths := make([]string, 0, len(durations))
	for p := range durations {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if d := durations[p]; d.Duration < 0 {
			errs = append(errs, &ValidationError{Path: p, Message: "must not be negative", Value: d.Duration})
		}
	}

	if c.Settings.Watch && c.Settings.Path == "" {
		errs = append(errs, &ValidationError{Path: "settings.watch", Message: "requires settings.path", Value: true})
	}

	return errors.Join(errs...)
}
