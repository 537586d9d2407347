// Package config loads viewer configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete meshview configuration.
type Config struct {
	Event     EventConfig     `mapstructure:"event"`
	Selection SelectionConfig `mapstructure:"selection"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Session   SessionConfig   `mapstructure:"session"`
	Scripts   ScriptsConfig   `mapstructure:"scripts"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	UI        UIConfig        `mapstructure:"ui"`
}

// EventConfig controls the event bus.
type EventConfig struct {
	// QueueCapacity bounds how many events a single dispatch cycle may queue.
	QueueCapacity int `mapstructure:"queue_capacity"`
}

// SelectionConfig controls selection behavior.
type SelectionConfig struct {
	// PickDebounceMs is the minimum interval between accepted scene picks.
	PickDebounceMs int `mapstructure:"pick_debounce_ms"`
}

// WatchConfig controls the on-disk model watcher.
type WatchConfig struct {
	// Enabled turns on automatic reload when the model file changes.
	Enabled bool `mapstructure:"enabled"`
	// DebounceMs coalesces bursts of filesystem events into one reload.
	DebounceMs int `mapstructure:"debounce_ms"`
}

// CatalogConfig controls the model metadata database.
type CatalogConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is the SQLite file. Empty means <config dir>/catalog.db.
	Path string `mapstructure:"path"`
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	// Restore reopens the last model and selection on startup.
	Restore bool `mapstructure:"restore"`
	// Path is the session file. Empty means <config dir>/session.json.
	Path string `mapstructure:"path"`
}

// ScriptsConfig controls Lua event hooks.
type ScriptsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Dir holds *.lua hook scripts. Empty means <config dir>/scripts.
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `mapstructure:"level"`
	// File is the log destination. Empty logs to stderr.
	File string `mapstructure:"file"`
}

// UIConfig controls the terminal interface.
type UIConfig struct {
	// TreeWidth is the width of the part tree panel in columns.
	TreeWidth int `mapstructure:"tree_width"`
}

// PickDebounce returns the pick debounce as a time.Duration.
func (s *SelectionConfig) PickDebounce() time.Duration {
	return time.Duration(s.PickDebounceMs) * time.Millisecond
}

// Debounce returns the watch debounce as a time.Duration.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Event: EventConfig{
			QueueCapacity: 50,
		},
		Selection: SelectionConfig{
			PickDebounceMs: 50,
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 250,
		},
		Catalog: CatalogConfig{
			Enabled: true,
			Path:    "",
		},
		Session: SessionConfig{
			Restore: true,
			Path:    "",
		},
		Scripts: ScriptsConfig{
			Enabled: false,
			Dir:     "",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		UI: UIConfig{
			TreeWidth: 36,
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("event.queue_capacity", defaults.Event.QueueCapacity)
	v.SetDefault("selection.pick_debounce_ms", defaults.Selection.PickDebounceMs)
	v.SetDefault("watch.enabled", defaults.Watch.Enabled)
	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
	v.SetDefault("catalog.enabled", defaults.Catalog.Enabled)
	v.SetDefault("catalog.path", defaults.Catalog.Path)
	v.SetDefault("session.restore", defaults.Session.Restore)
	v.SetDefault("session.path", defaults.Session.Path)
	v.SetDefault("scripts.enabled", defaults.Scripts.Enabled)
	v.SetDefault("scripts.dir", defaults.Scripts.Dir)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("ui.tree_width", defaults.UI.TreeWidth)
}

// Load reads configuration from the given file (optional), the default
// config directory and MESHVIEW_* environment variables.
func Load(file string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("MESHVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Event.QueueCapacity <= 0 {
		return fmt.Errorf("event.queue_capacity must be positive, got %d", c.Event.QueueCapacity)
	}
	if c.Selection.PickDebounceMs < 0 {
		return fmt.Errorf("selection.pick_debounce_ms must not be negative, got %d", c.Selection.PickDebounceMs)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMs)
	}
	if c.UI.TreeWidth < 20 || c.UI.TreeWidth > 120 {
		return fmt.Errorf("ui.tree_width must be between 20 and 120, got %d", c.UI.TreeWidth)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// Dir returns the user's meshview config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "meshview")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".meshview"
	}
	return filepath.Join(home, ".config", "meshview")
}

// CatalogPath resolves the catalog database location.
func (c *Config) CatalogPath() string {
	if c.Catalog.Path != "" {
		return c.Catalog.Path
	}
	return filepath.Join(Dir(), "catalog.db")
}

// SessionPath resolves the session file location.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return c.Session.Path
	}
	return filepath.Join(Dir(), "session.json")
}

// ScriptsDir resolves the Lua hook script directory.
func (c *Config) ScriptsDir() string {
	if c.Scripts.Dir != "" {
		return c.Scripts.Dir
	}
	return filepath.Join(Dir(), "scripts")
}
