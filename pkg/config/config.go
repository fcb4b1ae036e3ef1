// Package config handles loading and saving blockmap configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/blockmap/config.yaml
//   - Data:    ~/.local/share/blockmap/ (graph index database)
//   - State:   ~/.local/state/blockmap/ (logs)
//
// Values in the file are overlaid by BM_* environment variables; a double
// underscore separates nested keys (BM_VIEW__MAX_WIDTH=60).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/vanderheijden86/blockmap/pkg/keys"
	"github.com/vanderheijden86/blockmap/pkg/logging"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

const (
	appName   = "blockmap"
	envPrefix = "BM_"
)

// DefaultExcludes are skipped when indexing a graph directory unless the
// config names its own patterns.
var DefaultExcludes = []string{"logseq/**", "**/.recycle/**", "**/bak/**", ".git/**"}

// ServerConfig controls `bm serve`.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty" koanf:"addr"`
}

// Config is the top-level configuration.
type Config struct {
	GraphDir    string              `yaml:"graph_dir,omitempty" koanf:"graph_dir"`
	Database    string              `yaml:"database,omitempty" koanf:"database"`
	Exclude     []string            `yaml:"exclude,omitempty" koanf:"exclude"`
	Concurrency int                 `yaml:"concurrency,omitempty" koanf:"concurrency"`
	Host        model.HostConfig    `yaml:"host" koanf:"host"`
	Keys        map[string][]string `yaml:"keys,omitempty" koanf:"keys"`
	Theme       string              `yaml:"theme,omitempty" koanf:"theme"`
	View        render.ViewOptions  `yaml:"view" koanf:"view"`
	LogLevel    string              `yaml:"log_level,omitempty" koanf:"log_level"`
	LogFile     string              `yaml:"log_file,omitempty" koanf:"log_file"`
	Server      ServerConfig        `yaml:"server,omitempty" koanf:"server"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 32,
		Host: model.HostConfig{
			PreferredFormat: model.FormatMarkdown,
			DateFormat:      "MMM do, yyyy",
			AssetPrefix:     "..",
		},
		Theme:    render.ThemeAuto,
		View:     render.DefaultViewOptions(),
		LogLevel: "info",
		Server:   ServerConfig{Addr: "127.0.0.1:7878"},
	}
}

// ConfigDir returns the XDG config directory for blockmap.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DataDir returns the XDG data directory for blockmap.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// StateDir returns the XDG state directory for blockmap.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DatabasePath returns the configured index database, or the default one in
// the data directory.
func (c Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return filepath.Join(DataDir(), "index.db")
}

// Excludes returns the configured exclude globs or DefaultExcludes.
func (c Config) Excludes() []string {
	if len(c.Exclude) == 0 {
		return DefaultExcludes
	}
	return c.Exclude
}

// Load reads the config file from the XDG config directory.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path, then applies environment overrides.
// A missing file yields the defaults.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("parsing config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	cfg.GraphDir = expandHome(cfg.GraphDir)
	cfg.Database = expandHome(cfg.Database)
	cfg.LogFile = expandHome(cfg.LogFile)
	return cfg, nil
}

// envKey maps BM_VIEW__MAX_WIDTH to view.max_width.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	return SaveTo(cfg, ConfigPath())
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks values that other packages would reject later.
func (c Config) Validate() error {
	switch c.Host.PreferredFormat {
	case "", model.FormatMarkdown, model.FormatOrg:
	default:
		return fmt.Errorf("host.preferred_format: unknown format %q", c.Host.PreferredFormat)
	}
	if _, err := c.KeyMap(); err != nil {
		return err
	}
	if _, err := c.ViewOptions(); err != nil {
		return err
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	return nil
}

// KeyMap returns the default key map with the configured overrides.
func (c Config) KeyMap() (keys.KeyMap, error) {
	return keys.DefaultKeyMap().WithOverrides(c.Keys)
}

// ViewOptions returns the view options with the theme applied.
func (c Config) ViewOptions() (render.ViewOptions, error) {
	return c.View.WithTheme(c.Theme)
}

// Logger builds the operational logger. With a log file set, the returned
// func closes it.
func (c Config) Logger() (*logging.Logger, func(), error) {
	level := logging.ParseLevel(c.LogLevel)
	if c.LogFile == "" {
		return logging.NewWithLevel(os.Stderr, level), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	return logging.NewFileLogger(c.LogFile, level)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
