package batch

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the file form of the renderer options.
//
// Example batch.toml:
//
//	[device]
//	backend = "native"
//
//	[atlas]
//	width = 4096
//	height = 4096
//	hot_reload = true
//
//	[loader]
//	timeout = "10s"
//	cache_size = 128
//
//	[log]
//	level = "debug"
type Config struct {
	Device DeviceConfig `toml:"device"`
	Atlas  AtlasConfig  `toml:"atlas"`
	Loader LoaderConfig `toml:"loader"`
	Log    LogConfig    `toml:"log"`
}

// DeviceConfig selects the device backend opened by Open.
type DeviceConfig struct {
	// Backend is a registered backend name. Empty picks the default.
	Backend string `toml:"backend"`
}

// AtlasConfig sizes shared atlas instances.
type AtlasConfig struct {
	Width     int  `toml:"width"`
	Height    int  `toml:"height"`
	HotReload bool `toml:"hot_reload"`
}

// LoaderConfig configures the default image loader.
type LoaderConfig struct {
	// Timeout is a time.ParseDuration string.
	Timeout string `toml:"timeout"`

	// CacheSize bounds the decoded remote image cache.
	CacheSize int `toml:"cache_size"`
}

// LogConfig selects the log level of cmd tools.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("batch: load config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("batch: load config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses TOML config data. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.Atlas.Width < 0 || cfg.Atlas.Height < 0 {
		return nil, fmt.Errorf("atlas size %dx%d is negative", cfg.Atlas.Width, cfg.Atlas.Height)
	}
	if cfg.Loader.CacheSize < 0 {
		return nil, fmt.Errorf("loader cache size %d is negative", cfg.Loader.CacheSize)
	}
	if cfg.Loader.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Loader.Timeout); err != nil {
			return nil, fmt.Errorf("loader timeout: %w", err)
		}
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoaderTimeout returns the parsed loader timeout, or zero if unset.
func (c *Config) LoaderTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Loader.Timeout)
	return d
}

// LogLevel returns the configured level. An empty level is Info.
func (c *Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
