// Package config loads trackerguard settings from ~/.config/trackerguard.
//
// config.toml is read if present, otherwise config.yml / config.yaml.
// Environment variables override file values; command-line flags override
// both and are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lotas/trackerguard/internal/types"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const DefaultPort = 19191

// Candidate file names in lookup order.
var fileNames = []string{"config.toml", "config.yml", "config.yaml"}

// Config is the resolved configuration.
type Config struct {
	Port     int     `yaml:"port" toml:"port"`
	DB       string  `yaml:"db" toml:"db"`
	LogDir   string  `yaml:"log_dir" toml:"log_dir"`
	LogLevel string  `yaml:"log_level" toml:"log_level"`
	Banners  Banners `yaml:"banners" toml:"banners"`
	Outbox   Outbox  `yaml:"outbox" toml:"outbox"`

	// Path of the file the values came from; empty when only defaults apply.
	Source string `yaml:"-" toml:"-"`
}

// Banners are the notification preferences.
type Banners struct {
	Reload   bool `yaml:"reload_banner" toml:"reload_banner"`
	Trackers bool `yaml:"trackers_banner" toml:"trackers_banner"`
}

// Outbox tunes persistence retries.
type Outbox struct {
	Retries   int `yaml:"retries" toml:"retries"`
	BackoffMS int `yaml:"backoff_ms" toml:"backoff_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Port:     DefaultPort,
		DB:       filepath.Join(home, ".local", "share", "trackerguard", "trackerguard.db"),
		LogDir:   filepath.Join(home, ".local", "share", "trackerguard"),
		LogLevel: "info",
		Banners:  Banners{Reload: true, Trackers: true},
	}
}

// Dir returns the configuration directory. TRACKERGUARD_CONFIG_DIR
// overrides the default ~/.config/trackerguard.
func Dir() string {
	if d := os.Getenv("TRACKERGUARD_CONFIG_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "trackerguard")
}

// Load reads the first config file found in dir over the defaults, then
// applies environment overrides. A missing file is not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := decode(name, data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Source = path
		break
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func decode(name string, data []byte, cfg *Config) error {
	if strings.HasSuffix(name, ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TRACKERGUARD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRACKERGUARD_PORT: %w", err)
		}
		c.Port = port
	}
	if v := os.Getenv("TRACKERGUARD_DB"); v != "" {
		c.DB = v
	}
	if v := os.Getenv("TRACKERGUARD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Outbox.Retries < 0 || c.Outbox.BackoffMS < 0 {
		return fmt.Errorf("outbox retries and backoff must not be negative")
	}
	return nil
}

// Preferences returns the banner preferences.
func (c *Config) Preferences() types.Preferences {
	return types.Preferences{
		ReloadBannerEnabled:   c.Banners.Reload,
		TrackersBannerEnabled: c.Banners.Trackers,
	}
}

// Backoff returns the outbox retry delay.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Outbox.BackoffMS) * time.Millisecond
}
