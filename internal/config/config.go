// Package config loads click's user configuration from a TOML file,
// falling back to sensible defaults when the file is absent.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML values like "24h" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config is the full user configuration.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Cache    CacheConfig    `toml:"cache"`
	Install  InstallConfig  `toml:"install"`
}

// RegistryConfig controls which registry is used and how long metadata
// responses are cached.
type RegistryConfig struct {
	URL      string   `toml:"url"`
	CacheTTL Duration `toml:"cache_ttl"`
}

// CacheConfig controls where packages and cached HTTP responses live.
// Empty values select the platform defaults under the user cache dir.
type CacheConfig struct {
	Dir     string `toml:"dir"`
	HTTPDir string `toml:"http_dir"`
}

// InstallConfig controls how installed packages are exposed to the project.
type InstallConfig struct {
	ModulesDir string `toml:"modules_dir"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			URL:      "https://registry.npmjs.org",
			CacheTTL: Duration{24 * time.Hour},
		},
		Install: InstallConfig{ModulesDir: "node_modules"},
	}
}

// DefaultPath returns the platform config location, e.g.
// ~/.config/click/config.toml on Linux.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "click", "config.toml"), nil
}

// Load reads the config at path, or the default location when path is
// empty. A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
