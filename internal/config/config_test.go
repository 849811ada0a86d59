package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Registry.URL != "https://registry.npmjs.org" {
		t.Errorf("Registry.URL = %q, want npm default", cfg.Registry.URL)
	}
	if cfg.Registry.CacheTTL.Duration != 24*time.Hour {
		t.Errorf("CacheTTL = %v, want 24h", cfg.Registry.CacheTTL.Duration)
	}
	if cfg.Install.ModulesDir != "node_modules" {
		t.Errorf("ModulesDir = %q, want node_modules", cfg.Install.ModulesDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[registry]
url = "https://registry.example.com"
cache_ttl = "1h"

[cache]
dir = "/var/cache/click"

[install]
modules_dir = "vendor_modules"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Registry.URL != "https://registry.example.com" {
		t.Errorf("Registry.URL = %q", cfg.Registry.URL)
	}
	if cfg.Registry.CacheTTL.Duration != time.Hour {
		t.Errorf("CacheTTL = %v, want 1h", cfg.Registry.CacheTTL.Duration)
	}
	if cfg.Cache.Dir != "/var/cache/click" {
		t.Errorf("Cache.Dir = %q", cfg.Cache.Dir)
	}
	if cfg.Install.ModulesDir != "vendor_modules" {
		t.Errorf("ModulesDir = %q", cfg.Install.ModulesDir)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[registry]\nurl = \"http://localhost:4873\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Registry.URL != "http://localhost:4873" {
		t.Errorf("Registry.URL = %q", cfg.Registry.URL)
	}
	// Untouched sections keep their defaults.
	if cfg.Registry.CacheTTL.Duration != 24*time.Hour {
		t.Errorf("CacheTTL = %v, want default 24h", cfg.Registry.CacheTTL.Duration)
	}
	if cfg.Install.ModulesDir != "node_modules" {
		t.Errorf("ModulesDir = %q, want default", cfg.Install.ModulesDir)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[registry]\ncache_ttl = \"soon\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() = nil, want duration parse error")
	}
}
