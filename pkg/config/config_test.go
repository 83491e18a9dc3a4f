package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected built-in defaults to validate, got %v", err)
	}
	if cfg.DefaultTTL != 30*time.Minute {
		t.Fatalf("expected default_ttl 30m, got %v", cfg.DefaultTTL)
	}
	if cfg.MaxItems != 10_000 {
		t.Fatalf("expected max_items 10000, got %d", cfg.MaxItems)
	}
	if !cfg.RequireTTL {
		t.Fatalf("expected require_ttl default true")
	}
}

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected log_level info, got %q", cfg.LogLevel)
	}
}

func TestLoadFromYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
max_items: 500
require_ttl: false
max_request_size: "2Mi"
secret: topsecret
log_level: DEBUG
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxItems != 500 {
		t.Fatalf("expected max_items 500, got %d", cfg.MaxItems)
	}
	if cfg.RequireTTL {
		t.Fatalf("expected require_ttl false from file overlay")
	}
	if cfg.MaxRequestSize != 2*1024*1024 {
		t.Fatalf("expected max_request_size 2Mi, got %d", cfg.MaxRequestSize)
	}
	if cfg.Secret != "topsecret" {
		t.Fatalf("expected secret from file, got %q", cfg.Secret)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("max_items: 500\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BROKER_MAX_ITEMS", "777")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxItems != 777 {
		t.Fatalf("expected env to override file, got %d", cfg.MaxItems)
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for bad log_level")
	}
}

func TestValidateRejectsZeroMaxRequestSize(t *testing.T) {
	cfg := Defaults()
	cfg.MaxRequestSize = 0
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for zero max_request_size")
	}
}

func TestLoadMissingExplicitFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error loading a nonexistent explicit config file")
	}
}
