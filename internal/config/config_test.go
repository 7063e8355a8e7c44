package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Search.BaseURL != "https://api.indiankanoon.org" {
		t.Errorf("unexpected base URL: %q", cfg.Search.BaseURL)
	}
	if cfg.Search.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Search.MaxAttempts)
	}
	if cfg.Polling.CycleMinutes != 30 {
		t.Errorf("expected 30 minute cycle, got %d", cfg.Polling.CycleMinutes)
	}
	if !cfg.Notifications.Digest.Enabled || cfg.Notifications.Digest.Hour != 9 {
		t.Errorf("unexpected digest config: %+v", cfg.Notifications.Digest)
	}
	if cfg.Server.Port != 8600 {
		t.Errorf("expected port 8600, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
search:
  base_url: https://search.example
polling:
  cycle_minutes: 15
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Search.BaseURL != "https://search.example" {
		t.Errorf("unexpected base URL: %q", cfg.Search.BaseURL)
	}
	if cfg.Polling.CycleMinutes != 15 {
		t.Errorf("expected 15 minute cycle, got %d", cfg.Polling.CycleMinutes)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Search.TimeoutSeconds != 30 {
		t.Errorf("expected default timeout, got %d", cfg.Search.TimeoutSeconds)
	}
	if cfg.Notifications.MaxDeliveryAttempts != 3 {
		t.Errorf("expected default delivery attempts, got %d", cfg.Notifications.MaxDeliveryAttempts)
	}
	if cfg.Polling.FirstPollLookbackDays != 4 {
		t.Errorf("expected default lookback, got %d", cfg.Polling.FirstPollLookbackDays)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Search.APITokenEnv != "LEXWATCH_API_TOKEN" {
		t.Errorf("unexpected token env: %q", cfg.Search.APITokenEnv)
	}
}

func TestAPITokenFromEnv(t *testing.T) {
	cfg, _ := parse(DefaultConfigYAML)
	t.Setenv("LEXWATCH_API_TOKEN", "secret")
	if cfg.APIToken() != "secret" {
		t.Errorf("expected token from env, got %q", cfg.APIToken())
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}
