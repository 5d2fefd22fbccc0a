package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.URL != "sqlite://./data/nutriprotocol.db" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want info/json", cfg.Log)
	}
	if cfg.Overrides.CacheTTL != 5*time.Minute {
		t.Errorf("Overrides.CacheTTL = %v, want 5m", cfg.Overrides.CacheTTL)
	}
	if cfg.Overrides.MaxEntries != 10000 {
		t.Errorf("Overrides.MaxEntries = %d, want 10000", cfg.Overrides.MaxEntries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := DefaultConfig()
	if *cfg != *want {
		t.Errorf("LoadConfig(\"\") = %+v, want %+v", cfg, want)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://db.internal:5432/nutri?sslmode=disable"
log:
  level: debug
  format: console
overrides:
  cache_ttl: 90s
  max_entries: 50
coverage:
  timezone: UTC
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Database.URL != "postgres://db.internal:5432/nutri?sslmode=disable" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Overrides.CacheTTL != 90*time.Second || cfg.Overrides.MaxEntries != 50 {
		t.Errorf("Overrides = %+v", cfg.Overrides)
	}
	if cfg.Coverage.Timezone != "UTC" {
		t.Errorf("Coverage.Timezone = %q", cfg.Coverage.Timezone)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"bad log level", "log:\n  level: verbose\n", "Level"},
		{"bad log format", "log:\n  format: xml\n", "Format"},
		{"bad scheme", "database:\n  url: mysql://localhost/db\n", "URL"},
		{"zero ttl", "overrides:\n  cache_ttl: 0s\n", "CacheTTL"},
		{"negative entries", "overrides:\n  max_entries: -1\n", "MaxEntries"},
		{"bad timezone", "coverage:\n  timezone: Mars/Olympus\n", "Timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() error = nil, want validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name field %s", err, tt.field)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want error for missing file")
	}
}

func TestCoverageConfig_Location(t *testing.T) {
	loc, err := CoverageConfig{Timezone: "UTC"}.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location() = %v, %v, want UTC", loc, err)
	}
	if _, err := (CoverageConfig{Timezone: "Nowhere/Special"}).Location(); err == nil {
		t.Error("Location() error = nil for unknown zone")
	}
}
