// Package config provides configuration management for the nutriprotocol CLI.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // coverage.timezone must resolve on hosts without zoneinfo

	"github.com/go-playground/validator/v10"
)

// Config is the complete runtime configuration.
type Config struct {
	Database  DatabaseConfig
	Log       LogConfig
	Overrides OverridesConfig
	Coverage  CoverageConfig
}

// DatabaseConfig locates the rule/profile store.
type DatabaseConfig struct {
	URL string `validate:"required,startswith=sqlite://|startswith=postgres://"`
}

// LogConfig selects logger level and encoding.
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

// OverridesConfig bounds the override cache.
type OverridesConfig struct {
	CacheTTL   time.Duration `validate:"gt=0"`
	MaxEntries int           `validate:"gt=0"`
}

// CoverageConfig controls coverage estimation output.
type CoverageConfig struct {
	// Timezone is the IANA zone computedAt timestamps are rendered in.
	Timezone string `validate:"required,timezone"`
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: "sqlite://./data/nutriprotocol.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Overrides: OverridesConfig{
			CacheTTL:   5 * time.Minute,
			MaxEntries: 10000,
		},
		Coverage: CoverageConfig{
			Timezone: "Europe/Amsterdam",
		},
	}
}

// Location resolves the coverage timezone.
func (c CoverageConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid coverage timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
