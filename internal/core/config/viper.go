package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v, err := NewViper(configPath)
	if err != nil {
		return nil, err
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewViper returns a viper instance with defaults, the optional config file
// and NP_-prefixed environment bound. The CLI binds its flags on top.
func NewViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	// Bind environment variables with NP_ prefix
	v.SetEnvPrefix("NP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		file := viper.New()
		file.SetConfigFile(configPath)
		if err := file.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Credentials must come from the environment, never a config file
		if err := validateNoSecretsInConfig(file); err != nil {
			return nil, err
		}

		if err := v.MergeConfigMap(file.AllSettings()); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("overrides.cache_ttl", d.Overrides.CacheTTL.String())
	v.SetDefault("overrides.max_entries", d.Overrides.MaxEntries)
	v.SetDefault("coverage.timezone", d.Coverage.Timezone)
}

// FromViper reads a Config from a populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Overrides: OverridesConfig{
			CacheTTL:   v.GetDuration("overrides.cache_ttl"),
			MaxEntries: v.GetInt("overrides.max_entries"),
		},
		Coverage: CoverageConfig{
			Timezone: v.GetString("coverage.timezone"),
		},
	}
}

// validateNoSecretsInConfig enforces environment-only credentials (12-factor principle).
func validateNoSecretsInConfig(file *viper.Viper) error {
	if file.IsSet("database.password") {
		return fmt.Errorf("database credentials not allowed in config files (use NP_DATABASE_URL environment variable)")
	}
	u, err := url.Parse(file.GetString("database.url"))
	if err != nil {
		return nil
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return fmt.Errorf("database credentials not allowed in config files (use NP_DATABASE_URL environment variable)")
	}
	return nil
}
