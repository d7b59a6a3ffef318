package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for all settings.
const envPrefix = "POWERMAP"

// newViper builds a pre-configured Viper instance: YAML config type,
// POWERMAP_ env prefix, automatic env binding, and a "." to "_" replacer so
// nested keys like "database.url" resolve to POWERMAP_DATABASE_URL.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Unmarshal only sees keys viper knows about, so register every scalar
	// key or env-only overrides would be silently dropped.
	for _, key := range []string{
		"server.addr", "server.mode",
		"map.default_zoom", "map.min_zoom", "map.max_zoom",
		"map.cluster_radius", "map.min_sites", "map.extent",
		"database.url", "database.max_open_conns", "database.max_idle_conns",
		"snapshots.dir",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges POWERMAP_* environment
// variable overrides, applies defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from POWERMAP_* environment
// variables, with no config file required.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}
