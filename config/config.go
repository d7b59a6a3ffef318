// Package config defines and loads the server configuration: HTTP settings,
// map/cluster tuning, the technology palette, database and snapshot paths.
package config

import (
	"fmt"

	"web/powermap/site"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // "debug" | "release" | "test"
}

// MapConfig holds clustering and rendering tunables plus the technology
// palette. Palette order is the display order of tooltip lines and pie
// slices everywhere in the app.
type MapConfig struct {
	DefaultZoom   int               `mapstructure:"default_zoom"`
	MinZoom       int               `mapstructure:"min_zoom"`
	MaxZoom       int               `mapstructure:"max_zoom"`
	ClusterRadius float64           `mapstructure:"cluster_radius"`
	MinSites      int               `mapstructure:"min_sites"`
	Extent        int               `mapstructure:"extent"`
	Technologies  []site.Technology `mapstructure:"technologies"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// SnapshotConfig holds the snapshot directory settings.
type SnapshotConfig struct {
	Dir string `mapstructure:"dir"`
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Map       MapConfig      `mapstructure:"map"`
	Database  DatabaseConfig `mapstructure:"database"`
	Snapshots SnapshotConfig `mapstructure:"snapshots"`
}

// ApplyDefaults fills unset fields with working defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Map.DefaultZoom == 0 {
		cfg.Map.DefaultZoom = 6
	}
	if cfg.Map.MaxZoom == 0 {
		cfg.Map.MaxZoom = 16
	}
	if cfg.Map.ClusterRadius == 0 {
		cfg.Map.ClusterRadius = 40
	}
	if cfg.Map.MinSites == 0 {
		cfg.Map.MinSites = 2
	}
	if cfg.Map.Extent == 0 {
		cfg.Map.Extent = 512
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Snapshots.Dir == "" {
		cfg.Snapshots.Dir = "snapshots"
	}
}

// Validate checks the configuration for inconsistencies. Palette colors must
// be unique because the renderer aggregates cluster generation by color.
func (c *Config) Validate() error {
	if c.Map.MinZoom < 0 || c.Map.MaxZoom < c.Map.MinZoom {
		return fmt.Errorf("invalid zoom range [%d, %d]", c.Map.MinZoom, c.Map.MaxZoom)
	}
	if c.Map.DefaultZoom < c.Map.MinZoom || c.Map.DefaultZoom > c.Map.MaxZoom {
		return fmt.Errorf("default zoom %d outside range [%d, %d]",
			c.Map.DefaultZoom, c.Map.MinZoom, c.Map.MaxZoom)
	}
	if c.Map.ClusterRadius <= 0 {
		return fmt.Errorf("cluster radius must be positive, got %f", c.Map.ClusterRadius)
	}

	seen := make(map[string]string, len(c.Map.Technologies))
	for _, t := range c.Map.Technologies {
		if t.Name == "" {
			return fmt.Errorf("technology with color %q has no name", t.Color)
		}
		if t.Color == "" {
			return fmt.Errorf("technology %q has no color", t.Name)
		}
		if other, dup := seen[t.Color]; dup {
			return fmt.Errorf("technologies %q and %q share color %s", other, t.Name, t.Color)
		}
		seen[t.Color] = t.Name
	}
	return nil
}
