// Package config provides YAML-based configuration loading for Vantage.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Vantage configuration, loaded from vantage.yaml.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Notify      NotifyConfig      `yaml:"notify"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// ServerConfig holds the HTTP ingestion/query server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig selects and configures the storage backend.
// The default backend is a local SQLite file; MySQL is available for
// deployments that already run a server.
type StorageConfig struct {
	Driver string      `yaml:"driver"` // "sqlite" or "mysql"
	Path   string      `yaml:"path"`   // sqlite database file
	MySQL  MySQLConfig `yaml:"mysql"`
}

// MySQLConfig holds connection settings for the MySQL backend.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Database string `yaml:"database"`
}

// NotifyConfig configures the optional chat notifier for error-level records.
type NotifyConfig struct {
	Platform  string `yaml:"platform"`  // "slack", "discord", or "" (disabled)
	Token     string `yaml:"token"`     // bot token
	ChannelID string `yaml:"channel"`   // channel to post to
	MinLevel  string `yaml:"min_level"` // minimum level to forward
}

// MaintenanceConfig schedules the periodic stats/ANALYZE job.
type MaintenanceConfig struct {
	Schedule string `yaml:"schedule"` // 5-field cron expression
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists:
// sqlite in the working directory, server on the default port.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 4613
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "vantage.db"
	}
	if c.Storage.MySQL.Host == "" {
		c.Storage.MySQL.Host = "127.0.0.1"
	}
	if c.Storage.MySQL.Port == 0 {
		c.Storage.MySQL.Port = 3306
	}
	if c.Storage.MySQL.User == "" {
		c.Storage.MySQL.User = "root"
	}
	if c.Storage.MySQL.Database == "" {
		c.Storage.MySQL.Database = "vantage"
	}
	if c.Notify.MinLevel == "" {
		c.Notify.MinLevel = "error"
	}
	if c.Maintenance.Schedule == "" {
		c.Maintenance.Schedule = "0 * * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Storage.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q is not supported (sqlite, mysql)", c.Storage.Driver))
	}
	switch c.Notify.Platform {
	case "", "slack", "discord":
	default:
		errs = append(errs, fmt.Sprintf("notify.platform %q is not supported (slack, discord)", c.Notify.Platform))
	}
	if c.Notify.Platform != "" {
		if c.Notify.Token == "" {
			errs = append(errs, "notify.token is required when notify.platform is set")
		}
		if c.Notify.ChannelID == "" {
			errs = append(errs, "notify.channel is required when notify.platform is set")
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
