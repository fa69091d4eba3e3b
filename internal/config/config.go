package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/warden-app/warden/internal/logger"
	"github.com/warden-app/warden/internal/service"
)

// Config is the top-level TOML structure for the supervisor.
//
// Example:
//
//	data_dir = "/home/user/.warden"
//	[service]
//	script = "./start_server.sh"
//	workdir = "/opt/app/script"
//	terminate_timeout = "10s"
//	[server]
//	listen = "127.0.0.1:8780"
//	base_path = "/api"
type Config struct {
	DataDir        string        `mapstructure:"data_dir"`        // application's private home
	HandshakeFile  string        `mapstructure:"handshake_file"`  // default: <data_dir>/service.info
	AuditLog       string        `mapstructure:"audit_log"`       // default: <data_dir>/logs/service.log
	InstanceSocket string        `mapstructure:"instance_socket"` // default: <data_dir>/warden.sock
	QueryRetry     time.Duration `mapstructure:"query_retry"`     // URL query wait window for a late handshake

	Service service.Config `mapstructure:"service"`
	Server  *ServerConfig  `mapstructure:"server"`
	Metrics *MetricsConfig `mapstructure:"metrics"`
	History *HistoryConfig `mapstructure:"history"`
	Log     logger.Config  `mapstructure:"log"`
}

// ServerConfig describes the control API the UI layer queries.
type ServerConfig struct {
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
}

// MetricsConfig describes the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// HistoryConfig describes the optional lifecycle event store.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn"` // e.g. "sqlite:///home/user/.warden/events.db"
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c := &Config{
		DataDir: filepath.Join(home, ".warden"),
		Service: service.Config{
			Script:           "./start_server.sh",
			TerminateTimeout: 10 * time.Second,
			VerifyExitWait:   2 * time.Second,
		},
		QueryRetry: 3 * time.Second,
	}
	c.applyDerivedDefaults()
	return c
}

// Load reads a TOML config file and fills in derived defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	c := Default()
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if !filepath.IsAbs(c.DataDir) {
		c.DataDir = filepath.Join(filepath.Dir(path), c.DataDir)
	}
	c.applyDerivedDefaults()
	return c, nil
}

// applyDerivedDefaults anchors unset file paths under DataDir.
func (c *Config) applyDerivedDefaults() {
	if c.HandshakeFile == "" {
		c.HandshakeFile = filepath.Join(c.DataDir, "service.info")
	}
	if c.AuditLog == "" {
		c.AuditLog = filepath.Join(c.DataDir, "logs", "service.log")
	}
	if c.InstanceSocket == "" {
		c.InstanceSocket = filepath.Join(c.DataDir, "warden.sock")
	}
	if c.QueryRetry <= 0 {
		c.QueryRetry = 3 * time.Second
	}
	if c.Service.TerminateTimeout <= 0 {
		c.Service.TerminateTimeout = 10 * time.Second
	}
}

// EnsureDataDir creates the private data directory tree.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir %s: %w", c.DataDir, err)
	}
	return os.MkdirAll(filepath.Dir(c.AuditLog), 0o750)
}
