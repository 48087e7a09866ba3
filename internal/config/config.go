// Package config loads podium settings from the environment and an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/jwulff/podium/internal/analysis"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// History backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds every setting. Environment variables are applied first, then
// keys present in the YAML file override them.
type Config struct {
	// Analysis backend
	BackendURL     string        `env:"PODIUM_BACKEND_URL" envDefault:"http://localhost:8000" yaml:"backend_url"`
	RequestTimeout time.Duration `env:"PODIUM_REQUEST_TIMEOUT" envDefault:"60s" yaml:"request_timeout"`

	// Speech daemon
	SocketPath      string        `env:"PODIUM_SOCKET" yaml:"socket"`
	Locale          string        `env:"PODIUM_LOCALE" envDefault:"en-US" yaml:"locale"`
	Device          string        `env:"PODIUM_DEVICE" yaml:"device"`
	FinalizeTimeout time.Duration `env:"PODIUM_FINALIZE_TIMEOUT" envDefault:"3s" yaml:"finalize_timeout"`

	// History
	HistoryBackend string `env:"PODIUM_HISTORY" envDefault:"file" yaml:"history_backend"`
	HistoryDir     string `env:"PODIUM_HISTORY_DIR" yaml:"history_dir"`
	HistoryKey     string `env:"PODIUM_HISTORY_KEY" envDefault:"podiumPalHistory" yaml:"history_key"`
	HistoryCap     int    `env:"PODIUM_HISTORY_CAP" envDefault:"10" yaml:"history_cap"`
	DBPath         string `env:"PODIUM_DB" yaml:"db_path"`
	UserID         string `env:"PODIUM_USER" envDefault:"local" yaml:"user_id"`

	// Audio archive
	AzureConnectionString string `env:"AZURE_STORAGE_CONNECTION_STRING" yaml:"azure_connection_string"`
	AzureContainer        string `env:"PODIUM_AZURE_CONTAINER" envDefault:"podium" yaml:"azure_container"`

	// Ops
	LogFile          string `env:"PODIUM_LOG_FILE" yaml:"log_file"`
	LogLevel         string `env:"PODIUM_LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	MetricsAddr      string `env:"PODIUM_METRICS_ADDR" yaml:"metrics_addr"`
	SnapshotSchedule string `env:"PODIUM_SNAPSHOT_SCHEDULE" envDefault:"0 0 * * 1" yaml:"snapshot_schedule"`

	Personality string `env:"PODIUM_PERSONALITY" envDefault:"supportive" yaml:"personality"`
}

// Load reads the environment, overlays the YAML file at path when path is
// not empty, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend_url must be an http(s) URL, got %q", c.BackendURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.FinalizeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("finalize_timeout must be positive, got %s", c.FinalizeTimeout))
	}
	if strings.TrimSpace(c.Locale) == "" {
		errs = append(errs, errors.New("locale cannot be empty"))
	}

	switch c.HistoryBackend {
	case BackendFile, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("history_backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.HistoryBackend))
	}
	if c.HistoryCap < 1 {
		errs = append(errs, fmt.Errorf("history_cap must be at least 1, got %d", c.HistoryCap))
	}
	if c.HistoryKey == "" {
		errs = append(errs, errors.New("history_key cannot be empty"))
	}
	if c.UserID == "" {
		errs = append(errs, errors.New("user_id cannot be empty"))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}
	if _, err := cron.ParseStandard(c.SnapshotSchedule); err != nil {
		errs = append(errs, fmt.Errorf("snapshot_schedule: %w", err))
	}
	if _, err := analysis.ParsePersonality(c.Personality); err != nil {
		errs = append(errs, fmt.Errorf("personality: %w", err))
	}

	return errors.Join(errs...)
}

// DefaultPersonality returns the configured personality, falling back to
// the built-in default.
func (c *Config) DefaultPersonality() analysis.Personality {
	p, err := analysis.ParsePersonality(c.Personality)
	if err != nil {
		return analysis.DefaultPersonality
	}
	return p
}

// ArchiveEnabled reports whether recorded audio should be uploaded.
func (c *Config) ArchiveEnabled() bool {
	return c.AzureConnectionString != ""
}
