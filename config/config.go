/*
Package config loads the recurrence engine configuration.

PURPOSE:
  One YAML file plus RECURRENCE_* environment overrides configures the
  database, the HTTP listener, both worker schedules, the materialization
  window, the cleanup policy and logging.

LOAD ORDER:
  DefaultConfig -> YAML file (if present) -> environment -> Normalize

  A missing file is not an error: the defaults are written to it so operators
  have something to edit.

SEE ALSO:
  - worker/schedule.go: cron parsing used by Validate
  - cmd/server/main.go: the only caller of Load
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/recurrence-engine/recurrence"
	"github.com/warp/recurrence-engine/worker"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RECURRENCE_"

// =============================================================================
// CONFIG MODEL
// =============================================================================

// WorkerConfig drives the generation and cleanup workers.
type WorkerConfig struct {
	// GenerationCron is a 5 or 6 field cron expression.
	GenerationCron string `yaml:"generation_cron"`
	CleanupCron    string `yaml:"cleanup_cron"`

	// HorizonDays is how far past now instances are materialized.
	HorizonDays int `yaml:"horizon_days"`
	// RetentionDays is how long past instances are kept.
	RetentionDays int `yaml:"retention_days"`

	// CleanupPolicy is "cascade" or "refuse".
	CleanupPolicy string `yaml:"cleanup_policy"`

	// Disabled turns off both schedules; admin triggers still work.
	Disabled bool `yaml:"disabled"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Config is the top-level application configuration.
type Config struct {
	// Database is the SQLite file path. ":memory:" is accepted for demos.
	Database string        `yaml:"database"`
	Listen   string        `yaml:"listen"`
	Workers  WorkerConfig  `yaml:"workers"`
	Logging  LoggingConfig `yaml:"logging"`

	// CORSOrigins lists origins allowed by the API. Empty allows all.
	CORSOrigins []string `yaml:"cors_origins"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: "recurrence.db",
		Listen:   ":8080",
		Workers: WorkerConfig{
			GenerationCron: worker.DefaultGenerationCron,
			CleanupCron:    worker.DefaultCleanupCron,
			HorizonDays:    int(worker.DefaultHorizon / (24 * time.Hour)),
			RetentionDays:  int(worker.DefaultRetention / (24 * time.Hour)),
			CleanupPolicy:  string(recurrence.RetireCascade),
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Normalize fills zero values with defaults so partially filled files work.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if strings.TrimSpace(c.Workers.GenerationCron) == "" {
		c.Workers.GenerationCron = d.Workers.GenerationCron
	}
	if strings.TrimSpace(c.Workers.CleanupCron) == "" {
		c.Workers.CleanupCron = d.Workers.CleanupCron
	}
	if c.Workers.HorizonDays <= 0 {
		c.Workers.HorizonDays = d.Workers.HorizonDays
	}
	if c.Workers.RetentionDays <= 0 {
		c.Workers.RetentionDays = d.Workers.RetentionDays
	}
	if c.Workers.CleanupPolicy == "" {
		c.Workers.CleanupPolicy = d.Workers.CleanupPolicy
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the values Normalize cannot repair. Both cron expressions
// are parsed so a bad schedule stops startup instead of the worker.
func (c *Config) Validate() error {
	var errs []error
	if _, err := worker.ParseSchedule(c.Workers.GenerationCron); err != nil {
		errs = append(errs, fmt.Errorf("workers.generation_cron: %w", err))
	}
	if _, err := worker.ParseSchedule(c.Workers.CleanupCron); err != nil {
		errs = append(errs, fmt.Errorf("workers.cleanup_cron: %w", err))
	}
	if _, err := recurrence.ParseRetirePolicy(c.Workers.CleanupPolicy); err != nil {
		errs = append(errs, fmt.Errorf("workers.cleanup_policy: %w", err))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q: must be text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Horizon returns the materialization horizon.
func (c *Config) Horizon() time.Duration {
	return time.Duration(c.Workers.HorizonDays) * 24 * time.Hour
}

// Retention returns the instance retention period.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Workers.RetentionDays) * 24 * time.Hour
}

// Policy returns the parsed cleanup policy. Call Validate first.
func (c *Config) Policy() recurrence.RetirePolicy {
	return recurrence.RetirePolicy(c.Workers.CleanupPolicy)
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads path, applies environment overrides and normalizes.
// If the file does not exist the defaults are written to it first.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overrides fields from RECURRENCE_* variables. lookup is
// os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: invalid integer %q", EnvPrefix, name, v)
		}
		*dst = n
		return nil
	}

	str("DB", &c.Database)
	str("LISTEN", &c.Listen)
	str("GENERATION_CRON", &c.Workers.GenerationCron)
	str("CLEANUP_CRON", &c.Workers.CleanupCron)
	str("CLEANUP_POLICY", &c.Workers.CleanupPolicy)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	if err := num("HORIZON_DAYS", &c.Workers.HorizonDays); err != nil {
		return err
	}
	return num("RETENTION_DAYS", &c.Workers.RetentionDays)
}

// Save writes cfg as YAML via a temp file and rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".recurrence-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// =============================================================================
// LOGGING
// =============================================================================

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// NewLogger builds the process logger writing to w, or stderr when w is nil.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
