// Package config loads and validates the YAML configuration file that
// drives the Cache Manager, Selection Engine, and ingest scheduler.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bencan1a/calendarbot/internal/errs"
)

// ViewShape mirrors viewmodel.Shape without importing it, so config
// stays independent of the view-model package.
type ViewShape string

const (
	ViewShapeConsolidated ViewShape = "consolidated"
	ViewShapeSplit        ViewShape = "split"
)

// Config is the full set of keys recognized by the cache + selection
// system.
type Config struct {
	DBPath           string    `yaml:"db_path"`
	RetentionDays    int       `yaml:"retention_days"`
	CacheTTLSeconds  int       `yaml:"cache_ttl_seconds"`
	ServerZone       string    `yaml:"server_zone"`
	HiddenEventIDs   []string  `yaml:"hidden_event_ids"`
	ClockOverride    *time.Time `yaml:"clock_override"`
	ViewShape        ViewShape `yaml:"view_shape"`
}

// Default returns a Config populated with every documented default.
func Default() Config {
	return Config{
		DBPath:          "calendarbot.db",
		RetentionDays:   7,
		CacheTTLSeconds: 3600,
		ServerZone:      "UTC",
		ViewShape:       ViewShapeConsolidated,
	}
}

// Load reads path, parses it strictly (unknown keys are rejected, the
// same discipline the teacher's scenario loader applies), layers it
// over Default(), applies environment overrides, and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errs.Wrap(errs.CodeConfig, "read config file", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, errs.Wrap(errs.CodeConfig, "parse config file", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CALENDARBOT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CALENDARBOT_SERVER_ZONE"); v != "" {
		cfg.ServerZone = v
	}
	if v := os.Getenv("CALENDARBOT_VIEW_SHAPE"); v != "" {
		cfg.ViewShape = ViewShape(v)
	}
}

// Validate rejects a negative retention, a non-positive TTL, an
// unresolvable server_zone, or a view_shape outside the two documented
// values (an empty view_shape is accepted). All are ConfigError, fatal
// at startup.
func (c Config) Validate() error {
	if c.RetentionDays < 0 {
		return errs.New(errs.CodeConfig, fmt.Sprintf("retention_days must be non-negative, got %d", c.RetentionDays))
	}
	if c.CacheTTLSeconds <= 0 {
		return errs.New(errs.CodeConfig, fmt.Sprintf("cache_ttl_seconds must be positive, got %d", c.CacheTTLSeconds))
	}
	if _, err := time.LoadLocation(c.ServerZone); err != nil {
		return errs.Wrap(errs.CodeConfig, fmt.Sprintf("server_zone %q does not resolve", c.ServerZone), err)
	}
	switch c.ViewShape {
	case ViewShapeConsolidated, ViewShapeSplit, "":
	default:
		return errs.New(errs.CodeConfig, fmt.Sprintf("view_shape must be %q or %q, got %q", ViewShapeConsolidated, ViewShapeSplit, c.ViewShape))
	}
	return nil
}

// Retention returns RetentionDays as a time.Duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// TTL returns CacheTTLSeconds as a time.Duration.
func (c Config) TTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// HiddenSet returns HiddenEventIDs as a set for selection.Select.
func (c Config) HiddenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.HiddenEventIDs))
	for _, id := range c.HiddenEventIDs {
		set[id] = struct{}{}
	}
	return set
}
