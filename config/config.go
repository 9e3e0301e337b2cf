/*
Package config loads server settings from the environment.

SOURCES (later wins):
  1. Defaults
  2. .env file, if present (never overrides variables already set)
  3. Process environment
  4. Command-line flags, applied by cmd/server

VARIABLES:
  REWARDS_PORT             HTTP port (default 8080)
  REWARDS_DB               SQLite path, ":memory:" allowed (default rewards.db)
  REWARDS_CATALOG          YAML catalog path; empty uses the embedded catalog
  REWARDS_LOG_LEVEL        debug, info, warn, error (default info)
  REWARDS_LOG_FORMAT       json or text (default json)
  REWARDS_ALLOWED_ORIGINS  comma-separated CORS origins
  REWARDS_OVERRIDE_REFRESH how often to reload card overrides, 0 disables (default 5m)
*/
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LogFormat string

const (
	LogJSON LogFormat = "json"
	LogText LogFormat = "text"
)

// Config holds the settings needed to run the server.
type Config struct {
	Port int

	// DBPath is the SQLite database for overrides, owned cards and usage.
	DBPath string

	// CatalogPath optionally points at a YAML catalog. When empty the
	// catalog compiled into the binary is used.
	CatalogPath string

	LogLevel  slog.Level
	LogFormat LogFormat

	AllowedOrigins []string

	// OverrideRefresh is how often overrides written by other instances are
	// picked up. Zero disables the refresher.
	OverrideRefresh time.Duration
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:            8080,
		DBPath:          "rewards.db",
		LogLevel:        slog.LevelInfo,
		LogFormat:       LogJSON,
		AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:8080"},
		OverrideRefresh: 5 * time.Minute,
	}
}

// Load reads a .env file, if any, and then the process environment. A missing
// .env file is not an error.
func Load(filenames ...string) (Config, error) {
	// godotenv.Load does NOT override existing env vars.
	_ = godotenv.Load(filenames...)
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, starting from Default.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("REWARDS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: REWARDS_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := getenv("REWARDS_DB"); v != "" {
		cfg.DBPath = v
	}
	cfg.CatalogPath = getenv("REWARDS_CATALOG")

	if v := getenv("REWARDS_LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("config: REWARDS_LOG_LEVEL: %w", err)
		}
	}
	if v := getenv("REWARDS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = LogFormat(strings.ToLower(v))
	}
	if v := getenv("REWARDS_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := getenv("REWARDS_OVERRIDE_REFRESH"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("config: REWARDS_OVERRIDE_REFRESH %q: %w", v, err)
		}
		cfg.OverrideRefresh = d
	}

	return cfg, cfg.Validate()
}

// Validate checks that the configuration can start a server.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: database path is required")
	}
	if c.OverrideRefresh < 0 {
		return fmt.Errorf("config: override refresh %s must not be negative", c.OverrideRefresh)
	}
	if c.LogFormat != LogJSON && c.LogFormat != LogText {
		return fmt.Errorf("config: log format %q must be json or text", c.LogFormat)
	}
	return nil
}

// NewLogger builds the slog logger described by the config.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == LogText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
