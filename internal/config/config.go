// Package config loads process-wide settings from the environment and an
// optional .env file. Command-line flags override these values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/planbiir/gtrack/internal/logging"
)

// Config holds the settings shared by all commands.
type Config struct {
	LogLevel  string
	LogFormat string
	Workers   int
	Debug     bool
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Workers:   runtime.NumCPU(),
	}
}

// Load reads .env files (missing files are ignored) and then the GTRACK_*
// environment variables.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from GTRACK_* variables only.
func FromEnv() (Config, error) {
	cfg := Default()
	cfg.LogLevel = getEnv("GTRACK_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("GTRACK_LOG_FORMAT", cfg.LogFormat)

	if v := os.Getenv("GTRACK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("GTRACK_WORKERS must be a positive integer, got %q", v)
		}
		cfg.Workers = n
	}

	if v := os.Getenv("GTRACK_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("GTRACK_DEBUG must be a boolean, got %q", v)
		}
		cfg.Debug = b
	}

	return cfg, nil
}

// Logging returns the logger settings derived from cfg.
func (c Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
