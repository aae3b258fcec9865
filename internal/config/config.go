// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Store     StoreConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Import    ImportConfig
	Session   SessionConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StoreConfig selects and locates the persistent store.
type StoreConfig struct {
	Driver   string // sqlite or badger (default: sqlite)
	DataPath string // Directory holding the database (default: ~/KindleHub/data)
}

// Path returns where the selected driver keeps its files.
func (s StoreConfig) Path() string {
	if s.Driver == DriverBadger {
		return filepath.Join(s.DataPath, "badger")
	}
	return filepath.Join(s.DataPath, "kindlehub.db")
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 30s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins  []string      // Allowed origins (default: *)
}

// RateLimitConfig bounds API requests per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 // 0 disables limiting (default: 20)
	Burst             int     // default: 40
}

// ImportConfig tunes batch creation.
type ImportConfig struct {
	// DuplicateThreshold is the similarity threshold for duplicate
	// warnings, in (0, 1] (default: 0.9).
	DuplicateThreshold float64
}

// SessionConfig bounds how long an idle review session keeps its batch.
type SessionConfig struct {
	IdleTimeout   time.Duration // default: 2h
	SweepInterval time.Duration // default: 5m
}

// FlagValues carries command-line overrides. Empty fields fall through to
// the environment.
type FlagValues struct {
	Env         string
	LogLevel    string
	StoreDriver string
	DataPath    string
	Port        string
	EnvFile     string
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(flags FlagValues) (*Config, error) {
	envFile := flags.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(flags.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: strings.ToLower(getConfigValue(flags.LogLevel, "LOG_LEVEL", "info")),
		},
		Store: StoreConfig{
			Driver:   strings.ToLower(getConfigValue(flags.StoreDriver, "STORE_DRIVER", DriverSQLite)),
			DataPath: getConfigValue(flags.DataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(flags.Port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "*")),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue("SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue("SERVER_WRITE_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue("SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.RateLimit.RequestsPerSecond, err = getFloatConfigValue("RATE_LIMIT_RPS", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Burst, err = getIntConfigValue("RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}
	if cfg.Import.DuplicateThreshold, err = getFloatConfigValue("DUPLICATE_THRESHOLD", 0.9); err != nil {
		return nil, err
	}

	if cfg.Session.IdleTimeout, err = getDurationConfigValue("SESSION_IDLE_TIMEOUT", "2h"); err != nil {
		return nil, err
	}
	if cfg.Session.SweepInterval, err = getDurationConfigValue("SESSION_SWEEP_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Store.Driver != DriverSQLite && c.Store.Driver != DriverBadger {
		return fmt.Errorf("invalid store driver: %q (must be sqlite or badger)", c.Store.Driver)
	}
	if c.Store.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		return errors.New("RATE_LIMIT_RPS cannot be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		return errors.New("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled")
	}

	if c.Import.DuplicateThreshold <= 0 || c.Import.DuplicateThreshold > 1 {
		return fmt.Errorf("DUPLICATE_THRESHOLD must be in (0, 1], got %v", c.Import.DuplicateThreshold)
	}

	if c.Session.IdleTimeout <= 0 || c.Session.SweepInterval <= 0 {
		return errors.New("session idle timeout and sweep interval must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned as is.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath resolves the data directory, defaulting to ~/KindleHub/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "KindleHub", "data")

	expanded, err := expandPath(c.Store.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Store.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func getDurationConfigValue(envKey, defaultValue string) (time.Duration, error) {
	raw := getConfigValue("", envKey, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return d, nil
}

func getIntConfigValue(envKey string, defaultValue int) (int, error) {
	raw := getConfigValue("", envKey, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return v, nil
}

func getFloatConfigValue(envKey string, defaultValue float64) (float64, error) {
	raw := getConfigValue("", envKey, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return v, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
