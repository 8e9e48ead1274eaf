// Package config loads userlist configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. USERLIST_GITHUB_TOKEN.
const EnvPrefix = "USERLIST"

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	// path of the file the config was read from, empty for defaults only
	path string
}

// DatabaseConfig holds local storage configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// GitHubConfig holds remote API configuration
type GitHubConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	Token             string  `mapstructure:"token"`
	PerPage           int     `mapstructure:"per_page"`
	MaxPages          int     `mapstructure:"max_pages"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// SyncConfig holds scheduling configuration for the daemon
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// DashboardConfig holds the dashboard listener configuration
type DashboardConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File       string `mapstructure:"file"` // empty logs to stderr
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // "text" or "json"
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(defaultDataPath(), "users.db"),
		},
		GitHub: GitHubConfig{
			BaseURL:           "https://api.github.com",
			PerPage:           100,
			MaxPages:          10,
			RequestsPerSecond: 1,
		},
		Sync: SyncConfig{
			Interval: 5 * time.Minute,
		},
		Dashboard: DashboardConfig{
			Host: "localhost",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Path returns the config file that was read, or "" when none was found.
func (c *Config) Path() string {
	return c.path
}

// Validate checks that settings are usable.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	case c.GitHub.PerPage < 1 || c.GitHub.PerPage > 100:
		return fmt.Errorf("%w: github.per_page must be in 1..100, got %d", ErrInvalidConfig, c.GitHub.PerPage)
	case c.GitHub.MaxPages < 1:
		return fmt.Errorf("%w: github.max_pages must be positive, got %d", ErrInvalidConfig, c.GitHub.MaxPages)
	case c.GitHub.RequestsPerSecond < 0:
		return fmt.Errorf("%w: github.requests_per_second is negative", ErrInvalidConfig)
	case c.Sync.Interval <= 0:
		return fmt.Errorf("%w: sync.interval must be positive, got %v", ErrInvalidConfig, c.Sync.Interval)
	case c.Dashboard.Port < 0 || c.Dashboard.Port > 65535:
		return fmt.Errorf("%w: dashboard.port out of range: %d", ErrInvalidConfig, c.Dashboard.Port)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be text or json, got %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "userlist")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "userlist")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "userlist")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "userlist")
	}
}

// Load reads configuration from path, or from userlist.{yaml,toml} in the
// default config directory or the working directory when path is empty.
// Environment variables prefixed with USERLIST_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		// An explicit file must exist
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("userlist")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.path = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.path", cfg.Database.Path)

	v.SetDefault("github.base_url", cfg.GitHub.BaseURL)
	v.SetDefault("github.token", cfg.GitHub.Token)
	v.SetDefault("github.per_page", cfg.GitHub.PerPage)
	v.SetDefault("github.max_pages", cfg.GitHub.MaxPages)
	v.SetDefault("github.requests_per_second", cfg.GitHub.RequestsPerSecond)

	v.SetDefault("sync.interval", cfg.Sync.Interval)

	v.SetDefault("dashboard.host", cfg.Dashboard.Host)
	v.SetDefault("dashboard.port", cfg.Dashboard.Port)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
}

// WriteDefault writes the default configuration as TOML to path. It refuses
// to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	return Write(path, DefaultConfig(), force)
}

// Write saves cfg as TOML to path under the keys Load reads.
func Write(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(fileSections(cfg)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}

// DefaultConfigFile returns where `config init` writes by default.
func DefaultConfigFile() string {
	return filepath.Join(defaultConfigPath(), "userlist.toml")
}

// fileSections lays the config out under the keys Load reads. Durations are
// written in their string form.
func fileSections(cfg *Config) map[string]map[string]any {
	return map[string]map[string]any{
		"database": {
			"path": cfg.Database.Path,
		},
		"github": {
			"base_url":            cfg.GitHub.BaseURL,
			"token":               cfg.GitHub.Token,
			"per_page":            cfg.GitHub.PerPage,
			"max_pages":           cfg.GitHub.MaxPages,
			"requests_per_second": cfg.GitHub.RequestsPerSecond,
		},
		"sync": {
			"interval": cfg.Sync.Interval.String(),
		},
		"dashboard": {
			"host": cfg.Dashboard.Host,
			"port": cfg.Dashboard.Port,
		},
		"logging": {
			"file":        cfg.Logging.File,
			"level":       cfg.Logging.Level,
			"format":      cfg.Logging.Format,
			"max_size_mb": cfg.Logging.MaxSizeMB,
			"max_backups": cfg.Logging.MaxBackups,
		},
	}
}
