// Package config handles configuration loading and management for Vespera.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Vespera.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Roles     RolesConfig     `mapstructure:"roles"`
	TUI       TUIConfig       `mapstructure:"tui"`
	Events    EventsConfig    `mapstructure:"events"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	// Path is the database file location. Empty means the project-local
	// default (.vespera/state.db).
	Path string `mapstructure:"path"`
}

// TimeoutsConfig holds per-operation timeout settings.
type TimeoutsConfig struct {
	// PerCall bounds a single store call inside a retried operation.
	PerCall time.Duration `mapstructure:"per_call"`
	// PerOp bounds a whole coordinator operation.
	PerOp time.Duration `mapstructure:"per_op"`
	// Synthesis bounds result synthesis, which reads every subtask.
	Synthesis time.Duration `mapstructure:"synthesis"`
}

// ExecutorConfig holds background executor settings.
type ExecutorConfig struct {
	// Workers is the background worker pool size.
	Workers int `mapstructure:"workers"`
}

// SchedulerConfig holds agent scheduler settings.
type SchedulerConfig struct {
	// Tick is the timed agent polling period.
	Tick time.Duration `mapstructure:"tick"`
	// Backoff is the sleep after a failed tick.
	Backoff time.Duration `mapstructure:"backoff"`
	// HistorySize bounds the execution history ring.
	HistorySize int `mapstructure:"history_size"`
}

// RolesConfig holds specialist role definition settings.
type RolesConfig struct {
	// Path is the role definitions YAML file. Empty disables file roles
	// and only built-in roles are served.
	Path string `mapstructure:"path"`
	// Watch reloads role definitions when the file changes.
	Watch bool `mapstructure:"watch"`
}

// TUIConfig holds monitor display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// EventsConfig holds audit trail retention settings.
type EventsConfig struct {
	// Retention is how long events are kept before cleanup purges them.
	Retention time.Duration `mapstructure:"retention"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (VESPERA_DB_PATH)
// 2. Project config (.vespera.yaml in current directory or parent)
// 3. User config (~/.config/vespera/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.BindEnv("database.path", "VESPERA_DB_PATH")
	v.BindEnv("roles.path", "VESPERA_ROLES_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Database.Path = os.ExpandEnv(cfg.Database.Path)
	cfg.Roles.Path = os.ExpandEnv(cfg.Roles.Path)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Database.Path = os.ExpandEnv(cfg.Database.Path)
	cfg.Roles.Path = os.ExpandEnv(cfg.Roles.Path)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("database.path", cfg.Database.Path)
	v.Set("timeouts.per_call", cfg.Timeouts.PerCall.String())
	v.Set("timeouts.per_op", cfg.Timeouts.PerOp.String())
	v.Set("timeouts.synthesis", cfg.Timeouts.Synthesis.String())
	v.Set("executor.workers", cfg.Executor.Workers)
	v.Set("scheduler.tick", cfg.Scheduler.Tick.String())
	v.Set("scheduler.backoff", cfg.Scheduler.Backoff.String())
	v.Set("scheduler.history_size", cfg.Scheduler.HistorySize)
	v.Set("roles.path", cfg.Roles.Path)
	v.Set("roles.watch", cfg.Roles.Watch)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())
	v.Set("events.retention", cfg.Events.Retention.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")

	v.SetDefault("timeouts.per_call", "5s")
	v.SetDefault("timeouts.per_op", "15s")
	v.SetDefault("timeouts.synthesis", "30s")

	v.SetDefault("executor.workers", 4)

	v.SetDefault("scheduler.tick", "30s")
	v.SetDefault("scheduler.backoff", "60s")
	v.SetDefault("scheduler.history_size", 1000)

	v.SetDefault("roles.path", "")
	v.SetDefault("roles.watch", true)

	v.SetDefault("tui.refresh_rate", "1s")

	v.SetDefault("events.retention", "720h")
}

// getUserConfigDir returns the XDG config directory for Vespera.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vespera")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "vespera")
	}
	return filepath.Join(home, ".config", "vespera")
}

// findProjectConfig searches for .vespera.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".vespera.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Timeouts: TimeoutsConfig{
			PerCall:   5 * time.Second,
			PerOp:     15 * time.Second,
			Synthesis: 30 * time.Second,
		},
		Executor: ExecutorConfig{
			Workers: 4,
		},
		Scheduler: SchedulerConfig{
			Tick:        30 * time.Second,
			Backoff:     60 * time.Second,
			HistorySize: 1000,
		},
		Roles: RolesConfig{
			Watch: true,
		},
		TUI: TUIConfig{
			RefreshRate: time.Second,
		},
		Events: EventsConfig{
			Retention: 720 * time.Hour,
		},
	}
}
