package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Vespera configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/vespera/config.yaml
Project-specific overrides can be placed in .vespera.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "(project default)"
	}
	rolesPath := cfg.Roles.Path
	if rolesPath == "" {
		rolesPath = "(built-in only)"
	}

	fmt.Printf("database.path: %s\n", dbPath)
	fmt.Printf("timeouts.per_call: %s\n", cfg.Timeouts.PerCall)
	fmt.Printf("timeouts.per_op: %s\n", cfg.Timeouts.PerOp)
	fmt.Printf("timeouts.synthesis: %s\n", cfg.Timeouts.Synthesis)
	fmt.Printf("executor.workers: %d\n", cfg.Executor.Workers)
	fmt.Printf("scheduler.tick: %s\n", cfg.Scheduler.Tick)
	fmt.Printf("scheduler.backoff: %s\n", cfg.Scheduler.Backoff)
	fmt.Printf("scheduler.history_size: %d\n", cfg.Scheduler.HistorySize)
	fmt.Printf("roles.path: %s\n", rolesPath)
	fmt.Printf("roles.watch: %t\n", cfg.Roles.Watch)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
	fmt.Printf("events.retention: %s\n", cfg.Events.Retention)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "database.path":
		if cfg.Database.Path == "" {
			return "(project default)", nil
		}
		return cfg.Database.Path, nil
	case "timeouts.per_call":
		return cfg.Timeouts.PerCall.String(), nil
	case "timeouts.per_op":
		return cfg.Timeouts.PerOp.String(), nil
	case "timeouts.synthesis":
		return cfg.Timeouts.Synthesis.String(), nil
	case "executor.workers":
		return strconv.Itoa(cfg.Executor.Workers), nil
	case "scheduler.tick":
		return cfg.Scheduler.Tick.String(), nil
	case "scheduler.backoff":
		return cfg.Scheduler.Backoff.String(), nil
	case "scheduler.history_size":
		return strconv.Itoa(cfg.Scheduler.HistorySize), nil
	case "roles.path":
		return cfg.Roles.Path, nil
	case "roles.watch":
		return strconv.FormatBool(cfg.Roles.Watch), nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	case "events.retention":
		return cfg.Events.Retention.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "database.path":
		cfg.Database.Path = value
		return nil
	case "timeouts.per_call":
		return setDuration(&cfg.Timeouts.PerCall, value)
	case "timeouts.per_op":
		return setDuration(&cfg.Timeouts.PerOp, value)
	case "timeouts.synthesis":
		return setDuration(&cfg.Timeouts.Synthesis, value)
	case "executor.workers":
		return setInt(&cfg.Executor.Workers, value)
	case "scheduler.tick":
		return setDuration(&cfg.Scheduler.Tick, value)
	case "scheduler.backoff":
		return setDuration(&cfg.Scheduler.Backoff, value)
	case "scheduler.history_size":
		return setInt(&cfg.Scheduler.HistorySize, value)
	case "roles.path":
		cfg.Roles.Path = value
		return nil
	case "roles.watch":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", value, err)
		}
		cfg.Roles.Watch = b
		return nil
	case "tui.refresh_rate":
		return setDuration(&cfg.TUI.RefreshRate, value)
	case "events.retention":
		return setDuration(&cfg.Events.Retention, value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
}

func setDuration(dst *time.Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	*dst = d
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", value, err)
	}
	if n <= 0 {
		return fmt.Errorf("value must be positive, got %d", n)
	}
	*dst = n
	return nil
}
