package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/config"
)

var cleanupOlderThan time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old audit events",
	Long: `Delete audit trail events older than the retention window.

The retention window comes from the events.retention config value and
can be overridden with --older-than.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 0, "Override the retention window (e.g. 168h)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	retention := cfg.Events.Retention
	if cleanupOlderThan > 0 {
		retention = cleanupOlderThan
	}
	if retention <= 0 {
		return fmt.Errorf("retention window must be positive, got %s", retention)
	}

	db, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	purged, err := db.PurgeEvents(retention)
	if err != nil {
		return fmt.Errorf("purge events: %w", err)
	}

	fmt.Printf("%s Purged %d events older than %s\n",
		color.GreenString("✓"), purged, formatDuration(retention))
	return nil
}
