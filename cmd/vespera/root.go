package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/config"
	"github.com/EchoingVesper/vespera-atelier-sub002/internal/state"
)

var rootCmd = &cobra.Command{
	Use:   "vespera",
	Short: "Hierarchical task orchestration engine",
	Long: `Vespera is the control plane for an agentic work pipeline.

It maintains a hierarchical task tree with lifecycle tracking, plans
breakdowns into specialist-assigned subtasks, gates work on dependencies,
and schedules timed and event-hook agents.

Core capabilities:
- Task trees with materialized hierarchy paths
- Dependency gating with auto-satisfaction on completion
- Specialist context bundles for task handoff
- Timed (interval/one-time/cron) and event-hook agent scheduling
- Append-only audit trail with retention cleanup`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// openRepository opens the configured database and applies migrations.
// The config's database path wins; otherwise the project-local database
// under the current directory is used.
func openRepository(cfg *config.Config) (*state.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		path = state.ProjectDBPath(cwd)
	}

	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
