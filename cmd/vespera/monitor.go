package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/config"
	"github.com/EchoingVesper/vespera-atelier-sub002/internal/orchestrator"
	"github.com/EchoingVesper/vespera-atelier-sub002/internal/tui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live task tree monitor",
	Long: `Open a live view of the task tree that refreshes on an interval.

Keys:
  c  toggle completed tasks
  r  refresh now
  q  quit`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	coord := orchestrator.NewCoordinator(db, nil, orchestrator.Timeouts{
		PerCall:   cfg.Timeouts.PerCall,
		PerOp:     cfg.Timeouts.PerOp,
		Synthesis: cfg.Timeouts.Synthesis,
	})

	model := tui.NewMonitor(coord, cfg.TUI.RefreshRate)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}
