package main

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/config"
	"github.com/EchoingVesper/vespera-atelier-sub002/internal/orchestrator"
	"github.com/EchoingVesper/vespera-atelier-sub002/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent scheduler",
	Long: `Run the agent scheduler loop until interrupted.

Timed agents fire on their schedules and hook agents stay registered for
event dispatch. Registrations persist in the task database, so agents
registered before a restart keep firing after it.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	exec := orchestrator.NewBackgroundExecutor(cfg.Executor.Workers)
	defer exec.Stop()

	var roles orchestrator.RoleLookup
	if cfg.Roles.Path != "" {
		fileRoles, err := orchestrator.NewFileRoles(cfg.Roles.Path)
		if err != nil {
			return fmt.Errorf("load roles: %w", err)
		}
		defer fileRoles.Close()
		if cfg.Roles.Watch {
			if err := fileRoles.Watch(); err != nil {
				log.Printf("[serve] role file watch unavailable: %v", err)
			}
		}
		roles = fileRoles
	}

	sched := scheduler.New(db, exec, scheduler.Config{
		Tick:        cfg.Scheduler.Tick,
		Backoff:     cfg.Scheduler.Backoff,
		HistorySize: cfg.Scheduler.HistorySize,
	})

	coord := orchestrator.NewCoordinator(db, roles, orchestrator.Timeouts{
		PerCall:   cfg.Timeouts.PerCall,
		PerOp:     cfg.Timeouts.PerOp,
		Synthesis: cfg.Timeouts.Synthesis,
	})
	svc := orchestrator.NewService(coord, sched)
	caps := svc.InitializeSession()
	log.Printf("[serve] %s %s ready, %d operations", caps.Name, caps.Version, len(caps.Operations))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("vespera scheduler running, Ctrl+C to stop")
	sched.Run(ctx)
	return nil
}
