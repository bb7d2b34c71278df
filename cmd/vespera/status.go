package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/config"
	"github.com/EchoingVesper/vespera-atelier-sub002/internal/orchestrator"
	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

var statusAll bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current task tree",
	Long: `Display aggregate task counts and the task tree.

Completed and archived tasks are hidden by default; pass --all to
include them.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "Include completed and archived tasks")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	report, err := coord.GetStatus(cmd.Context(), statusAll)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	displayCounts(report.Counts)
	fmt.Println()
	displayTasks(report.Tasks)
	return nil
}

func displayCounts(counts map[models.TaskStatus]int) {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		fmt.Println("No tasks. Run 'vespera plan' to create a breakdown.")
		return
	}

	fmt.Printf("Tasks: %d total\n", total)
	order := []models.TaskStatus{
		models.TaskStatusPending,
		models.TaskStatusActive,
		models.TaskStatusInProgress,
		models.TaskStatusBlocked,
		models.TaskStatusCompleted,
		models.TaskStatusFailed,
		models.TaskStatusCancelled,
		models.TaskStatusArchived,
	}
	for _, status := range order {
		n, ok := counts[status]
		if !ok || n == 0 {
			continue
		}
		fmt.Printf("  %s: %d\n", statusColor(status).Sprint(string(status)), n)
	}
}

func displayTasks(tasks []orchestrator.TaskSummary) {
	if len(tasks) == 0 {
		return
	}

	for _, task := range tasks {
		depth := strings.Count(task.HierarchyPath, "/") - 1
		indent := strings.Repeat("  ", depth)

		line := fmt.Sprintf("%s%s %s", indent, statusColor(task.Status).Sprint(statusMark(task.Status)), task.Title)
		if task.SpecialistType != "" {
			line += color.New(color.Faint).Sprintf(" [%s]", task.SpecialistType)
		}
		if task.Progress > 0 && task.Status != models.TaskStatusCompleted {
			line += color.New(color.Faint).Sprintf(" %d%%", task.Progress)
		}
		fmt.Println(line)
	}
}

// statusColor maps a task status to its display color.
func statusColor(status models.TaskStatus) *color.Color {
	switch status {
	case models.TaskStatusActive, models.TaskStatusInProgress:
		return color.New(color.FgGreen)
	case models.TaskStatusBlocked:
		return color.New(color.FgYellow)
	case models.TaskStatusCompleted:
		return color.New(color.FgCyan)
	case models.TaskStatusFailed:
		return color.New(color.FgRed)
	case models.TaskStatusCancelled, models.TaskStatusArchived:
		return color.New(color.Faint)
	default:
		return color.New(color.FgWhite)
	}
}

func statusMark(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusCompleted:
		return "✓"
	case models.TaskStatusActive, models.TaskStatusInProgress:
		return "▶"
	case models.TaskStatusBlocked:
		return "⏸"
	case models.TaskStatusFailed:
		return "✗"
	default:
		return "○"
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
