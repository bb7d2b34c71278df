package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/config"
	"github.com/EchoingVesper/vespera-atelier-sub002/internal/orchestrator"
)

var (
	planComplexity string
	planSpecsFile  string
)

var planCmd = &cobra.Command{
	Use:   "plan <description>",
	Short: "Plan a task breakdown",
	Long: `Create a breakdown root task with specialist-assigned subtasks.

The subtask specifications are a JSON array of objects with title,
description, task_type, specialist_type, and depends_on fields, read
from --specs or from stdin.

Examples:
  vespera plan "Ship the login feature" --specs subtasks.json
  cat subtasks.json | vespera plan "Ship the login feature" --specs -`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planComplexity, "complexity", "moderate", "Breakdown complexity (simple, moderate, complex)")
	planCmd.Flags().StringVar(&planSpecsFile, "specs", "", "Subtask specification JSON file ('-' for stdin)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	specs, err := readSpecs(planSpecsFile)
	if err != nil {
		return err
	}

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

	breakdown, err := coord.PlanTask(cmd.Context(), args[0], planComplexity, specs, nil)
	if err != nil {
		return fmt.Errorf("plan task: %w", err)
	}

	fmt.Printf("%s Created breakdown %s\n\n", color.GreenString("✓"), breakdown.Root.ID)
	fmt.Printf("  %s\n", breakdown.Root.Title)
	for _, sub := range breakdown.Subtasks {
		line := fmt.Sprintf("    %d. %s", sub.PositionInParent+1, sub.Title)
		if sub.SpecialistType != "" {
			line += color.New(color.Faint).Sprintf(" [%s]", sub.SpecialistType)
		}
		fmt.Println(line)
	}
	fmt.Printf("\nRun 'vespera status' to watch progress.\n")
	return nil
}

// readSpecs reads the subtask specification JSON from a file or stdin.
func readSpecs(path string) (string, error) {
	switch path {
	case "":
		return "", fmt.Errorf("--specs is required (use '-' to read from stdin)")
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading specs from stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading specs file: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", fmt.Errorf("specs file %s is empty", path)
		}
		return string(data), nil
	}
}
