package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/state"
)

var (
	initForce      bool
	initWithConfig bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Vespera project",
	Long: `Initialize a directory for use with Vespera.

This command sets up everything needed to run Vespera:
  - Creates the .vespera state directory
  - Creates and migrates the task database
  - Optionally creates a project configuration template

The directory argument is optional and defaults to the current directory.

Examples:
  vespera init                # Initialize current directory
  vespera init ./myproject    # Initialize specific directory
  vespera init --force        # Reinitialize even if already set up
  vespera init --with-config  # Create a .vespera.yaml template`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithConfig, "with-config", false, "Create a .vespera.yaml template")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Vespera in %s...\n\n", absPath)

	vesperaDir := filepath.Join(absPath, ".vespera")
	if _, err := os.Stat(vesperaDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	if err := os.MkdirAll(vesperaDir, 0755); err != nil {
		return fmt.Errorf("creating .vespera directory: %w", err)
	}
	printStatus("✓", "Created .vespera directory", color.FgGreen)

	db, err := state.OpenProject(absPath)
	if err != nil {
		printStatus("✗", "Database creation failed", color.FgRed)
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		printStatus("✗", "Database migration failed", color.FgRed)
		return fmt.Errorf("migrate database: %w", err)
	}
	printStatus("✓", "Created task database", color.FgGreen)

	if initWithConfig {
		if err := createProjectConfig(absPath); err != nil {
			return fmt.Errorf("creating project config: %w", err)
		}
		printStatus("✓", "Created .vespera.yaml template", color.FgGreen)
	}

	fmt.Printf("\n%s Vespera initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  vespera plan \"your task here\" --specs subtasks.json")
	fmt.Println("  vespera status")
	fmt.Println("  vespera serve   # run the agent scheduler")

	return nil
}

// createProjectConfig creates a .vespera.yaml template
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, ".vespera.yaml")

	// Don't overwrite an existing config
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	template := `# Vespera Project Configuration
# This file overrides defaults from ~/.config/vespera/config.yaml

# database:
#   path: .vespera/state.db

# timeouts:
#   per_call: 5s
#   per_op: 15s
#   synthesis: 30s

# executor:
#   workers: 4

# scheduler:
#   tick: 30s
#   backoff: 60s
#   history_size: 1000

# roles:
#   path: roles.yaml
#   watch: true

# events:
#   retention: 720h
`

	return os.WriteFile(configPath, []byte(template), 0644)
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
