// Package tui provides the terminal user interface for Vespera's monitor command.
//
// This package contains a read-only TUI that polls the coordinator's status
// report on a refresh interval and displays:
//   - Aggregate task counts per status
//   - The task tree in hierarchy order with status, specialist, and progress
//   - The most recent agent executions
//
// The TUI is read-only and does not support task submission. Users can toggle
// completed tasks with 'c' and quit with 'q' or Ctrl+C.
//
// Usage:
//
//	model := tui.NewMonitor(provider, time.Second)
//	program := tea.NewProgram(model, tea.WithAltScreen())
//	program.Run()
package tui
