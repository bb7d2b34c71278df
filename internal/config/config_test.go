package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Timeouts.PerCall != 5*time.Second {
		t.Errorf("expected per-call timeout 5s, got %v", cfg.Timeouts.PerCall)
	}

	if cfg.Timeouts.PerOp != 15*time.Second {
		t.Errorf("expected per-op timeout 15s, got %v", cfg.Timeouts.PerOp)
	}

	if cfg.Timeouts.Synthesis != 30*time.Second {
		t.Errorf("expected synthesis timeout 30s, got %v", cfg.Timeouts.Synthesis)
	}

	if cfg.Executor.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Executor.Workers)
	}

	if cfg.Scheduler.Tick != 30*time.Second {
		t.Errorf("expected scheduler tick 30s, got %v", cfg.Scheduler.Tick)
	}

	if cfg.Scheduler.HistorySize != 1000 {
		t.Errorf("expected history size 1000, got %d", cfg.Scheduler.HistorySize)
	}

	if !cfg.Roles.Watch {
		t.Error("expected roles.watch to be true")
	}

	if cfg.TUI.RefreshRate != time.Second {
		t.Errorf("expected refresh rate 1s, got %v", cfg.TUI.RefreshRate)
	}

	if cfg.Events.Retention != 720*time.Hour {
		t.Errorf("expected event retention 720h, got %v", cfg.Events.Retention)
	}
}

func TestLoadFromPath(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  path: /tmp/custom/state.db
timeouts:
  per_call: 2s
  per_op: 8s
  synthesis: 20s
executor:
  workers: 8
scheduler:
  tick: 10s
  backoff: 30s
  history_size: 50
roles:
  path: /etc/vespera/roles.yaml
  watch: false
tui:
  refresh_rate: 200ms
events:
  retention: 48h
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Database.Path != "/tmp/custom/state.db" {
		t.Errorf("expected database path '/tmp/custom/state.db', got %q", cfg.Database.Path)
	}

	if cfg.Timeouts.PerCall != 2*time.Second {
		t.Errorf("expected per-call timeout 2s, got %v", cfg.Timeouts.PerCall)
	}

	if cfg.Timeouts.PerOp != 8*time.Second {
		t.Errorf("expected per-op timeout 8s, got %v", cfg.Timeouts.PerOp)
	}

	if cfg.Executor.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Executor.Workers)
	}

	if cfg.Scheduler.Tick != 10*time.Second {
		t.Errorf("expected scheduler tick 10s, got %v", cfg.Scheduler.Tick)
	}

	if cfg.Scheduler.HistorySize != 50 {
		t.Errorf("expected history size 50, got %d", cfg.Scheduler.HistorySize)
	}

	if cfg.Roles.Path != "/etc/vespera/roles.yaml" {
		t.Errorf("expected roles path '/etc/vespera/roles.yaml', got %q", cfg.Roles.Path)
	}

	if cfg.Roles.Watch {
		t.Error("expected roles.watch to be false")
	}

	if cfg.TUI.RefreshRate != 200*time.Millisecond {
		t.Errorf("expected refresh rate 200ms, got %v", cfg.TUI.RefreshRate)
	}

	if cfg.Events.Retention != 48*time.Hour {
		t.Errorf("expected event retention 48h, got %v", cfg.Events.Retention)
	}
}

func TestLoadFromPathDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// A sparse config keeps defaults for everything it omits.
	configContent := `
executor:
  workers: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Executor.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Executor.Workers)
	}

	if cfg.Timeouts.PerCall != 5*time.Second {
		t.Errorf("expected default per-call timeout 5s, got %v", cfg.Timeouts.PerCall)
	}

	if cfg.Scheduler.HistorySize != 1000 {
		t.Errorf("expected default history size 1000, got %d", cfg.Scheduler.HistorySize)
	}
}

func TestDatabasePathExpandsEnv(t *testing.T) {
	os.Setenv("TEST_STATE_DIR", "/srv/vespera")
	defer os.Unsetenv("TEST_STATE_DIR")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  path: ${TEST_STATE_DIR}/state.db
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Database.Path != "/srv/vespera/state.db" {
		t.Errorf("expected expanded path '/srv/vespera/state.db', got %q", cfg.Database.Path)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/vespera"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer os.Unsetenv("XDG_CONFIG_HOME")

	cfg := Default()
	cfg.Executor.Workers = 6
	cfg.Scheduler.Tick = 45 * time.Second

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(filepath.Join(tmpDir, "vespera", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if loaded.Executor.Workers != 6 {
		t.Errorf("expected 6 workers after reload, got %d", loaded.Executor.Workers)
	}

	if loaded.Scheduler.Tick != 45*time.Second {
		t.Errorf("expected tick 45s after reload, got %v", loaded.Scheduler.Tick)
	}
}
