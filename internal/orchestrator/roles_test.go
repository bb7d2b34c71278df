package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

func TestBuiltinRolesCoverAllSpecialists(t *testing.T) {
	lookup := BuiltinRoles{}
	for _, spec := range models.BuiltinSpecialists() {
		role, ok := lookup.Lookup(spec)
		if !ok {
			t.Errorf("no built-in role for %s", spec)
			continue
		}
		if role.Name != string(spec) {
			t.Errorf("role name %q does not match specialist %q", role.Name, spec)
		}
		if role.Description == "" {
			t.Errorf("role %s has no description", spec)
		}
	}
}

func TestBuiltinRolesUnknownSpecialist(t *testing.T) {
	if _, ok := (BuiltinRoles{}).Lookup("custom_thing"); ok {
		t.Error("built-in lookup resolved a custom specialist")
	}
}

func writeRoleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roles.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write role file: %v", err)
	}
	return path
}

func TestFileRolesOverrideAndFallback(t *testing.T) {
	path := writeRoleFile(t, `
roles:
  - name: implementer
    description: Project-specific implementer guidance.
    approach: Always run the linters.
  - name: data_wrangler
    description: Handles data migration tasks.
`)
	fr, err := NewFileRoles(path)
	if err != nil {
		t.Fatalf("NewFileRoles failed: %v", err)
	}

	role, ok := fr.Lookup(models.SpecialistImplementer)
	if !ok {
		t.Fatal("implementer not found")
	}
	if role.Description != "Project-specific implementer guidance." {
		t.Errorf("file role did not override builtin: %+v", role)
	}

	custom, ok := fr.Lookup("data_wrangler")
	if !ok || custom.Description != "Handles data migration tasks." {
		t.Errorf("custom role lookup = %+v, %v", custom, ok)
	}

	// Types the file does not define fall back to the built-in table.
	fallback, ok := fr.Lookup(models.SpecialistTester)
	if !ok || fallback.Name != "tester" {
		t.Errorf("builtin fallback = %+v, %v", fallback, ok)
	}
}

func TestFileRolesMissingFile(t *testing.T) {
	fr, err := NewFileRoles(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("NewFileRoles on missing file failed: %v", err)
	}
	if _, ok := fr.Lookup(models.SpecialistArchitect); !ok {
		t.Error("missing file broke builtin fallback")
	}
}

func TestFileRolesRejectsBadName(t *testing.T) {
	path := writeRoleFile(t, `
roles:
  - name: "NOT A VALID NAME"
    description: nope
`)
	if _, err := NewFileRoles(path); err == nil {
		t.Error("invalid role name accepted")
	}
}

func TestFileRolesReload(t *testing.T) {
	path := writeRoleFile(t, `
roles:
  - name: implementer
    description: First version.
`)
	fr, err := NewFileRoles(path)
	if err != nil {
		t.Fatalf("NewFileRoles failed: %v", err)
	}

	if err := os.WriteFile(path, []byte(`
roles:
  - name: implementer
    description: Second version.
`), 0644); err != nil {
		t.Fatalf("rewrite role file: %v", err)
	}
	if err := fr.reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	role, _ := fr.Lookup(models.SpecialistImplementer)
	if role.Description != "Second version." {
		t.Errorf("reload did not take: %+v", role)
	}
}
