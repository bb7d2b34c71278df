package orchestrator

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// Role describes a specialist role: what the specialist is and how it
// should approach work handed to it.
type Role struct {
	// Name is the specialist type the role binds to.
	Name string `yaml:"name"`
	// Description tells the specialist what it is.
	Description string `yaml:"description"`
	// Approach is free-form guidance on how to work.
	Approach string `yaml:"approach,omitempty"`
	// Capabilities lists what the role is expected to be able to do.
	Capabilities []string `yaml:"capabilities,omitempty"`
}

// RoleLookup resolves a specialist type to a role definition.
type RoleLookup interface {
	// Lookup returns the role for a specialist type and whether one
	// was found.
	Lookup(spec models.SpecialistType) (Role, bool)
}

// builtinRoles is the fallback role table keyed by built-in specialist
// type. Project role files override these.
var builtinRoles = map[models.SpecialistType]Role{
	models.SpecialistArchitect: {
		Name:        "architect",
		Description: "Designs system structure and component boundaries before implementation begins.",
		Approach:    "Favor small, composable pieces. Record decisions and their tradeoffs.",
	},
	models.SpecialistImplementer: {
		Name:        "implementer",
		Description: "Writes the code a task describes, following the surrounding codebase's conventions.",
		Approach:    "Read neighboring code first. Keep changes narrow and tested.",
	},
	models.SpecialistResearcher: {
		Name:        "researcher",
		Description: "Investigates open questions and reports findings with references.",
		Approach:    "Prefer primary sources. State confidence and what was not verified.",
	},
	models.SpecialistTester: {
		Name:        "tester",
		Description: "Exercises completed work and reports defects with reproduction steps.",
		Approach:    "Test the contract, not the implementation. Edge cases first.",
	},
	models.SpecialistDocumenter: {
		Name:        "documenter",
		Description: "Writes user- and developer-facing documentation for completed work.",
		Approach:    "Document what exists, not what is planned.",
	},
	models.SpecialistReviewer: {
		Name:        "reviewer",
		Description: "Reviews completed work against its task description and acceptance criteria.",
		Approach:    "Flag correctness issues over style. Be specific about required changes.",
	},
	models.SpecialistDebugger: {
		Name:        "debugger",
		Description: "Diagnoses reported failures and identifies root causes.",
		Approach:    "Reproduce before theorizing. Fix causes, not symptoms.",
	},
	models.SpecialistCoordinator: {
		Name:        "coordinator",
		Description: "Breaks large work into subtasks and sequences them.",
		Approach:    "Keep subtasks independently completable. Make dependencies explicit.",
	},
}

// BuiltinRoles is a RoleLookup over the built-in role table only.
type BuiltinRoles struct{}

// Lookup implements RoleLookup.
func (BuiltinRoles) Lookup(spec models.SpecialistType) (Role, bool) {
	role, ok := builtinRoles[spec]
	return role, ok
}

// FileRoles loads role definitions from a project YAML file and answers
// lookups from an in-memory cache, falling back to the built-in table for
// types the file does not define. When a watcher is attached, edits to
// the file reload the cache live.
type FileRoles struct {
	path string

	mu    sync.RWMutex
	roles map[models.SpecialistType]Role

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// roleFile is the YAML document shape of a role definitions file.
type roleFile struct {
	Roles []Role `yaml:"roles"`
}

// NewFileRoles loads the role file at path. A missing file is not an
// error; lookups then resolve from the built-in table alone.
func NewFileRoles(path string) (*FileRoles, error) {
	fr := &FileRoles{
		path:  path,
		roles: make(map[models.SpecialistType]Role),
	}
	if err := fr.reload(); err != nil {
		return nil, err
	}
	return fr, nil
}

// Watch starts live reloading of the role file. Call Close to stop.
func (fr *FileRoles) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create role watcher: %w", err)
	}
	if err := watcher.Add(fr.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch role file %s: %w", fr.path, err)
	}

	fr.watcher = watcher
	fr.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := fr.reload(); err != nil {
					log.Printf("[roles] reload of %s failed, keeping previous definitions: %v", fr.path, err)
					continue
				}
				log.Printf("[roles] reloaded role definitions from %s", fr.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[roles] watcher error: %v", err)
			case <-fr.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the file watcher if one is running.
func (fr *FileRoles) Close() error {
	if fr.watcher == nil {
		return nil
	}
	close(fr.done)
	return fr.watcher.Close()
}

// reload parses the role file and swaps the cache. A missing file leaves
// the cache empty rather than failing.
func (fr *FileRoles) reload() error {
	data, err := os.ReadFile(fr.path)
	if os.IsNotExist(err) {
		fr.mu.Lock()
		fr.roles = make(map[models.SpecialistType]Role)
		fr.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read role file %s: %w", fr.path, err)
	}

	var doc roleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse role file %s: %w", fr.path, err)
	}

	roles := make(map[models.SpecialistType]Role, len(doc.Roles))
	for _, role := range doc.Roles {
		spec, err := models.ParseSpecialistType(role.Name)
		if err != nil {
			return fmt.Errorf("role file %s: %w", fr.path, err)
		}
		roles[spec] = role
	}

	fr.mu.Lock()
	fr.roles = roles
	fr.mu.Unlock()
	return nil
}

// Lookup implements RoleLookup with built-in fallback.
func (fr *FileRoles) Lookup(spec models.SpecialistType) (Role, bool) {
	fr.mu.RLock()
	role, ok := fr.roles[spec]
	fr.mu.RUnlock()
	if ok {
		return role, true
	}
	return BuiltinRoles{}.Lookup(spec)
}

var (
	_ RoleLookup = BuiltinRoles{}
	_ RoleLookup = (*FileRoles)(nil)
)
