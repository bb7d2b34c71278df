// Package state provides the SQLite-backed task repository.
package state

import (
	"io"
	"time"

	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// TaskStore handles task CRUD and hierarchy operations.
type TaskStore interface {
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	UpdateTask(t *models.Task) error
	DeleteTask(id string) error
	HardDeleteTask(id string) error
	GetChildren(parentID string) ([]*models.Task, error)
	GetSubtree(taskID string, maxDepth int) ([]*models.Task, error)
	GetAncestors(taskID string) ([]*models.Task, error)
	MoveTask(taskID, newParentID string, position int) error
	QueryTasks(filter TaskFilter, orderBy string, limit, offset int) ([]*models.Task, error)
	CountByStatus() (map[models.TaskStatus]int, error)
}

// DependencyStore handles dependency edge operations.
type DependencyStore interface {
	AddDependency(dep *models.TaskDependency) error
	CheckDependencies(taskID string) (*DependencyCheck, error)
	ListDependencies(taskID string) ([]models.TaskDependency, error)
	ListDependents(taskID string) ([]models.TaskDependency, error)
	UpdateDependencyStatus(depID string, status models.DependencyStatus) error
	SatisfyDependentsOf(prerequisiteID string) error
	GetDependencyGraph(rootID string) (*DependencyGraph, error)
}

// AttributeStore handles typed attributes and artifact references.
type AttributeStore interface {
	SetAttribute(attr models.TaskAttribute) error
	GetAttributes(taskID string) ([]models.TaskAttribute, error)
	SearchByAttribute(name, value string, indexedOnly bool) ([]models.TaskAttribute, error)
	AddArtifact(artifact *models.TaskArtifact) error
	ListArtifacts(taskID string) ([]models.TaskArtifact, error)
}

// EventStore handles the append-only audit trail.
type EventStore interface {
	AppendEvent(event *models.TaskEvent) error
	ListEvents(taskID string, limit int) ([]models.TaskEvent, error)
	PurgeEvents(olderThan time.Duration) (int64, error)
}

// AgentStore handles timed and hook agent definitions.
type AgentStore interface {
	SaveTimedAgent(agent *models.TimedAgentDefinition) error
	GetTimedAgent(agentID string) (*models.TimedAgentDefinition, error)
	ListTimedAgents(activeOnly bool) ([]*models.TimedAgentDefinition, error)
	SaveHookAgent(hook *models.HookAgentDefinition) error
	GetHookAgent(hookID string) (*models.HookAgentDefinition, error)
	ListHookAgents(eventName string) ([]*models.HookAgentDefinition, error)
	SetAgentActive(agentID string, active bool) error
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Repository is the full persistence contract the coordinator and the
// scheduler depend on. It composes focused sub-interfaces so components
// can declare exactly what they need.
type Repository interface {
	io.Closer
	Migrator
	TaskStore
	DependencyStore
	AttributeStore
	EventStore
	AgentStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Repository      = (*DB)(nil)
	_ Migrator        = (*DB)(nil)
	_ TaskStore       = (*DB)(nil)
	_ DependencyStore = (*DB)(nil)
	_ AttributeStore  = (*DB)(nil)
	_ EventStore      = (*DB)(nil)
	_ AgentStore      = (*DB)(nil)
)
