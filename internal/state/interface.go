package state

import (
	"time"

	"github.com/elysiumlabs/atlas/pkg/models"
)

// SessionStore manages session lifecycle records.
type SessionStore interface {
	CreateSession(id string, startedAt time.Time) error
	CloseSession(id string) error
	ActiveSessions() ([]string, error)
}

// TaskStore persists task snapshots.
type TaskStore interface {
	SaveTask(sessionID string, task *models.Task, dependsOn []string) error
	LoadTasks(sessionID string) ([]*models.Task, map[string][]string, error)
	UpdateTaskStatus(taskID string, status models.TaskStatus) error
}

// AgentStore persists agent snapshots.
type AgentStore interface {
	SaveAgent(a models.Agent) error
	DeleteAgent(id string) error
	LoadAgents() ([]models.Agent, error)
}

// Store is the full persistence interface the engine depends on.
type Store interface {
	SessionStore
	TaskStore
	AgentStore
	Recover() (*RecoveredState, error)
	Migrate() error
	Close() error
}

// Compile-time interface checks.
var (
	_ SessionStore = (*DB)(nil)
	_ TaskStore    = (*DB)(nil)
	_ AgentStore   = (*DB)(nil)
	_ Store        = (*DB)(nil)
)
