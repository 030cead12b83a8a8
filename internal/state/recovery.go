package state

import (
	"fmt"

	"github.com/elysiumlabs/atlas/pkg/models"
)

// RecoveredState holds everything needed to rebuild an engine's in-memory
// graph after a restart.
type RecoveredState struct {
	SessionID string
	Tasks     []*models.Task
	Deps      map[string][]string
	Requeued  []string
}

// Recover loads the most recent active session and its task snapshots.
// Tasks that were Running when the process died are requeued as Ready:
// their tool effects may or may not have happened, so recovery gives
// at-least-once semantics for non-idempotent side effects. Returns nil
// when there is no active session to resume.
func (db *DB) Recover() (*RecoveredState, error) {
	sessions, err := db.ActiveSessions()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	sessionID := sessions[len(sessions)-1]

	tasks, deps, err := db.LoadTasks(sessionID)
	if err != nil {
		return nil, fmt.Errorf("recover session %s: %w", sessionID, err)
	}

	var requeued []string
	for _, task := range tasks {
		if task.Status != models.TaskStatusRunning {
			continue
		}
		task.Status = models.TaskStatusReady
		task.AssignedTo = ""
		if err := db.UpdateTaskStatus(task.ID, models.TaskStatusReady); err != nil {
			return nil, err
		}
		requeued = append(requeued, task.ID)
	}

	// Agent snapshots are only meaningful while the owning process lives.
	if _, err := db.Exec("DELETE FROM agents"); err != nil {
		return nil, fmt.Errorf("clear stale agents: %w", err)
	}

	return &RecoveredState{
		SessionID: sessionID,
		Tasks:     tasks,
		Deps:      deps,
		Requeued:  requeued,
	}, nil
}
