package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elysiumlabs/atlas/pkg/models"
)

// CreateSession inserts a new session record.
func (db *DB) CreateSession(id string, startedAt time.Time) error {
	_, err := db.Exec(
		"INSERT INTO sessions (id, started_at, status) VALUES (?, ?, 'active')",
		id, formatTime(startedAt),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// CloseSession marks a session as completed.
func (db *DB) CloseSession(id string) error {
	_, err := db.Exec("UPDATE sessions SET status = 'completed' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// ActiveSessions returns the IDs of sessions still marked active.
func (db *DB) ActiveSessions() ([]string, error) {
	rows, err := db.Query("SELECT id FROM sessions WHERE status = 'active' ORDER BY started_at")
	if err != nil {
		return nil, fmt.Errorf("query active sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveTask inserts or replaces a task snapshot.
func (db *DB) SaveTask(sessionID string, task *models.Task, dependsOn []string) error {
	var resultJSON sql.NullString
	if task.Result != nil {
		data, err := json.Marshal(task.Result)
		if err != nil {
			return fmt.Errorf("marshal task result: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	var deadline, completedAt sql.NullString
	if task.Deadline != nil {
		deadline = sql.NullString{String: formatTime(*task.Deadline), Valid: true}
	}
	if task.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*task.CompletedAt), Valid: true}
	}

	_, err := db.Exec(`
		INSERT OR REPLACE INTO tasks
			(id, session_id, goal, status, depends_on, assigned_to, result,
			 retry_count, priority, created_at, deadline, completed_at, error, failure_origin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, sessionID, task.Goal, string(task.Status),
		strings.Join(dependsOn, ","), task.AssignedTo, resultJSON,
		task.RetryCount, task.Priority, formatTime(task.CreatedAt),
		deadline, completedAt, task.Error, task.FailureOrigin,
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// LoadTasks returns all task snapshots for a session, with their dependency
// lists, ordered by creation time.
func (db *DB) LoadTasks(sessionID string) ([]*models.Task, map[string][]string, error) {
	rows, err := db.Query(`
		SELECT id, goal, status, depends_on, assigned_to, result,
		       retry_count, priority, created_at, deadline, completed_at, error, failure_origin
		FROM tasks WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	deps := make(map[string][]string)
	for rows.Next() {
		task, taskDeps, err := scanTask(rows)
		if err != nil {
			return nil, nil, err
		}
		tasks = append(tasks, task)
		deps[task.ID] = taskDeps
	}
	return tasks, deps, rows.Err()
}

func scanTask(rows *sql.Rows) (*models.Task, []string, error) {
	var task models.Task
	var status, dependsOn string
	var assignedTo, result, errMsg, failureOrigin sql.NullString
	var createdAt string
	var deadline, completedAt sql.NullString

	err := rows.Scan(&task.ID, &task.Goal, &status, &dependsOn, &assignedTo,
		&result, &task.RetryCount, &task.Priority, &createdAt,
		&deadline, &completedAt, &errMsg, &failureOrigin)
	if err != nil {
		return nil, nil, fmt.Errorf("scan task: %w", err)
	}

	task.Status = models.TaskStatus(status)
	task.AssignedTo = assignedTo.String
	task.Error = errMsg.String
	task.FailureOrigin = failureOrigin.String

	if result.Valid {
		var v any
		if err := json.Unmarshal([]byte(result.String), &v); err == nil {
			task.Result = v
		}
	}

	task.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, nil, fmt.Errorf("parse task created_at: %w", err)
	}
	task.Deadline = parseNullableTime(deadline)
	task.CompletedAt = parseNullableTime(completedAt)

	var taskDeps []string
	if dependsOn != "" {
		taskDeps = strings.Split(dependsOn, ",")
	}
	task.DependsOn = taskDeps
	return &task, taskDeps, nil
}

// UpdateTaskStatus updates just the status column for a task.
func (db *DB) UpdateTaskStatus(taskID string, status models.TaskStatus) error {
	res, err := db.Exec("UPDATE tasks SET status = ? WHERE id = ?", string(status), taskID)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update task status: task %s not found", taskID)
	}
	return nil
}

// SaveAgent inserts or replaces an agent snapshot.
func (db *DB) SaveAgent(a models.Agent) error {
	var startedAt sql.NullString
	if !a.StartedAt.IsZero() {
		startedAt = sql.NullString{String: formatTime(a.StartedAt), Valid: true}
	}
	_, err := db.Exec(`
		INSERT OR REPLACE INTO agents (id, task_id, state, error_count, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, string(a.State), a.ErrorCount, startedAt,
	)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", a.ID, err)
	}
	return nil
}

// DeleteAgent removes an agent snapshot once its task is terminal.
func (db *DB) DeleteAgent(id string) error {
	_, err := db.Exec("DELETE FROM agents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", id, err)
	}
	return nil
}

// LoadAgents returns all persisted agent snapshots.
func (db *DB) LoadAgents() ([]models.Agent, error) {
	rows, err := db.Query("SELECT id, task_id, state, error_count, started_at FROM agents")
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var a models.Agent
		var state string
		var startedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.TaskID, &state, &a.ErrorCount, &startedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.State = models.AgentState(state)
		if t := parseNullableTime(startedAt); t != nil {
			a.StartedAt = *t
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}
