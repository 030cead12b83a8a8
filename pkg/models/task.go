package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting on dependencies.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates all dependencies are satisfied and the task
	// can be scheduled.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusRunning indicates an agent is working on the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusBlocked indicates the task cannot proceed.
	TaskStatusBlocked TaskStatus = "blocked"
	// TaskStatusSucceeded indicates the task completed successfully.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled before completion,
	// either explicitly or because a dependency failed.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusRunning, TaskStatusBlocked,
		TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is one a task never leaves.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Task represents a unit of work in the orchestration engine.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Goal is the natural-language description of what the task must achieve.
	Goal string `json:"goal"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// DependsOn lists task IDs that must succeed before this task runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// AssignedTo is the ID of the agent working on this task.
	AssignedTo string `json:"assigned_to,omitempty"`
	// Result holds the opaque result payload once the task succeeds.
	Result any `json:"result,omitempty"`
	// RetryCount is the number of times the current tool call has been retried.
	RetryCount int `json:"retry_count,omitempty"`
	// Priority orders scheduling; lower values are scheduled first.
	Priority int `json:"priority,omitempty"`
	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`
	// Deadline is the wall-clock time after which the task is force-failed.
	// Nil means no deadline.
	Deadline *time.Time `json:"deadline,omitempty"`
	// CompletedAt is when the task reached a terminal status, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error contains the error message if the task failed or was cancelled.
	Error string `json:"error,omitempty"`
	// FailureOrigin is the ID of the task whose failure cancelled this one.
	// Empty unless Status is cancelled due to a dependency failure.
	FailureOrigin string `json:"failure_origin,omitempty"`
}
