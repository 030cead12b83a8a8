// Package orchestrator runs the engine loop that coordinates agents,
// the task graph, the tool registry, and the message bus.
package orchestrator

import (
	"time"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventTaskQueued indicates a task was accepted into the graph.
	EventTaskQueued EventType = "task_queued"
	// EventTaskStarted indicates an agent was assigned and began working.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskCancelled indicates a task was cancelled.
	EventTaskCancelled EventType = "task_cancelled"
	// EventToolInvoked indicates a tool call was dispatched.
	EventToolInvoked EventType = "tool_invoked"
	// EventToolRetried indicates a failed tool call is being retried.
	EventToolRetried EventType = "tool_retried"
	// EventMessageSent indicates an agent published a message.
	EventMessageSent EventType = "message_sent"
	// EventRunPaused indicates the engine stopped scheduling new work.
	EventRunPaused EventType = "run_paused"
	// EventRunResumed indicates the engine resumed scheduling.
	EventRunResumed EventType = "run_resumed"
	// EventRunComplete indicates every task in the graph is terminal.
	EventRunComplete EventType = "run_complete"
)

// Event represents an observable state change in the engine.
// Subscribers receive these to track progress.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// AgentID is the ID of the related agent, if applicable.
	AgentID string
	// Tool is the tool name for tool events.
	Tool string
	// Attempt is the invocation attempt number for tool events.
	Attempt int
	// Message provides additional context about the event.
	Message string
	// Result carries the task result for completion events.
	Result any
	// Err contains error details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// terminalEvent reports whether the event ends its task's lifecycle.
func (e Event) terminalEvent() bool {
	switch e.Type {
	case EventTaskCompleted, EventTaskFailed, EventTaskCancelled:
		return true
	default:
		return false
	}
}
