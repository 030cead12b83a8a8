package models

import "time"

// AgentState represents the current state of an agent's step machine.
type AgentState string

const (
	// AgentIdle indicates the agent has no pending action and can accept work.
	AgentIdle AgentState = "idle"
	// AgentThinking indicates the reasoning provider is being invoked.
	AgentThinking AgentState = "thinking"
	// AgentActing indicates an emitted action is being validated for dispatch.
	AgentActing AgentState = "acting"
	// AgentAwaitingTool indicates the agent is suspended on a tool call.
	AgentAwaitingTool AgentState = "awaiting_tool"
	// AgentFailed indicates the agent hit an unrecoverable error.
	AgentFailed AgentState = "failed"
	// AgentTerminated indicates the agent completed its goal and was released.
	AgentTerminated AgentState = "terminated"
)

// Valid returns true if the state is a known value.
func (s AgentState) Valid() bool {
	switch s {
	case AgentIdle, AgentThinking, AgentActing, AgentAwaitingTool, AgentFailed, AgentTerminated:
		return true
	default:
		return false
	}
}

// Busy returns true if the state counts against the concurrency limit.
// Thinking and AwaitingTool are the states where external calls are in flight.
func (s AgentState) Busy() bool {
	return s == AgentThinking || s == AgentAwaitingTool
}

// Agent is the record of an agent visible outside the engine.
// The engine owns the live state machine; this snapshot is what the state
// store and event subscribers see.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// TaskID is the ID of the task the agent is assigned to.
	TaskID string `json:"task_id"`
	// State is the agent's current step-machine state.
	State AgentState `json:"state"`
	// ErrorCount is the number of failures the agent has seen on this task.
	ErrorCount int `json:"error_count,omitempty"`
	// StartedAt is when the agent was created.
	StartedAt time.Time `json:"started_at"`
}
