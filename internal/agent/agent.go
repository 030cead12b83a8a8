// Package agent provides the agent state machine and its bounded memory.
// An agent is a stateful unit holding a goal, memory, and a reference to a
// reasoning provider; the orchestrator advances it one step at a time.
package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/elysiumlabs/atlas/pkg/models"
)

// Agent is the live state machine behind a models.Agent record. It is owned
// and mutated exclusively by the orchestrator's scheduling loop; the provider
// and tool goroutines only ever see copies of its data.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string
	// TaskID is the task the agent is assigned to.
	TaskID string
	// Goal is the assigned task's goal description.
	Goal string

	state      models.AgentState
	memory     *Memory
	pending    *models.ToolCall
	errorCount int
	cancelReq  bool
	startedAt  time.Time
}

// New creates an idle agent assigned to the given task.
func New(taskID, goal string, memoryLimit int) *Agent {
	return &Agent{
		ID:        uuid.New().String()[:8],
		TaskID:    taskID,
		Goal:      goal,
		state:     models.AgentIdle,
		memory:    NewMemory(memoryLimit),
		startedAt: time.Now(),
	}
}

// State returns the agent's current state.
func (a *Agent) State() models.AgentState {
	return a.state
}

// transition validates and applies a state change.
func (a *Agent) transition(to models.AgentState) error {
	if !allowedTransition(a.state, to) {
		return fmt.Errorf("agent %s: disallowed transition %s -> %s", a.ID, a.state, to)
	}
	a.state = to
	return nil
}

// allowedTransition encodes the success loop Idle -> Thinking -> Acting ->
// AwaitingTool -> Idle, the failure edges from Thinking, Acting, and
// AwaitingTool, and termination from Idle.
func allowedTransition(from, to models.AgentState) bool {
	switch from {
	case models.AgentIdle:
		return to == models.AgentThinking || to == models.AgentTerminated
	case models.AgentThinking:
		return to == models.AgentActing || to == models.AgentIdle || to == models.AgentFailed
	case models.AgentActing:
		return to == models.AgentAwaitingTool || to == models.AgentIdle || to == models.AgentFailed
	case models.AgentAwaitingTool:
		return to == models.AgentAwaitingTool || to == models.AgentIdle || to == models.AgentFailed
	default:
		return false
	}
}

// BeginThinking moves the agent into Thinking. The caller dispatches the
// provider call; no other transition is allowed until it resolves.
func (a *Agent) BeginThinking() error {
	return a.transition(models.AgentThinking)
}

// BeginActing moves the agent into Acting for action validation.
func (a *Agent) BeginActing() error {
	return a.transition(models.AgentActing)
}

// BeginAwaitingTool suspends the agent on a dispatched tool call. An agent
// holds at most one in-flight call; a second dispatch without resolution is a
// bug in the caller.
func (a *Agent) BeginAwaitingTool(call *models.ToolCall) error {
	if a.pending != nil && a.pending.Status == models.ToolCallInFlight && a.pending.CorrelationID != call.CorrelationID {
		return fmt.Errorf("agent %s already has tool call %s in flight", a.ID, a.pending.CorrelationID)
	}
	if err := a.transition(models.AgentAwaitingTool); err != nil {
		return err
	}
	a.pending = call
	return nil
}

// ResolveTool consumes the pending tool call and returns the agent to Idle,
// appending the result to memory.
func (a *Agent) ResolveTool(result any) error {
	if a.pending == nil {
		return fmt.Errorf("agent %s has no pending tool call", a.ID)
	}
	if err := a.transition(models.AgentIdle); err != nil {
		return err
	}
	a.memory.Append(Observation{
		Kind:    ObservationToolResult,
		Source:  a.pending.Tool,
		Content: result,
	})
	a.pending = nil
	return nil
}

// RetryTool replaces the pending call with its retry, keeping the same
// correlation root. The agent stays in AwaitingTool.
func (a *Agent) RetryTool(call *models.ToolCall) error {
	if a.pending == nil {
		return fmt.Errorf("agent %s has no pending tool call to retry", a.ID)
	}
	if call.CorrelationID != a.pending.CorrelationID {
		return fmt.Errorf("agent %s: retry changes correlation id", a.ID)
	}
	a.errorCount++
	a.pending = call
	return nil
}

// BackToIdle returns a Thinking or Acting agent to Idle. Used when the action
// was a message (the suspension point is the delivery ack) and when thinking
// is cancelled cooperatively.
func (a *Agent) BackToIdle() error {
	if err := a.transition(models.AgentIdle); err != nil {
		return err
	}
	a.pending = nil
	return nil
}

// Fail moves the agent to its terminal Failed state.
func (a *Agent) Fail() error {
	if err := a.transition(models.AgentFailed); err != nil {
		return err
	}
	a.errorCount++
	a.pending = nil
	return nil
}

// Terminate releases an idle agent after its goal completed.
func (a *Agent) Terminate() error {
	if err := a.transition(models.AgentTerminated); err != nil {
		return err
	}
	a.pending = nil
	return nil
}

// RequestCancel sets the cooperative cancellation flag. The orchestrator
// checks it between sub-steps; it never interrupts a dispatched call.
func (a *Agent) RequestCancel() {
	a.cancelReq = true
}

// CancelRequested reports whether cooperative cancellation was requested.
func (a *Agent) CancelRequested() bool {
	return a.cancelReq
}

// PendingCall returns a copy of the in-flight tool call, if any.
func (a *Agent) PendingCall() (models.ToolCall, bool) {
	if a.pending == nil {
		return models.ToolCall{}, false
	}
	return *a.pending, true
}

// Observe appends an observation to the agent's memory.
func (a *Agent) Observe(obs Observation) {
	a.memory.Append(obs)
}

// Memory returns the agent's memory buffer.
func (a *Agent) Memory() *Memory {
	return a.memory
}

// ErrorCount returns the number of failures the agent has recorded.
func (a *Agent) ErrorCount() int {
	return a.errorCount
}

// Snapshot returns the externally visible record of the agent.
func (a *Agent) Snapshot() models.Agent {
	return models.Agent{
		ID:         a.ID,
		TaskID:     a.TaskID,
		State:      a.state,
		ErrorCount: a.errorCount,
		StartedAt:  a.startedAt,
	}
}
