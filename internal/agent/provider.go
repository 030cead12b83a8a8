package agent

import (
	"context"
	"fmt"
	"time"
)

// ActionKind identifies what an agent wants to do after a thinking step.
type ActionKind string

const (
	// ActionToolCall requests invocation of a registered tool.
	ActionToolCall ActionKind = "tool_call"
	// ActionMessage sends a message to another agent or the orchestrator.
	ActionMessage ActionKind = "message"
	// ActionDone signals the task goal is complete.
	ActionDone ActionKind = "done"
)

// Action is the single decision a reasoning provider produces per thinking
// step: a tool call, a message, or a completion signal.
type Action struct {
	// Kind selects which of the remaining fields are meaningful.
	Kind ActionKind `json:"kind"`
	// Tool and Args describe a tool call.
	Tool string         `json:"tool,omitempty"`
	Args map[string]any `json:"args,omitempty"`
	// Recipient and Payload describe a message.
	Recipient string `json:"recipient,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	// Result is the final task result carried by a done action.
	Result any `json:"result,omitempty"`
}

// ToolSpec describes a registered tool to the reasoning provider.
type ToolSpec struct {
	// Name is the registered tool name.
	Name string `json:"name"`
	// Description tells the model what the tool does.
	Description string `json:"description"`
	// InputSchema is the JSON-schema object for the tool's arguments.
	InputSchema map[string]any `json:"input_schema"`
}

// Request is the context handed to the reasoning provider: the task goal,
// the agent's current memory, and the tools it may call.
type Request struct {
	// TaskID identifies the task being reasoned about.
	TaskID string `json:"task_id"`
	// Goal is the task's goal description.
	Goal string `json:"goal"`
	// Observations is the agent's memory, oldest first.
	Observations []Observation `json:"observations,omitempty"`
	// Tools lists the tools available for this step.
	Tools []ToolSpec `json:"tools,omitempty"`
}

// Provider is the reasoning backend consumed by agents. Complete blocks for
// provider latency and returns exactly one action. Implementations map
// backend failures to ProviderError and deadline overruns to
// ProviderTimeoutError.
type Provider interface {
	Complete(ctx context.Context, req Request) (Action, error)
}

// ProviderError indicates the reasoning backend failed (network, quota,
// malformed response).
type ProviderError struct {
	// Err is the underlying backend error.
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("reasoning provider: %v", e.Err)
}

// Unwrap returns the underlying backend error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderTimeoutError indicates the reasoning backend did not respond within
// the configured timeout.
type ProviderTimeoutError struct {
	// Timeout is the limit that was exceeded.
	Timeout time.Duration
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("reasoning provider timed out after %s", e.Timeout)
}

// InvalidActionError indicates the agent emitted an action that failed
// validation (unknown tool, schema mismatch, or unparseable form). Invalid
// actions fail the task without consuming a retry.
type InvalidActionError struct {
	// AgentID is the agent that emitted the action.
	AgentID string
	// Reason describes the validation failure.
	Reason string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("agent %s emitted invalid action: %s", e.AgentID, e.Reason)
}
