package models

// ToolCallStatus represents the lifecycle state of a tool call.
type ToolCallStatus string

const (
	// ToolCallPending indicates the call has been created but not dispatched.
	ToolCallPending ToolCallStatus = "pending"
	// ToolCallInFlight indicates the capability is executing.
	ToolCallInFlight ToolCallStatus = "in_flight"
	// ToolCallCompleted indicates the capability returned a result.
	ToolCallCompleted ToolCallStatus = "completed"
	// ToolCallTimedOut indicates the call exceeded its timeout.
	ToolCallTimedOut ToolCallStatus = "timed_out"
	// ToolCallErrored indicates the capability returned an error.
	ToolCallErrored ToolCallStatus = "errored"
)

// ToolCall tracks a single invocation of a registered tool on behalf of an
// agent. It is created when the agent emits a tool action and destroyed once
// the agent consumes the result. An agent holds at most one in-flight call.
type ToolCall struct {
	// Tool is the registered tool name.
	Tool string `json:"tool"`
	// Args is the argument payload validated against the tool's input schema.
	Args map[string]any `json:"args,omitempty"`
	// AgentID is the agent that emitted the call.
	AgentID string `json:"agent_id"`
	// CorrelationID groups the original call and all of its retries.
	CorrelationID string `json:"correlation_id"`
	// Status is the current lifecycle state.
	Status ToolCallStatus `json:"status"`
	// Attempt is the 1-indexed invocation attempt under this correlation ID.
	Attempt int `json:"attempt"`
}
