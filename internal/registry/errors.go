package registry

import "fmt"

// DuplicateToolError indicates a tool was registered under a name that is
// already taken.
type DuplicateToolError struct {
	// Name is the tool name that collided.
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

// UnknownToolError indicates an invocation referenced a tool that was never
// registered.
type UnknownToolError struct {
	// Name is the tool name that was not found.
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// SchemaError indicates arguments failed validation against a tool's input
// schema. The call was rejected before the capability ran.
type SchemaError struct {
	// Tool is the tool whose schema rejected the arguments.
	Tool string
	// Field is the argument that failed validation.
	Field string
	// Message is a human-readable description of the violation.
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("tool %q: invalid argument %q: %s", e.Tool, e.Field, e.Message)
}

// ToolTimeoutError indicates the capability did not return within the
// invocation timeout.
type ToolTimeoutError struct {
	// Tool is the tool that timed out.
	Tool string
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %q timed out", e.Tool)
}

// ToolExecutionError wraps a failure returned by the capability itself.
type ToolExecutionError struct {
	// Tool is the tool that failed.
	Tool string
	// Err is the underlying capability error.
	Err error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

// Unwrap returns the underlying capability error.
func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}
