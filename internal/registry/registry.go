// Package registry maps tool names to callable capability descriptors and
// validates invocation arguments against each tool's input schema.
// The registry never retries; retry policy belongs to the orchestrator and is
// keyed off each descriptor's Idempotent flag.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Handler is the capability behind a tool. It receives arguments that have
// already passed schema validation and may perform I/O. The context carries
// the invocation timeout; handlers should respect cancellation when they can.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Descriptor describes a registered tool.
type Descriptor struct {
	// Name is the unique tool name.
	Name string
	// Description tells the reasoning provider what the tool does.
	Description string
	// InputSchema is a JSON-schema object the arguments must satisfy.
	InputSchema map[string]any
	// Handler is the capability invoked after validation.
	Handler Handler
	// DefaultTimeout bounds invocations that don't specify a timeout.
	DefaultTimeout time.Duration
	// Idempotent marks the tool safe to retry without duplicating side effects.
	Idempotent bool
}

// Registry holds the registered tools. It is read-mostly after startup and
// safe for concurrent invocation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Descriptor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		tools: make(map[string]*Descriptor),
	}
}

// Register adds a tool descriptor. It fails with DuplicateToolError if the
// name is taken, and rejects descriptors with no name or no handler.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("descriptor must have a name")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q has no handler", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[d.Name]; exists {
		return &DuplicateToolError{Name: d.Name}
	}
	r.tools[d.Name] = d
	return nil
}

// Get returns the descriptor for a tool name, or nil if not registered.
func (r *Registry) Get(name string) *Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Validate checks args against the named tool's input schema without invoking
// it. Returns UnknownToolError or SchemaError on rejection.
func (r *Registry) Validate(name string, args map[string]any) error {
	d := r.Get(name)
	if d == nil {
		return &UnknownToolError{Name: name}
	}
	return validateArgs(d.Name, d.InputSchema, args)
}

// Invoke validates args and runs the tool's capability with the given timeout.
// A zero timeout falls back to the descriptor's DefaultTimeout. Returns
// UnknownToolError, SchemaError, ToolTimeoutError, or ToolExecutionError.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, timeout time.Duration) (any, error) {
	d := r.Get(name)
	if d == nil {
		return nil, &UnknownToolError{Name: name}
	}

	if err := validateArgs(d.Name, d.InputSchema, args); err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = d.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := d.Handler(ctx, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) {
				return nil, &ToolTimeoutError{Tool: name}
			}
			return nil, &ToolExecutionError{Tool: name, Err: out.err}
		}
		return out.result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ToolTimeoutError{Tool: name}
		}
		return nil, &ToolExecutionError{Tool: name, Err: ctx.Err()}
	}
}
