package graph

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound indicates an operation referenced a task ID absent from the graph.
var ErrTaskNotFound = errors.New("task not found")

// ErrDuplicateTask indicates a task ID was inserted twice.
var ErrDuplicateTask = errors.New("task already exists")

// ErrNotCancellable indicates cancel was requested for a task in a state that
// does not allow direct cancellation. Running tasks need cooperative agent
// cancellation driven by the orchestrator.
var ErrNotCancellable = errors.New("task cannot be cancelled in its current state")

// CyclicDependencyError indicates inserting a task would create a dependency
// cycle. The graph is left unchanged.
type CyclicDependencyError struct {
	// TaskID is the task whose insertion was rejected.
	TaskID string
	// Through is the dependency from which the new task was reachable.
	Through string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("task %q: dependency on %q would create a cycle", e.TaskID, e.Through)
}

// UnknownDependencyError indicates a task referenced a dependency ID that is
// not in the graph. The graph is left unchanged.
type UnknownDependencyError struct {
	// TaskID is the task whose insertion was rejected.
	TaskID string
	// DependencyID is the missing dependency.
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.DependencyID)
}

// DependencyFailedError marks a task cancelled because a task it transitively
// depends on failed. Cascaded cancellations are never retried.
type DependencyFailedError struct {
	// TaskID is the cancelled task.
	TaskID string
	// Origin is the task whose failure started the cascade.
	Origin string
	// Err is the failure of the originating task, if known.
	Err error
}

func (e *DependencyFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task %q cancelled: dependency %q failed: %v", e.TaskID, e.Origin, e.Err)
	}
	return fmt.Sprintf("task %q cancelled: dependency %q failed", e.TaskID, e.Origin)
}

// Unwrap returns the originating failure.
func (e *DependencyFailedError) Unwrap() error {
	return e.Err
}
