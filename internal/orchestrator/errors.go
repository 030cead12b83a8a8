package orchestrator

import (
	"fmt"
	"time"
)

// DeadlineExceededError indicates a task ran past its absolute deadline.
// The engine checks deadlines once per tick, so enforcement lags the
// deadline by at most one tick interval.
type DeadlineExceededError struct {
	// TaskID is the task that overran.
	TaskID string
	// Deadline is the absolute deadline that passed.
	Deadline time.Time
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("task %s exceeded deadline %s", e.TaskID, e.Deadline.Format(time.RFC3339))
}

// ErrEngineStopped is returned by control operations after the engine loop
// has exited.
var ErrEngineStopped = fmt.Errorf("engine stopped")
