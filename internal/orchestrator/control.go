package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/elysiumlabs/atlas/internal/graph"
	"github.com/elysiumlabs/atlas/pkg/models"
)

// SubmitRequest describes a task to add to the graph.
type SubmitRequest struct {
	// ID is an optional caller-chosen identifier. Empty means generated.
	ID string
	// Goal is the natural-language objective for the agent.
	Goal string
	// DependsOn lists IDs of tasks that must succeed first.
	DependsOn []string
	// Priority orders ready tasks. Lower runs first.
	Priority int
	// Deadline is an optional absolute completion deadline.
	Deadline *time.Time
}

// do runs fn inside the engine loop and waits for it to execute.
func (e *Engine) do(fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}

	select {
	case e.commands <- wrapped:
	case <-e.stopped:
		return ErrEngineStopped
	}

	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrEngineStopped
	}
}

// Submit adds a task to the graph and returns its ID. The task becomes Ready
// immediately if every dependency has already succeeded.
func (e *Engine) Submit(req SubmitRequest) (string, error) {
	id := req.ID
	if id == "" {
		id = uuid.New().String()[:8]
	}

	var submitErr error
	err := e.do(func() {
		task := &models.Task{
			ID:        id,
			Goal:      req.Goal,
			Priority:  req.Priority,
			Deadline:  req.Deadline,
			CreatedAt: time.Now(),
		}
		if submitErr = e.graph.AddTask(task, req.DependsOn); submitErr != nil {
			return
		}
		e.persistTask(id)
		e.emit(Event{Type: EventTaskQueued, TaskID: id})
		e.logger.Log("[engine] task %s queued: %s", id, req.Goal)
	})
	if err != nil {
		return "", err
	}
	if submitErr != nil {
		return "", submitErr
	}
	return id, nil
}

// Status returns a snapshot of one task.
func (e *Engine) Status(taskID string) (models.Task, error) {
	var task models.Task
	var found bool
	err := e.do(func() {
		task, found = e.graph.Get(taskID)
	})
	if err != nil {
		return models.Task{}, err
	}
	if !found {
		return models.Task{}, graph.ErrTaskNotFound
	}
	return task, nil
}

// Tasks returns a snapshot of every task, ordered by creation time.
func (e *Engine) Tasks() ([]models.Task, error) {
	var tasks []models.Task
	err := e.do(func() {
		tasks = e.graph.Snapshot()
	})
	return tasks, err
}

// Agents returns snapshots of the live agents.
func (e *Engine) Agents() ([]models.Agent, error) {
	var agents []models.Agent
	err := e.do(func() {
		for _, a := range e.agents {
			agents = append(agents, a.Snapshot())
		}
	})
	return agents, err
}

// Cancel requests cancellation of a task. Queued tasks cancel immediately;
// running tasks cancel cooperatively at the next completion boundary, so any
// in-flight tool call finishes (and is discarded) first. Terminal tasks
// return ErrNotCancellable.
func (e *Engine) Cancel(taskID string) error {
	var cancelErr error
	err := e.do(func() {
		cancelErr = e.cancelTask(taskID)
	})
	if err != nil {
		return err
	}
	return cancelErr
}

// cancelTask applies cancellation semantics for one task. Must run on the
// engine loop.
func (e *Engine) cancelTask(taskID string) error {
	task, found := e.graph.Get(taskID)
	if !found {
		return graph.ErrTaskNotFound
	}

	switch task.Status {
	case models.TaskStatusPending, models.TaskStatusReady, models.TaskStatusBlocked:
		if err := e.graph.Cancel(taskID); err != nil {
			return err
		}
		e.persistTask(taskID)
		e.emit(Event{Type: EventTaskCancelled, TaskID: taskID, Message: "cancelled by request"})
		return nil
	case models.TaskStatusRunning:
		if a, ok := e.agents[taskID]; ok {
			a.RequestCancel()
			e.logger.Log("[engine] cancellation requested for running task %s", taskID)
			return nil
		}
		return e.graph.Cancel(taskID)
	default:
		return graph.ErrNotCancellable
	}
}

// SubscribeTask returns an event stream for one task. The channel is closed
// once the task reaches a terminal status. Subscribing to an already-terminal
// task returns an immediately closed channel.
func (e *Engine) SubscribeTask(taskID string) (<-chan Event, error) {
	var ch chan Event
	var subErr error
	err := e.do(func() {
		task, found := e.graph.Get(taskID)
		if !found {
			subErr = graph.ErrTaskNotFound
			return
		}
		ch = make(chan Event, 16)
		if task.Status.Terminal() {
			close(ch)
			return
		}
		e.subs[taskID] = append(e.subs[taskID], ch)
	})
	if err != nil {
		return nil, err
	}
	if subErr != nil {
		return nil, subErr
	}
	return ch, nil
}
