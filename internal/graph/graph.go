// Package graph provides the dependency graph of tasks driven by the
// orchestrator. Tasks are nodes, and edges represent "blocked by"
// relationships. The graph validates acyclicity at insertion and computes
// readiness and failure cascades as tasks reach terminal states.
package graph

import (
	"sort"
	"time"

	"github.com/elysiumlabs/atlas/pkg/models"
)

// TaskGraph is a directed acyclic graph of tasks keyed by ID.
//
// The orchestrator's scheduling loop is the only mutator; reads are safe from
// other goroutines only through the orchestrator, which serializes access.
// Every accessor returns copies, never interior pointers.
type TaskGraph struct {
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to the IDs of tasks it depends on.
	edges map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty TaskGraph.
func New() *TaskGraph {
	return &TaskGraph{
		nodes:    make(map[string]*models.Task),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *TaskGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// AddTask inserts a task with the given dependency IDs. It fails with
// UnknownDependencyError if a dependency is absent and CyclicDependencyError
// if the insertion would create a cycle; on failure the graph is unchanged.
// A task with every dependency already succeeded (or none) enters Ready,
// otherwise Pending.
func (g *TaskGraph) AddTask(task *models.Task, deps []string) error {
	if task == nil || task.ID == "" {
		return ErrTaskNotFound
	}
	if _, exists := g.nodes[task.ID]; exists {
		return ErrDuplicateTask
	}

	for _, depID := range deps {
		if _, exists := g.nodes[depID]; !exists {
			return &UnknownDependencyError{TaskID: task.ID, DependencyID: depID}
		}
	}

	// Reachability check: if the new task's ID is reachable from any
	// dependency, the insertion would close a cycle.
	for _, depID := range deps {
		if g.reachable(depID, task.ID) {
			return &CyclicDependencyError{TaskID: task.ID, Through: depID}
		}
	}

	task.DependsOn = append([]string(nil), deps...)
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if g.depsSucceeded(deps) {
		task.Status = models.TaskStatusReady
	} else {
		task.Status = models.TaskStatusPending
	}

	g.nodes[task.ID] = task
	g.edges[task.ID] = append([]string(nil), deps...)

	g.debugLog("[graph.AddTask] added task %s (deps=%v status=%s)", task.ID, deps, task.Status)
	return nil
}

// reachable reports whether target can be reached from start by following
// dependency edges.
func (g *TaskGraph) reachable(start, target string) bool {
	if start == target {
		return true
	}
	visited := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			if depID == target {
				return true
			}
			stack = append(stack, depID)
		}
	}
	return false
}

// depsSucceeded reports whether every listed dependency has succeeded.
func (g *TaskGraph) depsSucceeded(deps []string) bool {
	for _, depID := range deps {
		dep, exists := g.nodes[depID]
		if !exists || dep.Status != models.TaskStatusSucceeded {
			return false
		}
	}
	return true
}

// Ready returns copies of all Ready tasks ordered by priority (lowest first)
// and then creation time (earliest first).
func (g *TaskGraph) Ready() []models.Task {
	var ready []models.Task
	for _, task := range g.nodes {
		if task.Status == models.TaskStatusReady {
			ready = append(ready, *task)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority < ready[j].Priority
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	return ready
}

// MarkRunning transitions a Ready task to Running and records its agent.
func (g *TaskGraph) MarkRunning(id, agentID string) error {
	task, exists := g.nodes[id]
	if !exists {
		return ErrTaskNotFound
	}
	task.Status = models.TaskStatusRunning
	task.AssignedTo = agentID
	g.debugLog("[graph.MarkRunning] task %s assigned to agent %s", id, agentID)
	return nil
}

// MarkSucceeded transitions a task to Succeeded with its result payload and
// recomputes readiness of all direct dependents: a dependent becomes Ready
// only when every one of its dependencies has succeeded.
func (g *TaskGraph) MarkSucceeded(id string, result any) error {
	task, exists := g.nodes[id]
	if !exists {
		return ErrTaskNotFound
	}

	now := time.Now()
	task.Status = models.TaskStatusSucceeded
	task.Result = result
	task.CompletedAt = &now
	task.AssignedTo = ""

	for _, depID := range g.Dependents(id) {
		dep := g.nodes[depID]
		if dep.Status != models.TaskStatusPending {
			continue
		}
		if g.depsSucceeded(g.edges[depID]) {
			dep.Status = models.TaskStatusReady
			g.debugLog("[graph.MarkSucceeded] task %s now ready (last dep %s succeeded)", depID, id)
		}
	}
	return nil
}

// MarkFailed transitions a task to Failed and cascades: every transitive
// dependent becomes Cancelled exactly once, carrying a DependencyFailedError
// that names the originating task. Cascaded tasks are never retried.
// Returns the IDs of the tasks cancelled by the cascade.
func (g *TaskGraph) MarkFailed(id string, failure error) ([]string, error) {
	task, exists := g.nodes[id]
	if !exists {
		return nil, ErrTaskNotFound
	}

	now := time.Now()
	task.Status = models.TaskStatusFailed
	if failure != nil {
		task.Error = failure.Error()
	}
	task.CompletedAt = &now
	task.AssignedTo = ""

	var cancelled []string
	frontier := []string{id}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, depID := range g.Dependents(current) {
			dep := g.nodes[depID]
			if dep.Status.Terminal() {
				continue
			}
			cascadeErr := &DependencyFailedError{TaskID: depID, Origin: id, Err: failure}
			completed := time.Now()
			dep.Status = models.TaskStatusCancelled
			dep.Error = cascadeErr.Error()
			dep.FailureOrigin = id
			dep.CompletedAt = &completed
			dep.AssignedTo = ""
			cancelled = append(cancelled, depID)
			frontier = append(frontier, depID)
			g.debugLog("[graph.MarkFailed] cascade cancelled task %s (origin %s)", depID, id)
		}
	}
	return cancelled, nil
}

// Cancel transitions a Pending, Ready, or Blocked task to Cancelled. For any
// other state it returns ErrNotCancellable; cancelling a Running task is the
// orchestrator's job because it needs the agent's cooperative acknowledgment.
func (g *TaskGraph) Cancel(id string) error {
	task, exists := g.nodes[id]
	if !exists {
		return ErrTaskNotFound
	}
	switch task.Status {
	case models.TaskStatusPending, models.TaskStatusReady, models.TaskStatusBlocked:
		now := time.Now()
		task.Status = models.TaskStatusCancelled
		task.CompletedAt = &now
		g.debugLog("[graph.Cancel] task %s cancelled", id)
		return nil
	default:
		return ErrNotCancellable
	}
}

// MarkCancelled forces a task to Cancelled regardless of state. The
// orchestrator calls this once a running task's agent has acknowledged
// cooperative cancellation.
func (g *TaskGraph) MarkCancelled(id, reason string) error {
	task, exists := g.nodes[id]
	if !exists {
		return ErrTaskNotFound
	}
	now := time.Now()
	task.Status = models.TaskStatusCancelled
	task.Error = reason
	task.CompletedAt = &now
	task.AssignedTo = ""
	return nil
}

// SetStatus applies a raw status transition. Used by the orchestrator for
// transitions with no graph-level side effects (e.g. Running back to Ready
// during crash recovery).
func (g *TaskGraph) SetStatus(id string, status models.TaskStatus) error {
	task, exists := g.nodes[id]
	if !exists {
		return ErrTaskNotFound
	}
	task.Status = status
	return nil
}

// Get returns a copy of the task for a given ID.
func (g *TaskGraph) Get(id string) (models.Task, bool) {
	task, exists := g.nodes[id]
	if !exists {
		return models.Task{}, false
	}
	return *task, true
}

// update applies fn to the task with the given ID, if present.
func (g *TaskGraph) update(id string, fn func(*models.Task)) {
	if task, exists := g.nodes[id]; exists {
		fn(task)
	}
}

// IncrementRetry bumps a task's retry counter and returns the new value.
func (g *TaskGraph) IncrementRetry(id string) int {
	var count int
	g.update(id, func(t *models.Task) {
		t.RetryCount++
		count = t.RetryCount
	})
	return count
}

// ResetRetry clears a task's retry counter. Called when a tool call resolves
// so the next call starts a fresh retry budget.
func (g *TaskGraph) ResetRetry(id string) {
	g.update(id, func(t *models.Task) {
		t.RetryCount = 0
	})
}

// Size returns the number of tasks in the graph.
func (g *TaskGraph) Size() int {
	return len(g.nodes)
}

// Dependencies returns the IDs of tasks the given task depends on.
func (g *TaskGraph) Dependencies(id string) []string {
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the IDs of tasks that directly depend on the given task.
func (g *TaskGraph) Dependents(id string) []string {
	var dependents []string
	for taskID, deps := range g.edges {
		for _, depID := range deps {
			if depID == id {
				dependents = append(dependents, taskID)
				break
			}
		}
	}
	return dependents
}

// Snapshot returns copies of every task, for persistence and status listing.
func (g *TaskGraph) Snapshot() []models.Task {
	tasks := make([]models.Task, 0, len(g.nodes))
	for _, task := range g.nodes {
		tasks = append(tasks, *task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks
}

// Done reports whether every task in the graph has reached a terminal status.
func (g *TaskGraph) Done() bool {
	for _, task := range g.nodes {
		if !task.Status.Terminal() {
			return false
		}
	}
	return true
}
