package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elysiumlabs/atlas/internal/agent"
	"github.com/elysiumlabs/atlas/internal/bus"
	"github.com/elysiumlabs/atlas/internal/config"
	"github.com/elysiumlabs/atlas/internal/graph"
	"github.com/elysiumlabs/atlas/internal/registry"
	"github.com/elysiumlabs/atlas/internal/state"
	"github.com/elysiumlabs/atlas/pkg/models"
)

// completionKind identifies what an engine worker goroutine is reporting.
type completionKind int

const (
	// providerDone reports the result of a reasoning step.
	providerDone completionKind = iota
	// toolDone reports the result of a tool invocation.
	toolDone
	// retryDue reports that a backoff delay has elapsed.
	retryDue
	// messageIn reports a bus delivery to an agent.
	messageIn
)

// completion is the single event type worker goroutines feed back into the
// engine loop. All task graph and agent mutation happens in the loop; workers
// only report.
type completion struct {
	kind   completionKind
	taskID string
	action agent.Action
	call   models.ToolCall
	result any
	err    error
	msg    models.Message
}

// Engine coordinates agents working through a task dependency graph. A single
// goroutine owns the graph and the agent pool; provider calls and tool
// invocations run in worker goroutines that report back over the completions
// channel. Control operations (Submit, Cancel, Status) are serialized through
// the same loop.
type Engine struct {
	cfg      *config.Config
	provider agent.Provider
	registry *registry.Registry
	graph    *graph.TaskGraph
	bus      *bus.Bus
	store    state.Store
	emitter  *EventEmitter
	logger   *DebugLogger
	signals  *SignalManager
	retry    RetryPolicy

	// Loop-owned state. Never touched outside the run loop.
	agents map[string]*agent.Agent // keyed by task ID
	subs   map[string][]chan Event
	paused bool

	sessionID string

	commands    chan func()
	completions chan completion
	stopped     chan struct{}
	runCtx      context.Context
	wg          sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore enables snapshot persistence through the given store.
func WithStore(s state.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSignals enables file-based pause/kill signals.
func WithSignals(sm *SignalManager) Option {
	return func(e *Engine) { e.signals = sm }
}

// New creates an Engine with the given configuration, reasoning provider,
// and tool registry.
func New(cfg *config.Config, provider agent.Provider, reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		provider: provider,
		registry: reg,
		graph:    graph.New(),
		bus:      bus.New(),
		emitter:  NewEventEmitter(256),
		logger:   NopLogger(),
		retry: RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			Multiplier: cfg.Retry.Multiplier,
			MaxDelay:   cfg.Retry.MaxDelay,
		},
		agents:      make(map[string]*agent.Agent),
		subs:        make(map[string][]chan Event),
		commands:    make(chan func(), 32),
		completions: make(chan completion, 64),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the engine's global event stream. The channel is closed
// when Run returns.
func (e *Engine) Events() <-chan Event {
	return e.emitter.Events()
}

// Restore rebuilds the task graph from a recovered session snapshot. Must be
// called before Run.
func (e *Engine) Restore(rec *state.RecoveredState) error {
	if rec == nil {
		return nil
	}
	e.sessionID = rec.SessionID

	added := make(map[string]bool, len(rec.Tasks))
	for len(added) < len(rec.Tasks) {
		progress := false
		for _, t := range rec.Tasks {
			if added[t.ID] {
				continue
			}
			depsDone := true
			for _, dep := range rec.Deps[t.ID] {
				if !added[dep] {
					depsDone = false
					break
				}
			}
			if !depsDone {
				continue
			}
			task := *t
			if err := e.graph.AddTask(&task, rec.Deps[t.ID]); err != nil {
				return fmt.Errorf("restore task %s: %w", t.ID, err)
			}
			if err := e.graph.SetStatus(t.ID, t.Status); err != nil {
				return fmt.Errorf("restore task %s: %w", t.ID, err)
			}
			added[t.ID] = true
			progress = true
		}
		if !progress {
			return fmt.Errorf("restore: snapshot dependencies are unresolvable")
		}
	}
	return nil
}

// Run executes the engine loop until the context is cancelled, a kill signal
// arrives, or every task in the graph is terminal. It blocks; control
// operations from other goroutines are valid only while Run is active.
func (e *Engine) Run(ctx context.Context) error {
	setPackageLogger(e.logger)
	e.graph.SetDebugLog(e.logger.Log)
	e.runCtx = ctx

	if e.store != nil && e.sessionID == "" {
		e.sessionID = uuid.New().String()[:8]
		if err := e.store.CreateSession(e.sessionID, time.Now()); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	}

	if e.signals != nil {
		e.paused = e.signals.ShouldPause()
	}

	ticker := time.NewTicker(e.cfg.Scheduler.TickInterval)
	defer ticker.Stop()

	var runErr error

loop:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		case fn := <-e.commands:
			fn()
		case c := <-e.completions:
			e.handle(c)
		case <-ticker.C:
			if stop := e.tick(); stop {
				break loop
			}
		}

		if !e.paused {
			e.schedule()
		}

		if e.runComplete() {
			e.emit(Event{Type: EventRunComplete})
			break loop
		}
	}

	e.shutdown(runErr != nil)

	return runErr
}

// runComplete reports whether the graph has work and all of it is terminal.
func (e *Engine) runComplete() bool {
	return e.graph.Size() > 0 && e.graph.Done() &&
		len(e.agents) == 0 && len(e.commands) == 0
}

// tick handles periodic work: signals, deadlines. Returns true to stop.
func (e *Engine) tick() bool {
	if e.signals != nil {
		if e.signals.ShouldStop() {
			e.logger.Log("[engine] kill signal received")
			return true
		}
		paused := e.signals.ShouldPause()
		if paused != e.paused {
			e.paused = paused
			if paused {
				e.emit(Event{Type: EventRunPaused})
				e.logger.Log("[engine] paused")
			} else {
				e.emit(Event{Type: EventRunResumed})
				e.logger.Log("[engine] resumed")
			}
		}
		for _, id := range e.signals.PendingCancels() {
			if err := e.cancelTask(id); err != nil {
				e.logger.Log("[engine] cancel signal for %s: %v", id, err)
			}
		}
	}

	e.enforceDeadlines()
	return false
}

// enforceDeadlines fails every non-terminal task whose deadline has passed.
// Deadlines are checked once per tick, so enforcement lags by at most one
// tick interval.
func (e *Engine) enforceDeadlines() {
	now := time.Now()
	for _, t := range e.graph.Snapshot() {
		if t.Status.Terminal() || t.Deadline == nil || !now.After(*t.Deadline) {
			continue
		}
		deadlineErr := &DeadlineExceededError{TaskID: t.ID, Deadline: *t.Deadline}
		if a, ok := e.agents[t.ID]; ok {
			e.failTask(a, deadlineErr)
			continue
		}
		cancelled, err := e.graph.MarkFailed(t.ID, deadlineErr)
		if err != nil {
			continue
		}
		e.persistTask(t.ID)
		e.emit(Event{Type: EventTaskFailed, TaskID: t.ID, Err: deadlineErr})
		e.emitCancelled(cancelled)
	}
}

// schedule assigns agents to ready tasks up to the concurrency limit. Agents
// in Thinking or AwaitingTool count against the limit.
func (e *Engine) schedule() {
	busy := 0
	for _, a := range e.agents {
		if a.State().Busy() {
			busy++
		}
	}
	slots := e.cfg.Scheduler.MaxConcurrentAgents - busy
	if slots <= 0 {
		return
	}

	for _, t := range e.graph.Ready() {
		if slots <= 0 {
			return
		}
		if _, exists := e.agents[t.ID]; exists {
			continue
		}
		e.spawn(t)
		slots--
	}
}

// spawn creates an agent for a ready task and dispatches its first thinking
// step.
func (e *Engine) spawn(t models.Task) {
	a := agent.New(t.ID, t.Goal, e.cfg.Agent.MemoryLimit)
	if err := e.graph.MarkRunning(t.ID, a.ID); err != nil {
		e.logger.Log("[engine] spawn %s: %v", t.ID, err)
		return
	}
	e.agents[t.ID] = a

	ch := e.bus.Subscribe(a.ID)
	e.wg.Add(1)
	go e.pumpMessages(t.ID, ch)

	e.persistTask(t.ID)
	e.persistAgent(a)
	e.emit(Event{Type: EventTaskStarted, TaskID: t.ID, AgentID: a.ID})
	e.logger.Log("[engine] task %s started, agent %s", t.ID, a.ID)

	e.think(a)
}

// pumpMessages forwards bus deliveries for one agent into the loop. It exits
// when the agent is unsubscribed.
func (e *Engine) pumpMessages(taskID string, ch <-chan models.Message) {
	defer e.wg.Done()
	for msg := range ch {
		e.report(completion{kind: messageIn, taskID: taskID, msg: msg})
	}
}

// think transitions the agent into Thinking and dispatches a provider call.
func (e *Engine) think(a *agent.Agent) {
	if err := a.BeginThinking(); err != nil {
		e.failTask(a, err)
		return
	}

	req := agent.Request{
		TaskID:       a.TaskID,
		Goal:         a.Goal,
		Observations: a.Memory().Snapshot(),
		Tools:        e.toolSpecs(),
	}
	taskID := a.TaskID
	timeout := e.cfg.Scheduler.ProviderTimeout

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx := e.runCtx
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		action, err := e.provider.Complete(ctx, req)
		e.report(completion{kind: providerDone, taskID: taskID, action: action, err: err})
	}()
}

// toolSpecs exposes the registry contents to the reasoning provider.
func (e *Engine) toolSpecs() []agent.ToolSpec {
	names := e.registry.Names()
	specs := make([]agent.ToolSpec, 0, len(names))
	for _, name := range names {
		d := e.registry.Get(name)
		if d == nil {
			continue
		}
		specs = append(specs, agent.ToolSpec{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return specs
}

// report feeds a completion into the loop, dropping it if the engine stopped.
func (e *Engine) report(c completion) {
	select {
	case e.completions <- c:
	case <-e.stopped:
	}
}

// after reports the completion once the delay elapses.
func (e *Engine) after(delay time.Duration, c completion) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			e.report(c)
		case <-e.stopped:
		}
	}()
}

// handle processes one completion inside the loop.
func (e *Engine) handle(c completion) {
	switch c.kind {
	case providerDone:
		e.handleProviderDone(c)
	case toolDone:
		e.handleToolDone(c)
	case retryDue:
		e.handleRetryDue(c)
	case messageIn:
		e.handleMessageIn(c)
	}
}

// handleProviderDone validates and applies the action a reasoning step
// produced.
func (e *Engine) handleProviderDone(c completion) {
	a := e.agents[c.taskID]
	if a == nil {
		return // task reached a terminal state while the call was in flight
	}
	if a.CancelRequested() {
		e.finalizeCancel(a, "cancelled by request")
		return
	}

	if c.err != nil {
		retries := e.graph.IncrementRetry(c.taskID)
		e.persistTask(c.taskID)
		if retries > e.retry.MaxRetries {
			e.failTask(a, c.err)
			return
		}
		if err := a.BackToIdle(); err != nil {
			e.failTask(a, err)
			return
		}
		delay := e.retry.Delay(retries)
		e.logger.Log("[engine] provider error for task %s (retry %d in %s): %v", c.taskID, retries, delay, c.err)
		e.after(delay, completion{kind: retryDue, taskID: c.taskID})
		return
	}

	switch c.action.Kind {
	case agent.ActionToolCall:
		e.applyToolCall(a, c.action)
	case agent.ActionMessage:
		e.applyMessage(a, c.action)
	case agent.ActionDone:
		e.succeedTask(a, c.action.Result)
	default:
		e.failTask(a, &agent.InvalidActionError{
			AgentID: a.ID,
			Reason:  fmt.Sprintf("unknown action kind %q", c.action.Kind),
		})
	}
}

// applyToolCall validates a tool action and dispatches the invocation.
func (e *Engine) applyToolCall(a *agent.Agent, action agent.Action) {
	if err := a.BeginActing(); err != nil {
		e.failTask(a, err)
		return
	}

	desc := e.registry.Get(action.Tool)
	if desc == nil {
		e.failTask(a, &agent.InvalidActionError{
			AgentID: a.ID,
			Reason:  fmt.Sprintf("unknown tool %q", action.Tool),
		})
		return
	}
	if err := e.registry.Validate(action.Tool, action.Args); err != nil {
		e.failTask(a, &agent.InvalidActionError{AgentID: a.ID, Reason: err.Error()})
		return
	}

	call := &models.ToolCall{
		Tool:          action.Tool,
		Args:          action.Args,
		AgentID:       a.ID,
		CorrelationID: uuid.New().String(),
		Status:        models.ToolCallInFlight,
		Attempt:       1,
	}
	if err := a.BeginAwaitingTool(call); err != nil {
		e.failTask(a, err)
		return
	}
	e.persistAgent(a)
	e.emit(Event{Type: EventToolInvoked, TaskID: a.TaskID, AgentID: a.ID, Tool: call.Tool, Attempt: 1})
	e.invokeTool(a.TaskID, *call)
}

// applyMessage publishes a message and immediately resumes thinking.
func (e *Engine) applyMessage(a *agent.Agent, action agent.Action) {
	if err := a.BackToIdle(); err != nil {
		e.failTask(a, err)
		return
	}
	if action.Recipient == "" {
		e.failTask(a, &agent.InvalidActionError{AgentID: a.ID, Reason: "message action has no recipient"})
		return
	}

	if _, err := e.bus.Publish(a.ID, action.Recipient, action.Payload); err != nil {
		// Unknown recipient is recoverable: the agent learns and moves on.
		a.Observe(agent.Observation{
			Kind:    agent.ObservationError,
			Source:  "bus",
			Content: err.Error(),
		})
		e.logger.Log("[engine] agent %s publish to %q failed: %v", a.ID, action.Recipient, err)
	} else {
		e.emit(Event{Type: EventMessageSent, TaskID: a.TaskID, AgentID: a.ID, Message: action.Recipient})
	}

	e.think(a)
}

// invokeTool runs the tool call in a worker goroutine.
func (e *Engine) invokeTool(taskID string, call models.ToolCall) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		result, err := e.registry.Invoke(e.runCtx, call.Tool, call.Args, 0)
		e.report(completion{kind: toolDone, taskID: taskID, call: call, result: result, err: err})
	}()
}

// handleToolDone resolves or retries a tool invocation.
func (e *Engine) handleToolDone(c completion) {
	a := e.agents[c.taskID]
	if a == nil {
		return // task failed or was cancelled while the call was in flight
	}
	if a.CancelRequested() {
		e.finalizeCancel(a, "cancelled by request")
		return
	}

	if c.err == nil {
		if err := a.ResolveTool(c.result); err != nil {
			e.failTask(a, err)
			return
		}
		e.graph.ResetRetry(c.taskID)
		e.persistTask(c.taskID)
		e.persistAgent(a)
		e.think(a)
		return
	}

	desc := e.registry.Get(c.call.Tool)
	if desc != nil && desc.Idempotent && e.retry.ShouldRetry(c.call.Attempt) {
		retry := c.call
		retry.Attempt++
		retry.Status = models.ToolCallInFlight
		if err := a.RetryTool(&retry); err != nil {
			e.failTask(a, err)
			return
		}
		e.graph.IncrementRetry(c.taskID)
		e.persistTask(c.taskID)
		e.persistAgent(a)

		delay := e.retry.Delay(c.call.Attempt)
		e.logger.Log("[engine] tool %s failed for task %s (attempt %d, retry in %s): %v",
			c.call.Tool, c.taskID, c.call.Attempt, delay, c.err)
		e.emit(Event{Type: EventToolRetried, TaskID: c.taskID, AgentID: a.ID, Tool: retry.Tool, Attempt: retry.Attempt, Err: c.err})
		e.after(delay, completion{kind: retryDue, taskID: c.taskID, call: retry})
		return
	}

	e.failTask(a, c.err)
}

// handleRetryDue re-dispatches work after a backoff delay. A completion with
// a tool call retries the invocation; without one it retries the thinking
// step.
func (e *Engine) handleRetryDue(c completion) {
	a := e.agents[c.taskID]
	if a == nil {
		return
	}
	if a.CancelRequested() {
		e.finalizeCancel(a, "cancelled by request")
		return
	}

	if c.call.Tool != "" {
		e.invokeTool(c.taskID, c.call)
		return
	}
	e.think(a)
}

// handleMessageIn appends a delivered message to the recipient's memory.
func (e *Engine) handleMessageIn(c completion) {
	a := e.agents[c.taskID]
	if a == nil {
		return
	}
	a.Observe(agent.Observation{
		Kind:    agent.ObservationMessage,
		Source:  c.msg.Sender,
		Content: c.msg.Payload,
		At:      c.msg.EnqueuedAt,
	})
}

// succeedTask finalizes a task whose agent signalled done.
func (e *Engine) succeedTask(a *agent.Agent, result any) {
	if err := a.BackToIdle(); err != nil {
		e.failTask(a, err)
		return
	}
	a.Terminate()

	if err := e.graph.MarkSucceeded(a.TaskID, result); err != nil {
		e.logger.Log("[engine] mark succeeded %s: %v", a.TaskID, err)
	}
	e.removeAgent(a)
	e.persistTask(a.TaskID)
	e.emit(Event{Type: EventTaskCompleted, TaskID: a.TaskID, AgentID: a.ID, Result: result})
	e.logger.Log("[engine] task %s completed", a.TaskID)
}

// failTask fails a task and cancels its downstream dependents.
func (e *Engine) failTask(a *agent.Agent, failure error) {
	a.Fail() // transition may be disallowed from Idle, which is fine

	cancelled, err := e.graph.MarkFailed(a.TaskID, failure)
	if err != nil {
		e.logger.Log("[engine] mark failed %s: %v", a.TaskID, err)
	}
	e.removeAgent(a)
	e.persistTask(a.TaskID)
	e.emit(Event{Type: EventTaskFailed, TaskID: a.TaskID, AgentID: a.ID, Err: failure})
	e.logger.Log("[engine] task %s failed: %v", a.TaskID, failure)
	e.emitCancelled(cancelled)
}

// finalizeCancel applies a cooperative cancellation at a completion boundary.
func (e *Engine) finalizeCancel(a *agent.Agent, reason string) {
	if err := a.BackToIdle(); err == nil {
		a.Terminate()
	}

	if err := e.graph.MarkCancelled(a.TaskID, reason); err != nil {
		e.logger.Log("[engine] mark cancelled %s: %v", a.TaskID, err)
	}
	e.removeAgent(a)
	e.persistTask(a.TaskID)
	e.emit(Event{Type: EventTaskCancelled, TaskID: a.TaskID, AgentID: a.ID, Message: reason})
	e.logger.Log("[engine] task %s cancelled: %s", a.TaskID, reason)
}

// emitCancelled persists and announces tasks cancelled by a failure cascade.
func (e *Engine) emitCancelled(ids []string) {
	for _, id := range ids {
		e.persistTask(id)
		t, _ := e.graph.Get(id)
		e.emit(Event{Type: EventTaskCancelled, TaskID: id, Message: t.Error})
	}
}

// removeAgent releases an agent's bus subscription and pool slot.
func (e *Engine) removeAgent(a *agent.Agent) {
	delete(e.agents, a.TaskID)
	e.bus.Unsubscribe(a.ID)
	e.deleteAgentState(a.ID)
}

// emit sends an event to the global stream and any per-task subscribers.
func (e *Engine) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.emitter.Emit(ev)

	if ev.TaskID == "" {
		return
	}
	chans := e.subs[ev.TaskID]
	for _, ch := range chans {
		select {
		case ch <- ev:
		default:
			// Slow subscriber, drop rather than stall the loop
		}
	}
	if ev.terminalEvent() && len(chans) > 0 {
		for _, ch := range chans {
			close(ch)
		}
		delete(e.subs, ev.TaskID)
	}
}

// shutdown cancels remaining work and releases resources. Called once when
// the loop exits; interrupted is true when the run did not complete
// naturally.
func (e *Engine) shutdown(interrupted bool) {
	for _, a := range e.agents {
		if err := e.graph.MarkCancelled(a.TaskID, "engine stopped"); err == nil {
			e.persistTask(a.TaskID)
			e.emit(Event{Type: EventTaskCancelled, TaskID: a.TaskID, AgentID: a.ID, Message: "engine stopped"})
		}
		e.bus.Unsubscribe(a.ID)
		e.deleteAgentState(a.ID)
	}
	e.agents = make(map[string]*agent.Agent)

	close(e.stopped)
	e.wg.Wait()
	e.bus.Close()

	for id, chans := range e.subs {
		for _, ch := range chans {
			close(ch)
		}
		delete(e.subs, id)
	}

	if e.store != nil && e.sessionID != "" && !interrupted {
		if err := e.store.CloseSession(e.sessionID); err != nil {
			e.logger.Log("[engine] close session: %v", err)
		}
	}

	e.emitter.Close()
	e.logger.Log("[engine] stopped (interrupted=%v)", interrupted)
}
