package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elysiumlabs/atlas/internal/agent"
	"github.com/elysiumlabs/atlas/internal/config"
	"github.com/elysiumlabs/atlas/internal/graph"
	"github.com/elysiumlabs/atlas/internal/registry"
	"github.com/elysiumlabs/atlas/internal/state"
	"github.com/elysiumlabs/atlas/pkg/models"
)

// providerFunc adapts a function to the agent.Provider interface.
type providerFunc func(ctx context.Context, req agent.Request) (agent.Action, error)

func (f providerFunc) Complete(ctx context.Context, req agent.Request) (agent.Action, error) {
	return f(ctx, req)
}

// scriptProvider replays a fixed sequence of actions per task.
type scriptProvider struct {
	mu      sync.Mutex
	scripts map[string][]agent.Action
	calls   map[string]int
}

func newScriptProvider() *scriptProvider {
	return &scriptProvider{
		scripts: make(map[string][]agent.Action),
		calls:   make(map[string]int),
	}
}

func (p *scriptProvider) script(taskID string, actions ...agent.Action) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[taskID] = actions
}

func (p *scriptProvider) Complete(_ context.Context, req agent.Request) (agent.Action, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.calls[req.TaskID]
	p.calls[req.TaskID] = n + 1
	steps := p.scripts[req.TaskID]
	if n >= len(steps) {
		return agent.Action{Kind: agent.ActionDone}, nil
	}
	return steps[n], nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Scheduler.TickInterval = 5 * time.Millisecond
	cfg.Scheduler.ProviderTimeout = 2 * time.Second
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.State.Persist = false
	return cfg
}

// runEngine starts the engine loop and returns a function that waits for it
// to finish.
func runEngine(t *testing.T, e *Engine) func() error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Run(context.Background())
	}()
	// Drain global events so the emitter never stalls
	go func() {
		for range e.Events() {
		}
	}()
	return func() error {
		select {
		case err := <-errCh:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("engine did not finish in time")
			return nil
		}
	}
}

func TestSingleTaskCompletes(t *testing.T) {
	provider := newScriptProvider()
	provider.script("t1", agent.Action{Kind: agent.ActionDone, Result: "all set"})

	e := New(testConfig(), provider, registry.New())
	wait := runEngine(t, e)

	id, err := e.Submit(SubmitRequest{ID: "t1", Goal: "finish the thing"})
	require.NoError(t, err)
	assert.Equal(t, "t1", id)

	require.NoError(t, wait())

	task, err := e.taskAfterRun("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSucceeded, task.Status)
	assert.Equal(t, "all set", task.Result)
	assert.NotNil(t, task.CompletedAt)
}

// taskAfterRun reads a task snapshot once the loop has exited. Control
// operations return ErrEngineStopped after Run, so tests read the graph
// directly; the loop no longer runs, making this safe.
func (e *Engine) taskAfterRun(id string) (models.Task, error) {
	task, found := e.graph.Get(id)
	if !found {
		return models.Task{}, graph.ErrTaskNotFound
	}
	return task, nil
}

func TestToolCallFlow(t *testing.T) {
	var invocations atomic.Int32
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Descriptor{
		Name:        "echo",
		Description: "echoes its input",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			invocations.Add(1)
			return args["text"], nil
		},
		Idempotent: true,
	}))

	provider := providerFunc(func(_ context.Context, req agent.Request) (agent.Action, error) {
		for _, obs := range req.Observations {
			if obs.Kind == agent.ObservationToolResult {
				return agent.Action{Kind: agent.ActionDone, Result: obs.Content}, nil
			}
		}
		return agent.Action{
			Kind: agent.ActionToolCall,
			Tool: "echo",
			Args: map[string]any{"text": "ping"},
		}, nil
	})

	e := New(testConfig(), provider, reg)
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "echo something"})
	require.NoError(t, err)
	require.NoError(t, wait())

	assert.Equal(t, int32(1), invocations.Load())
	task, err := e.taskAfterRun("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSucceeded, task.Status)
	assert.Equal(t, "ping", task.Result)
}

func TestIdempotentToolRetriesThenFails(t *testing.T) {
	var invocations atomic.Int32
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Descriptor{
		Name:        "flaky",
		Description: "always fails",
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			invocations.Add(1)
			return nil, errors.New("backend unavailable")
		},
		Idempotent: true,
	}))

	provider := newScriptProvider()
	provider.script("t1", agent.Action{Kind: agent.ActionToolCall, Tool: "flaky"})

	cfg := testConfig()
	cfg.Retry.MaxRetries = 2

	e := New(cfg, provider, reg)
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "call the flaky tool"})
	require.NoError(t, err)
	require.NoError(t, wait())

	// Initial attempt plus MaxRetries retries
	assert.Equal(t, int32(3), invocations.Load())
	task, err := e.taskAfterRun("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Contains(t, task.Error, "backend unavailable")
}

func TestRetryBudgetResetsAfterToolSuccess(t *testing.T) {
	var invocations atomic.Int32
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Descriptor{
		Name:        "recovering",
		Description: "fails once then succeeds",
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			if invocations.Add(1) == 1 {
				return nil, errors.New("transient outage")
			}
			return "recovered", nil
		},
		Idempotent: true,
	}))

	provider := newScriptProvider()
	provider.script("t1",
		agent.Action{Kind: agent.ActionToolCall, Tool: "recovering"},
		agent.Action{Kind: agent.ActionDone},
	)

	cfg := testConfig()
	cfg.Retry.MaxRetries = 2

	e := New(cfg, provider, reg)
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "survive one outage"})
	require.NoError(t, err)
	require.NoError(t, wait())

	assert.Equal(t, int32(2), invocations.Load())
	task, err := e.taskAfterRun("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSucceeded, task.Status)
	// A resolved call hands the next one a fresh retry budget.
	assert.Equal(t, 0, task.RetryCount)
}

func TestNonIdempotentToolNotRetried(t *testing.T) {
	var invocations atomic.Int32
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Descriptor{
		Name:        "charge",
		Description: "has side effects",
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			invocations.Add(1)
			return nil, errors.New("payment gateway error")
		},
		Idempotent: false,
	}))

	provider := newScriptProvider()
	provider.script("t1", agent.Action{Kind: agent.ActionToolCall, Tool: "charge"})

	e := New(testConfig(), provider, reg)
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "charge the card"})
	require.NoError(t, err)
	require.NoError(t, wait())

	assert.Equal(t, int32(1), invocations.Load())
	task, err := e.taskAfterRun("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
}

func TestFailureCascadesToDependents(t *testing.T) {
	release := make(chan struct{})
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Descriptor{
		Name:        "broken",
		Description: "always fails",
		Handler: func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, errors.New("boom")
		},
		Idempotent: false,
	}))

	provider := newScriptProvider()
	provider.script("a", agent.Action{Kind: agent.ActionToolCall, Tool: "broken"})

	e := New(testConfig(), provider, reg)
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "a", Goal: "fail"})
	require.NoError(t, err)
	_, err = e.Submit(SubmitRequest{ID: "b", Goal: "depends on a", DependsOn: []string{"a"}})
	require.NoError(t, err)
	_, err = e.Submit(SubmitRequest{ID: "c", Goal: "depends on b", DependsOn: []string{"b"}})
	require.NoError(t, err)

	close(release)
	require.NoError(t, wait())

	a, _ := e.taskAfterRun("a")
	b, _ := e.taskAfterRun("b")
	c, _ := e.taskAfterRun("c")
	assert.Equal(t, models.TaskStatusFailed, a.Status)
	assert.Equal(t, models.TaskStatusCancelled, b.Status)
	assert.Equal(t, models.TaskStatusCancelled, c.Status)
	assert.Equal(t, "a", b.FailureOrigin)
	assert.Equal(t, "a", c.FailureOrigin)
}

func TestMaxConcurrentAgentsSerializes(t *testing.T) {
	var current, peak atomic.Int32
	provider := providerFunc(func(_ context.Context, _ agent.Request) (agent.Action, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return agent.Action{Kind: agent.ActionDone}, nil
	})

	cfg := testConfig()
	cfg.Scheduler.MaxConcurrentAgents = 1

	e := New(cfg, provider, registry.New())
	wait := runEngine(t, e)

	for i := 0; i < 3; i++ {
		_, err := e.Submit(SubmitRequest{ID: fmt.Sprintf("t%d", i), Goal: "work"})
		require.NoError(t, err)
	}
	require.NoError(t, wait())

	assert.Equal(t, int32(1), peak.Load())
	for i := 0; i < 3; i++ {
		task, err := e.taskAfterRun(fmt.Sprintf("t%d", i))
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusSucceeded, task.Status)
	}
}

func TestCancelQueuedTask(t *testing.T) {
	release := make(chan struct{})
	provider := providerFunc(func(ctx context.Context, _ agent.Request) (agent.Action, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return agent.Action{Kind: agent.ActionDone}, nil
	})

	e := New(testConfig(), provider, registry.New())
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "a", Goal: "blocker"})
	require.NoError(t, err)
	_, err = e.Submit(SubmitRequest{ID: "b", Goal: "queued behind a", DependsOn: []string{"a"}})
	require.NoError(t, err)

	require.NoError(t, e.Cancel("b"))
	close(release)
	require.NoError(t, wait())

	a, _ := e.taskAfterRun("a")
	b, _ := e.taskAfterRun("b")
	assert.Equal(t, models.TaskStatusSucceeded, a.Status)
	assert.Equal(t, models.TaskStatusCancelled, b.Status)
}

func TestCancelRunningTaskAtBoundary(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	provider := providerFunc(func(_ context.Context, _ agent.Request) (agent.Action, error) {
		once.Do(func() { close(started) })
		time.Sleep(30 * time.Millisecond)
		return agent.Action{Kind: agent.ActionDone, Result: "too late"}, nil
	})

	e := New(testConfig(), provider, registry.New())
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "long think"})
	require.NoError(t, err)

	<-started
	require.NoError(t, e.Cancel("t1"))
	require.NoError(t, wait())

	task, err := e.taskAfterRun("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, task.Status)
	assert.Nil(t, task.Result)
}

func TestCancelUnknownAndTerminal(t *testing.T) {
	provider := newScriptProvider()
	provider.script("t1", agent.Action{Kind: agent.ActionDone})

	e := New(testConfig(), provider, registry.New())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(context.Background()) }()

	assert.ErrorIs(t, e.Cancel("missing"), graph.ErrTaskNotFound)

	_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "quick"})
	require.NoError(t, err)

	// Wait for completion via subscription
	events, err := e.SubscribeTask("t1")
	if err == nil {
		for range events {
		}
	}
	<-errCh
}

func TestDeadlineExceededFailsTask(t *testing.T) {
	provider := providerFunc(func(ctx context.Context, _ agent.Request) (agent.Action, error) {
		<-ctx.Done()
		return agent.Action{}, &agent.ProviderTimeoutError{Timeout: time.Second}
	})

	cfg := testConfig()
	cfg.Scheduler.ProviderTimeout = 200 * time.Millisecond
	cfg.Retry.MaxRetries = 0

	e := New(cfg, provider, registry.New())
	wait := runEngine(t, e)

	deadline := time.Now().Add(30 * time.Millisecond)
	_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "never finishes", Deadline: &deadline})
	require.NoError(t, err)
	require.NoError(t, wait())

	task, err := e.taskAfterRun("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Contains(t, task.Error, "exceeded deadline")
}

func TestBroadcastMessageReachesOtherAgents(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Descriptor{
		Name:        "wait",
		Description: "waits briefly",
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			time.Sleep(5 * time.Millisecond)
			return "waited", nil
		},
		Idempotent: true,
	}))

	var sentOnce sync.Once
	provider := providerFunc(func(_ context.Context, req agent.Request) (agent.Action, error) {
		switch req.TaskID {
		case "sender":
			var action agent.Action
			sent := false
			sentOnce.Do(func() {
				action = agent.Action{Kind: agent.ActionMessage, Recipient: models.Broadcast, Payload: "hello"}
				sent = true
			})
			if sent {
				return action, nil
			}
			return agent.Action{Kind: agent.ActionDone}, nil
		default: // receiver
			for _, obs := range req.Observations {
				if obs.Kind == agent.ObservationMessage {
					return agent.Action{Kind: agent.ActionDone, Result: obs.Content}, nil
				}
			}
			return agent.Action{Kind: agent.ActionToolCall, Tool: "wait"}, nil
		}
	})

	e := New(testConfig(), provider, reg)
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "receiver", Goal: "wait for a message"})
	require.NoError(t, err)
	_, err = e.Submit(SubmitRequest{ID: "sender", Goal: "announce"})
	require.NoError(t, err)
	require.NoError(t, wait())

	receiver, err := e.taskAfterRun("receiver")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusSucceeded, receiver.Status)
	assert.Equal(t, "hello", receiver.Result)
}

func TestInvalidActionFailsTask(t *testing.T) {
	tests := []struct {
		name   string
		action agent.Action
	}{
		{"unknown kind", agent.Action{Kind: "teleport"}},
		{"unknown tool", agent.Action{Kind: agent.ActionToolCall, Tool: "nope"}},
		{"no recipient", agent.Action{Kind: agent.ActionMessage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newScriptProvider()
			provider.script("t1", tt.action)

			e := New(testConfig(), provider, registry.New())
			wait := runEngine(t, e)

			_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "misbehave"})
			require.NoError(t, err)
			require.NoError(t, wait())

			task, err := e.taskAfterRun("t1")
			require.NoError(t, err)
			assert.Equal(t, models.TaskStatusFailed, task.Status)
			assert.Contains(t, task.Error, "invalid action")
		})
	}
}

func TestSchemaViolationFailsTask(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(&registry.Descriptor{
		Name:        "typed",
		Description: "needs a string",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			return nil, nil
		},
	}))

	provider := newScriptProvider()
	provider.script("t1", agent.Action{
		Kind: agent.ActionToolCall,
		Tool: "typed",
		Args: map[string]any{"text": 42},
	})

	e := New(testConfig(), provider, reg)
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "bad args"})
	require.NoError(t, err)
	require.NoError(t, wait())

	task, err := e.taskAfterRun("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
}

func TestSubmitRejectsUnknownDependency(t *testing.T) {
	// Hold t1 open so the engine cannot finish the run before the duplicate
	// submit below is asserted.
	release := make(chan struct{})
	provider := providerFunc(func(ctx context.Context, _ agent.Request) (agent.Action, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return agent.Action{Kind: agent.ActionDone}, nil
	})

	e := New(testConfig(), provider, registry.New())
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "bad", Goal: "x", DependsOn: []string{"ghost"}})
	var unknownDep *graph.UnknownDependencyError
	assert.ErrorAs(t, err, &unknownDep)

	_, err = e.Submit(SubmitRequest{ID: "t1", Goal: "ok"})
	require.NoError(t, err)

	_, err = e.Submit(SubmitRequest{ID: "t1", Goal: "dup"})
	assert.ErrorIs(t, err, graph.ErrDuplicateTask)

	close(release)
	require.NoError(t, wait())
}

func TestSubscribeTaskStreamClosesAtTerminal(t *testing.T) {
	release := make(chan struct{})
	provider := providerFunc(func(ctx context.Context, _ agent.Request) (agent.Action, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return agent.Action{Kind: agent.ActionDone, Result: "ok"}, nil
	})

	e := New(testConfig(), provider, registry.New())
	wait := runEngine(t, e)

	_, err := e.Submit(SubmitRequest{ID: "t1", Goal: "observed"})
	require.NoError(t, err)

	events, err := e.SubscribeTask("t1")
	require.NoError(t, err)

	_, err = e.SubscribeTask("missing")
	assert.ErrorIs(t, err, graph.ErrTaskNotFound)

	close(release)

	var types []EventType
	for ev := range events {
		types = append(types, ev.Type)
	}
	require.NoError(t, wait())

	assert.Contains(t, types, EventTaskCompleted)
}

func TestEnginePersistsThroughStore(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "atlas.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	defer db.Close()

	provider := newScriptProvider()
	provider.script("t1", agent.Action{Kind: agent.ActionDone, Result: "saved"})

	e := New(testConfig(), provider, registry.New(), WithStore(db))
	wait := runEngine(t, e)

	_, err = e.Submit(SubmitRequest{ID: "t1", Goal: "persist me"})
	require.NoError(t, err)
	require.NoError(t, wait())

	// Session is closed on a clean finish
	active, err := db.ActiveSessions()
	require.NoError(t, err)
	assert.Empty(t, active)

	tasks, _, err := db.LoadTasks(e.sessionID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskStatusSucceeded, tasks[0].Status)
	assert.Equal(t, "saved", tasks[0].Result)
}

func TestRestoreRebuildsGraph(t *testing.T) {
	now := time.Now().UTC()
	rec := &state.RecoveredState{
		SessionID: "sess",
		Tasks: []*models.Task{
			{ID: "a", Goal: "done already", Status: models.TaskStatusSucceeded, CreatedAt: now},
			{ID: "b", Goal: "requeued", Status: models.TaskStatusReady, CreatedAt: now.Add(time.Millisecond)},
		},
		Deps: map[string][]string{"b": {"a"}},
	}

	provider := newScriptProvider()
	provider.script("b", agent.Action{Kind: agent.ActionDone, Result: "resumed"})

	e := New(testConfig(), provider, registry.New())
	require.NoError(t, e.Restore(rec))

	wait := runEngine(t, e)
	require.NoError(t, wait())

	a, _ := e.taskAfterRun("a")
	b, _ := e.taskAfterRun("b")
	assert.Equal(t, models.TaskStatusSucceeded, a.Status)
	assert.Equal(t, models.TaskStatusSucceeded, b.Status)
	assert.Equal(t, "resumed", b.Result)
}

func TestPauseSignalSuspendsScheduling(t *testing.T) {
	dir := t.TempDir()
	sm, err := NewSignalManager(dir)
	require.NoError(t, err)
	defer sm.Close()

	require.NoError(t, sm.SendPause())

	provider := newScriptProvider()
	provider.script("t1", agent.Action{Kind: agent.ActionDone})

	e := New(testConfig(), provider, registry.New(), WithSignals(sm))
	wait := runEngine(t, e)

	_, err = e.Submit(SubmitRequest{ID: "t1", Goal: "held back"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	task, err := e.Status("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusReady, task.Status)

	require.NoError(t, sm.SendResume())
	require.NoError(t, wait())

	done, _ := e.taskAfterRun("t1")
	assert.Equal(t, models.TaskStatusSucceeded, done.Status)
}

func TestCancelSignalCancelsQueuedTask(t *testing.T) {
	dir := t.TempDir()
	sm, err := NewSignalManager(dir)
	require.NoError(t, err)
	defer sm.Close()

	require.NoError(t, sm.SendPause())

	provider := newScriptProvider()
	provider.script("t1", agent.Action{Kind: agent.ActionDone})

	e := New(testConfig(), provider, registry.New(), WithSignals(sm))
	wait := runEngine(t, e)

	_, err = e.Submit(SubmitRequest{ID: "t1", Goal: "cancelled from outside"})
	require.NoError(t, err)

	require.NoError(t, sm.SendCancel("t1"))
	require.NoError(t, sm.SendResume())
	require.NoError(t, wait())

	task, err := e.taskAfterRun("t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, task.Status)
}

func TestKillSignalStopsEngine(t *testing.T) {
	dir := t.TempDir()
	sm, err := NewSignalManager(dir)
	require.NoError(t, err)
	defer sm.Close()

	release := make(chan struct{})
	defer close(release)
	provider := providerFunc(func(ctx context.Context, _ agent.Request) (agent.Action, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return agent.Action{Kind: agent.ActionDone}, nil
	})

	cfg := testConfig()
	cfg.Scheduler.ProviderTimeout = 100 * time.Millisecond

	e := New(cfg, provider, registry.New(), WithSignals(sm))
	wait := runEngine(t, e)

	_, err = e.Submit(SubmitRequest{ID: "t1", Goal: "interrupted"})
	require.NoError(t, err)

	require.NoError(t, sm.SendKill())
	require.NoError(t, wait())

	task, _ := e.taskAfterRun("t1")
	assert.Equal(t, models.TaskStatusCancelled, task.Status)
}

func TestRetryBackoffDelays(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, Multiplier: 2, MaxDelay: 30 * time.Second}

	assert.Equal(t, 500*time.Millisecond, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))

	capped := RetryPolicy{MaxRetries: 10, BaseDelay: 10 * time.Second, Multiplier: 2, MaxDelay: 30 * time.Second}
	assert.Equal(t, 30*time.Second, capped.Delay(4))

	assert.True(t, p.ShouldRetry(1))
	assert.True(t, p.ShouldRetry(3))
	assert.False(t, p.ShouldRetry(4))
}
