package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elysiumlabs/atlas/pkg/models"
)

func newCall(agentID string) *models.ToolCall {
	return &models.ToolCall{
		Tool:          "search",
		AgentID:       agentID,
		CorrelationID: "corr-1",
		Status:        models.ToolCallInFlight,
		Attempt:       1,
	}
}

func TestSuccessLoop(t *testing.T) {
	a := New("task-1", "find the answer", 10)
	assert.Equal(t, models.AgentIdle, a.State())

	require.NoError(t, a.BeginThinking())
	require.NoError(t, a.BeginActing())
	require.NoError(t, a.BeginAwaitingTool(newCall(a.ID)))
	require.NoError(t, a.ResolveTool("the answer"))
	assert.Equal(t, models.AgentIdle, a.State())

	// Tool result landed in memory.
	mem := a.Memory().Snapshot()
	require.Len(t, mem, 1)
	assert.Equal(t, ObservationToolResult, mem[0].Kind)
	assert.Equal(t, "search", mem[0].Source)
	assert.Equal(t, "the answer", mem[0].Content)
}

func TestDisallowedTransitions(t *testing.T) {
	a := New("task-1", "goal", 10)

	// Cannot act or await without thinking first.
	assert.Error(t, a.BeginActing())
	assert.Error(t, a.BeginAwaitingTool(newCall(a.ID)))

	// Terminal states accept nothing.
	require.NoError(t, a.BeginThinking())
	require.NoError(t, a.Fail())
	assert.Error(t, a.BeginThinking())
	assert.Error(t, a.Terminate())
}

func TestTerminateOnlyFromIdle(t *testing.T) {
	a := New("task-1", "goal", 10)
	require.NoError(t, a.BeginThinking())
	assert.Error(t, a.Terminate())

	require.NoError(t, a.BackToIdle())
	assert.NoError(t, a.Terminate())
	assert.Equal(t, models.AgentTerminated, a.State())
}

func TestSingleInFlightToolCall(t *testing.T) {
	a := New("task-1", "goal", 10)
	require.NoError(t, a.BeginThinking())
	require.NoError(t, a.BeginActing())
	require.NoError(t, a.BeginAwaitingTool(newCall(a.ID)))

	other := newCall(a.ID)
	other.CorrelationID = "corr-2"
	assert.Error(t, a.BeginAwaitingTool(other))
}

func TestRetryKeepsCorrelationRoot(t *testing.T) {
	a := New("task-1", "goal", 10)
	require.NoError(t, a.BeginThinking())
	require.NoError(t, a.BeginActing())
	require.NoError(t, a.BeginAwaitingTool(newCall(a.ID)))

	retry := newCall(a.ID)
	retry.Attempt = 2
	require.NoError(t, a.RetryTool(retry))
	assert.Equal(t, models.AgentAwaitingTool, a.State())
	assert.Equal(t, 1, a.ErrorCount())

	pending, ok := a.PendingCall()
	require.True(t, ok)
	assert.Equal(t, 2, pending.Attempt)
	assert.Equal(t, "corr-1", pending.CorrelationID)

	wrongRoot := newCall(a.ID)
	wrongRoot.CorrelationID = "corr-other"
	assert.Error(t, a.RetryTool(wrongRoot))
}

func TestCancelFlag(t *testing.T) {
	a := New("task-1", "goal", 10)
	assert.False(t, a.CancelRequested())
	a.RequestCancel()
	assert.True(t, a.CancelRequested())
}

func TestFailClearsPendingCall(t *testing.T) {
	a := New("task-1", "goal", 10)
	require.NoError(t, a.BeginThinking())
	require.NoError(t, a.BeginActing())
	require.NoError(t, a.BeginAwaitingTool(newCall(a.ID)))
	require.NoError(t, a.Fail())

	_, ok := a.PendingCall()
	assert.False(t, ok)
}

func TestMemoryEvictsOldest(t *testing.T) {
	m := NewMemory(3)
	for i := 0; i < 5; i++ {
		m.Append(Observation{Kind: ObservationToolResult, Content: i})
	}

	snap := m.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 2, snap[0].Content)
	assert.Equal(t, 4, snap[2].Content)
	assert.Equal(t, 2, m.Evicted())
}

func TestMemoryInsertionOrder(t *testing.T) {
	m := NewMemory(10)
	for i := 0; i < 4; i++ {
		m.Append(Observation{Kind: ObservationMessage, Content: i})
	}
	for i, obs := range m.Snapshot() {
		assert.Equal(t, i, obs.Content)
	}
}

func TestMemoryMinimumLimit(t *testing.T) {
	m := NewMemory(0)
	m.Append(Observation{Content: "a"})
	m.Append(Observation{Content: "b"})
	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "b", snap[0].Content)
}

func TestSnapshotRecord(t *testing.T) {
	a := New("task-7", "goal", 5)
	rec := a.Snapshot()
	assert.Equal(t, a.ID, rec.ID)
	assert.Equal(t, "task-7", rec.TaskID)
	assert.Equal(t, models.AgentIdle, rec.State)
	assert.False(t, rec.StartedAt.IsZero())
}
