package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elysiumlabs/atlas/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "atlas.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.CreateSession("sess-1", time.Now()))
	require.NoError(t, db.CreateSession("sess-2", time.Now()))

	active, err := db.ActiveSessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1", "sess-2"}, active)

	require.NoError(t, db.CloseSession("sess-1"))
	active, err = db.ActiveSessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-2"}, active)
}

func TestSaveLoadTask(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateSession("sess", time.Now()))

	deadline := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	task := &models.Task{
		ID:         "task-1",
		Goal:       "summarize the report",
		Status:     models.TaskStatusSucceeded,
		AssignedTo: "agent-1",
		Result:     map[string]any{"summary": "done"},
		RetryCount: 2,
		Priority:   5,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Deadline:   &deadline,
	}
	require.NoError(t, db.SaveTask("sess", task, []string{"task-0"}))

	tasks, deps, err := db.LoadTasks("sess")
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	got := tasks[0]
	assert.Equal(t, "task-1", got.ID)
	assert.Equal(t, "summarize the report", got.Goal)
	assert.Equal(t, models.TaskStatusSucceeded, got.Status)
	assert.Equal(t, "agent-1", got.AssignedTo)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, 5, got.Priority)
	assert.Equal(t, map[string]any{"summary": "done"}, got.Result)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(deadline))
	assert.Equal(t, []string{"task-0"}, deps["task-1"])
}

func TestSaveTaskReplaces(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateSession("sess", time.Now()))

	task := &models.Task{ID: "t", Goal: "g", Status: models.TaskStatusPending, CreatedAt: time.Now()}
	require.NoError(t, db.SaveTask("sess", task, nil))

	task.Status = models.TaskStatusRunning
	task.RetryCount = 1
	require.NoError(t, db.SaveTask("sess", task, nil))

	tasks, _, err := db.LoadTasks("sess")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskStatusRunning, tasks[0].Status)
	assert.Equal(t, 1, tasks[0].RetryCount)
}

func TestUpdateTaskStatusUnknown(t *testing.T) {
	db := openTestDB(t)
	err := db.UpdateTaskStatus("missing", models.TaskStatusReady)
	assert.Error(t, err)
}

func TestAgentSnapshots(t *testing.T) {
	db := openTestDB(t)

	a := models.Agent{
		ID:         "agent-1",
		TaskID:     "task-1",
		State:      models.AgentThinking,
		ErrorCount: 1,
		StartedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, db.SaveAgent(a))

	agents, err := db.LoadAgents()
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, a.ID, agents[0].ID)
	assert.Equal(t, models.AgentThinking, agents[0].State)
	assert.Equal(t, 1, agents[0].ErrorCount)

	require.NoError(t, db.DeleteAgent("agent-1"))
	agents, err = db.LoadAgents()
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestRecoverRequeuesRunning(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateSession("sess", time.Now()))

	now := time.Now().UTC()
	tasks := []*models.Task{
		{ID: "a", Goal: "a", Status: models.TaskStatusSucceeded, CreatedAt: now},
		{ID: "b", Goal: "b", Status: models.TaskStatusRunning, AssignedTo: "agent-1", CreatedAt: now.Add(time.Millisecond)},
		{ID: "c", Goal: "c", Status: models.TaskStatusPending, CreatedAt: now.Add(2 * time.Millisecond)},
	}
	for _, task := range tasks {
		require.NoError(t, db.SaveTask("sess", task, nil))
	}
	require.NoError(t, db.SaveAgent(models.Agent{ID: "agent-1", TaskID: "b", State: models.AgentThinking}))

	rec, err := db.Recover()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "sess", rec.SessionID)
	assert.Equal(t, []string{"b"}, rec.Requeued)

	byID := make(map[string]*models.Task)
	for _, task := range rec.Tasks {
		byID[task.ID] = task
	}
	assert.Equal(t, models.TaskStatusSucceeded, byID["a"].Status)
	assert.Equal(t, models.TaskStatusReady, byID["b"].Status)
	assert.Empty(t, byID["b"].AssignedTo)
	assert.Equal(t, models.TaskStatusPending, byID["c"].Status)

	// stale agent snapshots are cleared
	agents, err := db.LoadAgents()
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestRecoverNoActiveSession(t *testing.T) {
	db := openTestDB(t)
	rec, err := db.Recover()
	require.NoError(t, err)
	assert.Nil(t, rec)
}
