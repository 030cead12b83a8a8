package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	data := []byte(`
name: release-notes
description: draft and review release notes
tasks:
  - id: gather
    goal: collect merged pull requests since the last tag
    priority: 1
  - id: draft
    goal: write release notes from the collected changes
    depends_on: [gather]
    timeout: 5m
  - id: review
    goal: review the draft for accuracy
    depends_on: [draft]
    priority: 2
`)

	wf, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "release-notes", wf.Name)
	require.Len(t, wf.Tasks, 3)
	assert.Equal(t, "gather", wf.Tasks[0].ID)
	assert.Equal(t, []string{"gather"}, wf.Tasks[1].DependsOn)
	assert.Equal(t, 5*time.Minute, wf.Tasks[1].Timeout)
	assert.Equal(t, 2, wf.Tasks[2].Priority)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no tasks", "name: empty\ntasks: []"},
		{"missing id", "tasks:\n  - goal: do something"},
		{"missing goal", "tasks:\n  - id: a"},
		{"duplicate id", "tasks:\n  - id: a\n    goal: x\n  - id: a\n    goal: y"},
		{"self dependency", "tasks:\n  - id: a\n    goal: x\n    depends_on: [a]"},
		{"forward dependency", "tasks:\n  - id: a\n    goal: x\n    depends_on: [b]\n  - id: b\n    goal: y"},
		{"unknown dependency", "tasks:\n  - id: a\n    goal: x\n    depends_on: [ghost]"},
		{"malformed yaml", "tasks: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yaml")
	content := "name: wf\ntasks:\n  - id: only\n    goal: run once\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	wf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wf", wf.Name)
	require.Len(t, wf.Tasks, 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
