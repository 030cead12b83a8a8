// Package workflow loads task graph definitions from YAML files.
// A workflow file declares a set of tasks with goals, dependencies,
// priorities, and optional deadlines; the run command feeds the parsed
// definition into the engine.
package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Workflow is a parsed workflow definition.
type Workflow struct {
	// Name identifies the workflow in logs and status output.
	Name string `yaml:"name"`
	// Description is an optional human-readable summary.
	Description string `yaml:"description"`
	// Tasks are the task definitions in file order.
	Tasks []TaskDef `yaml:"tasks"`
}

// TaskDef declares a single task in a workflow file.
type TaskDef struct {
	// ID is the task identifier, unique within the workflow.
	ID string `yaml:"id"`
	// Goal is the natural-language objective handed to the agent.
	Goal string `yaml:"goal"`
	// DependsOn lists task IDs that must succeed first.
	DependsOn []string `yaml:"depends_on"`
	// Priority orders tasks within the ready queue. Lower runs first.
	Priority int `yaml:"priority"`
	// Timeout is an optional wall-clock budget for the task. The engine
	// turns it into an absolute deadline at submission time.
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads and validates a workflow file.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates workflow YAML.
func Parse(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Validate checks structural invariants: non-empty tasks, unique IDs,
// dependencies that refer to earlier tasks only. Requiring dependencies
// to appear before their dependents keeps workflow files trivially
// acyclic and submittable in file order.
func (w *Workflow) Validate() error {
	if len(w.Tasks) == 0 {
		return fmt.Errorf("workflow %q has no tasks", w.Name)
	}

	seen := make(map[string]bool, len(w.Tasks))
	for i, task := range w.Tasks {
		if task.ID == "" {
			return fmt.Errorf("task at index %d has no id", i)
		}
		if task.Goal == "" {
			return fmt.Errorf("task %q has no goal", task.ID)
		}
		if seen[task.ID] {
			return fmt.Errorf("duplicate task id %q", task.ID)
		}
		for _, dep := range task.DependsOn {
			if dep == task.ID {
				return fmt.Errorf("task %q depends on itself", task.ID)
			}
			if !seen[dep] {
				return fmt.Errorf("task %q depends on %q, which is not declared before it", task.ID, dep)
			}
		}
		if task.Timeout < 0 {
			return fmt.Errorf("task %q has negative timeout", task.ID)
		}
		seen[task.ID] = true
	}
	return nil
}
