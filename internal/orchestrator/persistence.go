package orchestrator

import (
	"github.com/elysiumlabs/atlas/internal/agent"
)

// persistTask writes a task snapshot to the state store.
func (e *Engine) persistTask(id string) {
	if e.store == nil {
		return
	}
	task, found := e.graph.Get(id)
	if !found {
		return
	}
	if err := e.store.SaveTask(e.sessionID, &task, e.graph.Dependencies(id)); err != nil {
		e.logger.Log("[engine] persist task %s: %v", id, err)
	}
}

// persistAgent writes an agent snapshot to the state store.
func (e *Engine) persistAgent(a *agent.Agent) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveAgent(a.Snapshot()); err != nil {
		e.logger.Log("[engine] persist agent %s: %v", a.ID, err)
	}
}

// deleteAgentState removes an agent snapshot once its task is terminal.
func (e *Engine) deleteAgentState(agentID string) {
	if e.store == nil {
		return
	}
	if err := e.store.DeleteAgent(agentID); err != nil {
		e.logger.Log("[engine] delete agent %s: %v", agentID, err)
	}
}
