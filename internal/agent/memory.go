package agent

import "time"

// ObservationKind categorizes a memory entry.
type ObservationKind string

const (
	// ObservationToolResult records the outcome of a tool call.
	ObservationToolResult ObservationKind = "tool_result"
	// ObservationMessage records a message received from the bus.
	ObservationMessage ObservationKind = "message"
	// ObservationError records a recoverable failure the agent should know about.
	ObservationError ObservationKind = "error"
)

// Observation is a single entry in an agent's memory.
type Observation struct {
	// Kind categorizes the entry.
	Kind ObservationKind `json:"kind"`
	// Source names where the entry came from (tool name, sender ID).
	Source string `json:"source,omitempty"`
	// Content is the opaque payload.
	Content any `json:"content"`
	// At is when the observation was recorded.
	At time.Time `json:"at"`
}

// Memory is a bounded, insertion-ordered observation buffer. When the buffer
// is full the oldest observation is evicted.
type Memory struct {
	limit   int
	entries []Observation
	evicted int
}

// NewMemory creates a Memory holding at most limit observations. A
// non-positive limit falls back to a single slot.
func NewMemory(limit int) *Memory {
	if limit < 1 {
		limit = 1
	}
	return &Memory{
		limit:   limit,
		entries: make([]Observation, 0, limit),
	}
}

// Append records an observation, evicting the oldest entry at capacity.
func (m *Memory) Append(obs Observation) {
	if obs.At.IsZero() {
		obs.At = time.Now()
	}
	if len(m.entries) == m.limit {
		copy(m.entries, m.entries[1:])
		m.entries[len(m.entries)-1] = obs
		m.evicted++
		return
	}
	m.entries = append(m.entries, obs)
}

// Snapshot returns a copy of the buffer, oldest first.
func (m *Memory) Snapshot() []Observation {
	out := make([]Observation, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of observations currently held.
func (m *Memory) Len() int {
	return len(m.entries)
}

// Evicted returns how many observations have been dropped to make room.
func (m *Memory) Evicted() int {
	return m.evicted
}

// Clear drops all observations. Used when an agent picks up a new task.
func (m *Memory) Clear() {
	m.entries = m.entries[:0]
	m.evicted = 0
}
