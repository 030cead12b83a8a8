package models

import "time"

// Broadcast is the recipient value that addresses a message to every agent.
const Broadcast = "*"

// Message is a unit of agent-to-agent or agent-to-orchestrator communication.
// Messages are immutable once enqueued; delivery to a given recipient
// preserves enqueue order.
type Message struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`
	// Sender is the ID of the originating agent or "orchestrator".
	Sender string `json:"sender"`
	// Recipient is the target agent ID, or Broadcast for all agents.
	Recipient string `json:"recipient"`
	// Payload is the opaque message body.
	Payload any `json:"payload"`
	// EnqueuedAt is when the message entered the bus.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// IsBroadcast returns true if the message is addressed to every agent.
func (m Message) IsBroadcast() bool {
	return m.Recipient == Broadcast
}
