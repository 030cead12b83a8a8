// Package bus provides in-process message routing between agents and the
// orchestrator. Delivery to a given recipient preserves enqueue order;
// ordering across recipients is unspecified.
package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elysiumlabs/atlas/pkg/models"
)

// Bus routes messages to per-recipient FIFO queues. Each subscribed recipient
// gets a dedicated delivery goroutine so a slow consumer never reorders or
// blocks another recipient's queue.
type Bus struct {
	mu     sync.Mutex
	queues map[string]*queue
	closed bool
}

// queue is the per-recipient delivery state.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []models.Message
	out     chan models.Message
	closed  bool
}

func newQueue(buffer int) *queue {
	q := &queue{
		out: make(chan models.Message, buffer),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.deliver()
	return q
}

// deliver drains pending messages to the out channel in enqueue order.
func (q *queue) deliver() {
	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed && len(q.pending) == 0 {
			q.mu.Unlock()
			close(q.out)
			return
		}
		msg := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.out <- msg
	}
}

func (q *queue) push(msg models.Message) {
	q.mu.Lock()
	q.pending = append(q.pending, msg)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Signal()
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		queues: make(map[string]*queue),
	}
}

// Subscribe registers a recipient and returns its delivery channel. Messages
// published before subscription are not replayed. Subscribing twice for the
// same recipient returns the existing channel.
func (b *Bus) Subscribe(recipient string) <-chan models.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[recipient]
	if !ok {
		q = newQueue(16)
		b.queues[recipient] = q
	}
	return q.out
}

// Unsubscribe removes a recipient and closes its delivery channel after any
// pending messages drain.
func (b *Bus) Unsubscribe(recipient string) {
	b.mu.Lock()
	q, ok := b.queues[recipient]
	if ok {
		delete(b.queues, recipient)
	}
	b.mu.Unlock()

	if ok {
		q.close()
	}
}

// Publish enqueues a message. The bus assigns the message ID and timestamp,
// making the stored record immutable from the sender's point of view.
// Broadcast messages fan out to every current subscriber except the sender.
func (b *Bus) Publish(sender, recipient string, payload any) (models.Message, error) {
	msg := models.Message{
		ID:         uuid.New().String(),
		Sender:     sender,
		Recipient:  recipient,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return models.Message{}, fmt.Errorf("bus is closed")
	}

	if msg.IsBroadcast() {
		for name, q := range b.queues {
			if name == sender {
				continue
			}
			q.push(msg)
		}
		return msg, nil
	}

	q, ok := b.queues[recipient]
	if !ok {
		return models.Message{}, fmt.Errorf("no subscriber for recipient %q", recipient)
	}
	q.push(msg)
	return msg, nil
}

// Close shuts down the bus. Every recipient channel is closed after its
// pending messages drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	queues := make([]*queue, 0, len(b.queues))
	for _, q := range b.queues {
		queues = append(queues, q)
	}
	b.queues = make(map[string]*queue)
	b.mu.Unlock()

	for _, q := range queues {
		q.close()
	}
}
