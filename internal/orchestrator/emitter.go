package orchestrator

import (
	"log"
	"sync/atomic"
	"time"
)

// emitWait is how long Emit blocks on a full channel before dropping the
// event. The engine loop must never stall on a slow event consumer.
const emitWait = 100 * time.Millisecond

// dropLogEvery throttles the warning logged for dropped events.
const dropLogEvery = 10

// EventEmitter fans the engine's event stream out to a single buffered
// channel. Emission never blocks the engine loop for longer than emitWait;
// events beyond that are counted and dropped.
type EventEmitter struct {
	events  chan Event
	dropped atomic.Uint64
}

// NewEventEmitter creates an emitter with the given channel buffer.
func NewEventEmitter(buffer int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, buffer),
	}
}

// Events returns the stream consumed by subscribers such as the CLI.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Emit delivers an event, waiting briefly if the buffer is full. A consumer
// that stays behind for longer than emitWait loses the event.
func (e *EventEmitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(emitWait):
		count := e.dropped.Add(1)
		if count%dropLogEvery == 1 {
			log.Printf("[engine] event buffer full, dropped %s (total dropped: %d)", event.Type, count)
		}
	}
}

// Dropped returns how many events were discarded because no consumer kept up.
func (e *EventEmitter) Dropped() uint64 {
	return e.dropped.Load()
}

// Close closes the event stream. Called once, after the engine loop exits.
func (e *EventEmitter) Close() {
	close(e.events)
}
