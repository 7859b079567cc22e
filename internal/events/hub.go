// Package events is a small in-memory pub/sub used to feed the SSE endpoint
// and the watch TUI. Publishing never blocks the pipeline.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types published by the pipeline.
const (
	TypePopQueued      = "pop.queued"
	TypePopSuppressed  = "pop.suppressed"
	TypePopLaunched    = "pop.launched"
	TypePopFailed      = "pop.failed"
	TypePlacementReset = "placement.reset"
)

type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON payload
}

// Hub fans events out to subscribers and keeps a small ring buffer so late
// clients can catch up.
type Hub struct {
	mu     sync.Mutex
	nextID int64
	ring   []Event
	start  int
	size   int

	subs      map[int]chan Event
	nextSubID int
}

// NewHub creates a Hub whose ring buffer holds capacity events.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

// Publish marshals data and delivers the event to all subscribers. Slow
// subscribers lose events rather than blocking the publisher.
func (h *Hub) Publish(eventType string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ev := Event{
		ID:   h.nextID,
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}

	h.pushLocked(ev)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest-first.
// lastID of 0 returns the full buffer.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)
	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = ev
		h.size++
		return
	}
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
