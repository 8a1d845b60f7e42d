package delivery

import (
	"sync"

	"courier/internal/queue"
)

// EventKind tags the lifecycle event variants emitted by the coordinator.
type EventKind string

const (
	// EventItemEnqueued fires when an item is admitted to the queue.
	EventItemEnqueued EventKind = "item_enqueued"
	// EventItemDispatched fires when an item is delivered and removed.
	EventItemDispatched EventKind = "item_dispatched"
	// EventItemDropped fires when an item exhausts its retry budget.
	EventItemDropped EventKind = "item_dropped"
	// EventFlushStarted fires when a flush cycle begins.
	EventFlushStarted EventKind = "flush_started"
	// EventFlushCompleted fires when a flush cycle ends.
	EventFlushCompleted EventKind = "flush_completed"
)

// Event is one coordinator lifecycle notification. Item is set for the
// per-item kinds; Err carries the final dispatch error on drops; Pending is
// the snapshot size on flush start; Succeeded and Dropped summarize a
// completed cycle.
type Event struct {
	Kind      EventKind
	Item      *queue.Item
	Err       error
	Pending   int
	Succeeded int
	Dropped   int
}

// eventChannelDepth buffers events per subscriber. A subscriber that falls
// further behind than this loses events rather than back-pressuring the
// coordinator.
const eventChannelDepth = 64

// Hub fans coordinator events out to independent subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[<-chan Event]chan Event
	closed bool
}

// NewHub constructs an empty event hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[<-chan Event]chan Event)}
}

// Subscribe attaches a new observer channel. The channel is closed by
// Unsubscribe or when the hub shuts down.
func (h *Hub) Subscribe() <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, eventChannelDepth)
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = ch
	return ch
}

// Unsubscribe detaches an observer channel and closes it.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(sub)
	}
}

// Publish delivers an event to every subscriber without blocking.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		select {
		case sub <- evt:
		default:
		}
	}
}

// Close detaches and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for key, sub := range h.subs {
		delete(h.subs, key)
		close(sub)
	}
}
