package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"courier/internal/connectivity"
	"courier/internal/logging"
	"courier/internal/queue"
)

// Dispatch performs the network call for one queued item. A nil return
// removes the item; any error counts against its retry budget. A panic is
// recovered and treated as a failed attempt.
type Dispatch func(ctx context.Context, item queue.Item) error

// Coordinator is the public entry point of the offline delivery queue. It
// owns the store, applies the retry/drop policy, and publishes lifecycle
// events. Construct with NewCoordinator, call Initialize exactly once, and
// Close when done.
type Coordinator struct {
	store  *queue.Store
	signal connectivity.Signal
	logger *slog.Logger
	hub    *Hub

	mu          sync.Mutex
	dispatch    Dispatch
	initialized bool
	flushing    bool

	signalSub   <-chan bool
	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

// NewCoordinator builds a coordinator over the given store and signal.
func NewCoordinator(store *queue.Store, signal connectivity.Signal, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		signal: signal,
		logger: logging.NewComponentLogger(logger, "delivery"),
		hub:    NewHub(),
	}
}

// Initialize records the dispatch function, restores persisted items, and
// arms flush triggering on offline->online transitions. It must be called
// once before Enqueue or Flush have any effect.
func (c *Coordinator) Initialize(ctx context.Context, dispatch Dispatch) error {
	if dispatch == nil {
		return errors.New("delivery: dispatch function is required")
	}

	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return errors.New("delivery: coordinator already initialized")
	}
	c.dispatch = dispatch
	c.initialized = true
	c.mu.Unlock()

	c.store.Load(ctx)

	watchCtx, cancel := context.WithCancel(ctx)
	c.watchCancel = cancel
	c.signalSub = c.signal.Subscribe()
	c.wg.Add(1)
	go c.watchSignal(watchCtx)

	c.logger.Info("delivery coordinator initialized",
		logging.Int(logging.FieldPending, c.store.Len()),
		logging.Bool("online", c.signal.Online()))
	return nil
}

// Close stops connectivity watching and shuts down the event stream.
func (c *Coordinator) Close() {
	if c.watchCancel != nil {
		c.watchCancel()
		c.signal.Unsubscribe(c.signalSub)
		c.wg.Wait()
		c.watchCancel = nil
	}
	c.hub.Close()
}

// watchSignal triggers a flush on each offline->online edge while items
// are pending. Offline edges only matter to an in-progress flush loop,
// which polls the signal directly.
func (c *Coordinator) watchSignal(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-c.signalSub:
			if !ok {
				return
			}
			if online && c.store.Len() > 0 {
				c.Flush(ctx)
			}
		}
	}
}

// Enqueue admits an item at the queue tail, persists, emits ItemEnqueued,
// and triggers a flush when currently online. It never blocks on network
// dispatch beyond that triggered flush; calling before Initialize logs a
// warning and drops the item.
func (c *Coordinator) Enqueue(ctx context.Context, item queue.Item) error {
	c.mu.Lock()
	initialized := c.initialized
	c.mu.Unlock()
	if !initialized {
		c.logger.Warn("enqueue before initialization is a no-op",
			logging.String(logging.FieldEventType, "enqueue_uninitialized"),
			logging.String(logging.FieldErrorHint, "call Initialize before enqueueing"))
		return nil
	}

	if err := item.Validate(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	c.store.Append(item)
	c.store.Persist(ctx)
	c.hub.Publish(Event{Kind: EventItemEnqueued, Item: &item})
	c.logger.Debug("item enqueued",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("method", item.Method),
		logging.String("target", item.Target),
		logging.Int(logging.FieldPending, c.store.Len()))

	if c.signal.Online() {
		c.Flush(ctx)
	}
	return nil
}

// Flush drains a snapshot of the queue through the dispatch function.
// Concurrent calls while a cycle is in progress coalesce into a no-op;
// items enqueued after the snapshot wait for the next trigger. Dispatch
// failures drive the retry/drop policy and are never returned.
func (c *Coordinator) Flush(ctx context.Context) {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		c.logger.Warn("flush before initialization is a no-op",
			logging.String(logging.FieldEventType, "flush_uninitialized"),
			logging.String(logging.FieldErrorHint, "call Initialize before flushing"))
		return
	}
	if c.flushing {
		c.mu.Unlock()
		c.logger.Debug("flush already in progress, coalescing")
		return
	}
	if c.store.Len() == 0 {
		c.mu.Unlock()
		return
	}
	// The guard is set before the first blocking call below and cleared
	// only after the final persist.
	c.flushing = true
	dispatch := c.dispatch
	c.mu.Unlock()

	snapshot := c.store.Snapshot()
	c.hub.Publish(Event{Kind: EventFlushStarted, Pending: len(snapshot)})
	c.logger.Info("flush started", logging.Int(logging.FieldPending, len(snapshot)))

	var succeeded, dropped int
	for _, item := range snapshot {
		if !c.signal.Online() {
			c.logger.Info("connectivity lost mid-flush, deferring remaining items",
				logging.Int("remaining", len(snapshot)-succeeded-dropped))
			break
		}

		err := dispatchItem(ctx, dispatch, item)
		if err == nil {
			c.store.RemoveByID(item.ID)
			succeeded++
			c.hub.Publish(Event{Kind: EventItemDispatched, Item: &item})
			c.logger.Debug("item dispatched",
				logging.String(logging.FieldItemID, item.ID),
				logging.Int(logging.FieldAttempt, item.AttemptCount+1))
			continue
		}

		updated := item.NextAttempt()
		if updated.Exhausted() {
			c.store.RemoveByID(item.ID)
			dropped++
			c.hub.Publish(Event{Kind: EventItemDropped, Item: &updated, Err: err})
			c.logger.Warn("item dropped after exhausting retry budget",
				logging.String(logging.FieldItemID, item.ID),
				logging.Int(logging.FieldAttempt, updated.AttemptCount),
				logging.Int("max_attempts", updated.MaxAttempts),
				logging.Error(err),
				logging.String(logging.FieldEventType, "item_dropped"))
			continue
		}
		c.store.Replace(updated)
		c.logger.Debug("dispatch failed, item kept for retry",
			logging.String(logging.FieldItemID, item.ID),
			logging.Int(logging.FieldAttempt, updated.AttemptCount),
			logging.Error(err))
	}

	c.store.Persist(ctx)
	c.mu.Lock()
	c.flushing = false
	c.mu.Unlock()

	c.hub.Publish(Event{Kind: EventFlushCompleted, Succeeded: succeeded, Dropped: dropped})
	c.logger.Info("flush completed",
		logging.Int("succeeded", succeeded),
		logging.Int("dropped", dropped),
		logging.Int(logging.FieldPending, c.store.Len()))
}

// PendingCount reports the number of items currently queued.
func (c *Coordinator) PendingCount() int {
	return c.store.Len()
}

// Pending returns an ordered copy of the queued items.
func (c *Coordinator) Pending() []queue.Item {
	return c.store.Snapshot()
}

// Clear drops every pending item and persists the empty queue. Items in an
// in-progress flush snapshot may still complete their current attempt.
func (c *Coordinator) Clear(ctx context.Context) int {
	removed := c.store.Clear()
	if removed > 0 {
		c.store.Persist(ctx)
		c.logger.Info("queue cleared", logging.Int("removed", removed))
	}
	return removed
}

// Remove drops a single pending item by ID and persists.
func (c *Coordinator) Remove(ctx context.Context, id string) bool {
	if !c.store.RemoveByID(id) {
		return false
	}
	c.store.Persist(ctx)
	c.logger.Info("item removed from queue", logging.String(logging.FieldItemID, id))
	return true
}

// Subscribe attaches an observer to the lifecycle event stream.
func (c *Coordinator) Subscribe() <-chan Event {
	return c.hub.Subscribe()
}

// Unsubscribe detaches an observer channel.
func (c *Coordinator) Unsubscribe(ch <-chan Event) {
	c.hub.Unsubscribe(ch)
}

// dispatchItem invokes the dispatch function, converting a panic into an
// ordinary failed attempt.
func dispatchItem(ctx context.Context, dispatch Dispatch, item queue.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panicked: %v", r)
		}
	}()
	return dispatch(ctx, item)
}
