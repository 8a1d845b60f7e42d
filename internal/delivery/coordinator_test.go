package delivery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"courier/internal/connectivity"
	"courier/internal/delivery"
	"courier/internal/kv"
	"courier/internal/logging"
	"courier/internal/queue"
)

// memoryBackend keeps persisted state in-process for coordinator tests.
type memoryBackend struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{values: map[string]string{}}
}

func (b *memoryBackend) GetString(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.values[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return value, nil
}

func (b *memoryBackend) SetString(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

// stubDispatcher scripts dispatch outcomes and records the order of calls.
type stubDispatcher struct {
	mu    sync.Mutex
	fail  bool
	calls []string
	hook  func(item queue.Item)
}

func (d *stubDispatcher) dispatch(_ context.Context, item queue.Item) error {
	d.mu.Lock()
	d.calls = append(d.calls, item.ID)
	fail := d.fail
	hook := d.hook
	d.mu.Unlock()
	if hook != nil {
		hook(item)
	}
	if fail {
		return errors.New("dispatch refused")
	}
	return nil
}

func (d *stubDispatcher) setFail(fail bool) {
	d.mu.Lock()
	d.fail = fail
	d.mu.Unlock()
}

func (d *stubDispatcher) callIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func newTestItem(id string, maxAttempts int) queue.Item {
	return queue.Item{
		ID:          id,
		Method:      "POST",
		Target:      "https://example.com/hook",
		Payload:     `{"event":"` + id + `"}`,
		EnqueuedAt:  time.Now().UTC(),
		MaxAttempts: maxAttempts,
	}
}

type fixture struct {
	backend *memoryBackend
	signal  *connectivity.Manual
	coord   *delivery.Coordinator
	stub    *stubDispatcher
	events  <-chan delivery.Event
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	backend := newMemoryBackend()
	signal := connectivity.NewManual(online)
	store := queue.NewStore(backend, logging.NewNop())
	coord := delivery.NewCoordinator(store, signal, logging.NewNop())
	stub := &stubDispatcher{}
	events := coord.Subscribe()
	if err := coord.Initialize(context.Background(), stub.dispatch); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(coord.Close)
	return &fixture{backend: backend, signal: signal, coord: coord, stub: stub, events: events}
}

// waitEvent blocks until an event of the given kind arrives.
func waitEvent(t *testing.T, events <-chan delivery.Event, kind delivery.EventKind) delivery.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", kind)
			}
			if evt.Kind == kind {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestFlushDispatchesInAdmissionOrder(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := f.coord.Enqueue(ctx, newTestItem(id, 1)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if f.coord.PendingCount() != 3 {
		t.Fatalf("expected 3 pending, got %d", f.coord.PendingCount())
	}

	f.signal.SetOnline(true)
	completed := waitEvent(t, f.events, delivery.EventFlushCompleted)
	if completed.Succeeded != 3 || completed.Dropped != 0 {
		t.Fatalf("expected 3 succeeded, got %+v", completed)
	}

	calls := f.stub.callIDs()
	if len(calls) != 3 || calls[0] != "a" || calls[1] != "b" || calls[2] != "c" {
		t.Fatalf("expected FIFO dispatch order a,b,c, got %v", calls)
	}
	if f.coord.PendingCount() != 0 {
		t.Fatalf("expected empty queue, got %d", f.coord.PendingCount())
	}
}

func TestRetryBudgetAllowsMaxAttemptsPlusOne(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.stub.setFail(true)

	// Enqueue triggers the first attempt; two more flushes exhaust the
	// budget of two retries.
	if err := f.coord.Enqueue(ctx, newTestItem("a", 2)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	f.coord.Flush(ctx)
	f.coord.Flush(ctx)

	if calls := f.stub.callIDs(); len(calls) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", len(calls))
	}

	dropped := waitEvent(t, f.events, delivery.EventItemDropped)
	if dropped.Item == nil || dropped.Item.AttemptCount != 3 {
		t.Fatalf("expected dropped item with attempt count 3, got %+v", dropped.Item)
	}
	if dropped.Err == nil {
		t.Fatal("expected dropped event to carry the last dispatch error")
	}

	// Drop is terminal: no further attempts.
	f.coord.Flush(ctx)
	if calls := f.stub.callIDs(); len(calls) != 3 {
		t.Fatalf("expected no attempts after drop, got %d", len(calls))
	}
	if f.coord.PendingCount() != 0 {
		t.Fatalf("expected empty queue after drop, got %d", f.coord.PendingCount())
	}
}

func TestZeroBudgetDropsOnFirstFailure(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.stub.setFail(true)

	if err := f.coord.Enqueue(ctx, newTestItem("a", 0)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	dropped := waitEvent(t, f.events, delivery.EventItemDropped)
	if dropped.Item.AttemptCount != 1 {
		t.Fatalf("expected drop after single attempt, got attempt count %d", dropped.Item.AttemptCount)
	}
	if len(f.stub.callIDs()) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(f.stub.callIDs()))
	}
}

func TestConcurrentFlushesCoalesce(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.stub.mu.Lock()
	f.stub.hook = func(queue.Item) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}
	f.stub.mu.Unlock()

	// Enqueue while online starts a flush that blocks inside dispatch.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.coord.Enqueue(ctx, newTestItem("a", 1))
	}()
	<-entered

	// Overlapping flush requests must coalesce into the in-progress cycle.
	f.coord.Flush(ctx)
	f.coord.Flush(ctx)
	close(release)
	<-done

	var started, completed int
	timeout := time.After(2 * time.Second)
collect:
	for {
		select {
		case evt := <-f.events:
			switch evt.Kind {
			case delivery.EventFlushStarted:
				started++
			case delivery.EventFlushCompleted:
				completed++
				break collect
			}
		case <-timeout:
			break collect
		}
	}
	if started != 1 || completed != 1 {
		t.Fatalf("expected exactly one flush cycle, got started=%d completed=%d", started, completed)
	}
	if len(f.stub.callIDs()) != 1 {
		t.Fatalf("expected a single dispatch attempt, got %d", len(f.stub.callIDs()))
	}
}

func TestConnectivityLossStopsIteration(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := f.coord.Enqueue(ctx, newTestItem(id, 2)); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	// The first dispatch succeeds, then connectivity drops before b.
	f.stub.mu.Lock()
	f.stub.hook = func(item queue.Item) {
		if item.ID == "a" {
			f.signal.SetOnline(false)
		}
	}
	f.stub.mu.Unlock()

	f.signal.SetOnline(true)
	completed := waitEvent(t, f.events, delivery.EventFlushCompleted)
	if completed.Succeeded != 1 || completed.Dropped != 0 {
		t.Fatalf("expected one success before interruption, got %+v", completed)
	}

	if calls := f.stub.callIDs(); len(calls) != 1 || calls[0] != "a" {
		t.Fatalf("expected only a to be attempted, got %v", calls)
	}
	if f.coord.PendingCount() != 2 {
		t.Fatalf("expected b and c still queued, got %d", f.coord.PendingCount())
	}
}

func TestOfflineScenarioRetryAndDrop(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// Enqueue A(maxAttempts=0) and B(maxAttempts=1) while offline.
	if err := f.coord.Enqueue(ctx, newTestItem("a", 0)); err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	if err := f.coord.Enqueue(ctx, newTestItem("b", 1)); err != nil {
		t.Fatalf("Enqueue b: %v", err)
	}
	if f.coord.PendingCount() != 2 {
		t.Fatalf("expected 2 pending while offline, got %d", f.coord.PendingCount())
	}
	if len(f.stub.callIDs()) != 0 {
		t.Fatal("expected no dispatch attempts while offline")
	}

	// First cycle: both fail. A is dropped (0 retries), B is kept.
	f.stub.setFail(true)
	f.signal.SetOnline(true)
	first := waitEvent(t, f.events, delivery.EventFlushCompleted)
	if first.Succeeded != 0 || first.Dropped != 1 {
		t.Fatalf("expected first cycle to drop a, got %+v", first)
	}
	if f.coord.PendingCount() != 1 {
		t.Fatalf("expected only b queued, got %d", f.coord.PendingCount())
	}

	// Second cycle: B succeeds.
	f.stub.setFail(false)
	f.coord.Flush(ctx)
	second := waitEvent(t, f.events, delivery.EventFlushCompleted)
	if second.Succeeded != 1 || second.Dropped != 0 {
		t.Fatalf("expected second cycle to deliver b, got %+v", second)
	}
	if f.coord.PendingCount() != 0 {
		t.Fatalf("expected empty queue, got %d", f.coord.PendingCount())
	}
}

func TestQueueSurvivesRestart(t *testing.T) {
	backend := newMemoryBackend()
	ctx := context.Background()

	signal := connectivity.NewManual(false)
	store := queue.NewStore(backend, logging.NewNop())
	coord := delivery.NewCoordinator(store, signal, logging.NewNop())
	stub := &stubDispatcher{}
	if err := coord.Initialize(ctx, stub.dispatch); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := coord.Enqueue(ctx, newTestItem("a", 1)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := coord.Enqueue(ctx, newTestItem("b", 1)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	coord.Close()

	restarted := delivery.NewCoordinator(queue.NewStore(backend, logging.NewNop()), connectivity.NewManual(false), logging.NewNop())
	if err := restarted.Initialize(ctx, stub.dispatch); err != nil {
		t.Fatalf("Initialize after restart failed: %v", err)
	}
	defer restarted.Close()
	if restarted.PendingCount() != 2 {
		t.Fatalf("expected 2 items restored, got %d", restarted.PendingCount())
	}
}

func TestOperationsBeforeInitializeAreNoOps(t *testing.T) {
	store := queue.NewStore(newMemoryBackend(), logging.NewNop())
	coord := delivery.NewCoordinator(store, connectivity.NewManual(true), logging.NewNop())
	ctx := context.Background()

	if err := coord.Enqueue(ctx, newTestItem("a", 1)); err != nil {
		t.Fatalf("expected pre-init enqueue to be a silent no-op, got %v", err)
	}
	coord.Flush(ctx)
	if coord.PendingCount() != 0 {
		t.Fatalf("expected nothing queued before initialization, got %d", coord.PendingCount())
	}
}

func TestInitializeTwiceFails(t *testing.T) {
	f := newFixture(t, true)
	if err := f.coord.Initialize(context.Background(), f.stub.dispatch); err == nil {
		t.Fatal("expected second Initialize to fail")
	}
}

func TestEnqueueValidatesItems(t *testing.T) {
	f := newFixture(t, false)
	err := f.coord.Enqueue(context.Background(), queue.Item{Method: "POST"})
	if !errors.Is(err, queue.ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem, got %v", err)
	}
}

func TestPanickingDispatchCountsAsFailure(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.stub.mu.Lock()
	f.stub.hook = func(queue.Item) { panic("dispatch exploded") }
	f.stub.mu.Unlock()

	if err := f.coord.Enqueue(ctx, newTestItem("a", 0)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	dropped := waitEvent(t, f.events, delivery.EventItemDropped)
	if dropped.Err == nil {
		t.Fatal("expected recovered panic to surface as dispatch error")
	}
}
