package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"courier/internal/config"
	"courier/internal/connectivity"
	"courier/internal/delivery"
	"courier/internal/dispatch"
	"courier/internal/kv"
	"courier/internal/logging"
	"courier/internal/queue"
)

// Daemon wires the durable store, connectivity signal, and delivery
// coordinator together and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	kvStore *kv.Store
	coord   *delivery.Coordinator
	signal  connectivity.Signal
	probe   *connectivity.Probe

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc

	events    *eventLog
	eventsSub <-chan delivery.Event
	delivered atomic.Int64
	dropped   atomic.Int64
}

// Status reports daemon runtime information for the control surface.
type Status struct {
	Running      bool
	Online       bool
	Pending      int
	Delivered    int64
	Dropped      int64
	DatabasePath string
	LockFilePath string
}

// EnqueueRequest describes one operation to admit to the queue. A nil
// MaxAttempts falls back to the configured default.
type EnqueueRequest struct {
	Method      string
	Target      string
	Payload     string
	Headers     map[string]string
	MaxAttempts *int
}

// New constructs a daemon with its full dependency graph. The durable store
// is opened immediately; background work starts with Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	kvStore, err := kv.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open durable store: %w", err)
	}

	var signal connectivity.Signal
	var probe *connectivity.Probe
	if cfg.Connectivity.AssumeOnline {
		signal = connectivity.NewManual(true)
	} else {
		probe = connectivity.NewProbe(cfg, logger)
		signal = probe
	}

	store := queue.NewStore(kvStore, logger)
	lockPath := cfg.LockFilePath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		kvStore:  kvStore,
		coord:    delivery.NewCoordinator(store, signal, logger),
		signal:   signal,
		probe:    probe,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		events:   newEventLog(eventLogCapacity),
	}, nil
}

// Start acquires the daemon lock, starts connectivity probing, and brings
// the coordinator online.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another courier daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.probe != nil {
		if err := d.probe.Start(runCtx); err != nil {
			d.releaseLock()
			cancel()
			d.cancel = nil
			return fmt.Errorf("start connectivity probe: %w", err)
		}
	}

	forwarder := dispatch.NewForwarder(d.cfg)
	if err := d.coord.Initialize(runCtx, forwarder.Dispatch); err != nil {
		if d.probe != nil {
			d.probe.Stop()
		}
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("initialize coordinator: %w", err)
	}

	d.eventsSub = d.coord.Subscribe()
	go d.consumeEvents()

	d.running.Store(true)
	d.logger.Info("courier daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("online", d.signal.Online()),
		logging.Int(logging.FieldPending, d.coord.PendingCount()))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.probe != nil {
		d.probe.Stop()
	}
	d.coord.Close()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("courier daemon stopped")
}

// Close stops the daemon and closes the durable store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.kvStore != nil {
		return d.kvStore.Close()
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// consumeEvents mirrors coordinator events into the bounded event log and
// keeps the delivery counters. It exits when the coordinator closes its
// event stream.
func (d *Daemon) consumeEvents() {
	for evt := range d.eventsSub {
		switch evt.Kind {
		case delivery.EventItemDispatched:
			d.delivered.Add(1)
		case delivery.EventItemDropped:
			d.dropped.Add(1)
		}
		d.events.Append(evt)
	}
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Online:       d.signal.Online(),
		Pending:      d.coord.PendingCount(),
		Delivered:    d.delivered.Load(),
		Dropped:      d.dropped.Load(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}

// Enqueue admits one operation to the delivery queue and returns the stored
// item.
func (d *Daemon) Enqueue(ctx context.Context, req EnqueueRequest) (queue.Item, error) {
	maxAttempts := d.cfg.Delivery.DefaultMaxAttempts
	if req.MaxAttempts != nil {
		maxAttempts = *req.MaxAttempts
	}
	if maxAttempts < 0 {
		return queue.Item{}, fmt.Errorf("max attempts must not be negative, got %d", maxAttempts)
	}

	item := queue.Item{
		ID:          uuid.NewString(),
		Method:      strings.ToUpper(strings.TrimSpace(req.Method)),
		Target:      strings.TrimSpace(req.Target),
		Payload:     req.Payload,
		Headers:     req.Headers,
		EnqueuedAt:  time.Now().UTC(),
		MaxAttempts: maxAttempts,
	}
	if err := d.coord.Enqueue(ctx, item); err != nil {
		return queue.Item{}, err
	}
	return item, nil
}

// Flush triggers a delivery cycle for the pending queue.
func (d *Daemon) Flush(ctx context.Context) {
	d.coord.Flush(ctx)
}

// ListQueue returns the pending items in admission order.
func (d *Daemon) ListQueue() []queue.Item {
	return d.coord.Pending()
}

// ClearQueue drops every pending item and reports how many were removed.
func (d *Daemon) ClearQueue(ctx context.Context) int {
	return d.coord.Clear(ctx)
}

// RemoveItem drops a single pending item by ID.
func (d *Daemon) RemoveItem(ctx context.Context, id string) bool {
	return d.coord.Remove(ctx, strings.TrimSpace(id))
}

// Online reports the current connectivity verdict.
func (d *Daemon) Online() bool {
	return d.signal.Online()
}

// Events returns recorded delivery events with sequence numbers above
// sinceSeq, oldest first.
func (d *Daemon) Events(sinceSeq int64) []EventRecord {
	return d.events.Since(sinceSeq)
}
