package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"courier/internal/kv"
	"courier/internal/logging"
)

// StateKey is the well-known durable key holding the serialized queue.
const StateKey = "delivery_queue"

// Backend is the durable key-value surface the store persists through.
// *kv.Store satisfies it.
type Backend interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string) error
}

// Store holds the authoritative ordered set of pending items in memory and
// mirrors it to the durable backend. All mutations go through the
// coordinator; external code never touches the list directly.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex
	items []Item
}

// NewStore builds a queue store over the given durable backend.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logging.NewComponentLogger(logger, "queue"),
	}
}

// Append adds an item at the tail.
func (s *Store) Append(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
}

// RemoveByID removes the first item with the given ID. Removing an absent
// ID is a no-op.
func (s *Store) RemoveByID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the first item sharing updated's ID for the updated value,
// preserving its position. Replacing an absent ID is a no-op.
func (s *Store) Replace(updated Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == updated.ID {
			s.items[i] = updated
			return true
		}
	}
	return false
}

// Clear drops every pending item and reports how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := len(s.items)
	s.items = nil
	return removed
}

// Snapshot returns an ordered copy safe to iterate while the live queue is
// concurrently appended to.
func (s *Store) Snapshot() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len reports the number of pending items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Persist serializes the full ordered list to the durable backend. Failures
// are logged and swallowed; the in-memory state remains authoritative until
// the next successful persist.
func (s *Store) Persist(ctx context.Context) {
	encoded, err := encodeItems(s.Snapshot())
	if err != nil {
		s.logger.Error("failed to encode queue for persistence",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_encode_failed"))
		return
	}
	if err := s.backend.SetString(ctx, StateKey, encoded); err != nil {
		s.logger.Warn("failed to persist queue; in-memory state remains authoritative",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_persist_failed"),
			logging.String(logging.FieldErrorHint, "check database access"))
	}
}

// Load repopulates the in-memory queue from the durable backend. A missing,
// empty, or malformed record yields an empty queue; malformed input is
// logged and treated as empty, never surfaced to the caller.
func (s *Store) Load(ctx context.Context) {
	encoded, err := s.backend.GetString(ctx, StateKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			s.logger.Debug("no persisted queue found, starting empty")
		} else {
			s.logger.Warn("failed to read persisted queue, starting empty",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_load_failed"),
				logging.String(logging.FieldErrorHint, "check database access"))
		}
		return
	}

	items, err := decodeItems(encoded)
	if err != nil {
		s.logger.Warn("persisted queue is malformed, starting empty",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_decode_failed"),
			logging.String(logging.FieldErrorHint, "the stored record will be overwritten on the next persist"))
		return
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	if len(items) > 0 {
		s.logger.Info("restored persisted queue", logging.Int(logging.FieldPending, len(items)))
	}
}
