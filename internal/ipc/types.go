package ipc

import (
	"time"

	"courier/internal/queue"
)

// QueueItem is the wire form of one pending delivery.
type QueueItem struct {
	ID           string            `json:"id"`
	Method       string            `json:"method"`
	Target       string            `json:"target"`
	Payload      string            `json:"payload,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	EnqueuedAt   time.Time         `json:"enqueued_at"`
	MaxAttempts  int               `json:"max_attempts"`
	AttemptCount int               `json:"attempt_count"`
}

func fromQueueItem(item queue.Item) QueueItem {
	return QueueItem{
		ID:           item.ID,
		Method:       item.Method,
		Target:       item.Target,
		Payload:      item.Payload,
		Headers:      item.Headers,
		EnqueuedAt:   item.EnqueuedAt,
		MaxAttempts:  item.MaxAttempts,
		AttemptCount: item.AttemptCount,
	}
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse reports daemon runtime state.
type StatusResponse struct {
	Running      bool   `json:"running"`
	Online       bool   `json:"online"`
	Pending      int    `json:"pending"`
	Delivered    int64  `json:"delivered"`
	Dropped      int64  `json:"dropped"`
	DatabasePath string `json:"database_path"`
	LockPath     string `json:"lock_path"`
	PID          int    `json:"pid"`
}

// EnqueueRequest admits one operation to the delivery queue. A nil
// MaxAttempts uses the daemon's configured default.
type EnqueueRequest struct {
	Method      string            `json:"method"`
	Target      string            `json:"target"`
	Payload     string            `json:"payload,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	MaxAttempts *int              `json:"max_attempts,omitempty"`
}

// EnqueueResponse returns the stored item.
type EnqueueResponse struct {
	Item QueueItem `json:"item"`
}

// FlushRequest triggers a delivery cycle.
type FlushRequest struct{}

// FlushResponse reports the queue depth after the request was accepted.
type FlushResponse struct {
	Pending int `json:"pending"`
}

// QueueListRequest fetches pending items.
type QueueListRequest struct{}

// QueueListResponse contains pending items in admission order.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueClearRequest removes all pending items.
type QueueClearRequest struct{}

// QueueClearResponse reports the number of removed items.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// QueueRemoveRequest removes a single pending item by ID.
type QueueRemoveRequest struct {
	ID string `json:"id"`
}

// QueueRemoveResponse reports whether the item existed.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// EventsFetchRequest fetches delivery events recorded after SinceSeq.
type EventsFetchRequest struct {
	SinceSeq int64 `json:"since_seq"`
}

// EventRecord is one delivery event on the wire.
type EventRecord struct {
	Seq       int64     `json:"seq"`
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	ItemID    string    `json:"item_id,omitempty"`
	Target    string    `json:"target,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Error     string    `json:"error,omitempty"`
	Pending   int       `json:"pending,omitempty"`
	Succeeded int       `json:"succeeded,omitempty"`
	Dropped   int       `json:"dropped,omitempty"`
}

// EventsFetchResponse returns recorded events oldest first.
type EventsFetchResponse struct {
	Events []EventRecord `json:"events"`
}
