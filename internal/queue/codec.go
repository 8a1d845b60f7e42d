package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// persistedItem is the wire form of an Item in the durable backend.
type persistedItem struct {
	ID           string            `json:"id"`
	Method       string            `json:"method"`
	Target       string            `json:"target"`
	Payload      string            `json:"payload"`
	Headers      map[string]string `json:"headers,omitempty"`
	MaxAttempts  int               `json:"max_attempts"`
	AttemptCount int               `json:"attempt_count"`
	EnqueuedAt   string            `json:"enqueued_at"`
}

func encodeItems(items []Item) (string, error) {
	records := make([]persistedItem, 0, len(items))
	for _, item := range items {
		records = append(records, persistedItem{
			ID:           item.ID,
			Method:       item.Method,
			Target:       item.Target,
			Payload:      item.Payload,
			Headers:      item.Headers,
			MaxAttempts:  item.MaxAttempts,
			AttemptCount: item.AttemptCount,
			EnqueuedAt:   item.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode queue: %w", err)
	}
	return string(data), nil
}

func decodeItems(encoded string) ([]Item, error) {
	if encoded == "" {
		return nil, nil
	}
	var records []persistedItem
	if err := json.Unmarshal([]byte(encoded), &records); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	items := make([]Item, 0, len(records))
	for i, record := range records {
		enqueuedAt, err := time.Parse(time.RFC3339Nano, record.EnqueuedAt)
		if err != nil {
			return nil, fmt.Errorf("decode queue item %d: enqueued_at: %w", i, err)
		}
		items = append(items, Item{
			ID:           record.ID,
			Method:       record.Method,
			Target:       record.Target,
			Payload:      record.Payload,
			Headers:      record.Headers,
			EnqueuedAt:   enqueuedAt,
			MaxAttempts:  record.MaxAttempts,
			AttemptCount: record.AttemptCount,
		})
	}
	return items, nil
}
