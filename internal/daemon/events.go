package daemon

import (
	"sync"
	"time"

	"courier/internal/delivery"
)

// eventLogCapacity bounds the retained event history. Observers further
// behind than this miss the overwritten entries.
const eventLogCapacity = 512

// EventRecord is one delivery event flattened for the control surface.
type EventRecord struct {
	Seq       int64
	Time      time.Time
	Kind      string
	ItemID    string
	Target    string
	Attempts  int
	Error     string
	Pending   int
	Succeeded int
	Dropped   int
}

// eventLog is a bounded, sequence-numbered history of delivery events.
type eventLog struct {
	mu      sync.Mutex
	entries []EventRecord
	nextSeq int64
	cap     int
}

func newEventLog(capacity int) *eventLog {
	return &eventLog{cap: capacity, nextSeq: 1}
}

// Append records an event, evicting the oldest entry once full.
func (l *eventLog) Append(evt delivery.Event) {
	record := EventRecord{
		Time:      time.Now().UTC(),
		Kind:      string(evt.Kind),
		Pending:   evt.Pending,
		Succeeded: evt.Succeeded,
		Dropped:   evt.Dropped,
	}
	if evt.Item != nil {
		record.ItemID = evt.Item.ID
		record.Target = evt.Item.Target
		record.Attempts = evt.Item.AttemptCount
	}
	if evt.Err != nil {
		record.Error = evt.Err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	record.Seq = l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, record)
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

// Since returns the retained records with sequence numbers above sinceSeq.
func (l *eventLog) Since(sinceSeq int64) []EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := len(l.entries)
	for i, record := range l.entries {
		if record.Seq > sinceSeq {
			start = i
			break
		}
	}
	out := make([]EventRecord, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}
