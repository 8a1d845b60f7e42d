package queue

import (
	"errors"
	"strings"
	"time"
)

// Item is one buffered outbound operation. The ID is caller-assigned and
// stays stable across retries; it is the identity used for removal and
// replacement.
type Item struct {
	ID           string
	Method       string
	Target       string
	Payload      string
	Headers      map[string]string
	EnqueuedAt   time.Time
	MaxAttempts  int
	AttemptCount int
}

// ErrInvalidItem indicates an item is missing required fields.
var ErrInvalidItem = errors.New("queue: invalid item")

// Validate checks the fields required before admission.
func (i Item) Validate() error {
	switch {
	case strings.TrimSpace(i.ID) == "":
		return errors.Join(ErrInvalidItem, errors.New("id is required"))
	case strings.TrimSpace(i.Method) == "":
		return errors.Join(ErrInvalidItem, errors.New("method is required"))
	case strings.TrimSpace(i.Target) == "":
		return errors.Join(ErrInvalidItem, errors.New("target is required"))
	case i.MaxAttempts < 0:
		return errors.Join(ErrInvalidItem, errors.New("max attempts must not be negative"))
	case i.AttemptCount < 0:
		return errors.Join(ErrInvalidItem, errors.New("attempt count must not be negative"))
	}
	return nil
}

// NextAttempt returns a copy of the item with the attempt counter bumped.
// Headers are copied so the original record stays immutable.
func (i Item) NextAttempt() Item {
	next := i
	next.AttemptCount = i.AttemptCount + 1
	if i.Headers != nil {
		next.Headers = make(map[string]string, len(i.Headers))
		for k, v := range i.Headers {
			next.Headers[k] = v
		}
	}
	return next
}

// Exhausted reports whether the attempt budget is spent. The budget allows
// MaxAttempts+1 total attempts: the original plus MaxAttempts retries.
func (i Item) Exhausted() bool {
	return i.AttemptCount > i.MaxAttempts
}
