package connectivity

import "sync"

// Signal exposes the current connectivity status and a broadcast stream of
// transitions. Subscribers receive the new status on each offline<->online
// edge; delivery is fire-and-forget and a slow subscriber misses edges
// rather than blocking the signal source.
type Signal interface {
	Online() bool
	Subscribe() <-chan bool
	Unsubscribe(<-chan bool)
}

// subscriberChannelDepth buffers transition edges per subscriber.
// Transitions are rare; the buffer absorbs bursts while a subscriber is
// between reads.
const subscriberChannelDepth = 4

type broadcaster struct {
	mu   sync.Mutex
	subs map[<-chan bool]chan bool
}

func (b *broadcaster) Subscribe() <-chan bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[<-chan bool]chan bool)
	}
	ch := make(chan bool, subscriberChannelDepth)
	b.subs[ch] = ch
	return ch
}

func (b *broadcaster) Unsubscribe(ch <-chan bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(sub)
	}
}

func (b *broadcaster) publish(online bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- online:
		default:
		}
	}
}
