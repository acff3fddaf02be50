package event

import (
	"sync"

	"github.com/joeblew999/plat-mapbridge/internal/metrics"
)

// Bus is a fan-out pub/sub for delivered events. A Bus is itself a Sink, so
// it can sit behind an Emitter next to other sinks.
type Bus struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	closed bool
}

// NewBus creates a bus whose subscriber channels hold buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Deliver publishes e to all subscribers without blocking.
func (b *Bus) Deliver(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
			metrics.BusDroppedTotal.Inc()
		}
	}
}

// Subscribe returns a buffered channel that receives events. On a closed
// bus the channel is already closed.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. It is safe to
// call more than once and after Close.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
