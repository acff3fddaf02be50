package event

import (
	"log/slog"
	"sync"

	"github.com/joeblew999/plat-mapbridge/internal/loop"
	"github.com/joeblew999/plat-mapbridge/internal/metrics"
)

// Emitter delivers events to a sink in the order they were emitted. Emit
// never blocks on the sink; events queue until the delivery goroutine gets
// to them.
type Emitter struct {
	sink Sink
	log  *slog.Logger
	loop *loop.Loop

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// NewEmitter starts an emitter. A nil sink discards events.
func NewEmitter(sink Sink, log *slog.Logger) *Emitter {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{sink: sink, log: log, loop: loop.New()}
}

// Emit queues e for delivery. Events outside the vocabulary and events
// emitted after Close are dropped.
func (em *Emitter) Emit(e Event) {
	if !e.Method.Known() {
		em.log.Warn("event_unknown_method", "method", e.Method)
		return
	}

	em.mu.Lock()
	defer em.mu.Unlock()
	if em.closed {
		return
	}
	em.seq++
	e.Seq = em.seq
	em.loop.Post(func() {
		metrics.EventsTotal.WithLabelValues(string(e.Method)).Inc()
		em.sink.Deliver(e)
	})
}

// Flush waits until every event emitted so far has been delivered.
func (em *Emitter) Flush() {
	em.loop.Sync()
}

// Close delivers what is queued and stops the emitter.
func (em *Emitter) Close() {
	em.mu.Lock()
	em.closed = true
	em.mu.Unlock()
	em.loop.Close()
}
