// Package loop provides a serial executor backed by an unbounded FIFO queue.
//
// Posting never blocks the caller, and posted functions run one at a time on
// the loop's own goroutine in the order they were posted. Both the event
// emitter and the in-memory map engine deliver their callbacks through a Loop.
package loop

import "sync"

// Loop runs posted functions sequentially on a dedicated goroutine.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// New starts a loop.
func New() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post enqueues fn. It returns false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Sync blocks until every function posted before the call has run.
// It must not be called from the loop goroutine.
func (l *Loop) Sync() {
	ch := make(chan struct{})
	if !l.Post(func() { close(ch) }) {
		<-l.done
		return
	}
	<-ch
}

// Close stops accepting work, drains what is queued and waits for the
// loop goroutine to exit. It must not be called from the loop goroutine.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}
