package feed

import (
	"sync"
)

// refreshQueue is a thread-safe FIFO queue of pending refresh notices.
//
// Notices for the same table and kind coalesce: a burst of cell edits
// produces one snapshot pull, not one per edit. The queue is unbounded
// so publishers never block on a slow consumer.
//
// A buffered signal channel enables context-aware waiting in the feed's
// Run loop.
type refreshQueue struct {
	mu      sync.Mutex
	pending []Refresh
	queued  map[Refresh]struct{}
	closed  bool
	signal  chan struct{} // buffered, size 1; coalesces wakeups
}

func newRefreshQueue() *refreshQueue {
	return &refreshQueue{
		queued: make(map[Refresh]struct{}),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a notice to the back of the queue. A notice equal to one
// already pending is dropped. Returns false if the queue is closed.
func (q *refreshQueue) Enqueue(r Refresh) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if _, dup := q.queued[r]; dup {
		return true
	}

	q.pending = append(q.pending, r)
	q.queued[r] = struct{}{}

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Refresh{}, false) if the queue is empty.
func (q *refreshQueue) TryDequeue() (Refresh, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Refresh{}, false
	}

	r := q.pending[0]
	delete(q.queued, r)
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}
	return r, true
}

// Wait returns a channel that signals when notices may be available.
// Use with select alongside ctx.Done().
func (q *refreshQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *refreshQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close signals that no more notices will be enqueued and wakes any
// blocked waiters.
func (q *refreshQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
