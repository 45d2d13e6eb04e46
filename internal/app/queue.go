package app

import (
	"sync"

	"github.com/canlabs/canmon/internal/domain"
)

// Item is one queued hand-off from the receiver to the dispatcher: either a
// frame or a fatal connection error, never both. Carrying the error through
// the queue keeps it ordered strictly after every frame received before it,
// so the dispatcher never observes a disconnect ahead of earlier traffic.
type Item struct {
	Frame domain.Frame
	Err   error
}

// FrameQueue is the single synchronization point between the receiver
// goroutine (producer) and the dispatcher goroutine (consumer). Pushes
// never block; pops are non-blocking. Ordering is strict FIFO.
type FrameQueue struct {
	mu    sync.Mutex
	items []Item
}

// NewFrameQueue returns an empty queue.
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{}
}

// PushFrame enqueues a received frame.
func (q *FrameQueue) PushFrame(f domain.Frame) {
	q.mu.Lock()
	q.items = append(q.items, Item{Frame: f})
	q.mu.Unlock()
}

// PushErr enqueues a fatal connection error behind any pending frames.
func (q *FrameQueue) PushErr(err error) {
	q.mu.Lock()
	q.items = append(q.items, Item{Err: err})
	q.mu.Unlock()
}

// TryPop dequeues the oldest item without blocking. The second return is
// false when the queue is empty.
func (q *FrameQueue) TryPop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

// Len returns the number of queued items.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain discards all queued items and returns how many were dropped.
// Used on shutdown; no partial frame is ever exposed to the consumer.
func (q *FrameQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}
