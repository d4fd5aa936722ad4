package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// workItem pairs a task with the hook that fails its completion if the task
// panics before fulfilling it. The item is owned by the queue until popped;
// ownership transfers to the worker loop for execution.
type workItem struct {
	run Task

	// fail delivers a worker-side panic to the item's completion. May be nil
	// for fire-and-forget items.
	fail func(err error)

	// name labels the execution in history records. Empty when execution
	// history is disabled.
	name string
}

// =============================================================================
// workQueue: Unbounded MPSC FIFO queue
// =============================================================================

// workQueue is the multi-producer single-consumer queue between caller threads
// and the worker loop. Producers push concurrently under the mutex; the worker
// thread is the only consumer. The queue is unbounded so that a push never
// blocks a producer against a stalled consumer.
//
// Ordering: strict arrival order under the mutex, which gives per-producer
// FIFO and cross-producer first-enqueued first-executed.
type workQueue struct {
	mu     sync.Mutex
	items  []workItem
	closed bool
}

func newWorkQueue(capacity int) *workQueue {
	if capacity <= 0 {
		capacity = defaultQueueCap
	}
	return &workQueue{
		items: make([]workItem, 0, capacity),
	}
}

// push appends an item. It reports false once the queue has been closed, which
// is how submission after shutdown fails deterministically instead of racing
// the drain.
func (q *workQueue) push(item workItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	return true
}

// drain steals the whole pending batch, leaving the queue empty, and reports
// the closed flag as observed under the same lock. The two must be read
// atomically: checking closed in a separate critical section would let a push
// slip in between an empty drain and the check, and the worker would exit
// with an accepted item still queued. Only the worker thread calls this.
func (q *workQueue) drain() ([]workItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return nil, q.closed
	}

	batch := q.items

	// The batch takes the backing array with it; the replacement keeps the
	// grown capacity for the next burst unless it is disproportionately
	// large, in which case it shrinks back to the default.
	c := cap(q.items)
	if c >= compactMinCap && n*compactShrinkFactor < c {
		q.items = make([]workItem, 0, defaultQueueCap)
	} else {
		q.items = make([]workItem, 0, c)
	}

	return batch, q.closed
}

// close marks the queue as no longer accepting items. Items already queued
// remain and will still be drained.
func (q *workQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *workQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *workQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
