package core

import (
	"container/heap"
	"sync"
	"time"
)

// delayedTask is a task waiting for its due time before entering the queue.
type delayedTask struct {
	runAt time.Time
	task  Task
	index int // heap bookkeeping
}

type delayedTaskHeap []*delayedTask

func (h delayedTaskHeap) Len() int           { return len(h) }
func (h delayedTaskHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedTaskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedTaskHeap) Push(x any) {
	item := x.(*delayedTask)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *delayedTaskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *delayedTaskHeap) peek() *delayedTask {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// delayManager holds tasks scheduled for the future and posts them to its
// owning executor when due. One timer goroutine serves the whole heap.
//
// stop discards everything still pending, so delayed tasks never fire into a
// drained executor.
type delayManager struct {
	mu      sync.Mutex
	pq      delayedTaskHeap
	stopped bool

	// wakeup forces a timer recalculation after a push that changed the
	// earliest due time. Capacity 1, same contract as the worker signal.
	wakeup chan struct{}
	done   chan struct{}

	post func(Task) error
}

func newDelayManager(post func(Task) error) *delayManager {
	dm := &delayManager{
		pq:     make(delayedTaskHeap, 0),
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
		post:   post,
	}
	heap.Init(&dm.pq)
	go dm.loop()
	return dm
}

// schedule enqueues the task to be posted after delay. It fails once the
// manager has been stopped.
func (dm *delayManager) schedule(task Task, delay time.Duration) error {
	dm.mu.Lock()
	if dm.stopped {
		dm.mu.Unlock()
		return ErrSubmitAfterShutdown
	}

	item := &delayedTask{
		runAt: time.Now().Add(delay),
		task:  task,
	}
	heap.Push(&dm.pq, item)
	becameEarliest := item.index == 0
	dm.mu.Unlock()

	if becameEarliest {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

func (dm *delayManager) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		wait, idle := dm.nextWait()
		if idle {
			// Nothing pending; sleep until a schedule call wakes us.
			wait = 1000 * time.Hour
		}
		timer.Reset(wait)

		select {
		case <-dm.done:
			timer.Stop()
			return
		case <-timer.C:
			dm.postDue()
		case <-dm.wakeup:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// nextWait returns how long to sleep until the earliest task is due. idle is
// true when nothing is pending.
func (dm *delayManager) nextWait() (wait time.Duration, idle bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.peek()
	if item == nil {
		return 0, true
	}
	if d := time.Until(item.runAt); d > 0 {
		return d, false
	}
	return 0, false
}

// postDue pops every expired task and posts it, outside the lock so a slow
// post never blocks schedule callers.
func (dm *delayManager) postDue() {
	dm.mu.Lock()
	now := time.Now()
	var due []*delayedTask
	for dm.pq.Len() > 0 {
		item := dm.pq.peek()
		if item.runAt.After(now) {
			break
		}
		heap.Pop(&dm.pq)
		due = append(due, item)
	}
	dm.mu.Unlock()

	for _, item := range due {
		// A post can fail if shutdown raced the timer; the task is dropped,
		// which is the same outcome as stop discarding it a moment earlier.
		_ = dm.post(item.task)
	}
}

// stop shuts the timer goroutine down and discards all pending tasks.
func (dm *delayManager) stop() {
	dm.mu.Lock()
	if dm.stopped {
		dm.mu.Unlock()
		return
	}
	dm.stopped = true
	dm.pq = make(delayedTaskHeap, 0)
	heap.Init(&dm.pq)
	dm.mu.Unlock()

	close(dm.done)
}

func (dm *delayManager) pendingCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
