package core

import (
	"context"
	"sync/atomic"
)

// =============================================================================
// atomicWaker: single-slot wake-up register
// =============================================================================

// atomicWaker holds at most one pending waiter channel. Register replaces any
// previously stored waiter (last-registrant-wins; this is not a broadcast
// primitive), and wake atomically takes the stored waiter and notifies it at
// most once per completion.
type atomicWaker struct {
	waiter atomic.Pointer[chan struct{}]
}

// register stores ch as the waiter to notify, replacing any previous one. The
// channel must have capacity 1 so wake never blocks.
func (w *atomicWaker) register(ch chan struct{}) {
	w.waiter.Store(&ch)
}

// wake takes the stored waiter, if any, and notifies it.
func (w *atomicWaker) wake() {
	if p := w.waiter.Swap(nil); p != nil {
		select {
		case *p <- struct{}{}:
		default:
		}
	}
}

// =============================================================================
// Completion: one-shot result handoff
// =============================================================================

const (
	completionPending uint32 = iota
	completionDone
)

// Completion is the one-shot handoff between a submitted task (the producer,
// running on the worker thread) and its submitter (the consumer). It is
// fulfilled exactly once, with either a value or an error, and is intended to
// be observed by its original submitter only.
//
// Ignoring a Completion never cancels the underlying task: work already
// enqueued always runs to completion and the result is simply discarded.
type Completion[R any] struct {
	state atomic.Uint32
	waker atomicWaker
	done  chan struct{}
	value R
	err   error
}

func newCompletion[R any]() *Completion[R] {
	return &Completion[R]{done: make(chan struct{})}
}

// completedCompletion returns an already-fulfilled Completion. Used when the
// requested work could run immediately in place.
func completedCompletion[R any](value R) *Completion[R] {
	c := newCompletion[R]()
	c.fulfill(value)
	return c
}

// fulfill resolves the completion with a value. Subsequent fulfill/fail calls
// are ignored; the slot resolves exactly once.
func (c *Completion[R]) fulfill(value R) {
	c.value = value
	c.finish()
}

// fail resolves the completion with an error.
func (c *Completion[R]) fail(err error) {
	c.err = err
	c.finish()
}

func (c *Completion[R]) finish() {
	if !c.state.CompareAndSwap(completionPending, completionDone) {
		return
	}
	close(c.done)
	c.waker.wake()
}

// Completed reports whether the completion has resolved.
func (c *Completion[R]) Completed() bool {
	return c.state.Load() == completionDone
}

// Done returns a channel closed when the completion resolves. Useful in
// select statements.
func (c *Completion[R]) Done() <-chan struct{} {
	return c.done
}

// Wait blocks the calling goroutine until the completion resolves and returns
// the task's value, or the error if the task panicked.
func (c *Completion[R]) Wait() (R, error) {
	if c.state.Load() == completionDone {
		return c.value, c.err
	}

	ch := make(chan struct{}, 1)
	c.waker.register(ch)

	// Re-check: a wake issued before register landed would otherwise be lost.
	if c.state.Load() == completionDone {
		return c.value, c.err
	}

	// done covers a waiter whose registration was displaced by a later one.
	select {
	case <-ch:
	case <-c.done:
	}
	return c.value, c.err
}

// Await waits for the completion or for ctx to end, whichever comes first.
// On ctx expiry it returns ctx's error; the task itself is unaffected and
// still runs to completion (no built-in cancellation or timeouts; a caller
// that needs a timeout races the wait externally, exactly like this).
func (c *Completion[R]) Await(ctx context.Context) (R, error) {
	if c.state.Load() == completionDone {
		return c.value, c.err
	}

	ch := make(chan struct{}, 1)
	c.waker.register(ch)

	if c.state.Load() == completionDone {
		return c.value, c.err
	}

	select {
	case <-ch:
		return c.value, c.err
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}
