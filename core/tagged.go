package core

import (
	"sync"
)

// Tag identifies the worker thread a value is bound to. Tags are compared
// against the calling context's thread identity on every sensitive operation.
//
// A Tag is only meaningful while its executor is alive: after Join the OS may
// hand the same thread id to an unrelated thread, so holding Tagged values
// past their executor's shutdown is a contract violation even when the check
// happens to pass.
type Tag uint64

// Live worker threads, keyed by Tag. Maintained by the worker loop so that
// NewTagged can verify it is being called on some executor's dedicated thread.
var workerThreads sync.Map // Tag -> *Thread

func registerWorker(tag Tag, t *Thread) {
	workerThreads.Store(tag, t)
}

func unregisterWorker(tag Tag) {
	workerThreads.Delete(tag)
}

// CurrentWorkerThread returns the executor whose dedicated thread is running
// the calling goroutine, if any. Inside a task this is the same Thread as
// GetCurrentThread(ctx); unlike the context accessor it also works in code
// that has no ctx in reach, such as value constructors.
func CurrentWorkerThread() (*Thread, bool) {
	if v, ok := workerThreads.Load(currentThreadID()); ok {
		return v.(*Thread), true
	}
	return nil, false
}

// =============================================================================
// Tagged: thread-bound value container
// =============================================================================

// Tagged owns a value that may only be touched, and disposed, on the worker
// thread it was created on. The constructor stamps the current thread identity
// as the tag; every access compares the caller's identity against it and fails
// fast on mismatch rather than permitting unsafe access.
//
// Disposal is a message to the owning thread, not a scope-exit side effect:
// off the owning thread use Thread.Drop / Thread.DropAsync, which enqueue the
// dispose function as a normal task. Close called while already on the owning
// thread disposes immediately; deferring it through the queue there would
// deadlock a loop that is draining that very queue.
type Tagged[T any] struct {
	tag     Tag
	value   T
	dispose func(T)

	// Only ever touched on the owning thread after construction.
	disposed bool
}

// NewTagged wraps value with the identity of the current worker thread.
// dispose, which may be nil, runs when the value is dropped; it is guaranteed
// to run on the owning thread.
//
// NewTagged must be called from a task executing on a worker thread, typically
// via Call:
//
//	device, err := core.Call(t, func(ctx context.Context) *core.Tagged[*alsaHandle] {
//		return core.MustTagged(openALSA(), (*alsaHandle).close)
//	})
func NewTagged[T any](value T, dispose func(T)) (*Tagged[T], error) {
	tag := currentThreadID()
	if _, ok := workerThreads.Load(tag); !ok {
		return nil, ErrNotWorkerThread
	}
	return &Tagged[T]{tag: tag, value: value, dispose: dispose}, nil
}

// MustTagged is like NewTagged but panics when called off a worker thread.
// Inside a submitted task the panic surfaces to the submitter as a
// *PanicError.
func MustTagged[T any](value T, dispose func(T)) *Tagged[T] {
	tg, err := NewTagged(value, dispose)
	if err != nil {
		panic(err)
	}
	return tg
}

// Tag returns the identity of the owning thread.
func (tg *Tagged[T]) Tag() Tag {
	return tg.tag
}

// Get returns the wrapped value after verifying the caller is on the owning
// thread. A foreign thread gets ErrWrongThreadAccess.
func (tg *Tagged[T]) Get() (T, error) {
	if currentThreadID() != tg.tag {
		var zero T
		return zero, ErrWrongThreadAccess
	}
	if tg.disposed {
		var zero T
		return zero, ErrDisposed
	}
	return tg.value, nil
}

// MustGet is like Get but panics on contract violation. Inside a submitted
// task the panic surfaces to that task's submitter as a *PanicError.
func (tg *Tagged[T]) MustGet() T {
	v, err := tg.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Close disposes the value immediately when called on the owning thread.
// Called anywhere else it refuses with ErrWrongThreadAccess; use Thread.Drop
// to schedule disposal instead. Close is idempotent on the owning thread.
func (tg *Tagged[T]) Close() error {
	if currentThreadID() != tg.tag {
		return ErrWrongThreadAccess
	}
	tg.disposeLocked()
	return nil
}

// disposeNow implements Disposable. It runs on the owning thread when routed
// through Thread.Drop; a wrong-thread call is a contract violation and fails
// fast by panicking.
func (tg *Tagged[T]) disposeNow() {
	if currentThreadID() != tg.tag {
		panic(ErrWrongThreadAccess)
	}
	tg.disposeLocked()
}

func (tg *Tagged[T]) disposeLocked() {
	if tg.disposed {
		return
	}
	tg.disposed = true
	if tg.dispose != nil {
		tg.dispose(tg.value)
	}
	var zero T
	tg.value = zero
}

// Disposable is the interface Thread.Drop accepts; *Tagged[T] implements it.
type Disposable interface {
	disposeNow()
}
