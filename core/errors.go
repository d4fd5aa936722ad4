package core

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrSubmitAfterShutdown is returned when work is submitted to a thread
	// whose Join has already started. Submission after shutdown always fails
	// deterministically; it never blocks.
	ErrSubmitAfterShutdown = errors.New("audiothread: submit after shutdown")

	// ErrWrongThreadAccess is returned (or carried by a panic on the fail-fast
	// paths) when a Tagged value is accessed or closed from a thread other
	// than the one that created it.
	ErrWrongThreadAccess = errors.New("audiothread: tagged value accessed outside its owning thread")

	// ErrNotWorkerThread is returned when NewTagged is called from a thread
	// that is not the dedicated thread of any live executor.
	ErrNotWorkerThread = errors.New("audiothread: not running on a worker thread")

	// ErrDisposed is returned when a Tagged value is used after it has been
	// disposed.
	ErrDisposed = errors.New("audiothread: tagged value already disposed")
)

// PanicError carries a panic recovered from a submitted task. It is delivered
// only to the submitter of the panicking task; the worker thread itself keeps
// running and continues to serve other tasks.
type PanicError struct {
	// Value is the value the task panicked with.
	Value any

	// Stack is the stack trace captured at recovery time.
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("audiothread: task panicked: %v", e.Value)
}

// SpawnError reports that the worker thread could not be brought up, for
// example because the configured prelude failed. It is fatal and surfaced
// from NewThread/NewThreadWithConfig.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("audiothread: spawn worker thread: %v", e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
