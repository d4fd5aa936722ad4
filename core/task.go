package core

import (
	"context"
)

// Task is the unit of work (Closure). It runs on the dedicated worker thread
// of the Thread it was submitted to; ctx carries that Thread (see
// GetCurrentThread) and is never cancelled while the task runs.
type Task func(ctx context.Context)

// TaskWithResult is a task that produces a value of type T.
type TaskWithResult[T any] func(ctx context.Context) T

// =============================================================================
// Context Helper
// =============================================================================

type threadKeyType struct{}

var threadKey threadKeyType

// GetCurrentThread returns the Thread whose worker is executing the current
// task, or nil when ctx does not come from a task invocation.
func GetCurrentThread(ctx context.Context) *Thread {
	if v := ctx.Value(threadKey); v != nil {
		return v.(*Thread)
	}
	return nil
}
