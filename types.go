package audiothread

import "github.com/soniclabs/audiothread/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the audiothread package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskWithResult is a unit of work producing a value
type TaskWithResult[R any] = core.TaskWithResult[R]

// Thread is the handle for a dedicated worker thread
type Thread = core.Thread

// Config holds construction options for a Thread
type Config = core.Config

// Completion is the one-shot result handoff for asynchronous submissions
type Completion[R any] = core.Completion[R]

// Tagged restricts a value to the worker thread that created it
type Tagged[T any] = core.Tagged[T]

// Tag identifies a worker thread
type Tag = core.Tag

// RepeatingHandle controls the lifecycle of a repeating task
type RepeatingHandle = core.RepeatingHandle

// PanicError carries a panic recovered from a submitted task
type PanicError = core.PanicError

// SpawnError reports that the worker thread could not be brought up
type SpawnError = core.SpawnError

// ThreadStats is a point-in-time snapshot of an executor's runtime state
type ThreadStats = core.ThreadStats

// TaskExecutionRecord captures one completed task execution
type TaskExecutionRecord = core.TaskExecutionRecord

// Metrics receives executor metrics; see observability/prometheus
type Metrics = core.Metrics

// PanicHandler is notified of task panics in addition to the submitter
type PanicHandler = core.PanicHandler

// Error values
var (
	ErrSubmitAfterShutdown = core.ErrSubmitAfterShutdown
	ErrWrongThreadAccess   = core.ErrWrongThreadAccess
	ErrNotWorkerThread     = core.ErrNotWorkerThread
	ErrDisposed            = core.ErrDisposed
)

// New spawns a dedicated worker thread with default configuration.
func New() (*Thread, error) {
	return core.NewThread()
}

// NewWithConfig spawns a dedicated worker thread with the given configuration.
func NewWithConfig(cfg *Config) (*Thread, error) {
	return core.NewThreadWithConfig(cfg)
}

// DefaultConfig returns a config with default handlers.
var DefaultConfig = core.DefaultConfig

// Call executes a result-producing task on t's worker thread and blocks until
// its value is available.
func Call[R any](t *Thread, task core.TaskWithResult[R]) (R, error) {
	return core.Call(t, task)
}

// CallAsync enqueues a result-producing task and returns a typed Completion.
func CallAsync[R any](t *Thread, task core.TaskWithResult[R]) (*Completion[R], error) {
	return core.CallAsync(t, task)
}

// NewTagged wraps a value with the identity of the current worker thread.
func NewTagged[T any](value T, dispose func(T)) (*Tagged[T], error) {
	return core.NewTagged(value, dispose)
}

// MustTagged is like NewTagged but panics when called off a worker thread.
func MustTagged[T any](value T, dispose func(T)) *Tagged[T] {
	return core.MustTagged(value, dispose)
}

// GetCurrentThread retrieves the executing Thread from a task context
var GetCurrentThread = core.GetCurrentThread

// CurrentWorkerThread returns the executor owning the calling thread, if any
var CurrentWorkerThread = core.CurrentWorkerThread
