package core

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Worker lifecycle states.
const (
	// stateRunning: accepting and executing tasks, parking when idle.
	stateRunning int32 = iota

	// stateDraining: Join has started; no new submissions, tasks already
	// queued still execute.
	stateDraining

	// stateStopped: the worker thread has exited.
	stateStopped
)

// Thread owns a single dedicated OS thread and executes all submitted work on
// it, in submission order. It exists for thread-affine native APIs (WASAPI,
// ALSA/PulseAudio contexts, ...) that require every call, including resource
// destruction, to originate from one fixed OS thread.
//
// Any number of caller goroutines may submit concurrently. Exactly one OS
// thread executes the work: the worker goroutine is pinned with
// runtime.LockOSThread for its entire life.
//
// Key properties:
// - Submit blocks the caller until its task ran (or panicked) on the worker.
// - SubmitAsync/CallAsync return a Completion and never block the caller.
// - A task panic is delivered only to that task's submitter; the worker
//   continues serving other tasks.
// - Tasks from one caller execute in that caller's submission order; across
//   callers, in arrival order at the queue. No priorities, no reordering.
// - Join drains tasks already queued, then stops the worker. Submissions
//   after Join fail with ErrSubmitAfterShutdown, they never hang.
//
// Calling Submit (or Call, Drop, Join, WaitIdle) from within a task executing
// on this same thread would self-deadlock; those entry points detect the
// misuse and panic with a descriptive message instead. Use Post or SubmitAsync
// from inside tasks.
type Thread struct {
	name  string
	queue *workQueue

	// signal wakes the parked worker after a push. Capacity 1: a pending
	// token already guarantees a wake-up.
	signal chan struct{}

	// stopped is closed when the worker loop returns.
	stopped chan struct{}

	state atomic.Int32

	// tag is the worker's OS thread identity. Written once during startup,
	// before the constructor returns.
	tag Tag

	logger       *logrus.Logger
	panicHandler PanicHandler
	metrics      Metrics
	prelude      func()

	// timers holds SubmitAfter and SubmitRepeating tasks until they are due.
	// Stopped on Join so delayed tasks never fire into a drained executor.
	timers *delayManager

	// history retains recent execution records for Stats and
	// RecentExecutions. Nil when disabled through Config.HistoryCapacity.
	history  *executionHistory
	executed atomic.Int64
	panicked atomic.Int64
	rejected atomic.Int64

	// hooks provides injection points for deterministic interleaving tests.
	// Nil in production.
	hooks *testHooks
}

// testHooks isolates the worker's synchronization points so tests can force
// specific interleavings without touching executor logic.
type testHooks struct {
	PostPush  func() // After a push, before the wake-up signal
	PrePark   func() // Before the worker parks on an empty queue
	PreDrain  func() // Before the worker steals the pending batch
	PostDrain func(batchLen int, closed bool) // After a drain, before the worker acts on it
}

// NewThread spawns a dedicated worker thread with default configuration and
// returns its handle.
func NewThread() (*Thread, error) {
	return NewThreadWithConfig(nil)
}

// NewThreadWithConfig spawns a dedicated worker thread. It returns once the
// worker has locked its OS thread, captured its identity and run the prelude;
// a prelude failure is surfaced as a *SpawnError and no thread is leaked.
func NewThreadWithConfig(cfg *Config) (*Thread, error) {
	return newThread(cfg, nil)
}

func newThread(cfg *Config, hooks *testHooks) (*Thread, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	name := cfg.Name
	if name == "" {
		name = "audio-thread-" + uuid.NewString()[:8]
	}
	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger()
	}
	panicHandler := cfg.PanicHandler
	if panicHandler == nil {
		panicHandler = &LogPanicHandler{Logger: logger}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &NilMetrics{}
	}

	t := &Thread{
		name:         name,
		queue:        newWorkQueue(cfg.QueueCapacity),
		signal:       make(chan struct{}, 1),
		stopped:      make(chan struct{}),
		logger:       logger,
		panicHandler: panicHandler,
		metrics:      metrics,
		prelude:      cfg.Prelude,
		history:      newExecutionHistory(cfg.HistoryCapacity),
		hooks:        hooks,
	}
	t.timers = newDelayManager(t.Post)

	ready := make(chan error, 1)
	go t.runLoop(ready)

	if err := <-ready; err != nil {
		<-t.stopped
		t.timers.stop()
		t.state.Store(stateStopped)
		return nil, &SpawnError{Err: err}
	}

	return t, nil
}

// Name returns the executor's name as used in logs and metrics labels.
func (t *Thread) Name() string {
	return t.name
}

// Tag returns the identity of the dedicated worker thread.
func (t *Thread) Tag() Tag {
	return t.tag
}

// QueueLen returns the number of tasks currently waiting in the queue.
func (t *Thread) QueueLen() int {
	return t.queue.len()
}

// IsClosed reports whether Join has started.
func (t *Thread) IsClosed() bool {
	return t.state.Load() != stateRunning
}

// Stats returns a snapshot of the executor's runtime state. Counters are
// cumulative over the executor's lifetime.
func (t *Thread) Stats() ThreadStats {
	stats := ThreadStats{
		Name:     t.name,
		Tag:      t.tag,
		QueueLen: t.queue.len(),
		Executed: t.executed.Load(),
		Panicked: t.panicked.Load(),
		Rejected: t.rejected.Load(),
		Delayed:  t.timers.pendingCount(),
		Closed:   t.IsClosed(),
	}
	if t.history != nil {
		if last, ok := t.history.last(); ok {
			stats.LastTaskName = last.Name
			stats.LastTaskAt = last.FinishedAt
		}
	}
	return stats
}

// RecentExecutions returns up to limit execution records, newest first, or nil
// when history is disabled. limit <= 0 returns all retained records.
func (t *Thread) RecentExecutions(limit int) []TaskExecutionRecord {
	if t.history == nil {
		return nil
	}
	return t.history.recent(limit)
}

// onWorkerThread reports whether the calling goroutine is running on this
// executor's dedicated thread.
func (t *Thread) onWorkerThread() bool {
	return currentThreadID() == t.tag
}

// =============================================================================
// Submission
// =============================================================================

// Post enqueues a task without waiting for it. It is the only submission
// method safe to call from within a task running on this same thread.
func (t *Thread) Post(task Task) error {
	return t.post(workItem{run: task, name: t.taskName(task)})
}

// taskName resolves a history label for the task. Resolution costs a symbol
// lookup, so it is skipped entirely when history is disabled.
func (t *Thread) taskName(task any) string {
	if t.history == nil {
		return ""
	}
	return resolveTaskName(task)
}

// Submit enqueues a task and blocks the calling goroutine until the task has
// executed on the worker thread. It returns a *PanicError if the task
// panicked, or ErrSubmitAfterShutdown if Join has already started.
//
// Because Submit blocks until completion, the task can safely use values from
// the caller's scope:
//
//	n := 10
//	err := t.Submit(func(ctx context.Context) { n += 10 })
func (t *Thread) Submit(task Task) error {
	t.checkNotWorker("Submit")
	c, err := t.SubmitAsync(task)
	if err != nil {
		return err
	}
	_, err = c.Wait()
	return err
}

// SubmitAsync enqueues a task and returns an awaitable Completion without
// blocking. The returned Completion resolves strictly after the task finished
// on the worker thread. Discarding the Completion does not interrupt the
// task; it always runs to completion and the result is dropped.
func (t *Thread) SubmitAsync(task Task) (*Completion[struct{}], error) {
	c := newCompletion[struct{}]()
	err := t.post(workItem{
		run: func(ctx context.Context) {
			task(ctx)
			c.fulfill(struct{}{})
		},
		fail: c.fail,
		name: t.taskName(task),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Call executes a result-producing task on t's worker thread and blocks until
// its value is available. It is a package function because Go methods cannot
// introduce type parameters.
//
//	sum, err := core.Call(t, func(ctx context.Context) int { return 40 + 2 })
func Call[R any](t *Thread, task TaskWithResult[R]) (R, error) {
	t.checkNotWorker("Call")
	c, err := CallAsync(t, task)
	if err != nil {
		var zero R
		return zero, err
	}
	return c.Wait()
}

// CallAsync is the non-blocking variant of Call: it enqueues the task and
// returns a typed Completion that resolves with the task's value.
func CallAsync[R any](t *Thread, task TaskWithResult[R]) (*Completion[R], error) {
	c := newCompletion[R]()
	err := t.post(workItem{
		run: func(ctx context.Context) {
			c.fulfill(task(ctx))
		},
		fail: c.fail,
		name: t.taskName(task),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SubmitAfter enqueues the task once the given delay has elapsed. Delays are
// tracked off the worker loop, so a long-running task does not postpone timer
// expiry. Delayed tasks still pending when Join starts are discarded.
func (t *Thread) SubmitAfter(task Task, delay time.Duration) error {
	if t.state.Load() != stateRunning {
		t.reject("shutdown")
		return ErrSubmitAfterShutdown
	}
	return t.timers.schedule(task, delay)
}

// post is the single enqueue path.
func (t *Thread) post(item workItem) error {
	if t.state.Load() != stateRunning {
		t.reject("shutdown")
		return ErrSubmitAfterShutdown
	}

	// push checks the closed flag under the queue mutex, and the worker
	// only exits after a drain that observed closed in that same critical
	// section. An accepted item therefore always precedes such a drain in
	// the lock order and is executed; a rejected one fails here.
	if !t.queue.push(item) {
		t.reject("shutdown")
		return ErrSubmitAfterShutdown
	}
	t.metrics.RecordQueueDepth(t.name, t.queue.len())

	if t.hooks != nil && t.hooks.PostPush != nil {
		t.hooks.PostPush()
	}

	select {
	case t.signal <- struct{}{}:
	default:
	}
	return nil
}

func (t *Thread) reject(reason string) {
	t.rejected.Add(1)
	t.metrics.RecordTaskRejected(t.name, reason)
	t.logger.WithFields(logrus.Fields{
		"thread": t.name,
		"reason": reason,
	}).Warn("task rejected")
}

func (t *Thread) checkNotWorker(op string) {
	if t.onWorkerThread() {
		panic(fmt.Sprintf(
			"audiothread: %s called from the worker thread of %q; this would deadlock, use Post or SubmitAsync",
			op, t.name))
	}
}

// =============================================================================
// Repeating tasks
// =============================================================================

// RepeatingHandle controls the lifecycle of a repeating task.
type RepeatingHandle struct {
	stopped atomic.Bool
}

// Stop prevents further repetitions. An execution already queued may still
// run once more.
func (h *RepeatingHandle) Stop() {
	h.stopped.Store(true)
}

// IsStopped reports whether Stop has been called.
func (h *RepeatingHandle) IsStopped() bool {
	return h.stopped.Load()
}

// SubmitRepeating enqueues a task that re-posts itself at the given interval
// until the handle is stopped or the executor shuts down. Typical use is
// periodic device polling on the audio thread.
func (t *Thread) SubmitRepeating(task Task, interval time.Duration) (*RepeatingHandle, error) {
	handle := &RepeatingHandle{}

	var repeat Task
	repeat = func(ctx context.Context) {
		if handle.IsStopped() {
			return
		}

		task(ctx)

		if !handle.IsStopped() {
			if err := t.SubmitAfter(repeat, interval); err != nil {
				handle.Stop()
			}
		}
	}

	if err := t.Post(repeat); err != nil {
		return nil, err
	}
	return handle, nil
}

// =============================================================================
// Tagged value disposal
// =============================================================================

// Drop destroys a Tagged value on its owning thread and blocks until the
// dispose function has run, so callers can observe externally visible
// destruction side effects (such as a released native handle). When Drop is
// called from the owning thread itself the value is destroyed immediately,
// in place; deferring through the queue there would deadlock the loop
// draining it.
func (t *Thread) Drop(value Disposable) error {
	if t.onWorkerThread() {
		value.disposeNow()
		return nil
	}
	return t.Submit(func(ctx context.Context) {
		value.disposeNow()
	})
}

// DropAsync schedules destruction of a Tagged value on its owning thread and
// returns a Completion that resolves once the dispose function has run.
func (t *Thread) DropAsync(value Disposable) (*Completion[struct{}], error) {
	if t.onWorkerThread() {
		value.disposeNow()
		return completedCompletion(struct{}{}), nil
	}
	return t.SubmitAsync(func(ctx context.Context) {
		value.disposeNow()
	})
}

// =============================================================================
// Synchronization
// =============================================================================

// WaitIdle blocks until all tasks queued before the call have completed. It
// is implemented by posting a barrier task: sequential execution guarantees
// everything ahead of the barrier has run when the barrier runs.
//
// Tasks posted after WaitIdle, and future repetitions of repeating tasks, are
// not waited for.
func (t *Thread) WaitIdle(ctx context.Context) error {
	t.checkNotWorker("WaitIdle")

	done := make(chan struct{})
	if err := t.Post(func(taskCtx context.Context) {
		close(done)
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// Shutdown
// =============================================================================

// Join stops the executor: it closes the queue to new submissions, lets the
// worker finish every task already queued, and blocks until the OS thread's
// goroutine has exited. Join is idempotent; concurrent and repeated calls all
// return nil once the worker is down.
func (t *Thread) Join() error {
	return t.JoinContext(context.Background())
}

// JoinContext is Join bounded by a context. If ctx ends before the worker has
// drained and exited, JoinContext returns the wrapped context error; the
// shutdown itself keeps making progress and a later Join call can still
// observe its completion.
func (t *Thread) JoinContext(ctx context.Context) error {
	t.checkNotWorker("Join")

	if t.state.CompareAndSwap(stateRunning, stateDraining) {
		t.timers.stop()
		t.queue.close()
		select {
		case t.signal <- struct{}{}:
		default:
		}
		t.logger.WithFields(logrus.Fields{"thread": t.name}).Debug("draining")
	}

	select {
	case <-t.stopped:
		t.state.Store(stateStopped)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audiothread: join %q: %w", t.name, ctx.Err())
	}
}

// =============================================================================
// Worker loop
// =============================================================================

// runLoop is the body of the dedicated thread. It locks the goroutine to its
// OS thread for life, publishes the thread identity, runs the prelude, then
// drains the queue until Join closes it.
func (t *Thread) runLoop(ready chan<- error) {
	defer close(t.stopped)

	runtime.LockOSThread()
	t.tag = currentThreadID()

	registerWorker(t.tag, t)
	defer unregisterWorker(t.tag)

	if t.prelude != nil {
		if err := t.runPrelude(); err != nil {
			ready <- err
			return
		}
	}
	ready <- nil

	t.logger.WithFields(logrus.Fields{
		"thread": t.name,
		"tag":    t.tag,
	}).Debug("worker thread started")

	ctx := context.WithValue(context.Background(), threadKey, t)

	for {
		if t.hooks != nil && t.hooks.PreDrain != nil {
			t.hooks.PreDrain()
		}

		// The closed flag comes from the same critical section as the batch;
		// a push accepted after this drain is either covered by a pending
		// signal token or follows a close the next drain will observe.
		batch, closed := t.queue.drain()
		if t.hooks != nil && t.hooks.PostDrain != nil {
			t.hooks.PostDrain(len(batch), closed)
		}
		if len(batch) == 0 {
			if closed {
				t.logger.WithFields(logrus.Fields{"thread": t.name}).Debug("worker thread stopped")
				return
			}
			if t.hooks != nil && t.hooks.PrePark != nil {
				t.hooks.PrePark()
			}
			<-t.signal
			continue
		}

		for _, item := range batch {
			t.runItem(ctx, item)
		}
	}
}

func (t *Thread) runPrelude() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("prelude panicked: %v", rec)
		}
	}()
	t.prelude()
	return nil
}

// runItem executes one task, converting a panic into a *PanicError delivered
// solely through that item's completion. The loop itself never terminates
// because of a task panic.
func (t *Thread) runItem(ctx context.Context, item workItem) {
	start := time.Now()
	panicked := false

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				panicked = true
				stack := debug.Stack()
				t.panicHandler.HandlePanic(ctx, t.name, rec, stack)
				t.metrics.RecordTaskPanic(t.name)
				t.panicked.Add(1)
				if item.fail != nil {
					item.fail(&PanicError{Value: rec, Stack: stack})
				}
			}
		}()
		item.run(ctx)
	}()

	finished := time.Now()
	t.executed.Add(1)
	t.metrics.RecordTaskDuration(t.name, finished.Sub(start))

	if t.history != nil {
		t.history.add(TaskExecutionRecord{
			TaskID:     GenerateTaskID(),
			Name:       item.name,
			Thread:     t.name,
			StartedAt:  start,
			FinishedAt: finished,
			Duration:   finished.Sub(start),
			Panicked:   panicked,
		})
	}
}
