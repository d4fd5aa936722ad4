// Package audiothread provides a dedicated-thread task executor for Go.
//
// Many native audio APIs (COM-based Windows audio, ALSA and PulseAudio
// contexts) require every call, including destruction, to originate from one
// fixed OS thread. This library gives you that thread: a single, long-lived
// worker pinned with runtime.LockOSThread, to which arbitrary code can submit
// work synchronously or asynchronously, and on which thread-affine resources
// can be safely destroyed.
//
// # Quick Start
//
//	thread, err := audiothread.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer thread.Join()
//
//	n := 10
//	err = thread.Submit(func(ctx context.Context) {
//		n += 10 // runs on the dedicated thread
//	})
//	// n == 20
//
// Results come back through the generic Call helpers:
//
//	sum, err := audiothread.Call(thread, func(ctx context.Context) int {
//		return 40 + 2
//	})
//
// # Restricting which threads can access data
//
// Tagged wraps a value with the identity of the worker thread that created
// it. Any attempt to use or destroy the value from another thread fails fast
// instead of silently permitting an unsafe access:
//
//	device, err := audiothread.Call(thread, func(ctx context.Context) *audiothread.Tagged[*Device] {
//		return audiothread.MustTagged(openDevice(), (*Device).close)
//	})
//
//	// Later, from any goroutine:
//	err = thread.Drop(device) // dispose runs on the worker thread
//
// # Panic isolation
//
// A panic inside one submitted task is converted to a *PanicError delivered
// only to that task's submitter. The worker thread keeps running and keeps
// serving other callers.
//
// # Shutdown
//
// Join drains every task already queued, then reclaims the OS thread. Any
// submission after Join fails deterministically with ErrSubmitAfterShutdown;
// it never hangs.
//
// The executor deliberately does not provide thread pooling (exactly one
// worker per Thread), real-time scheduling guarantees, or cancellation of
// in-flight work.
package audiothread
