//go:build linux

package core

import (
	"golang.org/x/sys/unix"
)

// currentThreadID returns the identity of the OS thread the calling goroutine
// is running on. The worker goroutine is pinned with runtime.LockOSThread, so
// its thread id is stable and exclusively its own: no other goroutine can be
// scheduled onto that thread for the lifetime of the worker.
func currentThreadID() Tag {
	return Tag(unix.Gettid())
}
