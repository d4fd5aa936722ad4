//go:build windows

package core

import (
	"golang.org/x/sys/windows"
)

// currentThreadID returns the identity of the OS thread the calling goroutine
// is running on. See threadid_linux.go for why this is a sound affinity check.
func currentThreadID() Tag {
	return Tag(windows.GetCurrentThreadId())
}
