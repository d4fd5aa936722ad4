//go:build !linux && !windows

package core

import (
	"runtime"
)

// currentThreadID falls back to the goroutine id on platforms without a cheap
// thread-id syscall in x/sys. Because the worker goroutine is pinned to its OS
// thread and owns it exclusively, goroutine identity and thread identity are
// interchangeable for the affinity check: a different goroutine necessarily
// means a different thread, and the worker thread only ever runs the worker
// goroutine.
func currentThreadID() Tag {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]

	var id uint64
	for i := len("goroutine "); i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			break
		}
		id = id*10 + uint64(b[i]-'0')
	}
	return Tag(id)
}
