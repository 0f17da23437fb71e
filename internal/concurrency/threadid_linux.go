//go:build linux

// File: internal/concurrency/threadid_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "golang.org/x/sys/unix"

// currentThreadID returns the kernel thread id. Loop goroutines are locked to
// their thread, so equality identifies the loop goroutine.
func currentThreadID() int64 {
	return int64(unix.Gettid())
}
