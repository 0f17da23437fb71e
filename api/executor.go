// Package api
// Author: momentics
//
// Executor contracts for the serialized execution context owning a channel.

package api

import "context"

// EventExecutor runs tasks one at a time, in submission order.
type EventExecutor interface {
	// InEventLoop reports whether the caller is the executor goroutine.
	InEventLoop() bool

	// Execute schedules task for execution.
	Execute(task func()) error
}

// EventLoop is the executor a channel is bound to for its whole life.
type EventLoop interface {
	EventExecutor

	// Pending returns the number of queued tasks.
	Pending() int

	// IsShuttingDown reports whether Shutdown has been requested.
	IsShuttingDown() bool

	// Shutdown stops accepting tasks, drains the queue and waits for the loop
	// goroutine to exit or ctx to end.
	Shutdown(ctx context.Context) error
}

// EventLoopGroup hands out event loops to new channels.
type EventLoopGroup interface {
	Next() EventLoop
	Loops() []EventLoop
	Shutdown(ctx context.Context) error
}
