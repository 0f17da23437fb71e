// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the runtime contracts.

package fake

import (
	"context"
	"sync"

	"github.com/momentics/hioload-pipeline/api"
)

// EventLoop is a single-goroutine executor driven by the test itself.
//
// In inline mode (NewEventLoop) every caller counts as being on the loop, so
// pipeline dispatch runs synchronously. In deferred mode
// (NewDeferredEventLoop) callers are off the loop and submitted tasks wait
// until RunPendingTasks, which is how tests observe cross-loop hand-off.
type EventLoop struct {
	mu       sync.Mutex
	tasks    []func()
	inline   bool
	running  bool
	shutdown bool
	executed int
}

var _ api.EventLoop = (*EventLoop)(nil)

// NewEventLoop returns an inline loop.
func NewEventLoop() *EventLoop {
	return &EventLoop{inline: true}
}

// NewDeferredEventLoop returns a loop that queues every task.
func NewDeferredEventLoop() *EventLoop {
	return &EventLoop{}
}

// InEventLoop is true in inline mode and while RunPendingTasks runs.
func (l *EventLoop) InEventLoop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inline || l.running
}

// Execute queues task.
func (l *EventLoop) Execute(task func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.shutdown {
		return api.ErrEventLoopClosed
	}
	l.tasks = append(l.tasks, task)
	return nil
}

// RunPendingTasks runs queued tasks, including those queued meanwhile, and
// returns how many ran.
func (l *EventLoop) RunPendingTasks() int {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	n := 0
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return n
		}
		task := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.executed++
		l.mu.Unlock()
		task()
		n++
	}
}

func (l *EventLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Executed returns the number of tasks run so far.
func (l *EventLoop) Executed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.executed
}

func (l *EventLoop) IsShuttingDown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shutdown
}

// Shutdown rejects new tasks and runs what is queued.
func (l *EventLoop) Shutdown(context.Context) error {
	l.mu.Lock()
	l.shutdown = true
	l.mu.Unlock()
	l.RunPendingTasks()
	return nil
}
