// File: internal/concurrency/eventloop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoop runs tasks on a single goroutine locked to its OS thread. Tasks
// are queued in an unbounded FIFO and drained in batches.

package concurrency

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-pipeline/api"
)

const (
	stateRunning int32 = iota
	stateShuttingDown
	stateTerminated
)

// DefaultBatchSize is the number of tasks run per wakeup when unset.
const DefaultBatchSize = 64

// Options configures an EventLoop.
type Options struct {
	// Name identifies the loop in logs.
	Name string
	// BatchSize caps the tasks taken from the queue at once.
	BatchSize int
	// Pin locks the loop thread to CPU.
	Pin bool
	CPU int
	// Logger receives task panics and pinning failures.
	Logger *slog.Logger
}

// EventLoop implements api.EventLoop.
type EventLoop struct {
	name      string
	batchSize int
	cpu       int
	logger    *slog.Logger

	mu     sync.Mutex
	tasks  *queue.Queue
	state  atomic.Int32
	wakeup chan struct{}

	tid        atomic.Int64
	started    chan struct{}
	terminated chan struct{}
	executed   atomic.Int64
	panics     atomic.Int64
}

var _ api.EventLoop = (*EventLoop)(nil)

// NewEventLoop starts a loop goroutine and waits until it is running.
func NewEventLoop(opts Options) *EventLoop {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "eventloop"
	}
	cpu := -1
	if opts.Pin {
		cpu = opts.CPU
	}
	el := &EventLoop{
		name:       opts.Name,
		batchSize:  opts.BatchSize,
		cpu:        cpu,
		logger:     opts.Logger.With("loop", opts.Name),
		tasks:      queue.New(),
		wakeup:     make(chan struct{}, 1),
		started:    make(chan struct{}),
		terminated: make(chan struct{}),
	}
	go el.run()
	<-el.started
	return el
}

// Name returns the loop name.
func (el *EventLoop) Name() string { return el.name }

// InEventLoop reports whether the caller is the loop goroutine.
func (el *EventLoop) InEventLoop() bool {
	tid := el.tid.Load()
	return tid != 0 && tid == currentThreadID()
}

// Execute enqueues task. After Shutdown only tasks submitted from the loop
// itself are accepted, so work spawned while draining still runs.
func (el *EventLoop) Execute(task func()) error {
	if task == nil {
		return ErrNilTask
	}
	el.mu.Lock()
	switch el.state.Load() {
	case stateTerminated:
		el.mu.Unlock()
		return ErrEventLoopClosed
	case stateShuttingDown:
		if !el.InEventLoop() {
			el.mu.Unlock()
			return ErrEventLoopClosed
		}
	}
	el.tasks.Add(task)
	el.mu.Unlock()
	el.signal()
	return nil
}

// Pending returns the number of queued tasks.
func (el *EventLoop) Pending() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.tasks.Length()
}

// Executed returns the number of tasks run so far.
func (el *EventLoop) Executed() int64 { return el.executed.Load() }

// Panics returns the number of tasks that panicked.
func (el *EventLoop) Panics() int64 { return el.panics.Load() }

func (el *EventLoop) IsShuttingDown() bool {
	return el.state.Load() != stateRunning
}

// IsTerminated reports whether the loop goroutine has exited.
func (el *EventLoop) IsTerminated() bool {
	return el.state.Load() == stateTerminated
}

// Terminated is closed when the loop goroutine exits.
func (el *EventLoop) Terminated() <-chan struct{} { return el.terminated }

// Shutdown stops intake, lets the loop drain its queue and waits for it to
// exit. Called from the loop itself it only requests the shutdown.
func (el *EventLoop) Shutdown(ctx context.Context) error {
	el.mu.Lock()
	if el.state.Load() == stateRunning {
		el.state.Store(stateShuttingDown)
	}
	el.mu.Unlock()
	el.signal()

	if el.InEventLoop() {
		return nil
	}
	select {
	case <-el.terminated:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event loop %s shutdown: %w", el.name, ctx.Err())
	}
}

func (el *EventLoop) signal() {
	select {
	case el.wakeup <- struct{}{}:
	default:
	}
}

func (el *EventLoop) run() {
	runtime.LockOSThread()
	// a pinned thread exits locked so the runtime discards it with its
	// narrowed affinity
	if el.cpu < 0 {
		defer runtime.UnlockOSThread()
	}

	el.tid.Store(currentThreadID())
	if el.cpu >= 0 {
		if err := pinCurrentThread(el.cpu); err != nil {
			el.logger.Warn("cpu pinning failed", "cpu", el.cpu, "err", err)
		} else {
			el.logger.Debug("event loop pinned", "cpu", el.cpu)
		}
	}
	close(el.started)

	batch := make([]func(), 0, el.batchSize)
	for {
		batch = el.takeBatch(batch[:0])
		if len(batch) > 0 {
			for i, task := range batch {
				el.runTask(task)
				batch[i] = nil
			}
			continue
		}
		if el.exitIfDrained() {
			break
		}
		<-el.wakeup
	}
	el.tid.Store(0)
	close(el.terminated)
	el.logger.Debug("event loop terminated", "executed", el.executed.Load())
}

func (el *EventLoop) takeBatch(batch []func()) []func() {
	el.mu.Lock()
	defer el.mu.Unlock()
	for len(batch) < el.batchSize && el.tasks.Length() > 0 {
		batch = append(batch, el.tasks.Remove().(func()))
	}
	return batch
}

func (el *EventLoop) exitIfDrained() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.state.Load() == stateRunning || el.tasks.Length() > 0 {
		return false
	}
	el.state.Store(stateTerminated)
	return true
}

func (el *EventLoop) runTask(task func()) {
	defer func() {
		el.executed.Add(1)
		if r := recover(); r != nil {
			el.panics.Add(1)
			el.logger.Error("event loop task panicked",
				"panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
