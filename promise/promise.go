// File: promise/promise.go
// Package promise implements the single-assignment completion cell used to
// report the outcome of asynchronous channel operations.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Promise starts pending and completes exactly once, either successfully
// with a value or with a failure cause. Listeners run once each, in the order
// they were added, on the executor that owns the promise.

package promise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"
	"time"
)

// Void is the result type of operations that carry no value.
type Void struct{}

// State enumerates the completion state of a promise.
type State int32

const (
	Pending State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "success"
	case Failed:
		return "failure"
	default:
		return "unknown"
	}
}

// Executor is the serialized execution context listener callbacks are handed
// to. It is satisfied by api.EventExecutor.
type Executor interface {
	// InEventLoop reports whether the caller runs on the executor goroutine.
	InEventLoop() bool
	// Execute schedules task to run on the executor.
	Execute(task func()) error
}

// Listener is notified once when the future it is added to completes.
type Listener[T any] interface {
	OperationComplete(f Future[T])
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc[T any] func(f Future[T])

// OperationComplete calls fn(f).
func (fn ListenerFunc[T]) OperationComplete(f Future[T]) { fn(f) }

// Future is the read side of a Promise.
type Future[T any] interface {
	State() State
	IsDone() bool
	IsSuccess() bool
	IsCancelled() bool
	// Cause returns the failure cause, nil unless the future failed.
	Cause() error
	// GetNow returns the result without blocking; ok is false unless succeeded.
	GetNow() (v T, ok bool)
	// Get waits for completion and returns the result or the failure cause.
	Get(ctx context.Context) (T, error)
	// Done is closed once the future completes.
	Done() <-chan struct{}

	AddListener(l Listener[T])
	RemoveListener(l Listener[T]) bool

	Await(ctx context.Context) error
	AwaitTimeout(ctx context.Context, d time.Duration) (bool, error)
	AwaitUninterruptibly()
	AwaitUninterruptiblyTimeout(d time.Duration) bool
	Sync(ctx context.Context) error
	SyncUninterruptibly() error

	Cancel() bool
}

// Promise is a writable Future. The zero value is not usable; use New.
type Promise[T any] struct {
	exec Executor

	mu        sync.Mutex
	state     State
	result    T
	cause     error
	listeners []Listener[T]
	notifying bool
	done      chan struct{}
}

var _ Future[Void] = (*Promise[Void])(nil)

// New creates a pending promise whose listeners are notified on exec.
// A nil exec notifies listeners on the completing goroutine.
func New[T any](exec Executor) *Promise[T] {
	return &Promise[T]{
		exec: exec,
		done: make(chan struct{}),
	}
}

// NewSucceeded returns a promise already completed with v.
func NewSucceeded[T any](exec Executor, v T) *Promise[T] {
	p := New[T](exec)
	p.TrySuccess(v)
	return p
}

// NewFailed returns a promise already failed with cause.
func NewFailed[T any](exec Executor, cause error) *Promise[T] {
	p := New[T](exec)
	p.TryFailure(cause)
	return p
}

// Executor returns the executor listeners run on, possibly nil.
func (p *Promise[T]) Executor() Executor {
	return p.exec
}

// SetSuccess completes the promise with v. Completing twice is a programming
// error reported as ErrAlreadyCompleted.
func (p *Promise[T]) SetSuccess(v T) error {
	if p.complete(Succeeded, v, nil) {
		return nil
	}
	return fmt.Errorf("set success on %s promise: %w", p.State(), ErrAlreadyCompleted)
}

// TrySuccess completes the promise with v and reports whether this call did so.
func (p *Promise[T]) TrySuccess(v T) bool {
	return p.complete(Succeeded, v, nil)
}

// SetFailure fails the promise with cause, see SetSuccess.
func (p *Promise[T]) SetFailure(cause error) error {
	if cause == nil {
		return ErrNilCause
	}
	var zero T
	if p.complete(Failed, zero, cause) {
		return nil
	}
	return fmt.Errorf("set failure on %s promise: %w", p.State(), ErrAlreadyCompleted)
}

// TryFailure fails the promise with cause and reports whether this call did so.
func (p *Promise[T]) TryFailure(cause error) bool {
	if cause == nil {
		cause = ErrNilCause
	}
	var zero T
	return p.complete(Failed, zero, cause)
}

// Cancel fails the promise with ErrCancelled if it is still pending.
func (p *Promise[T]) Cancel() bool {
	return p.TryFailure(ErrCancelled)
}

func (p *Promise[T]) complete(s State, v T, cause error) bool {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return false
	}
	p.state = s
	p.result = v
	p.cause = cause
	close(p.done)
	hasListeners := len(p.listeners) > 0
	p.mu.Unlock()

	if hasListeners {
		p.notifyListeners()
	}
	return true
}

func (p *Promise[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Promise[T]) IsDone() bool { return p.State() != Pending }

func (p *Promise[T]) IsSuccess() bool { return p.State() == Succeeded }

func (p *Promise[T]) IsCancelled() bool {
	return errors.Is(p.Cause(), ErrCancelled)
}

func (p *Promise[T]) Cause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cause
}

func (p *Promise[T]) GetNow() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Succeeded {
		var zero T
		return zero, false
	}
	return p.result, true
}

func (p *Promise[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if err := p.Await(ctx); err != nil {
		return zero, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Failed {
		return zero, p.cause
	}
	return p.result, nil
}

func (p *Promise[T]) Done() <-chan struct{} { return p.done }

// AddListener registers l. A listener added after completion is notified
// right away; either way it runs exactly once.
func (p *Promise[T]) AddListener(l Listener[T]) {
	if l == nil {
		return
	}
	p.mu.Lock()
	p.listeners = append(p.listeners, l)
	done := p.state != Pending
	p.mu.Unlock()

	if done {
		p.notifyListeners()
	}
}

// RemoveListener removes the first registration of l that has not been
// notified yet. Listeners of non-comparable dynamic type (plain ListenerFunc
// values) cannot be removed.
func (p *Promise[T]) RemoveListener(l Listener[T]) bool {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, registered := range p.listeners {
		if reflect.TypeOf(registered).Comparable() && registered == l {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Promise[T]) notifyListeners() {
	if p.exec == nil || p.exec.InEventLoop() {
		p.notifyListenersNow()
		return
	}
	if err := p.exec.Execute(p.notifyListenersNow); err != nil {
		// executor is gone; listeners must still run exactly once
		slog.Warn("listener notification task rejected, notifying inline", "err", err)
		p.notifyListenersNow()
	}
}

// notifyListenersNow drains the listener list in registration order. Only one
// goroutine drains at a time; listeners added meanwhile are picked up by the
// running drain.
func (p *Promise[T]) notifyListenersNow() {
	p.mu.Lock()
	if p.notifying || len(p.listeners) == 0 {
		p.mu.Unlock()
		return
	}
	p.notifying = true
	batch := p.listeners
	p.listeners = nil
	p.mu.Unlock()

	for {
		for _, l := range batch {
			p.notifyListener(l)
		}
		p.mu.Lock()
		if len(p.listeners) == 0 {
			p.notifying = false
			p.mu.Unlock()
			return
		}
		batch = p.listeners
		p.listeners = nil
		p.mu.Unlock()
	}
}

func (p *Promise[T]) notifyListener(l Listener[T]) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("promise listener panicked",
				"listener", fmt.Sprintf("%T", l),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	l.OperationComplete(p)
}

// Await blocks until the promise completes or ctx is cancelled. Cancellation
// is reported as *InterruptedError.
func (p *Promise[T]) Await(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return &InterruptedError{Cause: ctx.Err()}
	}
}

// AwaitTimeout waits at most d. It returns false with a nil error when d
// elapses first; the promise stays completable afterwards.
func (p *Promise[T]) AwaitTimeout(ctx context.Context, d time.Duration) (bool, error) {
	select {
	case <-p.done:
		return true, nil
	default:
	}
	if d <= 0 {
		return false, nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.done:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, &InterruptedError{Cause: ctx.Err()}
	}
}

// AwaitUninterruptibly blocks until completion. It has no interrupt source; a
// caller holding a cancelled context still observes it after this returns.
func (p *Promise[T]) AwaitUninterruptibly() {
	<-p.done
}

// AwaitUninterruptiblyTimeout waits at most d and reports completion.
func (p *Promise[T]) AwaitUninterruptiblyTimeout(d time.Duration) bool {
	completed, _ := p.AwaitTimeout(context.Background(), d)
	return completed
}

// Sync waits like Await and then returns the failure cause, if any.
func (p *Promise[T]) Sync(ctx context.Context) error {
	if err := p.Await(ctx); err != nil {
		return err
	}
	return p.Cause()
}

// SyncUninterruptibly waits like AwaitUninterruptibly and returns the cause.
func (p *Promise[T]) SyncUninterruptibly() error {
	p.AwaitUninterruptibly()
	return p.Cause()
}

func (p *Promise[T]) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Succeeded:
		return fmt.Sprintf("Promise(success: %v)", p.result)
	case Failed:
		return fmt.Sprintf("Promise(failure: %v)", p.cause)
	default:
		return "Promise(incomplete)"
	}
}

// Cascade completes to with the outcome of from once from completes.
func Cascade[T any](from Future[T], to *Promise[T]) {
	from.AddListener(ListenerFunc[T](func(f Future[T]) {
		if v, ok := f.GetNow(); ok {
			to.TrySuccess(v)
			return
		}
		to.TryFailure(f.Cause())
	}))
}
