// Package fake
// Author: momentics <momentics@gmail.com>
//
// Recording transport. Every operation is logged, promises complete at once
// unless a failure was injected, and lifecycle helpers drive the channel the
// way a real transport would.

package fake

import (
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-pipeline/api"
)

// Addr is a printable net.Addr for tests.
type Addr string

func (a Addr) Network() string { return "fake" }
func (a Addr) String() string  { return string(a) }

// Transport implements api.Transport for tests.
type Transport struct {
	mu       sync.Mutex
	ch       api.TransportChannel
	ops      []string
	pending  []pendingWrite
	written  []any
	failures map[string]error
	reads    int
	flushes  int
	local    net.Addr
	remote   net.Addr
	closed   bool
}

var _ api.Transport = (*Transport)(nil)

// NewTransport creates a transport with fixed addresses.
func NewTransport() *Transport {
	return &Transport{
		failures: make(map[string]error),
		local:    Addr("local"),
		remote:   Addr("remote"),
	}
}

// Attach implements api.Transport.
func (t *Transport) Attach(ch api.TransportChannel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ch = ch
}

// Channel returns the attached channel.
func (t *Transport) Channel() api.TransportChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ch
}

// FailNext makes the next occurrence of op ("bind", "connect", "write", ...)
// fail with err.
func (t *Transport) FailNext(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[op] = err
}

func (t *Transport) record(op string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = append(t.ops, op)
	if err, ok := t.failures[op]; ok {
		delete(t.failures, op)
		return err
	}
	return nil
}

func complete(p api.ChannelPromise, err error) {
	if err != nil {
		p.TryFailure(err)
		return
	}
	p.TrySuccess()
}

func (t *Transport) Bind(local net.Addr, p api.ChannelPromise) {
	err := t.record("bind")
	if err == nil && local != nil {
		t.mu.Lock()
		t.local = local
		t.mu.Unlock()
	}
	complete(p, err)
}

// Connect succeeds and activates the channel.
func (t *Transport) Connect(remote, local net.Addr, p api.ChannelPromise) {
	if err := t.record("connect"); err != nil {
		p.TryFailure(err)
		return
	}
	t.mu.Lock()
	if remote != nil {
		t.remote = remote
	}
	if local != nil {
		t.local = local
	}
	t.mu.Unlock()
	p.TrySuccess()
	if err := t.Channel().MarkActive(); err != nil {
		t.Channel().Pipeline().FireExceptionCaught(err)
	}
}

func (t *Transport) Disconnect(p api.ChannelPromise) {
	if err := t.record("disconnect"); err != nil {
		p.TryFailure(err)
		return
	}
	t.shutdown(p)
}

// Close fails queued writes, moves the channel to Inactive and Unregistered
// and completes p. Closing twice succeeds.
func (t *Transport) Close(p api.ChannelPromise) {
	if err := t.record("close"); err != nil {
		p.TryFailure(err)
		return
	}
	t.shutdown(p)
}

func (t *Transport) shutdown(p api.ChannelPromise) {
	t.mu.Lock()
	already := t.closed
	t.closed = true
	pending := t.pending
	t.pending = nil
	ch := t.ch
	t.mu.Unlock()

	for _, w := range pending {
		w.p.TryFailure(api.ErrTransportClosed)
	}
	if !already && ch != nil {
		if ch.IsActive() {
			_ = ch.MarkInactive()
		}
		if ch.IsRegistered() {
			_ = ch.MarkUnregistered()
		}
	}
	p.TrySuccess()
}

func (t *Transport) Deregister(p api.ChannelPromise) {
	if err := t.record("deregister"); err != nil {
		p.TryFailure(err)
		return
	}
	complete(p, t.Channel().MarkUnregistered())
}

func (t *Transport) BeginRead() {
	_ = t.record("read")
	t.mu.Lock()
	t.reads++
	t.mu.Unlock()
}

type pendingWrite struct {
	msg any
	p   api.ChannelPromise
}

// Write queues msg until Flush.
func (t *Transport) Write(msg any, p api.ChannelPromise) {
	if err := t.record("write"); err != nil {
		p.TryFailure(err)
		return
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		p.TryFailure(api.ErrTransportClosed)
		return
	}
	t.pending = append(t.pending, pendingWrite{msg: msg, p: p})
	t.mu.Unlock()
}

// Flush moves queued writes to Written and completes their promises.
func (t *Transport) Flush() {
	_ = t.record("flush")
	t.mu.Lock()
	t.flushes++
	pending := t.pending
	t.pending = nil
	for _, w := range pending {
		t.written = append(t.written, w.msg)
	}
	t.mu.Unlock()
	for _, w := range pending {
		w.p.TrySuccess()
	}
}

func (t *Transport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.local
}

func (t *Transport) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remote
}

// ---- driving the channel ----

// Register moves the channel to Registered.
func (t *Transport) Register() error {
	return t.Channel().MarkRegistered()
}

// Activate registers the channel if needed and makes it active.
func (t *Transport) Activate() error {
	ch := t.Channel()
	if ch.State() == api.StateUnregistered {
		if err := ch.MarkRegistered(); err != nil {
			return err
		}
	}
	return ch.MarkActive()
}

// Receive fires one ChannelRead per message followed by a single
// ChannelReadComplete.
func (t *Transport) Receive(msgs ...any) {
	p := t.Channel().Pipeline()
	for _, m := range msgs {
		p.FireChannelRead(m)
	}
	p.FireChannelReadComplete()
}

// ---- inspection ----

// Ops returns the operations seen so far, in order.
func (t *Transport) Ops() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ops...)
}

// Written returns flushed messages in write order.
func (t *Transport) Written() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]any(nil), t.written...)
}

// PendingWrites returns the number of written but unflushed messages.
func (t *Transport) PendingWrites() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Reads returns the number of BeginRead calls.
func (t *Transport) Reads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads
}

// Flushes returns the number of Flush calls.
func (t *Transport) Flushes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushes
}

func (t *Transport) String() string {
	return fmt.Sprintf("fake.Transport(ops=%v)", t.Ops())
}
