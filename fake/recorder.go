// Package fake
// Author: momentics <momentics@gmail.com>
//
// Recording handler: logs every callback to a shared Recorder and then
// forwards it unchanged, so several instances in one pipeline produce a
// single ordered trace.

package fake

import (
	"fmt"
	"net"
	"sync"

	"github.com/momentics/hioload-pipeline/adapters"
	"github.com/momentics/hioload-pipeline/api"
)

// Recorder collects trace entries of the form "name.Method" or
// "name.Method(arg)".
type Recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *Recorder) add(name, method string, arg ...any) {
	entry := name + "." + method
	if len(arg) > 0 {
		entry += fmt.Sprintf("(%v)", arg[0])
	}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Entries returns a copy of the trace.
func (r *Recorder) Entries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

// Reset clears the trace.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

// RecordingHandler is a pass-through duplex handler that records.
type RecordingHandler struct {
	adapters.DuplexHandlerAdapter
	name string
	rec  *Recorder
}

var _ api.DuplexHandler = (*RecordingHandler)(nil)

// NewRecordingHandler records into rec under name.
func NewRecordingHandler(name string, rec *Recorder) *RecordingHandler {
	return &RecordingHandler{name: name, rec: rec}
}

func (h *RecordingHandler) HandlerAdded(api.HandlerContext) error {
	h.rec.add(h.name, "HandlerAdded")
	return nil
}

func (h *RecordingHandler) HandlerRemoved(api.HandlerContext) error {
	h.rec.add(h.name, "HandlerRemoved")
	return nil
}

func (h *RecordingHandler) ChannelRegistered(ctx api.HandlerContext) error {
	h.rec.add(h.name, "ChannelRegistered")
	return h.DuplexHandlerAdapter.ChannelRegistered(ctx)
}

func (h *RecordingHandler) ChannelUnregistered(ctx api.HandlerContext) error {
	h.rec.add(h.name, "ChannelUnregistered")
	return h.DuplexHandlerAdapter.ChannelUnregistered(ctx)
}

func (h *RecordingHandler) ChannelActive(ctx api.HandlerContext) error {
	h.rec.add(h.name, "ChannelActive")
	return h.DuplexHandlerAdapter.ChannelActive(ctx)
}

func (h *RecordingHandler) ChannelInactive(ctx api.HandlerContext) error {
	h.rec.add(h.name, "ChannelInactive")
	return h.DuplexHandlerAdapter.ChannelInactive(ctx)
}

func (h *RecordingHandler) ChannelRead(ctx api.HandlerContext, msg any) error {
	h.rec.add(h.name, "ChannelRead", msg)
	return h.DuplexHandlerAdapter.ChannelRead(ctx, msg)
}

func (h *RecordingHandler) ChannelReadComplete(ctx api.HandlerContext) error {
	h.rec.add(h.name, "ChannelReadComplete")
	return h.DuplexHandlerAdapter.ChannelReadComplete(ctx)
}

func (h *RecordingHandler) UserEventTriggered(ctx api.HandlerContext, evt any) error {
	h.rec.add(h.name, "UserEventTriggered", evt)
	return h.DuplexHandlerAdapter.UserEventTriggered(ctx, evt)
}

func (h *RecordingHandler) ChannelWritabilityChanged(ctx api.HandlerContext) error {
	h.rec.add(h.name, "ChannelWritabilityChanged", ctx.Channel().IsWritable())
	return h.DuplexHandlerAdapter.ChannelWritabilityChanged(ctx)
}

func (h *RecordingHandler) ExceptionCaught(ctx api.HandlerContext, err error) error {
	h.rec.add(h.name, "ExceptionCaught", err)
	return h.DuplexHandlerAdapter.ExceptionCaught(ctx, err)
}

func (h *RecordingHandler) Bind(ctx api.HandlerContext, local net.Addr, p api.ChannelPromise) error {
	h.rec.add(h.name, "Bind", local)
	return h.DuplexHandlerAdapter.Bind(ctx, local, p)
}

func (h *RecordingHandler) Connect(ctx api.HandlerContext, remote, local net.Addr, p api.ChannelPromise) error {
	h.rec.add(h.name, "Connect", remote)
	return h.DuplexHandlerAdapter.Connect(ctx, remote, local, p)
}

func (h *RecordingHandler) Disconnect(ctx api.HandlerContext, p api.ChannelPromise) error {
	h.rec.add(h.name, "Disconnect")
	return h.DuplexHandlerAdapter.Disconnect(ctx, p)
}

func (h *RecordingHandler) Close(ctx api.HandlerContext, p api.ChannelPromise) error {
	h.rec.add(h.name, "Close")
	return h.DuplexHandlerAdapter.Close(ctx, p)
}

func (h *RecordingHandler) Deregister(ctx api.HandlerContext, p api.ChannelPromise) error {
	h.rec.add(h.name, "Deregister")
	return h.DuplexHandlerAdapter.Deregister(ctx, p)
}

func (h *RecordingHandler) Read(ctx api.HandlerContext) error {
	h.rec.add(h.name, "Read")
	return h.DuplexHandlerAdapter.Read(ctx)
}

func (h *RecordingHandler) Write(ctx api.HandlerContext, msg any, p api.ChannelPromise) error {
	h.rec.add(h.name, "Write", msg)
	return h.DuplexHandlerAdapter.Write(ctx, msg, p)
}

func (h *RecordingHandler) Flush(ctx api.HandlerContext) error {
	h.rec.add(h.name, "Flush")
	return h.DuplexHandlerAdapter.Flush(ctx)
}

// Sink is an api.DiagnosticSink that keeps everything it receives.
type Sink struct {
	mu         sync.Mutex
	Exceptions []error
	Messages   []any
	Events     []any
}

var _ api.DiagnosticSink = (*Sink)(nil)

func (s *Sink) UnhandledException(_ api.Channel, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Exceptions = append(s.Exceptions, err)
}

func (s *Sink) UnhandledMessage(_ api.Channel, msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msg)
}

func (s *Sink) UnhandledEvent(_ api.Channel, evt any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, evt)
}

// Snapshot returns copies of the collected values.
func (s *Sink) Snapshot() (exceptions []error, messages, events []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.Exceptions...),
		append([]any(nil), s.Messages...),
		append([]any(nil), s.Events...)
}
