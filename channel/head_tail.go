// File: channel/head_tail.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sentinel handlers framing every pipeline.

package channel

import (
	"net"

	"github.com/momentics/hioload-pipeline/api"
)

// headHandler terminates outbound operations in the transport and starts
// inbound events. It reads again after activation and after each read burst
// when auto-read is on.
type headHandler struct {
	channel *DefaultChannel
}

func (h *headHandler) HandlerAdded(api.HandlerContext) error   { return nil }
func (h *headHandler) HandlerRemoved(api.HandlerContext) error { return nil }

func (h *headHandler) Bind(_ api.HandlerContext, local net.Addr, p api.ChannelPromise) error {
	h.channel.transport.Bind(local, p)
	return nil
}

func (h *headHandler) Connect(_ api.HandlerContext, remote, local net.Addr, p api.ChannelPromise) error {
	h.channel.transport.Connect(remote, local, p)
	return nil
}

func (h *headHandler) Disconnect(_ api.HandlerContext, p api.ChannelPromise) error {
	h.channel.transport.Disconnect(p)
	return nil
}

func (h *headHandler) Close(_ api.HandlerContext, p api.ChannelPromise) error {
	h.channel.transport.Close(p)
	return nil
}

func (h *headHandler) Deregister(_ api.HandlerContext, p api.ChannelPromise) error {
	h.channel.transport.Deregister(p)
	return nil
}

func (h *headHandler) Read(api.HandlerContext) error {
	h.channel.transport.BeginRead()
	return nil
}

func (h *headHandler) Write(_ api.HandlerContext, msg any, p api.ChannelPromise) error {
	h.channel.transport.Write(msg, p)
	return nil
}

func (h *headHandler) Flush(api.HandlerContext) error {
	h.channel.transport.Flush()
	return nil
}

func (h *headHandler) ChannelRegistered(ctx api.HandlerContext) error {
	ctx.FireChannelRegistered()
	return nil
}

func (h *headHandler) ChannelUnregistered(ctx api.HandlerContext) error {
	ctx.FireChannelUnregistered()
	return nil
}

func (h *headHandler) ChannelActive(ctx api.HandlerContext) error {
	ctx.FireChannelActive()
	h.readIfAutoRead()
	return nil
}

func (h *headHandler) ChannelInactive(ctx api.HandlerContext) error {
	ctx.FireChannelInactive()
	return nil
}

func (h *headHandler) ChannelRead(ctx api.HandlerContext, msg any) error {
	ctx.FireChannelRead(msg)
	return nil
}

func (h *headHandler) ChannelReadComplete(ctx api.HandlerContext) error {
	ctx.FireChannelReadComplete()
	h.readIfAutoRead()
	return nil
}

func (h *headHandler) UserEventTriggered(ctx api.HandlerContext, evt any) error {
	ctx.FireUserEventTriggered(evt)
	return nil
}

func (h *headHandler) ChannelWritabilityChanged(ctx api.HandlerContext) error {
	ctx.FireChannelWritabilityChanged()
	return nil
}

func (h *headHandler) ExceptionCaught(ctx api.HandlerContext, err error) error {
	ctx.FireExceptionCaught(err)
	return nil
}

func (h *headHandler) readIfAutoRead() {
	if h.channel.AutoRead() && h.channel.IsActive() {
		h.channel.Read()
	}
}

// tailHandler is the last inbound stop. Anything that gets here was not
// consumed by an application handler and goes to the diagnostic sink.
type tailHandler struct {
	pipeline *DefaultPipeline
}

func (t *tailHandler) HandlerAdded(api.HandlerContext) error              { return nil }
func (t *tailHandler) HandlerRemoved(api.HandlerContext) error            { return nil }
func (t *tailHandler) ChannelRegistered(api.HandlerContext) error         { return nil }
func (t *tailHandler) ChannelUnregistered(api.HandlerContext) error       { return nil }
func (t *tailHandler) ChannelActive(api.HandlerContext) error             { return nil }
func (t *tailHandler) ChannelInactive(api.HandlerContext) error           { return nil }
func (t *tailHandler) ChannelReadComplete(api.HandlerContext) error       { return nil }
func (t *tailHandler) ChannelWritabilityChanged(api.HandlerContext) error { return nil }

func (t *tailHandler) ChannelRead(ctx api.HandlerContext, msg any) error {
	t.pipeline.sink.UnhandledMessage(ctx.Channel(), msg)
	return nil
}

func (t *tailHandler) UserEventTriggered(ctx api.HandlerContext, evt any) error {
	t.pipeline.sink.UnhandledEvent(ctx.Channel(), evt)
	return nil
}

func (t *tailHandler) ExceptionCaught(ctx api.HandlerContext, err error) error {
	t.pipeline.sink.UnhandledException(ctx.Channel(), err)
	return nil
}
