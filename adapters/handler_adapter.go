// File: adapters/handler_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Skeleton handlers. Every method forwards the event or operation, unchanged,
// to the next applicable context. Embed one and override only the methods
// that matter; everything else keeps propagating.

package adapters

import (
	"net"

	"github.com/momentics/hioload-pipeline/api"
)

// HandlerAdapter provides no-op lifecycle callbacks.
type HandlerAdapter struct{}

func (HandlerAdapter) HandlerAdded(api.HandlerContext) error   { return nil }
func (HandlerAdapter) HandlerRemoved(api.HandlerContext) error { return nil }

// Sharable marks an embedding handler as safe to add to several pipelines.
type Sharable struct{}

// IsSharable implements api.Sharable.
func (Sharable) IsSharable() bool { return true }

// InboundHandlerAdapter forwards every inbound event to the next inbound
// handler.
type InboundHandlerAdapter struct {
	HandlerAdapter
}

var _ api.InboundHandler = (*InboundHandlerAdapter)(nil)

func (InboundHandlerAdapter) ChannelRegistered(ctx api.HandlerContext) error {
	ctx.FireChannelRegistered()
	return nil
}

func (InboundHandlerAdapter) ChannelUnregistered(ctx api.HandlerContext) error {
	ctx.FireChannelUnregistered()
	return nil
}

func (InboundHandlerAdapter) ChannelActive(ctx api.HandlerContext) error {
	ctx.FireChannelActive()
	return nil
}

func (InboundHandlerAdapter) ChannelInactive(ctx api.HandlerContext) error {
	ctx.FireChannelInactive()
	return nil
}

func (InboundHandlerAdapter) ChannelRead(ctx api.HandlerContext, msg any) error {
	ctx.FireChannelRead(msg)
	return nil
}

func (InboundHandlerAdapter) ChannelReadComplete(ctx api.HandlerContext) error {
	ctx.FireChannelReadComplete()
	return nil
}

func (InboundHandlerAdapter) UserEventTriggered(ctx api.HandlerContext, evt any) error {
	ctx.FireUserEventTriggered(evt)
	return nil
}

func (InboundHandlerAdapter) ChannelWritabilityChanged(ctx api.HandlerContext) error {
	ctx.FireChannelWritabilityChanged()
	return nil
}

func (InboundHandlerAdapter) ExceptionCaught(ctx api.HandlerContext, err error) error {
	ctx.FireExceptionCaught(err)
	return nil
}

// OutboundHandlerAdapter forwards every outbound operation, with its promise,
// to the previous outbound handler.
type OutboundHandlerAdapter struct {
	HandlerAdapter
}

var _ api.OutboundHandler = (*OutboundHandlerAdapter)(nil)

func (OutboundHandlerAdapter) Bind(ctx api.HandlerContext, local net.Addr, p api.ChannelPromise) error {
	ctx.Bind(local, p)
	return nil
}

func (OutboundHandlerAdapter) Connect(ctx api.HandlerContext, remote, local net.Addr, p api.ChannelPromise) error {
	ctx.Connect(remote, local, p)
	return nil
}

func (OutboundHandlerAdapter) Disconnect(ctx api.HandlerContext, p api.ChannelPromise) error {
	ctx.Disconnect(p)
	return nil
}

func (OutboundHandlerAdapter) Close(ctx api.HandlerContext, p api.ChannelPromise) error {
	ctx.Close(p)
	return nil
}

func (OutboundHandlerAdapter) Deregister(ctx api.HandlerContext, p api.ChannelPromise) error {
	ctx.Deregister(p)
	return nil
}

func (OutboundHandlerAdapter) Read(ctx api.HandlerContext) error {
	ctx.Read()
	return nil
}

func (OutboundHandlerAdapter) Write(ctx api.HandlerContext, msg any, p api.ChannelPromise) error {
	ctx.Write(msg, p)
	return nil
}

func (OutboundHandlerAdapter) Flush(ctx api.HandlerContext) error {
	ctx.Flush()
	return nil
}

// DuplexHandlerAdapter forwards in both directions.
type DuplexHandlerAdapter struct {
	InboundHandlerAdapter
	OutboundHandlerAdapter
}

var _ api.DuplexHandler = (*DuplexHandlerAdapter)(nil)

// HandlerAdded resolves the ambiguity between the two embedded adapters.
func (DuplexHandlerAdapter) HandlerAdded(api.HandlerContext) error { return nil }

// HandlerRemoved resolves the ambiguity between the two embedded adapters.
func (DuplexHandlerAdapter) HandlerRemoved(api.HandlerContext) error { return nil }

// ChannelReadFunc is an inbound handler whose ChannelRead is a plain
// function; the function decides whether to forward via ctx.
type ChannelReadFunc func(ctx api.HandlerContext, msg any) error

func (f ChannelReadFunc) HandlerAdded(api.HandlerContext) error   { return nil }
func (f ChannelReadFunc) HandlerRemoved(api.HandlerContext) error { return nil }

func (f ChannelReadFunc) ChannelRead(ctx api.HandlerContext, msg any) error {
	return f(ctx, msg)
}

func (f ChannelReadFunc) ChannelRegistered(ctx api.HandlerContext) error {
	return InboundHandlerAdapter{}.ChannelRegistered(ctx)
}

func (f ChannelReadFunc) ChannelUnregistered(ctx api.HandlerContext) error {
	return InboundHandlerAdapter{}.ChannelUnregistered(ctx)
}

func (f ChannelReadFunc) ChannelActive(ctx api.HandlerContext) error {
	return InboundHandlerAdapter{}.ChannelActive(ctx)
}

func (f ChannelReadFunc) ChannelInactive(ctx api.HandlerContext) error {
	return InboundHandlerAdapter{}.ChannelInactive(ctx)
}

func (f ChannelReadFunc) ChannelReadComplete(ctx api.HandlerContext) error {
	return InboundHandlerAdapter{}.ChannelReadComplete(ctx)
}

func (f ChannelReadFunc) UserEventTriggered(ctx api.HandlerContext, evt any) error {
	return InboundHandlerAdapter{}.UserEventTriggered(ctx, evt)
}

func (f ChannelReadFunc) ChannelWritabilityChanged(ctx api.HandlerContext) error {
	return InboundHandlerAdapter{}.ChannelWritabilityChanged(ctx)
}

func (f ChannelReadFunc) ExceptionCaught(ctx api.HandlerContext, err error) error {
	return InboundHandlerAdapter{}.ExceptionCaught(ctx, err)
}
