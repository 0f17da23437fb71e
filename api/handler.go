// File: api/handler.go
// Package api defines the handler contracts dispatched by a pipeline.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A handler declares its direction capability by the interfaces it
// implements: InboundHandler, OutboundHandler or both. Returning an error
// from an inbound method fires ExceptionCaught downstream; returning one from
// an outbound method fails the operation's promise.

package api

import "net"

// Handler is the part every pipeline stage implements.
type Handler interface {
	// HandlerAdded runs on the event loop after the handler is linked.
	HandlerAdded(ctx HandlerContext) error
	// HandlerRemoved runs on the event loop after the handler is unlinked.
	HandlerRemoved(ctx HandlerContext) error
}

// InboundHandler receives events flowing from the transport to the
// application. To pass an event on, call the matching ctx.Fire method.
type InboundHandler interface {
	Handler

	ChannelRegistered(ctx HandlerContext) error
	ChannelUnregistered(ctx HandlerContext) error
	ChannelActive(ctx HandlerContext) error
	ChannelInactive(ctx HandlerContext) error
	ChannelRead(ctx HandlerContext, msg any) error
	ChannelReadComplete(ctx HandlerContext) error
	UserEventTriggered(ctx HandlerContext, evt any) error
	ChannelWritabilityChanged(ctx HandlerContext) error
	ExceptionCaught(ctx HandlerContext, err error) error
}

// OutboundHandler intercepts operations flowing toward the transport. To pass
// an operation on, call the matching ctx method with the same promise.
type OutboundHandler interface {
	Handler

	Bind(ctx HandlerContext, local net.Addr, p ChannelPromise) error
	Connect(ctx HandlerContext, remote, local net.Addr, p ChannelPromise) error
	Disconnect(ctx HandlerContext, p ChannelPromise) error
	Close(ctx HandlerContext, p ChannelPromise) error
	Deregister(ctx HandlerContext, p ChannelPromise) error
	Read(ctx HandlerContext) error
	Write(ctx HandlerContext, msg any, p ChannelPromise) error
	Flush(ctx HandlerContext) error
}

// DuplexHandler handles both directions.
type DuplexHandler interface {
	InboundHandler
	OutboundHandler
}

// Sharable marks a handler instance that may sit in several pipelines at
// once. Such handlers must be safe for concurrent use by multiple loops.
type Sharable interface {
	IsSharable() bool
}
