// File: api/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel contract: one logical bidirectional connection with a four-state
// lifecycle, a pipeline and an owning event loop.

package api

import "net"

// Outbound lists the operations that travel from application code toward the
// transport. Channel, Pipeline and HandlerContext all expose it; they differ
// only in where the walk starts. A nil promise argument means "create one".
type Outbound interface {
	Bind(local net.Addr, p ChannelPromise) ChannelFuture
	Connect(remote, local net.Addr, p ChannelPromise) ChannelFuture
	Disconnect(p ChannelPromise) ChannelFuture
	Close(p ChannelPromise) ChannelFuture
	Deregister(p ChannelPromise) ChannelFuture
	Read()
	Write(msg any, p ChannelPromise) ChannelFuture
	Flush()
	WriteAndFlush(msg any, p ChannelPromise) ChannelFuture

	NewPromise() ChannelPromise
	NewSucceededFuture() ChannelFuture
	NewFailedFuture(cause error) ChannelFuture
}

// Channel is a logical connection.
type Channel interface {
	Outbound

	ID() ChannelID
	EventLoop() EventLoop
	Pipeline() Pipeline

	State() ChannelState
	IsRegistered() bool
	IsActive() bool
	IsWritable() bool
	AutoRead() bool
	SetAutoRead(autoRead bool)

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// CloseFuture completes the first time the channel becomes inactive.
	CloseFuture() ChannelFuture

	Attr(key string) (any, bool)
	SetAttr(key string, value any)
	DeleteAttr(key string)
	AttrKeys() []string
}

// TransportChannel is the channel as seen by its transport, which alone
// drives lifecycle transitions. Each Mark call validates the transition
// synchronously and fires the matching inbound event on the event loop.
type TransportChannel interface {
	Channel

	MarkRegistered() error
	MarkActive() error
	MarkInactive() error
	MarkUnregistered() error
	SetWritable(writable bool)
}
