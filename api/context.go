// File: api/context.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HandlerContext binds one handler to its position in a pipeline. Inbound
// Fire methods continue at the next inbound-capable context; outbound
// operations continue at the previous outbound-capable context.

package api

// Inbound lists the events flowing from the transport toward the application.
type Inbound interface {
	FireChannelRegistered()
	FireChannelUnregistered()
	FireChannelActive()
	FireChannelInactive()
	FireChannelRead(msg any)
	FireChannelReadComplete()
	FireUserEventTriggered(evt any)
	FireChannelWritabilityChanged()
	FireExceptionCaught(err error)
}

// HandlerContext is a handler's view of the pipeline.
type HandlerContext interface {
	Inbound
	Outbound

	Name() string
	Handler() Handler
	Channel() Channel
	Pipeline() Pipeline
	Executor() EventExecutor

	// IsRemoved reports whether the context has been unlinked.
	IsRemoved() bool
}
