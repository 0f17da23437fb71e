// File: channel/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// handlerContext is one node of the pipeline list. Neighbour links are atomic
// pointers: mutation happens under the pipeline lock, walks read without it.
// A removed node keeps its own links, so a walk sitting on it still reaches
// the surviving neighbours.

package channel

import (
	"fmt"
	"net"
	"runtime/debug"
	"sync/atomic"

	"github.com/momentics/hioload-pipeline/api"
)

const (
	ctxInit int32 = iota
	ctxAddPending
	ctxAddComplete
)

type handlerContext struct {
	pipeline *DefaultPipeline
	name     string
	handler  api.Handler
	inbound  api.InboundHandler  // nil without inbound capability
	outbound api.OutboundHandler // nil without outbound capability

	next    atomic.Pointer[handlerContext]
	prev    atomic.Pointer[handlerContext]
	state   atomic.Int32
	removed atomic.Bool
	owned   atomic.Bool // holds the single-pipeline claim on handler
}

var _ api.HandlerContext = (*handlerContext)(nil)

func newHandlerContext(p *DefaultPipeline, name string, h api.Handler) (*handlerContext, error) {
	ctx := &handlerContext{
		pipeline: p,
		name:     name,
		handler:  h,
	}
	ctx.inbound, _ = h.(api.InboundHandler)
	ctx.outbound, _ = h.(api.OutboundHandler)
	if ctx.inbound == nil && ctx.outbound == nil {
		return nil, fmt.Errorf("%w: %T", api.ErrNotCapable, h)
	}
	return ctx, nil
}

func (c *handlerContext) Name() string                { return c.name }
func (c *handlerContext) Handler() api.Handler        { return c.handler }
func (c *handlerContext) Channel() api.Channel        { return c.pipeline.channel }
func (c *handlerContext) Pipeline() api.Pipeline      { return c.pipeline }
func (c *handlerContext) Executor() api.EventExecutor { return c.pipeline.channel.loop }
func (c *handlerContext) IsRemoved() bool             { return c.removed.Load() }

func (c *handlerContext) String() string {
	return fmt.Sprintf("HandlerContext(%s, %T)", c.name, c.handler)
}

// invokeHandler reports whether events reaching this node should call its
// handler; removed nodes only pass events through.
func (c *handlerContext) invokeHandler() bool {
	return !c.removed.Load()
}

// findInbound returns the next node able to take inbound events. The tail is
// inbound, so the walk always terminates unless c is the tail itself.
func (c *handlerContext) findInbound() *handlerContext {
	ctx := c
	for {
		ctx = ctx.next.Load()
		if ctx == nil || ctx.inbound != nil {
			return ctx
		}
	}
}

// findOutbound returns the previous node able to take outbound operations.
func (c *handlerContext) findOutbound() *handlerContext {
	ctx := c
	for {
		ctx = ctx.prev.Load()
		if ctx == nil || ctx.outbound != nil {
			return ctx
		}
	}
}

// run executes task on the channel's loop: inline when already there,
// queued otherwise. A rejected task is reported to the diagnostic sink.
func (c *handlerContext) run(task func()) {
	c.execute(task, func(err error) {
		c.pipeline.sink.UnhandledException(c.pipeline.channel,
			fmt.Errorf("pipeline task for %q rejected: %w", c.name, err))
	})
}

// runOutbound is run for operations carrying a promise: a rejected task
// fails the promise.
func (c *handlerContext) runOutbound(p api.ChannelPromise, task func()) {
	c.execute(task, func(err error) {
		p.TryFailure(fmt.Errorf("outbound operation at %q rejected: %w", c.name, err))
	})
}

func (c *handlerContext) execute(task func(), rejected func(error)) {
	exec := c.Executor()
	if exec.InEventLoop() {
		task()
		return
	}
	if err := exec.Execute(task); err != nil {
		c.pipeline.logger.Warn("pipeline task rejected", "context", c.name, "err", err)
		rejected(err)
	}
}

// safeCall runs fn and turns a panic into *api.PanicError.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &api.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// callInbound invokes an inbound method; a failure continues as
// ExceptionCaught from the node after this one.
func (c *handlerContext) callInbound(fn func() error) {
	if err := safeCall(fn); err != nil {
		c.FireExceptionCaught(err)
	}
}

// callOutbound invokes an outbound method; a failure lands on the promise.
func (c *handlerContext) callOutbound(p api.ChannelPromise, fn func() error) {
	err := safeCall(fn)
	if err == nil {
		return
	}
	if !p.TryFailure(err) {
		c.pipeline.sink.UnhandledException(c.pipeline.channel,
			fmt.Errorf("outbound handler %q failed after its promise completed: %w", c.name, err))
	}
}

// callOutboundNoPromise is used by Read and Flush, which carry no promise.
func (c *handlerContext) callOutboundNoPromise(fn func() error) {
	if err := safeCall(fn); err != nil {
		c.pipeline.FireExceptionCaught(err)
	}
}

// ---- inbound ----

func (c *handlerContext) FireChannelRegistered() {
	if next := c.findInbound(); next != nil {
		next.invokeChannelRegistered()
	}
}

func (c *handlerContext) invokeChannelRegistered() {
	c.run(func() {
		if !c.invokeHandler() {
			c.FireChannelRegistered()
			return
		}
		c.callInbound(func() error { return c.inbound.ChannelRegistered(c) })
	})
}

func (c *handlerContext) FireChannelUnregistered() {
	if next := c.findInbound(); next != nil {
		next.invokeChannelUnregistered()
	}
}

func (c *handlerContext) invokeChannelUnregistered() {
	c.run(func() {
		if !c.invokeHandler() {
			c.FireChannelUnregistered()
			return
		}
		c.callInbound(func() error { return c.inbound.ChannelUnregistered(c) })
	})
}

func (c *handlerContext) FireChannelActive() {
	if next := c.findInbound(); next != nil {
		next.invokeChannelActive()
	}
}

func (c *handlerContext) invokeChannelActive() {
	c.run(func() {
		if !c.invokeHandler() {
			c.FireChannelActive()
			return
		}
		c.callInbound(func() error { return c.inbound.ChannelActive(c) })
	})
}

func (c *handlerContext) FireChannelInactive() {
	if next := c.findInbound(); next != nil {
		next.invokeChannelInactive()
	}
}

func (c *handlerContext) invokeChannelInactive() {
	c.run(func() {
		if !c.invokeHandler() {
			c.FireChannelInactive()
			return
		}
		c.callInbound(func() error { return c.inbound.ChannelInactive(c) })
	})
}

func (c *handlerContext) FireChannelRead(msg any) {
	if next := c.findInbound(); next != nil {
		next.invokeChannelRead(msg)
	}
}

func (c *handlerContext) invokeChannelRead(msg any) {
	c.run(func() {
		if !c.invokeHandler() {
			c.FireChannelRead(msg)
			return
		}
		c.callInbound(func() error { return c.inbound.ChannelRead(c, msg) })
	})
}

func (c *handlerContext) FireChannelReadComplete() {
	if next := c.findInbound(); next != nil {
		next.invokeChannelReadComplete()
	}
}

func (c *handlerContext) invokeChannelReadComplete() {
	c.run(func() {
		if !c.invokeHandler() {
			c.FireChannelReadComplete()
			return
		}
		c.callInbound(func() error { return c.inbound.ChannelReadComplete(c) })
	})
}

func (c *handlerContext) FireUserEventTriggered(evt any) {
	if next := c.findInbound(); next != nil {
		next.invokeUserEventTriggered(evt)
	}
}

func (c *handlerContext) invokeUserEventTriggered(evt any) {
	c.run(func() {
		if !c.invokeHandler() {
			c.FireUserEventTriggered(evt)
			return
		}
		c.callInbound(func() error { return c.inbound.UserEventTriggered(c, evt) })
	})
}

func (c *handlerContext) FireChannelWritabilityChanged() {
	if next := c.findInbound(); next != nil {
		next.invokeChannelWritabilityChanged()
	}
}

func (c *handlerContext) invokeChannelWritabilityChanged() {
	c.run(func() {
		if !c.invokeHandler() {
			c.FireChannelWritabilityChanged()
			return
		}
		c.callInbound(func() error { return c.inbound.ChannelWritabilityChanged(c) })
	})
}

func (c *handlerContext) FireExceptionCaught(err error) {
	if next := c.findInbound(); next != nil {
		next.invokeExceptionCaught(err)
	}
}

func (c *handlerContext) invokeExceptionCaught(cause error) {
	c.run(func() {
		if !c.invokeHandler() {
			c.FireExceptionCaught(cause)
			return
		}
		// never re-enter the pipeline from a failing error handler
		if err := safeCall(func() error { return c.inbound.ExceptionCaught(c, cause) }); err != nil {
			c.pipeline.sink.UnhandledException(c.pipeline.channel,
				fmt.Errorf("handler %q failed in ExceptionCaught: %w (original: %v)", c.name, err, cause))
		}
	})
}

// ---- outbound ----

// prepare returns the promise an outbound operation should use and whether
// the operation should proceed at all.
func (c *handlerContext) prepare(p api.ChannelPromise) (api.ChannelPromise, bool) {
	if p == nil {
		p = c.NewPromise()
	}
	// cancelled or otherwise completed before reaching the transport
	return p, !p.IsDone()
}

func (c *handlerContext) Bind(local net.Addr, p api.ChannelPromise) api.ChannelFuture {
	p, ok := c.prepare(p)
	if !ok {
		return p
	}
	if next := c.findOutbound(); next != nil {
		next.invokeBind(local, p)
	}
	return p
}

func (c *handlerContext) invokeBind(local net.Addr, p api.ChannelPromise) {
	c.runOutbound(p, func() {
		if !c.invokeHandler() {
			c.Bind(local, p)
			return
		}
		c.callOutbound(p, func() error { return c.outbound.Bind(c, local, p) })
	})
}

func (c *handlerContext) Connect(remote, local net.Addr, p api.ChannelPromise) api.ChannelFuture {
	p, ok := c.prepare(p)
	if !ok {
		return p
	}
	if next := c.findOutbound(); next != nil {
		next.invokeConnect(remote, local, p)
	}
	return p
}

func (c *handlerContext) invokeConnect(remote, local net.Addr, p api.ChannelPromise) {
	c.runOutbound(p, func() {
		if !c.invokeHandler() {
			c.Connect(remote, local, p)
			return
		}
		c.callOutbound(p, func() error { return c.outbound.Connect(c, remote, local, p) })
	})
}

func (c *handlerContext) Disconnect(p api.ChannelPromise) api.ChannelFuture {
	p, ok := c.prepare(p)
	if !ok {
		return p
	}
	if next := c.findOutbound(); next != nil {
		next.invokeDisconnect(p)
	}
	return p
}

func (c *handlerContext) invokeDisconnect(p api.ChannelPromise) {
	c.runOutbound(p, func() {
		if !c.invokeHandler() {
			c.Disconnect(p)
			return
		}
		c.callOutbound(p, func() error { return c.outbound.Disconnect(c, p) })
	})
}

func (c *handlerContext) Close(p api.ChannelPromise) api.ChannelFuture {
	p, ok := c.prepare(p)
	if !ok {
		return p
	}
	if next := c.findOutbound(); next != nil {
		next.invokeClose(p)
	}
	return p
}

func (c *handlerContext) invokeClose(p api.ChannelPromise) {
	c.runOutbound(p, func() {
		if !c.invokeHandler() {
			c.Close(p)
			return
		}
		c.callOutbound(p, func() error { return c.outbound.Close(c, p) })
	})
}

func (c *handlerContext) Deregister(p api.ChannelPromise) api.ChannelFuture {
	p, ok := c.prepare(p)
	if !ok {
		return p
	}
	if next := c.findOutbound(); next != nil {
		next.invokeDeregister(p)
	}
	return p
}

func (c *handlerContext) invokeDeregister(p api.ChannelPromise) {
	c.runOutbound(p, func() {
		if !c.invokeHandler() {
			c.Deregister(p)
			return
		}
		c.callOutbound(p, func() error { return c.outbound.Deregister(c, p) })
	})
}

func (c *handlerContext) Read() {
	if next := c.findOutbound(); next != nil {
		next.invokeRead()
	}
}

func (c *handlerContext) invokeRead() {
	c.run(func() {
		if !c.invokeHandler() {
			c.Read()
			return
		}
		c.callOutboundNoPromise(func() error { return c.outbound.Read(c) })
	})
}

func (c *handlerContext) Write(msg any, p api.ChannelPromise) api.ChannelFuture {
	p, ok := c.prepare(p)
	if !ok {
		return p
	}
	if next := c.findOutbound(); next != nil {
		next.invokeWrite(msg, p)
	}
	return p
}

func (c *handlerContext) invokeWrite(msg any, p api.ChannelPromise) {
	c.runOutbound(p, func() {
		if !c.invokeHandler() {
			c.Write(msg, p)
			return
		}
		c.callOutbound(p, func() error { return c.outbound.Write(c, msg, p) })
	})
}

func (c *handlerContext) Flush() {
	if next := c.findOutbound(); next != nil {
		next.invokeFlush()
	}
}

func (c *handlerContext) invokeFlush() {
	c.run(func() {
		if !c.invokeHandler() {
			c.Flush()
			return
		}
		c.callOutboundNoPromise(func() error { return c.outbound.Flush(c) })
	})
}

func (c *handlerContext) WriteAndFlush(msg any, p api.ChannelPromise) api.ChannelFuture {
	f := c.Write(msg, p)
	c.Flush()
	return f
}

func (c *handlerContext) NewPromise() api.ChannelPromise {
	return NewChannelPromise(c.pipeline.channel)
}

func (c *handlerContext) NewSucceededFuture() api.ChannelFuture {
	return NewSucceededChannelFuture(c.pipeline.channel)
}

func (c *handlerContext) NewFailedFuture(cause error) api.ChannelFuture {
	return NewFailedChannelFuture(c.pipeline.channel, cause)
}
