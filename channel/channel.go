// File: channel/channel.go
// Package channel implements the channel, its pipeline and handler contexts.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A DefaultChannel is bound to one event loop and one transport for its whole
// life. Only the transport moves it through the lifecycle; every transition
// is validated here and then reported through the pipeline.

package channel

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/momentics/hioload-pipeline/adapters"
	"github.com/momentics/hioload-pipeline/api"
)

// ErrNoEventLoop rejects a channel without an event loop.
var ErrNoEventLoop = errors.New("channel requires an event loop")

// ErrNoTransport rejects a channel without a transport.
var ErrNoTransport = errors.New("channel requires a transport")

type options struct {
	id       api.ChannelID
	hasID    bool
	sink     api.DiagnosticSink
	logger   *slog.Logger
	autoRead bool
}

// Option configures a DefaultChannel.
type Option func(*options)

// WithID fixes the channel id instead of generating one.
func WithID(id api.ChannelID) Option {
	return func(o *options) {
		o.id = id
		o.hasID = true
	}
}

// WithDiagnosticSink sets where unconsumed events end up.
func WithDiagnosticSink(s api.DiagnosticSink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithAutoRead sets the initial auto-read flag (default true).
func WithAutoRead(autoRead bool) Option {
	return func(o *options) {
		o.autoRead = autoRead
	}
}

// DefaultChannel implements api.TransportChannel.
type DefaultChannel struct {
	id        api.ChannelID
	loop      api.EventLoop
	transport api.Transport
	pipeline  *DefaultPipeline
	logger    *slog.Logger

	state       atomic.Int32
	writable    atomic.Bool
	autoRead    atomic.Bool
	closeFuture *DefaultChannelPromise
	attrs       *attributes
}

var _ api.TransportChannel = (*DefaultChannel)(nil)

// New creates an unregistered channel served by t on loop and attaches t.
func New(loop api.EventLoop, t api.Transport, opts ...Option) (*DefaultChannel, error) {
	if loop == nil {
		return nil, ErrNoEventLoop
	}
	if t == nil {
		return nil, ErrNoTransport
	}
	o := options{
		logger:   slog.Default(),
		autoRead: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasID {
		o.id = api.NewChannelID()
	}
	logger := o.logger.With("channel", o.id.ShortText())
	if o.sink == nil {
		o.sink = adapters.NewDiagnosticSink(logger, nil)
	}

	c := &DefaultChannel{
		id:        o.id,
		loop:      loop,
		transport: t,
		logger:    logger,
		attrs:     newAttributes(),
	}
	c.writable.Store(true)
	c.autoRead.Store(o.autoRead)
	c.pipeline = newPipeline(c, o.sink, logger)
	c.closeFuture = NewChannelPromise(c)
	t.Attach(c)
	return c, nil
}

func (c *DefaultChannel) ID() api.ChannelID        { return c.id }
func (c *DefaultChannel) EventLoop() api.EventLoop { return c.loop }
func (c *DefaultChannel) Pipeline() api.Pipeline   { return c.pipeline }

func (c *DefaultChannel) State() api.ChannelState {
	return api.ChannelState(c.state.Load())
}

func (c *DefaultChannel) IsRegistered() bool {
	s := c.State()
	return s == api.StateRegistered || s == api.StateActive || s == api.StateInactive
}

func (c *DefaultChannel) IsActive() bool   { return c.State() == api.StateActive }
func (c *DefaultChannel) IsWritable() bool { return c.writable.Load() }
func (c *DefaultChannel) AutoRead() bool   { return c.autoRead.Load() }

// SetAutoRead toggles auto-read; switching it on while active requests a read.
func (c *DefaultChannel) SetAutoRead(autoRead bool) {
	if !c.autoRead.Swap(autoRead) && autoRead && c.IsActive() {
		c.Read()
	}
}

func (c *DefaultChannel) LocalAddr() net.Addr  { return c.transport.LocalAddr() }
func (c *DefaultChannel) RemoteAddr() net.Addr { return c.transport.RemoteAddr() }

func (c *DefaultChannel) CloseFuture() api.ChannelFuture { return c.closeFuture }

func (c *DefaultChannel) Attr(key string) (any, bool)   { return c.attrs.get(key) }
func (c *DefaultChannel) SetAttr(key string, value any) { c.attrs.set(key, value) }
func (c *DefaultChannel) DeleteAttr(key string)         { c.attrs.delete(key) }
func (c *DefaultChannel) AttrKeys() []string            { return c.attrs.keys() }

func (c *DefaultChannel) String() string {
	return fmt.Sprintf("[id: %s, state: %s, local: %v, remote: %v]",
		c.id.ShortText(), c.State(), c.LocalAddr(), c.RemoteAddr())
}

// ---- lifecycle, driven by the transport ----

func (c *DefaultChannel) transition(to api.ChannelState) (api.ChannelState, error) {
	for {
		from := c.State()
		if !from.CanTransition(to) {
			return from, &api.TransitionError{From: from, To: to}
		}
		if c.state.CompareAndSwap(int32(from), int32(to)) {
			c.logger.Debug("channel state changed", "from", from, "to", to)
			return from, nil
		}
	}
}

func (c *DefaultChannel) MarkRegistered() error {
	if _, err := c.transition(api.StateRegistered); err != nil {
		return err
	}
	c.pipeline.FireChannelRegistered()
	return nil
}

func (c *DefaultChannel) MarkActive() error {
	if _, err := c.transition(api.StateActive); err != nil {
		return err
	}
	c.pipeline.FireChannelActive()
	return nil
}

func (c *DefaultChannel) MarkInactive() error {
	if _, err := c.transition(api.StateInactive); err != nil {
		return err
	}
	c.closeFuture.TrySuccess()
	c.pipeline.FireChannelInactive()
	return nil
}

func (c *DefaultChannel) MarkUnregistered() error {
	from, err := c.transition(api.StateUnregistered)
	if err != nil {
		return err
	}
	c.pipeline.FireChannelUnregistered()
	if from == api.StateInactive {
		c.pipeline.releaseHandlers()
	}
	return nil
}

// SetWritable records the transport's writability and reports changes.
func (c *DefaultChannel) SetWritable(writable bool) {
	if c.writable.Swap(writable) != writable {
		c.pipeline.FireChannelWritabilityChanged()
	}
}

// ---- outbound, from the pipeline tail ----

func (c *DefaultChannel) Bind(local net.Addr, p api.ChannelPromise) api.ChannelFuture {
	return c.pipeline.Bind(local, p)
}

func (c *DefaultChannel) Connect(remote, local net.Addr, p api.ChannelPromise) api.ChannelFuture {
	return c.pipeline.Connect(remote, local, p)
}

func (c *DefaultChannel) Disconnect(p api.ChannelPromise) api.ChannelFuture {
	return c.pipeline.Disconnect(p)
}

func (c *DefaultChannel) Close(p api.ChannelPromise) api.ChannelFuture {
	return c.pipeline.Close(p)
}

func (c *DefaultChannel) Deregister(p api.ChannelPromise) api.ChannelFuture {
	return c.pipeline.Deregister(p)
}

func (c *DefaultChannel) Read() { c.pipeline.Read() }

func (c *DefaultChannel) Write(msg any, p api.ChannelPromise) api.ChannelFuture {
	return c.pipeline.Write(msg, p)
}

func (c *DefaultChannel) Flush() { c.pipeline.Flush() }

func (c *DefaultChannel) WriteAndFlush(msg any, p api.ChannelPromise) api.ChannelFuture {
	return c.pipeline.WriteAndFlush(msg, p)
}

func (c *DefaultChannel) NewPromise() api.ChannelPromise { return NewChannelPromise(c) }

func (c *DefaultChannel) NewSucceededFuture() api.ChannelFuture {
	return NewSucceededChannelFuture(c)
}

func (c *DefaultChannel) NewFailedFuture(cause error) api.ChannelFuture {
	return NewFailedChannelFuture(c, cause)
}
