// File: channel/promise.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channel

import (
	"github.com/momentics/hioload-pipeline/api"
	"github.com/momentics/hioload-pipeline/promise"
)

// DefaultChannelPromise is a void promise bound to a channel. Its listeners
// run on the channel's event loop.
type DefaultChannelPromise struct {
	*promise.Promise[promise.Void]
	channel api.Channel
}

var _ api.ChannelPromise = (*DefaultChannelPromise)(nil)

// NewChannelPromise creates a pending promise owned by ch.
func NewChannelPromise(ch api.Channel) *DefaultChannelPromise {
	var exec promise.Executor
	if loop := ch.EventLoop(); loop != nil {
		exec = loop
	}
	return &DefaultChannelPromise{
		Promise: promise.New[promise.Void](exec),
		channel: ch,
	}
}

// NewSucceededChannelFuture returns a completed channel future.
func NewSucceededChannelFuture(ch api.Channel) *DefaultChannelPromise {
	p := NewChannelPromise(ch)
	p.TrySuccess()
	return p
}

// NewFailedChannelFuture returns a failed channel future.
func NewFailedChannelFuture(ch api.Channel, cause error) *DefaultChannelPromise {
	p := NewChannelPromise(ch)
	p.TryFailure(cause)
	return p
}

func (p *DefaultChannelPromise) Channel() api.Channel { return p.channel }

func (p *DefaultChannelPromise) SetSuccess() error {
	return p.Promise.SetSuccess(promise.Void{})
}

func (p *DefaultChannelPromise) TrySuccess() bool {
	return p.Promise.TrySuccess(promise.Void{})
}
