// File: api/promise.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "github.com/momentics/hioload-pipeline/promise"

// ChannelFuture is the read side of a channel operation outcome.
type ChannelFuture interface {
	promise.Future[promise.Void]
	Channel() Channel
}

// ChannelPromise is the writable outcome of a channel operation. Outbound
// handlers forward it unchanged; the transport completes it.
type ChannelPromise interface {
	ChannelFuture
	SetSuccess() error
	TrySuccess() bool
	SetFailure(cause error) error
	TryFailure(cause error) bool
}
