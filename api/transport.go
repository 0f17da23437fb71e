// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Transport is the I/O side a channel's pipeline terminates in. The pipeline
// head forwards every outbound operation to it, always from the channel's
// event loop.

package api

import "net"

// Transport performs the real I/O for one channel.
type Transport interface {
	// Attach binds the transport to the channel it serves. Called once by the
	// channel constructor.
	Attach(ch TransportChannel)

	Bind(local net.Addr, p ChannelPromise)
	Connect(remote, local net.Addr, p ChannelPromise)
	Disconnect(p ChannelPromise)
	Close(p ChannelPromise)
	Deregister(p ChannelPromise)
	BeginRead()
	Write(msg any, p ChannelPromise)
	Flush()

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}
