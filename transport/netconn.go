// File: transport/netconn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ConnTransport drives one channel over a net.Conn. Reads happen on a
// dedicated goroutine, one per BeginRead request; writes queue on the event
// loop and go out as a single vectored write on Flush.

package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/momentics/hioload-pipeline/api"
)

// ErrNotAttached is returned by Start before a channel was attached.
var ErrNotAttached = errors.New("transport not attached to a channel")

const (
	defaultReadBufferSize = 4096
	defaultLowWaterMark   = 32 << 10
	defaultHighWaterMark  = 64 << 10
	defaultDialTimeout    = 10 * time.Second
)

type config struct {
	readBufferSize int
	lowWaterMark   int
	highWaterMark  int
	dialTimeout    time.Duration
	logger         *slog.Logger
}

// Option configures a ConnTransport.
type Option func(*config)

// WithReadBufferSize sets the size of a single read.
func WithReadBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.readBufferSize = n
		}
	}
}

// WithWriteBufferWaterMarks sets the queued-bytes thresholds at which the
// channel becomes unwritable (above high) and writable again (at or below
// low).
func WithWriteBufferWaterMarks(low, high int) Option {
	return func(c *config) {
		if low >= 0 && high >= low {
			c.lowWaterMark, c.highWaterMark = low, high
		}
	}
}

// WithDialTimeout bounds Connect.
func WithDialTimeout(d time.Duration) Option {
	return func(c *config) { c.dialTimeout = d }
}

// WithLogger sets the transport logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

type queuedWrite struct {
	data []byte
	p    api.ChannelPromise
}

// ConnTransport implements api.Transport over a net.Conn.
type ConnTransport struct {
	cfg config
	ch  api.TransportChannel

	mu           sync.Mutex
	conn         net.Conn
	bindAddr     net.Addr
	connecting   bool
	closed       bool
	pending      []queuedWrite
	pendingBytes int

	readReq chan struct{}
	done    chan struct{}
}

var _ api.Transport = (*ConnTransport)(nil)

// NewConnTransport wraps an established connection, typically an accepted
// one. The channel becomes active on Start.
func NewConnTransport(conn net.Conn, opts ...Option) *ConnTransport {
	t := NewDialTransport(opts...)
	t.conn = conn
	return t
}

// NewDialTransport creates an unconnected transport that dials on Connect.
func NewDialTransport(opts ...Option) *ConnTransport {
	cfg := config{
		readBufferSize: defaultReadBufferSize,
		lowWaterMark:   defaultLowWaterMark,
		highWaterMark:  defaultHighWaterMark,
		dialTimeout:    defaultDialTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &ConnTransport{
		cfg:     cfg,
		readReq: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Attach implements api.Transport.
func (t *ConnTransport) Attach(ch api.TransportChannel) {
	t.ch = ch
	t.cfg.logger = t.cfg.logger.With("channel", ch.ID().ShortText())
}

// Start registers the channel on its loop and, for a wrapped connection,
// activates it.
func (t *ConnTransport) Start() error {
	if t.ch == nil {
		return ErrNotAttached
	}
	return t.ch.EventLoop().Execute(func() {
		if err := t.ch.MarkRegistered(); err != nil {
			t.cfg.logger.Warn("channel registration failed", "err", err)
			return
		}
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			t.activate(conn)
		}
	})
}

func (t *ConnTransport) activate(conn net.Conn) {
	go t.readLoop(conn)
	if err := t.ch.MarkActive(); err != nil {
		t.cfg.logger.Warn("channel activation failed", "err", err)
	}
}

func (t *ConnTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *ConnTransport) readLoop(conn net.Conn) {
	buf := make([]byte, t.cfg.readBufferSize)
	p := t.ch.Pipeline()
	for {
		select {
		case <-t.readReq:
		case <-t.done:
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			msg := make([]byte, n)
			copy(msg, buf[:n])
			p.FireChannelRead(msg)
		}
		if err == nil {
			p.FireChannelReadComplete()
			continue
		}
		if n > 0 {
			p.FireChannelReadComplete()
		}
		if t.isClosed() {
			return
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			p.FireExceptionCaught(fmt.Errorf("read: %w", err))
		}
		t.ch.Close(nil)
		return
	}
}

// BeginRead asks the reader goroutine for one more read. Requests coalesce.
func (t *ConnTransport) BeginRead() {
	select {
	case t.readReq <- struct{}{}:
	default:
	}
}

func (t *ConnTransport) Bind(local net.Addr, p api.ChannelPromise) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil || t.connecting {
		p.TryFailure(fmt.Errorf("bind on connected transport: %w", api.ErrIllegalState))
		return
	}
	t.bindAddr = local
	p.TrySuccess()
}

// Connect dials remote off the loop and activates the channel once the
// connection is up. The promise completes before ChannelActive fires.
func (t *ConnTransport) Connect(remote, local net.Addr, p api.ChannelPromise) {
	if remote == nil {
		p.TryFailure(fmt.Errorf("connect: nil remote address: %w", api.ErrIllegalState))
		return
	}
	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		p.TryFailure(api.ErrTransportClosed)
		return
	case t.conn != nil || t.connecting:
		t.mu.Unlock()
		p.TryFailure(fmt.Errorf("connect: already connected: %w", api.ErrIllegalState))
		return
	}
	t.connecting = true
	if local == nil {
		local = t.bindAddr
	}
	t.mu.Unlock()

	d := net.Dialer{Timeout: t.cfg.dialTimeout, LocalAddr: local}
	go func() {
		conn, err := d.Dial(remote.Network(), remote.String())
		execErr := t.ch.EventLoop().Execute(func() { t.connected(conn, err, remote, p) })
		if execErr != nil {
			if conn != nil {
				conn.Close()
			}
			p.TryFailure(execErr)
		}
	}()
}

func (t *ConnTransport) connected(conn net.Conn, err error, remote net.Addr, p api.ChannelPromise) {
	t.mu.Lock()
	t.connecting = false
	if err == nil && t.closed {
		conn.Close()
		err = api.ErrTransportClosed
	}
	if err == nil {
		t.conn = conn
	}
	t.mu.Unlock()

	if err != nil {
		p.TryFailure(fmt.Errorf("connect %s: %w", remote, err))
		return
	}
	if !p.TrySuccess() {
		// cancelled while dialing
		t.ch.Close(nil)
		return
	}
	t.activate(conn)
}

// Write queues msg, which must be []byte or string, until Flush.
func (t *ConnTransport) Write(msg any, p api.ChannelPromise) {
	var data []byte
	switch m := msg.(type) {
	case []byte:
		data = m
	case string:
		data = []byte(m)
	default:
		p.TryFailure(fmt.Errorf("%w: %T", api.ErrUnsupportedMessage, msg))
		return
	}

	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		p.TryFailure(api.ErrTransportClosed)
		return
	case t.conn == nil:
		t.mu.Unlock()
		p.TryFailure(fmt.Errorf("write before connect: %w", api.ErrIllegalState))
		return
	}
	t.pending = append(t.pending, queuedWrite{data: data, p: p})
	t.pendingBytes += len(data)
	unwritable := t.pendingBytes > t.cfg.highWaterMark
	t.mu.Unlock()

	if unwritable {
		t.ch.SetWritable(false)
	}
}

// Flush writes every queued message in one vectored write and completes
// their promises with the outcome.
func (t *ConnTransport) Flush() {
	t.mu.Lock()
	batch := t.pending
	t.pending = nil
	t.pendingBytes = 0
	conn := t.conn
	t.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	bufs := make(net.Buffers, len(batch))
	for i, w := range batch {
		bufs[i] = w.data
	}
	_, err := bufs.WriteTo(conn)
	for _, w := range batch {
		if err != nil {
			w.p.TryFailure(fmt.Errorf("write: %w", err))
		} else {
			w.p.TrySuccess()
		}
	}

	t.mu.Lock()
	writable := t.pendingBytes <= t.cfg.lowWaterMark
	t.mu.Unlock()
	if writable {
		t.ch.SetWritable(true)
	}
	if err != nil && !t.isClosed() {
		t.ch.Pipeline().FireExceptionCaught(fmt.Errorf("flush: %w", err))
		t.ch.Close(nil)
	}
}

func (t *ConnTransport) Disconnect(p api.ChannelPromise) {
	t.Close(p)
}

// Close closes the connection, fails queued writes and walks the channel to
// Unregistered. Closing a closed transport succeeds.
func (t *ConnTransport) Close(p api.ChannelPromise) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		p.TrySuccess()
		return
	}
	t.closed = true
	conn := t.conn
	pending := t.pending
	t.pending = nil
	t.pendingBytes = 0
	close(t.done)
	t.mu.Unlock()

	var closeErr error
	if conn != nil {
		closeErr = conn.Close()
	}
	for _, w := range pending {
		w.p.TryFailure(api.ErrTransportClosed)
	}
	if t.ch.IsActive() {
		if err := t.ch.MarkInactive(); err != nil {
			t.cfg.logger.Warn("channel deactivation failed", "err", err)
		}
	}
	if t.ch.IsRegistered() {
		if err := t.ch.MarkUnregistered(); err != nil {
			t.cfg.logger.Warn("channel deregistration failed", "err", err)
		}
	}
	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		p.TryFailure(fmt.Errorf("close: %w", closeErr))
		return
	}
	p.TrySuccess()
}

// Deregister leaves a registered, never activated channel.
func (t *ConnTransport) Deregister(p api.ChannelPromise) {
	if err := t.ch.MarkUnregistered(); err != nil {
		p.TryFailure(err)
		return
	}
	p.TrySuccess()
}

func (t *ConnTransport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn.LocalAddr()
	}
	return t.bindAddr
}

func (t *ConnTransport) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn.RemoteAddr()
	}
	return nil
}
