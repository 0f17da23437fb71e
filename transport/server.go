// File: transport/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TCP acceptor: every accepted connection becomes a channel on the next loop
// of the group, initialised by the caller and then started.

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/momentics/hioload-pipeline/api"
	"github.com/momentics/hioload-pipeline/channel"
	"github.com/momentics/hioload-pipeline/promise"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("server closed")

// ChannelInitializer sets up the pipeline of a freshly accepted channel
// before it is registered.
type ChannelInitializer func(ch *channel.DefaultChannel) error

// ServerConfig configures a Server.
type ServerConfig struct {
	Group            api.EventLoopGroup
	Initializer      ChannelInitializer
	ChannelOptions   []channel.Option
	TransportOptions []Option
	Logger           *slog.Logger
}

// Server accepts TCP connections into channels.
type Server struct {
	cfg    ServerConfig
	logger *slog.Logger

	mu       sync.Mutex
	ln       net.Listener
	closed   bool
	channels map[api.ChannelID]*channel.DefaultChannel
}

// NewServer creates a server; nothing is opened until Serve.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		channels: make(map[api.ChannelID]*channel.DefaultChannel),
	}
}

// ListenAndServe listens on the TCP address addr and serves until ctx ends
// or Close is called.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp listen failed: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("listening", "addr", ln.Addr().String())
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if s.isClosed() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.logger.Warn("accept error, retrying", "err", err, "backoff", backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		s.accept(conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

func (s *Server) accept(conn net.Conn) {
	t := NewConnTransport(conn, append([]Option{WithLogger(s.logger)}, s.cfg.TransportOptions...)...)
	opts := append([]channel.Option{channel.WithLogger(s.logger)}, s.cfg.ChannelOptions...)
	ch, err := channel.New(s.cfg.Group.Next(), t, opts...)
	if err != nil {
		s.logger.Warn("channel creation failed", "remote", conn.RemoteAddr(), "err", err)
		conn.Close()
		return
	}
	if s.cfg.Initializer != nil {
		if err := s.cfg.Initializer(ch); err != nil {
			s.logger.Warn("channel initialisation failed", "remote", conn.RemoteAddr(), "err", err)
			conn.Close()
			return
		}
	}

	s.mu.Lock()
	s.channels[ch.ID()] = ch
	s.mu.Unlock()
	ch.CloseFuture().AddListener(promise.ListenerFunc[promise.Void](func(promise.Future[promise.Void]) {
		s.mu.Lock()
		delete(s.channels, ch.ID())
		s.mu.Unlock()
	}))

	if err := t.Start(); err != nil {
		s.logger.Warn("channel start failed", "remote", conn.RemoteAddr(), "err", err)
		conn.Close()
		s.mu.Lock()
		delete(s.channels, ch.ID())
		s.mu.Unlock()
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Addr returns the listening address, nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Channels returns the number of open channels.
func (s *Server) Channels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

// Close stops accepting, closes every open channel and waits for their
// close futures or ctx.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	open := make([]*channel.DefaultChannel, 0, len(s.channels))
	for _, ch := range s.channels {
		open = append(open, ch)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, ch := range open {
		ch.Close(nil)
	}
	for _, ch := range open {
		if err := ch.CloseFuture().Await(ctx); err != nil {
			return err
		}
	}
	return nil
}
