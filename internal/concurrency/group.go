// File: internal/concurrency/group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/momentics/hioload-pipeline/api"
)

// GroupOptions configures an EventLoopGroup.
type GroupOptions struct {
	// Threads is the number of loops; <= 0 means runtime.NumCPU().
	Threads int
	// BatchSize is passed to every loop.
	BatchSize int
	// PinCPUs pins loop i to PinCPUs[i%len(PinCPUs)] when non-empty.
	PinCPUs []int
	Logger  *slog.Logger
}

// EventLoopGroup hands out its loops round-robin.
type EventLoopGroup struct {
	loops []*EventLoop
	next  atomic.Uint64
}

var _ api.EventLoopGroup = (*EventLoopGroup)(nil)

// NewEventLoopGroup starts opts.Threads loops.
func NewEventLoopGroup(opts GroupOptions) *EventLoopGroup {
	n := opts.Threads
	if n <= 0 {
		n = runtime.NumCPU()
	}
	g := &EventLoopGroup{loops: make([]*EventLoop, n)}
	for i := range g.loops {
		lo := Options{
			Name:      fmt.Sprintf("eventloop-%d", i),
			BatchSize: opts.BatchSize,
			Logger:    opts.Logger,
		}
		if len(opts.PinCPUs) > 0 {
			lo.Pin = true
			lo.CPU = opts.PinCPUs[i%len(opts.PinCPUs)]
		}
		g.loops[i] = NewEventLoop(lo)
	}
	return g
}

func (g *EventLoopGroup) Next() api.EventLoop {
	return g.loops[(g.next.Add(1)-1)%uint64(len(g.loops))]
}

func (g *EventLoopGroup) Loops() []api.EventLoop {
	out := make([]api.EventLoop, len(g.loops))
	for i, l := range g.loops {
		out[i] = l
	}
	return out
}

// Pending sums the queued tasks of all loops.
func (g *EventLoopGroup) Pending() int {
	total := 0
	for _, l := range g.loops {
		total += l.Pending()
	}
	return total
}

// Shutdown shuts every loop down concurrently and joins their errors.
func (g *EventLoopGroup) Shutdown(ctx context.Context) error {
	errs := make([]error, len(g.loops))
	done := make(chan struct{}, len(g.loops))
	for i, l := range g.loops {
		go func(i int, l *EventLoop) {
			errs[i] = l.Shutdown(ctx)
			done <- struct{}{}
		}(i, l)
	}
	for range g.loops {
		<-done
	}
	return errors.Join(errs...)
}
