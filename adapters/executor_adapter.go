// File: adapters/executor_adapter.go
// Package adapters provides glue between internal concurrency and the api
// executor contracts.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/momentics/hioload-pipeline/api"
	"github.com/momentics/hioload-pipeline/control"
	"github.com/momentics/hioload-pipeline/internal/concurrency"
)

// ExecutorAdapter exposes an internal event-loop group as api.EventLoopGroup
// and knows its configured shutdown budget.
type ExecutorAdapter struct {
	group           *concurrency.EventLoopGroup
	shutdownTimeout time.Duration
}

var (
	_ api.EventLoopGroup   = (*ExecutorAdapter)(nil)
	_ api.GracefulShutdown = (*ExecutorAdapter)(nil)
)

// NewExecutorAdapter starts the loops described by cfg.
func NewExecutorAdapter(cfg control.EventLoopConfig, logger *slog.Logger) *ExecutorAdapter {
	g := concurrency.NewEventLoopGroup(concurrency.GroupOptions{
		Threads:   cfg.Threads,
		BatchSize: cfg.BatchSize,
		PinCPUs:   cfg.PinCPUs,
		Logger:    logger,
	})
	return &ExecutorAdapter{
		group:           g,
		shutdownTimeout: time.Duration(cfg.ShutdownTimeoutMillis) * time.Millisecond,
	}
}

func (ea *ExecutorAdapter) Next() api.EventLoop    { return ea.group.Next() }
func (ea *ExecutorAdapter) Loops() []api.EventLoop { return ea.group.Loops() }

// Shutdown drains every loop within ctx.
func (ea *ExecutorAdapter) Shutdown(ctx context.Context) error {
	return ea.group.Shutdown(ctx)
}

// Close shuts down within the configured timeout, unbounded when it is zero.
func (ea *ExecutorAdapter) Close() error {
	ctx := context.Background()
	if ea.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ea.shutdownTimeout)
		defer cancel()
	}
	return ea.group.Shutdown(ctx)
}

// RegisterProbes publishes the queue depth of every loop on dp.
func (ea *ExecutorAdapter) RegisterProbes(dp *control.DebugProbes) {
	for i, l := range ea.group.Loops() {
		loop := l
		dp.RegisterProbe(fmt.Sprintf("eventloop.%d.pending", i), func() any {
			return loop.Pending()
		})
	}
	dp.RegisterProbe("eventloop.pending_total", func() any {
		return ea.group.Pending()
	})
}
