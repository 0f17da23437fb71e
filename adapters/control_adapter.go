// File: adapters/control_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Glue between the control package and the channel runtime: a diagnostic
// sink that logs and counts what falls off the pipeline tail, and a control
// facade bundling config, metrics and probes.

package adapters

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/momentics/hioload-pipeline/api"
	"github.com/momentics/hioload-pipeline/control"
)

// Metric keys maintained by DiagnosticSink.
const (
	MetricUnhandledExceptions = "pipeline.unhandled_exceptions"
	MetricUnhandledMessages   = "pipeline.unhandled_messages"
	MetricUnhandledEvents     = "pipeline.unhandled_events"
)

// DiagnosticSink implements api.DiagnosticSink on slog and MetricsRegistry.
type DiagnosticSink struct {
	logger      *slog.Logger
	metrics     *control.MetricsRegistry
	logMessages atomic.Bool
}

var _ api.DiagnosticSink = (*DiagnosticSink)(nil)

// NewDiagnosticSink creates a sink. A nil logger uses slog.Default; a nil
// registry disables counting.
func NewDiagnosticSink(logger *slog.Logger, metrics *control.MetricsRegistry) *DiagnosticSink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DiagnosticSink{logger: logger, metrics: metrics}
	s.logMessages.Store(true)
	return s
}

// SetLogUnhandledMessages toggles logging of discarded messages. They are
// counted either way.
func (s *DiagnosticSink) SetLogUnhandledMessages(on bool) {
	s.logMessages.Store(on)
}

func (s *DiagnosticSink) UnhandledException(ch api.Channel, err error) {
	s.count(MetricUnhandledExceptions)
	s.logger.Warn("exception reached the tail of the pipeline; add a handler that handles it",
		"channel", channelID(ch), "err", err)
}

func (s *DiagnosticSink) UnhandledMessage(ch api.Channel, msg any) {
	s.count(MetricUnhandledMessages)
	if s.logMessages.Load() {
		s.logger.Debug("discarded inbound message that reached the tail of the pipeline",
			"channel", channelID(ch), "type", fmt.Sprintf("%T", msg))
	}
}

func (s *DiagnosticSink) UnhandledEvent(ch api.Channel, evt any) {
	s.count(MetricUnhandledEvents)
	s.logger.Debug("discarded user event that reached the tail of the pipeline",
		"channel", channelID(ch), "type", fmt.Sprintf("%T", evt))
}

func (s *DiagnosticSink) count(key string) {
	if s.metrics != nil {
		s.metrics.Inc(key)
	}
}

func channelID(ch api.Channel) string {
	if ch == nil {
		return ""
	}
	return ch.ID().ShortText()
}

// ControlAdapter bundles the configuration store, metrics and debug probes
// of one runtime instance.
type ControlAdapter struct {
	config  *control.Store
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
	sink    *DiagnosticSink
}

var _ api.Control = (*ControlAdapter)(nil)

// NewControlAdapter wires a control facade around store. Platform probes are
// registered and the sink follows the diagnostics section on reload.
func NewControlAdapter(store *control.Store, logger *slog.Logger) *ControlAdapter {
	if store == nil {
		store = control.NewStore(nil)
	}
	c := &ControlAdapter{
		config:  store,
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
	}
	c.sink = NewDiagnosticSink(logger, c.metrics)
	c.sink.SetLogUnhandledMessages(store.Snapshot().Diagnostics.LogUnhandledMessages)
	store.OnReload(func(_, updated *control.Config) {
		c.sink.SetLogUnhandledMessages(updated.Diagnostics.LogUnhandledMessages)
	})
	control.RegisterPlatformProbes(c.debug)
	return c
}

func (c *ControlAdapter) Config() *control.Config           { return c.config.Snapshot() }
func (c *ControlAdapter) Store() *control.Store             { return c.config }
func (c *ControlAdapter) Metrics() *control.MetricsRegistry { return c.metrics }
func (c *ControlAdapter) Probes() *control.DebugProbes      { return c.debug }
func (c *ControlAdapter) DiagnosticSink() *DiagnosticSink   { return c.sink }

// Stats merges the metrics snapshot with the evaluated probes, the latter
// prefixed with "debug.".
func (c *ControlAdapter) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any, len(stats)+len(debugStats))
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
