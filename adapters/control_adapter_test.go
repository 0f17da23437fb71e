package adapters_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-pipeline/adapters"
	"github.com/momentics/hioload-pipeline/channel"
	"github.com/momentics/hioload-pipeline/control"
	"github.com/momentics/hioload-pipeline/fake"
)

func newTestChannel(t *testing.T, sink *adapters.DiagnosticSink) (*channel.DefaultChannel, *fake.Transport) {
	t.Helper()
	tr := fake.NewTransport()
	var opts []channel.Option
	if sink != nil {
		opts = append(opts, channel.WithDiagnosticSink(sink))
	}
	ch, err := channel.New(fake.NewEventLoop(), tr, opts...)
	require.NoError(t, err)
	return ch, tr
}

func TestDiagnosticSinkCountsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := control.NewMetricsRegistry()
	sink := adapters.NewDiagnosticSink(logger, metrics)
	ch, tr := newTestChannel(t, sink)
	require.NoError(t, tr.Activate())

	tr.Receive("one", "two")
	ch.Pipeline().FireUserEventTriggered("evt")
	ch.Pipeline().FireExceptionCaught(errors.New("kaput"))

	assert.EqualValues(t, 2, metrics.Counter(adapters.MetricUnhandledMessages))
	assert.EqualValues(t, 1, metrics.Counter(adapters.MetricUnhandledEvents))
	assert.EqualValues(t, 1, metrics.Counter(adapters.MetricUnhandledExceptions))
	out := buf.String()
	assert.Contains(t, out, "kaput")
	assert.Contains(t, out, "discarded inbound message")
	assert.Contains(t, out, ch.ID().ShortText())
}

func TestDiagnosticSinkMessageLoggingToggle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := control.NewMetricsRegistry()
	sink := adapters.NewDiagnosticSink(logger, metrics)
	sink.SetLogUnhandledMessages(false)

	sink.UnhandledMessage(nil, "quiet")
	assert.Empty(t, buf.String())
	assert.EqualValues(t, 1, metrics.Counter(adapters.MetricUnhandledMessages))
}

func TestDiagnosticSinkWithoutRegistry(t *testing.T) {
	sink := adapters.NewDiagnosticSink(nil, nil)
	assert.NotPanics(t, func() {
		sink.UnhandledException(nil, errors.New("x"))
		sink.UnhandledMessage(nil, 1)
		sink.UnhandledEvent(nil, 2)
	})
}

func TestControlAdapterFollowsReload(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := control.NewStore(nil)
	ctrl := adapters.NewControlAdapter(store, logger)
	assert.Same(t, store, ctrl.Store())
	assert.True(t, ctrl.Config().Diagnostics.LogUnhandledMessages)

	cfg := *store.Snapshot()
	cfg.Diagnostics.LogUnhandledMessages = false
	require.NoError(t, store.Update(&cfg))
	assert.False(t, ctrl.Config().Diagnostics.LogUnhandledMessages)

	ctrl.DiagnosticSink().UnhandledMessage(nil, "muted")
	assert.NotContains(t, buf.String(), "discarded inbound message")
	assert.EqualValues(t, 1, ctrl.Metrics().Counter(adapters.MetricUnhandledMessages))
}

func TestControlAdapterStats(t *testing.T) {
	ctrl := adapters.NewControlAdapter(nil, nil)
	ctrl.Metrics().Inc("requests")
	ctrl.Metrics().Set("mode", "test")
	ctrl.RegisterDebugProbe("answer", func() any { return 42 })

	stats := ctrl.Stats()
	assert.EqualValues(t, 1, stats["requests"])
	assert.Equal(t, "test", stats["mode"])
	assert.Equal(t, 42, stats["debug.answer"])
	assert.Contains(t, stats, "debug.platform.cpus")
	assert.Contains(t, ctrl.Probes().Names(), "answer")
}
