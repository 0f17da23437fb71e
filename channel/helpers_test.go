package channel_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-pipeline/adapters"
	"github.com/momentics/hioload-pipeline/api"
	"github.com/momentics/hioload-pipeline/channel"
	"github.com/momentics/hioload-pipeline/fake"
	"github.com/momentics/hioload-pipeline/promise"
)

type fixture struct {
	ch   *channel.DefaultChannel
	tr   *fake.Transport
	sink *fake.Sink
	rec  *fake.Recorder
}

func newFixture(t *testing.T, opts ...channel.Option) *fixture {
	t.Helper()
	return newFixtureOn(t, fake.NewEventLoop(), opts...)
}

func newFixtureOn(t *testing.T, loop api.EventLoop, opts ...channel.Option) *fixture {
	t.Helper()
	f := &fixture{
		tr:   fake.NewTransport(),
		sink: &fake.Sink{},
		rec:  &fake.Recorder{},
	}
	ch, err := channel.New(loop, f.tr, append([]channel.Option{channel.WithDiagnosticSink(f.sink)}, opts...)...)
	require.NoError(t, err)
	f.ch = ch
	return f
}

// addRecorders appends one recording handler per name and clears the trace.
func (f *fixture) addRecorders(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, f.ch.Pipeline().AddLast(n, fake.NewRecordingHandler(n, f.rec)))
	}
	f.rec.Reset()
}

// scripted is a duplex pass-through whose callbacks can be overridden.
type scripted struct {
	adapters.DuplexHandlerAdapter
	onAdded     func(ctx api.HandlerContext) error
	onRemoved   func(ctx api.HandlerContext) error
	onRead      func(ctx api.HandlerContext, msg any) error
	onException func(ctx api.HandlerContext, err error) error
	onWrite     func(ctx api.HandlerContext, msg any, p api.ChannelPromise) error
	onReadOp    func(ctx api.HandlerContext) error
	onClose     func(ctx api.HandlerContext, p api.ChannelPromise) error
}

func (h *scripted) HandlerAdded(ctx api.HandlerContext) error {
	if h.onAdded != nil {
		return h.onAdded(ctx)
	}
	return nil
}

func (h *scripted) HandlerRemoved(ctx api.HandlerContext) error {
	if h.onRemoved != nil {
		return h.onRemoved(ctx)
	}
	return nil
}

func (h *scripted) ChannelRead(ctx api.HandlerContext, msg any) error {
	if h.onRead != nil {
		return h.onRead(ctx, msg)
	}
	return h.DuplexHandlerAdapter.ChannelRead(ctx, msg)
}

func (h *scripted) ExceptionCaught(ctx api.HandlerContext, err error) error {
	if h.onException != nil {
		return h.onException(ctx, err)
	}
	return h.DuplexHandlerAdapter.ExceptionCaught(ctx, err)
}

func (h *scripted) Write(ctx api.HandlerContext, msg any, p api.ChannelPromise) error {
	if h.onWrite != nil {
		return h.onWrite(ctx, msg, p)
	}
	return h.DuplexHandlerAdapter.Write(ctx, msg, p)
}

func (h *scripted) Read(ctx api.HandlerContext) error {
	if h.onReadOp != nil {
		return h.onReadOp(ctx)
	}
	return h.DuplexHandlerAdapter.Read(ctx)
}

func (h *scripted) Close(ctx api.HandlerContext, p api.ChannelPromise) error {
	if h.onClose != nil {
		return h.onClose(ctx, p)
	}
	return h.DuplexHandlerAdapter.Close(ctx, p)
}

// lifecycleOnly implements neither direction.
type lifecycleOnly struct{ adapters.HandlerAdapter }

type sharedCounter struct {
	adapters.InboundHandlerAdapter
	adapters.Sharable
}

type listenerFunc func()

func (f listenerFunc) OperationComplete(promise.Future[promise.Void]) { f() }
