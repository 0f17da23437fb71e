package channel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-pipeline/adapters"
	"github.com/momentics/hioload-pipeline/api"
	"github.com/momentics/hioload-pipeline/channel"
	"github.com/momentics/hioload-pipeline/fake"
)

func TestInboundPassesThroughAdapters(t *testing.T) {
	f := newFixture(t)
	f.addRecorders(t, "a", "b")

	f.tr.Receive("hello")

	assert.Equal(t, []string{
		"a.ChannelRead(hello)",
		"b.ChannelRead(hello)",
		"a.ChannelReadComplete",
		"b.ChannelReadComplete",
	}, f.rec.Entries())
	_, msgs, _ := f.sink.Snapshot()
	assert.Equal(t, []any{"hello"}, msgs, "unconsumed message reaches the tail")
}

func TestConsumedMessageStops(t *testing.T) {
	f := newFixture(t)
	var got []any
	require.NoError(t, f.ch.Pipeline().AddLast("drop", adapters.ChannelReadFunc(func(ctx api.HandlerContext, msg any) error {
		got = append(got, msg)
		return nil
	})))
	f.addRecorders(t, "after")

	f.ch.Pipeline().FireChannelRead("x")

	assert.Equal(t, []any{"x"}, got)
	assert.Empty(t, f.rec.Entries())
	_, msgs, _ := f.sink.Snapshot()
	assert.Empty(t, msgs)
}

func TestUserEventReachesSink(t *testing.T) {
	f := newFixture(t)
	f.addRecorders(t, "a")
	f.ch.Pipeline().FireUserEventTriggered("idle")
	assert.Equal(t, []string{"a.UserEventTriggered(idle)"}, f.rec.Entries())
	_, _, events := f.sink.Snapshot()
	assert.Equal(t, []any{"idle"}, events)
}

func TestInboundErrorContinuesAsExceptionAfterHandler(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.addRecorders(t, "before")
	require.NoError(t, f.ch.Pipeline().AddLast("failing", &scripted{
		onRead: func(api.HandlerContext, any) error { return boom },
	}))
	f.addRecorders(t, "after")

	f.ch.Pipeline().FireChannelRead("m")

	assert.Equal(t, []string{
		"before.ChannelRead(m)",
		"after.ExceptionCaught(boom)",
	}, f.rec.Entries(), "the failing handler's predecessors never see the exception")
	exceptions, _, _ := f.sink.Snapshot()
	require.Len(t, exceptions, 1)
	assert.ErrorIs(t, exceptions[0], boom)
}

func TestHandlerPanicBecomesException(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ch.Pipeline().AddLast("panics", &scripted{
		onRead: func(api.HandlerContext, any) error { panic("bad handler") },
	}))

	assert.NotPanics(t, func() { f.ch.Pipeline().FireChannelRead("m") })

	exceptions, _, _ := f.sink.Snapshot()
	require.Len(t, exceptions, 1)
	var pe *api.PanicError
	require.ErrorAs(t, exceptions[0], &pe)
	assert.Equal(t, "bad handler", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestFailingExceptionHandlerGoesToSink(t *testing.T) {
	f := newFixture(t)
	original := errors.New("original")
	secondary := errors.New("secondary")
	calls := 0
	require.NoError(t, f.ch.Pipeline().AddLast("bad", &scripted{
		onException: func(api.HandlerContext, error) error {
			calls++
			return secondary
		},
	}))

	f.ch.Pipeline().FireExceptionCaught(original)

	assert.Equal(t, 1, calls, "exception handling is not re-entered")
	exceptions, _, _ := f.sink.Snapshot()
	require.Len(t, exceptions, 1)
	assert.ErrorIs(t, exceptions[0], secondary)
	assert.Contains(t, exceptions[0].Error(), "original")
}

func TestOutboundWalksTailToHead(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tr.Activate())
	f.addRecorders(t, "a", "b")

	fut := f.ch.WriteAndFlush("out", nil)

	assert.Equal(t, []string{"b.Write(out)", "a.Write(out)", "b.Flush", "a.Flush"}, f.rec.Entries())
	assert.True(t, fut.IsSuccess())
	assert.Equal(t, []any{"out"}, f.tr.Written())
	assert.Same(t, f.ch, fut.Channel())
}

func TestWriteWithoutFlushStaysPending(t *testing.T) {
	f := newFixture(t)
	fut := f.ch.Write("later", nil)
	assert.False(t, fut.IsDone())
	assert.Equal(t, 1, f.tr.PendingWrites())
	f.ch.Flush()
	assert.True(t, fut.IsSuccess())
}

func TestOutboundErrorFailsPromise(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("encode failed")
	require.NoError(t, f.ch.Pipeline().AddLast("encoder", &scripted{
		onWrite: func(api.HandlerContext, any, api.ChannelPromise) error { return boom },
	}))

	fut := f.ch.Write("m", nil)

	assert.ErrorIs(t, fut.Cause(), boom)
	assert.NotContains(t, f.tr.Ops(), "write")
}

func TestOutboundPanicFailsPromise(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ch.Pipeline().AddLast("encoder", &scripted{
		onWrite: func(api.HandlerContext, any, api.ChannelPromise) error { panic("encode") },
	}))
	fut := f.ch.Write("m", nil)
	var pe *api.PanicError
	assert.ErrorAs(t, fut.Cause(), &pe)
}

func TestOutboundErrorAfterCompletionGoesToSink(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("late failure")
	require.NoError(t, f.ch.Pipeline().AddLast("h", &scripted{
		onWrite: func(ctx api.HandlerContext, msg any, p api.ChannelPromise) error {
			p.TrySuccess()
			return boom
		},
	}))
	fut := f.ch.Write("m", nil)
	assert.True(t, fut.IsSuccess())
	exceptions, _, _ := f.sink.Snapshot()
	require.Len(t, exceptions, 1)
	assert.ErrorIs(t, exceptions[0], boom)
}

func TestReadOperationErrorFiresException(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("read refused")
	require.NoError(t, f.ch.Pipeline().AddLast("h", &scripted{
		onReadOp: func(api.HandlerContext) error { return boom },
	}))
	f.ch.Read()
	exceptions, _, _ := f.sink.Snapshot()
	require.Len(t, exceptions, 1)
	assert.ErrorIs(t, exceptions[0], boom)
	assert.Zero(t, f.tr.Reads())
}

func TestCompletedPromiseSkipsOperation(t *testing.T) {
	f := newFixture(t)
	f.addRecorders(t, "a")
	p := f.ch.NewPromise()
	require.True(t, p.Cancel())

	fut := f.ch.Write("m", p)

	assert.True(t, fut.IsCancelled())
	assert.Empty(t, f.rec.Entries())
	assert.NotContains(t, f.tr.Ops(), "write")
}

func TestCloseFromMiddleSkipsLaterHandlers(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tr.Activate())
	f.addRecorders(t, "a")
	var closeFut api.ChannelFuture
	require.NoError(t, f.ch.Pipeline().AddLast("closer", adapters.ChannelReadFunc(func(ctx api.HandlerContext, msg any) error {
		closeFut = ctx.Close(nil)
		return nil
	})))
	f.addRecorders(t, "c")

	f.ch.Pipeline().FireChannelRead("bye")

	require.NotNil(t, closeFut)
	assert.True(t, closeFut.IsSuccess())
	entries := f.rec.Entries()
	assert.Contains(t, entries, "a.Close")
	assert.NotContains(t, entries, "c.Close")
	assert.Contains(t, f.tr.Ops(), "close")
	assert.Equal(t, api.StateUnregistered, f.ch.State())
	assert.True(t, f.ch.CloseFuture().IsSuccess())
}

func TestRemoveSelfDuringDispatch(t *testing.T) {
	f := newFixture(t)
	removed := 0
	require.NoError(t, f.ch.Pipeline().AddLast("once", &scripted{
		onRead: func(ctx api.HandlerContext, msg any) error {
			if _, err := ctx.Pipeline().Remove(ctx.Name()); err != nil {
				return err
			}
			assert.True(t, ctx.IsRemoved())
			ctx.FireChannelRead(msg)
			return nil
		},
		onRemoved: func(api.HandlerContext) error {
			removed++
			return nil
		},
	}))
	f.addRecorders(t, "next")

	f.ch.Pipeline().FireChannelRead(1)
	f.ch.Pipeline().FireChannelRead(2)

	assert.Equal(t, []string{"next.ChannelRead(1)", "next.ChannelRead(2)"}, f.rec.Entries())
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"next"}, f.ch.Pipeline().Names())
}

func TestRemoveSuccessorDuringDispatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ch.Pipeline().AddLast("remover", &scripted{
		onRead: func(ctx api.HandlerContext, msg any) error {
			_, err := ctx.Pipeline().Remove("victim")
			if err != nil {
				return err
			}
			ctx.FireChannelRead(msg)
			return nil
		},
	}))
	f.addRecorders(t, "victim", "survivor")

	f.ch.Pipeline().FireChannelRead("m")

	assert.Equal(t, []string{"victim.HandlerRemoved", "survivor.ChannelRead(m)"}, f.rec.Entries())
}

func TestDeferredLoopQueuesDispatch(t *testing.T) {
	loop := fake.NewDeferredEventLoop()
	f := newFixtureOn(t, loop)
	require.NoError(t, f.ch.Pipeline().AddLast("a", fake.NewRecordingHandler("a", f.rec)))
	assert.Empty(t, f.rec.Entries(), "HandlerAdded runs on the loop")

	f.ch.Pipeline().FireChannelRead("x")
	assert.Empty(t, f.rec.Entries())

	assert.Positive(t, loop.RunPendingTasks())
	assert.Equal(t, []string{"a.HandlerAdded", "a.ChannelRead(x)"}, f.rec.Entries())
}

func TestPromiseListenersRunOnChannelLoop(t *testing.T) {
	loop := fake.NewDeferredEventLoop()
	f := newFixtureOn(t, loop)
	p := f.ch.NewPromise()
	called := false
	p.AddListener(listenerFunc(func() { called = true }))
	p.TrySuccess()
	assert.False(t, called)
	loop.RunPendingTasks()
	assert.True(t, called)
}

func TestAddOrderAndNames(t *testing.T) {
	f := newFixture(t)
	p := f.ch.Pipeline()
	h := func(n string) api.Handler { return fake.NewRecordingHandler(n, f.rec) }

	require.NoError(t, p.AddLast("b", h("b")))
	require.NoError(t, p.AddFirst("a", h("a")))
	require.NoError(t, p.AddLast("d", h("d")))
	require.NoError(t, p.AddBefore("d", "c", h("c")))
	require.NoError(t, p.AddAfter("d", "e", h("e")))

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, p.Names())
	assert.Equal(t, "a", p.FirstContext().Name())
	assert.Equal(t, "e", p.LastContext().Name())
	assert.Same(t, p.Get("a"), p.First())
	assert.Same(t, p.Get("e"), p.Last())

	err := p.AddAfter("missing", "x", h("x"))
	assert.ErrorIs(t, err, api.ErrHandlerNotFound)
	assert.True(t, channel.IsNotFound(err))
}

func TestDuplicateNameRejected(t *testing.T) {
	f := newFixture(t)
	p := f.ch.Pipeline()
	require.NoError(t, p.AddLast("x", fake.NewRecordingHandler("x", f.rec)))
	err := p.AddLast("x", fake.NewRecordingHandler("x2", f.rec))
	assert.ErrorIs(t, err, api.ErrDuplicateName)
	assert.Equal(t, []string{"x"}, p.Names())
}

func TestGeneratedNames(t *testing.T) {
	f := newFixture(t)
	p := f.ch.Pipeline()
	require.NoError(t, p.AddLast("", fake.NewRecordingHandler("1", f.rec)))
	require.NoError(t, p.AddLast("", fake.NewRecordingHandler("2", f.rec)))
	assert.Equal(t, []string{"RecordingHandler#0", "RecordingHandler#1"}, p.Names())
}

func TestNotCapableHandlerRejected(t *testing.T) {
	f := newFixture(t)
	err := f.ch.Pipeline().AddLast("nothing", &lifecycleOnly{})
	assert.ErrorIs(t, err, api.ErrNotCapable)
	assert.Empty(t, f.ch.Pipeline().Names())
}

func TestRemoveVariants(t *testing.T) {
	f := newFixture(t)
	p := f.ch.Pipeline()
	_, err := p.RemoveFirst()
	assert.ErrorIs(t, err, api.ErrHandlerNotFound)
	_, err = p.RemoveLast()
	assert.ErrorIs(t, err, api.ErrHandlerNotFound)

	a := fake.NewRecordingHandler("a", f.rec)
	b := fake.NewRecordingHandler("b", f.rec)
	c := fake.NewRecordingHandler("c", f.rec)
	require.NoError(t, p.AddLast("a", a))
	require.NoError(t, p.AddLast("b", b))
	require.NoError(t, p.AddLast("c", c))
	f.rec.Reset()

	first, err := p.RemoveFirst()
	require.NoError(t, err)
	assert.Same(t, a, first)
	last, err := p.RemoveLast()
	require.NoError(t, err)
	assert.Same(t, c, last)
	require.NoError(t, p.RemoveHandler(b))
	assert.ErrorIs(t, p.RemoveHandler(b), api.ErrHandlerNotFound)
	_, err = p.Remove("a")
	assert.ErrorIs(t, err, api.ErrHandlerNotFound)

	assert.Equal(t, []string{"a.HandlerRemoved", "c.HandlerRemoved", "b.HandlerRemoved"}, f.rec.Entries())
	assert.Empty(t, p.Names())
	assert.Nil(t, p.First())
	assert.Nil(t, p.LastContext())
}

func TestReplace(t *testing.T) {
	f := newFixture(t)
	p := f.ch.Pipeline()
	old := fake.NewRecordingHandler("old", f.rec)
	require.NoError(t, p.AddLast("a", fake.NewRecordingHandler("a", f.rec)))
	require.NoError(t, p.AddLast("old", old))
	require.NoError(t, p.AddLast("z", fake.NewRecordingHandler("z", f.rec)))
	f.rec.Reset()

	got, err := p.Replace("old", "new", fake.NewRecordingHandler("new", f.rec))
	require.NoError(t, err)
	assert.Same(t, old, got)
	assert.Equal(t, []string{"a", "new", "z"}, p.Names())
	assert.Equal(t, []string{"new.HandlerAdded", "old.HandlerRemoved"}, f.rec.Entries())

	f.rec.Reset()
	p.FireChannelRead("m")
	assert.Equal(t, []string{"a.ChannelRead(m)", "new.ChannelRead(m)", "z.ChannelRead(m)"}, f.rec.Entries())

	_, err = p.Replace("new", "a", fake.NewRecordingHandler("dup", f.rec))
	assert.ErrorIs(t, err, api.ErrDuplicateName)
	_, err = p.Replace("missing", "x", fake.NewRecordingHandler("x", f.rec))
	assert.ErrorIs(t, err, api.ErrHandlerNotFound)

	// reusing the old name is allowed
	require.NoError(t, p.ReplaceHandler(p.Get("new"), "new", fake.NewRecordingHandler("newer", f.rec)))
	assert.Equal(t, []string{"a", "new", "z"}, p.Names())
}

func TestHandlerAddedFailureRemovesHandler(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("init failed")
	removed := false
	require.NoError(t, f.ch.Pipeline().AddLast("bad", &scripted{
		onAdded:   func(api.HandlerContext) error { return boom },
		onRemoved: func(api.HandlerContext) error { removed = true; return nil },
	}))

	assert.Empty(t, f.ch.Pipeline().Names())
	assert.True(t, removed)
	exceptions, _, _ := f.sink.Snapshot()
	require.Len(t, exceptions, 1)
	assert.ErrorIs(t, exceptions[0], api.ErrHandlerAdd)
	assert.ErrorIs(t, exceptions[0], boom)
}

func TestNonSharableHandlerSinglePipeline(t *testing.T) {
	f1 := newFixture(t)
	f2 := newFixture(t)
	h := fake.NewRecordingHandler("h", f1.rec)

	require.NoError(t, f1.ch.Pipeline().AddLast("h", h))
	err := f2.ch.Pipeline().AddLast("h", h)
	assert.ErrorIs(t, err, api.ErrHandlerNotShareable)
	assert.Empty(t, f2.ch.Pipeline().Names())

	_, err = f1.ch.Pipeline().Remove("h")
	require.NoError(t, err)
	assert.NoError(t, f2.ch.Pipeline().AddLast("h", h), "a removed handler may be added again")
}

func TestClosedChannelReleasesHandlers(t *testing.T) {
	f1 := newFixture(t)
	f2 := newFixture(t)
	h := fake.NewRecordingHandler("h", f1.rec)
	require.NoError(t, f1.ch.Pipeline().AddLast("h", h))
	require.NoError(t, f1.tr.Activate())
	require.True(t, f1.ch.Close(nil).IsSuccess())

	assert.NoError(t, f2.ch.Pipeline().AddLast("h", h))
	_, err := f1.ch.Pipeline().Remove("h")
	require.NoError(t, err)
	assert.ErrorIs(t, newFixture(t).ch.Pipeline().AddLast("h", h), api.ErrHandlerNotShareable,
		"removing from the closed pipeline must not drop the new owner's claim")
}

func TestSharableHandlerInManyPipelines(t *testing.T) {
	h := &sharedCounter{}
	for i := 0; i < 3; i++ {
		f := newFixture(t)
		require.NoError(t, f.ch.Pipeline().AddLast("shared", h))
	}
}

func TestSameHandlerTwiceInOnePipelineRejected(t *testing.T) {
	f := newFixture(t)
	h := fake.NewRecordingHandler("h", f.rec)
	require.NoError(t, f.ch.Pipeline().AddLast("one", h))
	assert.ErrorIs(t, f.ch.Pipeline().AddLast("two", h), api.ErrHandlerNotShareable)
}

func TestFuncHandlersAreExempt(t *testing.T) {
	f := newFixture(t)
	fn := adapters.ChannelReadFunc(func(ctx api.HandlerContext, msg any) error { return nil })
	require.NoError(t, f.ch.Pipeline().AddLast("one", fn))
	require.NoError(t, f.ch.Pipeline().AddLast("two", fn))
	assert.Nil(t, f.ch.Pipeline().ContextOf(fn))
}

func TestFindByType(t *testing.T) {
	f := newFixture(t)
	p := f.ch.Pipeline()
	rh := fake.NewRecordingHandler("r", f.rec)
	require.NoError(t, p.AddLast("scripted", &scripted{}))
	require.NoError(t, p.AddLast("rec", rh))

	got, ok := channel.FindHandler[*fake.RecordingHandler](p)
	require.True(t, ok)
	assert.Same(t, rh, got)

	ctx, ok := channel.FindContext[*fake.RecordingHandler](p)
	require.True(t, ok)
	assert.Equal(t, "rec", ctx.Name())
	assert.Same(t, ctx, p.ContextOf(rh))
	assert.Same(t, ctx, p.Context("rec"))

	_, ok = channel.FindHandler[*sharedCounter](p)
	assert.False(t, ok)
}

func TestContextAccessors(t *testing.T) {
	f := newFixture(t)
	h := fake.NewRecordingHandler("h", f.rec)
	require.NoError(t, f.ch.Pipeline().AddLast("h", h))
	ctx := f.ch.Pipeline().Context("h")
	require.NotNil(t, ctx)
	assert.Equal(t, "h", ctx.Name())
	assert.Same(t, h, ctx.Handler())
	assert.Same(t, f.ch, ctx.Channel())
	assert.Same(t, f.ch.Pipeline(), ctx.Pipeline())
	assert.Same(t, f.ch.EventLoop(), ctx.Executor())
	assert.False(t, ctx.IsRemoved())
	assert.Contains(t, f.ch.Pipeline().(*channel.DefaultPipeline).String(), "h")
}

func TestStatelessHandlersAreExempt(t *testing.T) {
	a, b := newFixture(t), newFixture(t)
	require.NoError(t, a.ch.Pipeline().AddLast("x", &adapters.InboundHandlerAdapter{}))
	require.NoError(t, b.ch.Pipeline().AddLast("x", &adapters.InboundHandlerAdapter{}))
}

func TestRejectedOutboundFailsPromise(t *testing.T) {
	loop := fake.NewDeferredEventLoop()
	f := newFixtureOn(t, loop)
	require.NoError(t, loop.Shutdown(context.Background()))

	futures := map[string]api.ChannelFuture{
		"close":      f.ch.Close(nil),
		"write":      f.ch.Write("m", nil),
		"bind":       f.ch.Bind(fake.Addr("local"), nil),
		"connect":    f.ch.Connect(fake.Addr("peer"), nil, nil),
		"disconnect": f.ch.Disconnect(nil),
		"deregister": f.ch.Deregister(nil),
	}
	for op, fut := range futures {
		require.True(t, fut.AwaitUninterruptiblyTimeout(time.Second), op)
		assert.False(t, fut.IsSuccess(), op)
		assert.ErrorIs(t, fut.Cause(), api.ErrEventLoopClosed, op)
	}
	assert.Empty(t, f.tr.Ops())
}

func TestRejectedInboundReachesSink(t *testing.T) {
	loop := fake.NewDeferredEventLoop()
	f := newFixtureOn(t, loop)
	require.NoError(t, loop.Shutdown(context.Background()))

	f.ch.Pipeline().FireChannelRead("lost")
	f.ch.Flush()

	exceptions, msgs, _ := f.sink.Snapshot()
	assert.Empty(t, msgs)
	require.Len(t, exceptions, 2)
	for _, err := range exceptions {
		assert.ErrorIs(t, err, api.ErrEventLoopClosed)
	}
}

func TestNilHandlerRejected(t *testing.T) {
	f := newFixture(t)
	p := f.ch.Pipeline()
	require.NoError(t, p.AddLast("a", fake.NewRecordingHandler("a", f.rec)))

	err := p.AddLast("x", nil)
	assert.ErrorIs(t, err, api.ErrNilHandler)
	assert.False(t, channel.IsNotFound(err))

	_, err = p.Replace("a", "b", nil)
	assert.ErrorIs(t, err, api.ErrNilHandler)
	assert.False(t, channel.IsNotFound(err))
	assert.Equal(t, []string{"a"}, p.Names())
}
