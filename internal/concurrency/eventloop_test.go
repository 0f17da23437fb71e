package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T, opts Options) *EventLoop {
	t.Helper()
	el := NewEventLoop(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = el.Shutdown(ctx)
	})
	return el
}

// await runs fn on el and waits for it.
func await(t *testing.T, el *EventLoop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, el.Execute(func() {
		defer close(done)
		fn()
	}))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestExecuteRunsInOrder(t *testing.T) {
	el := newTestLoop(t, Options{BatchSize: 3})
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, el.Execute(func() { got = append(got, i) }))
	}
	await(t, el, func() {})
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	require.Eventually(t, func() bool { return el.Executed() == 11 }, time.Second, time.Millisecond)
}

func TestInEventLoop(t *testing.T) {
	el := newTestLoop(t, Options{Name: "probe"})
	assert.False(t, el.InEventLoop())
	var inside bool
	await(t, el, func() { inside = el.InEventLoop() })
	assert.True(t, inside)
	assert.Equal(t, "probe", el.Name())

	other := newTestLoop(t, Options{})
	var crossed bool
	await(t, el, func() { crossed = other.InEventLoop() })
	assert.False(t, crossed)
}

func TestExecuteRejectsNilTask(t *testing.T) {
	el := newTestLoop(t, Options{})
	assert.ErrorIs(t, el.Execute(nil), ErrNilTask)
}

func TestPanickingTaskDoesNotStopLoop(t *testing.T) {
	el := newTestLoop(t, Options{})
	require.NoError(t, el.Execute(func() { panic("boom") }))
	var ran bool
	await(t, el, func() { ran = true })
	assert.True(t, ran)
	assert.EqualValues(t, 1, el.Panics())
}

func TestShutdownDrainsQueue(t *testing.T) {
	el := NewEventLoop(Options{BatchSize: 1})
	gate := make(chan struct{})
	var ran atomic.Int32
	require.NoError(t, el.Execute(func() { <-gate }))
	for i := 0; i < 5; i++ {
		require.NoError(t, el.Execute(func() { ran.Add(1) }))
	}

	errc := make(chan error, 1)
	go func() { errc <- el.Shutdown(context.Background()) }()
	require.Eventually(t, el.IsShuttingDown, time.Second, time.Millisecond)
	assert.ErrorIs(t, el.Execute(func() {}), ErrEventLoopClosed)

	close(gate)
	require.NoError(t, <-errc)
	assert.EqualValues(t, 5, ran.Load())
	assert.True(t, el.IsTerminated())
	assert.Zero(t, el.Pending())
	assert.ErrorIs(t, el.Execute(func() {}), ErrEventLoopClosed)
}

func TestShutdownAcceptsTasksFromLoop(t *testing.T) {
	el := NewEventLoop(Options{})
	var followUp atomic.Bool
	require.NoError(t, el.Execute(func() {
		assert.NoError(t, el.Shutdown(context.Background()), "shutdown from the loop does not block")
		assert.NoError(t, el.Execute(func() { followUp.Store(true) }))
	}))
	select {
	case <-el.Terminated():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not terminate")
	}
	assert.True(t, followUp.Load())
}

func TestShutdownTimeout(t *testing.T) {
	el := NewEventLoop(Options{})
	gate := make(chan struct{})
	require.NoError(t, el.Execute(func() { <-gate }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := el.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(gate)
	<-el.Terminated()
}

func TestConcurrentExecute(t *testing.T) {
	el := newTestLoop(t, Options{})
	var count int
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = el.Execute(func() { count++ })
			}
		}()
	}
	wg.Wait()
	await(t, el, func() {})
	assert.Equal(t, 800, count)
}

func TestGroupRoundRobin(t *testing.T) {
	g := NewEventLoopGroup(GroupOptions{Threads: 3})
	loops := g.Loops()
	require.Len(t, loops, 3)
	for i := 0; i < 6; i++ {
		assert.Same(t, loops[i%3], g.Next())
	}
	assert.Equal(t, "eventloop-1", g.loops[1].Name())
	assert.Zero(t, g.Pending())

	require.NoError(t, g.Shutdown(context.Background()))
	for _, l := range loops {
		assert.True(t, l.IsShuttingDown())
		assert.ErrorIs(t, l.Execute(func() {}), ErrEventLoopClosed)
	}
}

func TestGroupDefaultsToCPUCount(t *testing.T) {
	g := NewEventLoopGroup(GroupOptions{})
	defer g.Shutdown(context.Background())
	assert.NotEmpty(t, g.Loops())
}
