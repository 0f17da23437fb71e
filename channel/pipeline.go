// File: channel/pipeline.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DefaultPipeline is the handler chain of one channel, framed by a head node
// that talks to the transport and a tail node that reports whatever nobody
// consumed to the diagnostic sink.

package channel

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"reflect"
	"sync"

	"github.com/momentics/hioload-pipeline/api"
)

const (
	headName = "HeadContext#0"
	tailName = "TailContext#0"
)

// DefaultPipeline implements api.Pipeline.
type DefaultPipeline struct {
	channel *DefaultChannel
	head    *handlerContext
	tail    *handlerContext
	sink    api.DiagnosticSink
	logger  *slog.Logger

	mu    sync.Mutex // serialises structural changes
	names map[string]*handlerContext
}

var _ api.Pipeline = (*DefaultPipeline)(nil)

func newPipeline(ch *DefaultChannel, sink api.DiagnosticSink, logger *slog.Logger) *DefaultPipeline {
	p := &DefaultPipeline{
		channel: ch,
		sink:    sink,
		logger:  logger,
		names:   make(map[string]*handlerContext),
	}
	p.head, _ = newHandlerContext(p, headName, &headHandler{channel: ch})
	p.tail, _ = newHandlerContext(p, tailName, &tailHandler{pipeline: p})
	p.head.next.Store(p.tail)
	p.tail.prev.Store(p.head)
	p.head.state.Store(ctxAddComplete)
	p.tail.state.Store(ctxAddComplete)
	return p
}

func (p *DefaultPipeline) Channel() api.Channel { return p.channel }

// ---- mutation ----

func (p *DefaultPipeline) AddFirst(name string, h api.Handler) error {
	return p.add(name, h, func() (*handlerContext, error) { return p.head, nil })
}

func (p *DefaultPipeline) AddLast(name string, h api.Handler) error {
	return p.add(name, h, func() (*handlerContext, error) { return p.tail.prev.Load(), nil })
}

func (p *DefaultPipeline) AddBefore(baseName, name string, h api.Handler) error {
	return p.add(name, h, func() (*handlerContext, error) {
		base, err := p.mustContext(baseName)
		if err != nil {
			return nil, err
		}
		return base.prev.Load(), nil
	})
}

func (p *DefaultPipeline) AddAfter(baseName, name string, h api.Handler) error {
	return p.add(name, h, func() (*handlerContext, error) {
		return p.mustContext(baseName)
	})
}

// add links a new context after the node returned by anchor. anchor runs
// under the pipeline lock.
func (p *DefaultPipeline) add(name string, h api.Handler, anchor func() (*handlerContext, error)) error {
	if h == nil {
		return fmt.Errorf("add handler %q: %w", name, api.ErrNilHandler)
	}
	p.mu.Lock()
	after, err := anchor()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if name == "" {
		name = p.generateName(h)
	} else if _, dup := p.names[name]; dup {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", api.ErrDuplicateName, name)
	}
	ctx, err := newHandlerContext(p, name, h)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	owned, err := acquire(h)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	ctx.owned.Store(owned)
	ctx.state.Store(ctxAddPending)
	p.linkAfter(after, ctx)
	p.names[name] = ctx
	p.mu.Unlock()

	p.callHandlerAdded(ctx)
	return nil
}

func (p *DefaultPipeline) linkAfter(after, ctx *handlerContext) {
	next := after.next.Load()
	ctx.prev.Store(after)
	ctx.next.Store(next)
	next.prev.Store(ctx)
	after.next.Store(ctx)
}

// generateName derives "<Type>#<n>" for unnamed handlers. Caller holds mu.
func (p *DefaultPipeline) generateName(h api.Handler) string {
	t := reflect.TypeOf(h)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	base := t.Name()
	if base == "" {
		base = "handler"
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s#%d", base, i)
		if _, taken := p.names[name]; !taken {
			return name
		}
	}
}

func (p *DefaultPipeline) Remove(name string) (api.Handler, error) {
	p.mu.Lock()
	ctx, err := p.mustContext(name)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.unlink(ctx)
	p.mu.Unlock()

	p.callHandlerRemoved(ctx)
	return ctx.handler, nil
}

func (p *DefaultPipeline) RemoveHandler(h api.Handler) error {
	ctx, ok := p.ContextOf(h).(*handlerContext)
	if !ok || ctx == nil {
		return fmt.Errorf("remove %T: %w", h, api.ErrHandlerNotFound)
	}
	_, err := p.Remove(ctx.name)
	return err
}

func (p *DefaultPipeline) RemoveFirst() (api.Handler, error) {
	p.mu.Lock()
	first := p.head.next.Load()
	p.mu.Unlock()
	if first == p.tail {
		return nil, fmt.Errorf("remove first: %w", api.ErrHandlerNotFound)
	}
	return p.Remove(first.name)
}

func (p *DefaultPipeline) RemoveLast() (api.Handler, error) {
	p.mu.Lock()
	last := p.tail.prev.Load()
	p.mu.Unlock()
	if last == p.head {
		return nil, fmt.Errorf("remove last: %w", api.ErrHandlerNotFound)
	}
	return p.Remove(last.name)
}

// unlink detaches ctx from its neighbours. ctx keeps its own links so walks
// positioned on it continue to the survivors. Caller holds mu.
func (p *DefaultPipeline) unlink(ctx *handlerContext) {
	prev := ctx.prev.Load()
	next := ctx.next.Load()
	prev.next.Store(next)
	next.prev.Store(prev)
	ctx.removed.Store(true)
	delete(p.names, ctx.name)
	release(ctx)
}

// releaseHandlers gives up the single-pipeline claims of every linked
// handler once the channel is closed for good; the handlers stay linked.
func (p *DefaultPipeline) releaseHandlers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ctx := p.head.next.Load(); ctx != p.tail; ctx = ctx.next.Load() {
		release(ctx)
	}
}

func (p *DefaultPipeline) Replace(oldName, newName string, h api.Handler) (api.Handler, error) {
	if h == nil {
		return nil, fmt.Errorf("replace %q: %w", oldName, api.ErrNilHandler)
	}
	p.mu.Lock()
	old, err := p.mustContext(oldName)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	if newName == "" {
		newName = p.generateName(h)
	} else if _, dup := p.names[newName]; dup && newName != oldName {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", api.ErrDuplicateName, newName)
	}
	ctx, err := newHandlerContext(p, newName, h)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	owned, err := acquire(h)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	ctx.owned.Store(owned)
	ctx.state.Store(ctxAddPending)

	prev := old.prev.Load()
	next := old.next.Load()
	ctx.prev.Store(prev)
	ctx.next.Store(next)
	prev.next.Store(ctx)
	next.prev.Store(ctx)
	// walks still positioned on old continue through the replacement
	old.prev.Store(ctx)
	old.next.Store(ctx)
	old.removed.Store(true)
	delete(p.names, oldName)
	p.names[newName] = ctx
	release(old)
	p.mu.Unlock()

	p.callHandlerAdded(ctx)
	p.callHandlerRemoved(old)
	return old.handler, nil
}

func (p *DefaultPipeline) ReplaceHandler(old api.Handler, newName string, h api.Handler) error {
	ctx, ok := p.ContextOf(old).(*handlerContext)
	if !ok || ctx == nil {
		return fmt.Errorf("replace %T: %w", old, api.ErrHandlerNotFound)
	}
	_, err := p.Replace(ctx.name, newName, h)
	return err
}

func (p *DefaultPipeline) callHandlerAdded(ctx *handlerContext) {
	ctx.run(func() {
		err := safeCall(func() error { return ctx.handler.HandlerAdded(ctx) })
		ctx.state.CompareAndSwap(ctxAddPending, ctxAddComplete)
		if err == nil {
			return
		}
		removed := false
		p.mu.Lock()
		if !ctx.removed.Load() {
			p.unlink(ctx)
			removed = true
		}
		p.mu.Unlock()
		if removed {
			p.callHandlerRemoved(ctx)
		}
		p.FireExceptionCaught(fmt.Errorf("%w: %q: %w", api.ErrHandlerAdd, ctx.name, err))
	})
}

func (p *DefaultPipeline) callHandlerRemoved(ctx *handlerContext) {
	ctx.run(func() {
		if ctx.state.Swap(ctxInit) != ctxAddComplete {
			return
		}
		if err := safeCall(func() error { return ctx.handler.HandlerRemoved(ctx) }); err != nil {
			p.FireExceptionCaught(fmt.Errorf("handler %q failed in HandlerRemoved: %w", ctx.name, err))
		}
	})
}

// ---- inspection ----

// mustContext looks up a user context by name. Caller holds mu.
func (p *DefaultPipeline) mustContext(name string) (*handlerContext, error) {
	ctx, ok := p.names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", api.ErrHandlerNotFound, name)
	}
	return ctx, nil
}

func (p *DefaultPipeline) Get(name string) api.Handler {
	if ctx := p.Context(name); ctx != nil {
		return ctx.Handler()
	}
	return nil
}

func (p *DefaultPipeline) Context(name string) api.HandlerContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx, ok := p.names[name]; ok {
		return ctx
	}
	return nil
}

func (p *DefaultPipeline) ContextOf(h api.Handler) api.HandlerContext {
	if h == nil {
		return nil
	}
	for ctx := p.head.next.Load(); ctx != p.tail; ctx = ctx.next.Load() {
		if sameHandler(ctx.handler, h) {
			return ctx
		}
	}
	return nil
}

func (p *DefaultPipeline) First() api.Handler {
	if ctx := p.FirstContext(); ctx != nil {
		return ctx.Handler()
	}
	return nil
}

func (p *DefaultPipeline) Last() api.Handler {
	if ctx := p.LastContext(); ctx != nil {
		return ctx.Handler()
	}
	return nil
}

func (p *DefaultPipeline) FirstContext() api.HandlerContext {
	if first := p.head.next.Load(); first != p.tail {
		return first
	}
	return nil
}

func (p *DefaultPipeline) LastContext() api.HandlerContext {
	if last := p.tail.prev.Load(); last != p.head {
		return last
	}
	return nil
}

// Names lists handler names from head to tail.
func (p *DefaultPipeline) Names() []string {
	var names []string
	for ctx := p.head.next.Load(); ctx != p.tail; ctx = ctx.next.Load() {
		names = append(names, ctx.name)
	}
	return names
}

func (p *DefaultPipeline) String() string {
	return fmt.Sprintf("DefaultPipeline%v", p.Names())
}

// ---- inbound, from the head ----

func (p *DefaultPipeline) FireChannelRegistered()         { p.head.invokeChannelRegistered() }
func (p *DefaultPipeline) FireChannelUnregistered()       { p.head.invokeChannelUnregistered() }
func (p *DefaultPipeline) FireChannelActive()             { p.head.invokeChannelActive() }
func (p *DefaultPipeline) FireChannelInactive()           { p.head.invokeChannelInactive() }
func (p *DefaultPipeline) FireChannelRead(msg any)        { p.head.invokeChannelRead(msg) }
func (p *DefaultPipeline) FireChannelReadComplete()       { p.head.invokeChannelReadComplete() }
func (p *DefaultPipeline) FireUserEventTriggered(evt any) { p.head.invokeUserEventTriggered(evt) }
func (p *DefaultPipeline) FireChannelWritabilityChanged() { p.head.invokeChannelWritabilityChanged() }
func (p *DefaultPipeline) FireExceptionCaught(err error)  { p.head.invokeExceptionCaught(err) }

// ---- outbound, from the tail ----

func (p *DefaultPipeline) Bind(local net.Addr, pr api.ChannelPromise) api.ChannelFuture {
	return p.tail.Bind(local, pr)
}

func (p *DefaultPipeline) Connect(remote, local net.Addr, pr api.ChannelPromise) api.ChannelFuture {
	return p.tail.Connect(remote, local, pr)
}

func (p *DefaultPipeline) Disconnect(pr api.ChannelPromise) api.ChannelFuture {
	return p.tail.Disconnect(pr)
}

func (p *DefaultPipeline) Close(pr api.ChannelPromise) api.ChannelFuture {
	return p.tail.Close(pr)
}

func (p *DefaultPipeline) Deregister(pr api.ChannelPromise) api.ChannelFuture {
	return p.tail.Deregister(pr)
}

func (p *DefaultPipeline) Read() { p.tail.Read() }

func (p *DefaultPipeline) Write(msg any, pr api.ChannelPromise) api.ChannelFuture {
	return p.tail.Write(msg, pr)
}

func (p *DefaultPipeline) Flush() { p.tail.Flush() }

func (p *DefaultPipeline) WriteAndFlush(msg any, pr api.ChannelPromise) api.ChannelFuture {
	return p.tail.WriteAndFlush(msg, pr)
}

func (p *DefaultPipeline) NewPromise() api.ChannelPromise { return NewChannelPromise(p.channel) }

func (p *DefaultPipeline) NewSucceededFuture() api.ChannelFuture {
	return NewSucceededChannelFuture(p.channel)
}

func (p *DefaultPipeline) NewFailedFuture(cause error) api.ChannelFuture {
	return NewFailedChannelFuture(p.channel, cause)
}

// ---- lookup by type ----

// FindHandler returns the first handler in p assignable to T.
func FindHandler[T any](p api.Pipeline) (T, bool) {
	if ctx, ok := FindContext[T](p); ok {
		return ctx.Handler().(T), true
	}
	var zero T
	return zero, false
}

// FindContext returns the context of the first handler assignable to T.
func FindContext[T any](p api.Pipeline) (api.HandlerContext, bool) {
	for _, name := range p.Names() {
		ctx := p.Context(name)
		if ctx == nil {
			continue
		}
		if _, ok := ctx.Handler().(T); ok {
			return ctx, true
		}
	}
	return nil, false
}

// IsNotFound reports whether err came from a lookup of a missing handler.
func IsNotFound(err error) bool {
	return errors.Is(err, api.ErrHandlerNotFound)
}
