// File: api/pipeline.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Pipeline is the ordered handler chain of one channel. Inbound Fire methods
// start at the head, outbound operations at the tail. Mutation is safe from
// any goroutine; handler lifecycle callbacks run on the channel's loop.
type Pipeline interface {
	Inbound
	Outbound

	Channel() Channel

	AddFirst(name string, h Handler) error
	AddLast(name string, h Handler) error
	AddBefore(baseName, name string, h Handler) error
	AddAfter(baseName, name string, h Handler) error

	Remove(name string) (Handler, error)
	RemoveHandler(h Handler) error
	RemoveFirst() (Handler, error)
	RemoveLast() (Handler, error)

	Replace(oldName, newName string, h Handler) (Handler, error)
	ReplaceHandler(old Handler, newName string, h Handler) error

	Get(name string) Handler
	Context(name string) HandlerContext
	ContextOf(h Handler) HandlerContext
	First() Handler
	Last() Handler
	FirstContext() HandlerContext
	LastContext() HandlerContext
	Names() []string
}
