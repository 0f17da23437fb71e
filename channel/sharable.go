// File: channel/sharable.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide bookkeeping of non-sharable handler instances currently linked
// into some pipeline.

package channel

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/momentics/hioload-pipeline/api"
)

var inUse sync.Map // api.Handler -> struct{}

// tracked reports whether h is subject to the single-pipeline rule. Values of
// non-comparable type (func handlers) cannot be told apart and are exempt, as
// are stateless zero-size handlers, whose pointers may all be equal.
func tracked(h api.Handler) bool {
	if s, ok := h.(api.Sharable); ok && s.IsSharable() {
		return false
	}
	t := reflect.TypeOf(h)
	if !t.Comparable() {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Size() > 0
}

// acquire claims h for one pipeline and reports whether a claim was taken.
func acquire(h api.Handler) (bool, error) {
	if !tracked(h) {
		return false, nil
	}
	if _, loaded := inUse.LoadOrStore(h, struct{}{}); loaded {
		return false, fmt.Errorf("%w: %T", api.ErrHandlerNotShareable, h)
	}
	return true, nil
}

// release drops the claim held by ctx, if any.
func release(ctx *handlerContext) {
	if ctx.owned.Swap(false) {
		inUse.Delete(ctx.handler)
	}
}

func sameHandler(a, b api.Handler) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
