// File: channel/attributes.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-channel key/value attributes shared by the handlers of one pipeline.

package channel

import (
	"sort"
	"sync"
)

// attributes is a thread-safe attribute map.
type attributes struct {
	mu    sync.RWMutex
	store map[string]any
}

func newAttributes() *attributes {
	return &attributes{
		store: make(map[string]any),
	}
}

func (a *attributes) get(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.store[key]
	return v, ok
}

func (a *attributes) set(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.store[key] = value
}

func (a *attributes) delete(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.store, key)
}

// keys returns all keys in sorted order.
func (a *attributes) keys() []string {
	a.mu.RLock()
	keys := make([]string, 0, len(a.store))
	for k := range a.store {
		keys = append(keys, k)
	}
	a.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
