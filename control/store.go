// control/store.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with snapshot reads and reload listeners.

package control

import (
	"sync"
)

// ReloadFunc observes a configuration change.
type ReloadFunc func(old, updated *Config)

// Store holds the current configuration. Readers get a snapshot pointer that
// must be treated as immutable.
type Store struct {
	mu        sync.RWMutex
	config    *Config
	listeners []ReloadFunc
}

// NewStore initializes a store with cfg, or the defaults when cfg is nil.
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{config: cfg}
}

// Snapshot returns the current configuration.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Update validates cfg, swaps it in and notifies listeners in registration
// order on the calling goroutine. An invalid cfg leaves the store untouched.
func (s *Store) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	old := s.config
	s.config = cfg
	listeners := make([]ReloadFunc, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(old, cfg)
	}
	return nil
}

// OnReload registers a listener called after each successful Update.
func (s *Store) OnReload(fn ReloadFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
