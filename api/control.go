// File: api/control.go
// Package api defines Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control exposes runtime statistics and debug probes of a running instance.
type Control interface {
	// Stats returns counters and evaluated probes by name.
	Stats() map[string]any
	// RegisterDebugProbe adds or replaces a named probe.
	RegisterDebugProbe(name string, fn func() any)
}
