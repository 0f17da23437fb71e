// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, logging, runtime metrics and debug introspection for
// hioload-pipeline.
//
// Provides concurrent-safe state handling primitives including:
//   - Typed configuration loaded from TOML, YAML and the environment
//   - Validation of configuration values
//   - A reloadable config store with file watching
//   - Structured logging with a runtime-adjustable level
//   - Counters and debug probes for diagnostics
package control
