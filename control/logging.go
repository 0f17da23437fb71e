// control/logging.go
// Author: momentics <momentics@gmail.com>
//
// Structured logger construction with a level that can change at runtime.

package control

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a config level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger builds a logger writing to w in the configured format. The
// returned LevelVar may be adjusted later, see BindLogLevel.
func NewLogger(w io.Writer, cfg LoggingConfig) (*slog.Logger, *slog.LevelVar, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	lv := new(slog.LevelVar)
	lv.Set(level)
	opts := &slog.HandlerOptions{Level: lv}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(h), lv, nil
}

// BindLogLevel keeps lv in sync with the logging level of store.
func BindLogLevel(store *Store, lv *slog.LevelVar) {
	store.OnReload(func(_, updated *Config) {
		if level, err := ParseLevel(updated.Logging.Level); err == nil {
			lv.Set(level)
		}
	})
}
