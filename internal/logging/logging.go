// Package logging provides component scoped structured loggers on top of
// log/slog.
//
// Every component gets its own level so a single subsystem can be turned to
// debug without flooding the rest of the output. The global level is read
// from INTURA_LOG_LEVEL and defaults to warn.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component names used across the module.
const (
	API        = "intura_api"
	Experiment = "chat_model_experiment"
	Usage      = "usage_tracker"
	Release    = "release"
)

var (
	mu         sync.RWMutex
	global     = new(slog.LevelVar)
	components = map[string]*slog.LevelVar{}
	overridden = map[string]bool{}
	base       slog.Handler
)

func init() {
	global.Set(ParseLevel(os.Getenv("INTURA_LOG_LEVEL"), slog.LevelWarn))
	base = newBase(os.Stderr)
}

func newBase(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
}

// ParseLevel maps a level name to a slog.Level, returning fallback for
// unknown or empty names.
func ParseLevel(s string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return fallback
}

// SetOutput redirects all component loggers to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newBase(w)
}

// SetLevel changes the global level. Components without an explicit
// override follow it.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	global.Set(level)
	for name, lv := range components {
		if !overridden[name] {
			lv.Set(level)
		}
	}
}

// SetVerbose switches the global level between debug and info.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
		return
	}
	SetLevel(slog.LevelInfo)
}

// SetComponentLevel overrides the level of a single component.
func SetComponentLevel(name string, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	levelVar(name).Set(level)
	overridden[name] = true
}

// ComponentLevel reports the effective level of a component.
func ComponentLevel(name string) slog.Level {
	mu.Lock()
	defer mu.Unlock()
	return levelVar(name).Level()
}

// WithComponentLevel raises a component to level for the duration of fn and
// restores the previous setting afterwards.
func WithComponentLevel(name string, level slog.Level, fn func()) {
	mu.Lock()
	lv := levelVar(name)
	prev, wasOverridden := lv.Level(), overridden[name]
	lv.Set(level)
	overridden[name] = true
	mu.Unlock()

	defer func() {
		mu.Lock()
		defer mu.Unlock()
		overridden[name] = wasOverridden
		if wasOverridden {
			lv.Set(prev)
		} else {
			lv.Set(global.Level())
		}
	}()
	fn()
}

// Component returns the logger for name.
func Component(name string) *slog.Logger {
	mu.Lock()
	lv := levelVar(name)
	mu.Unlock()
	return slog.New(&handler{level: lv}).With("component", name)
}

// levelVar must be called with mu held.
func levelVar(name string) *slog.LevelVar {
	lv, ok := components[name]
	if !ok {
		lv = new(slog.LevelVar)
		lv.Set(global.Level())
		components[name] = lv
	}
	return lv
}

// handler defers to the current base handler so SetOutput applies to loggers
// that were created before it was called.
type handler struct {
	level *slog.LevelVar
	ops   []func(slog.Handler) slog.Handler
}

func (h *handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	mu.RLock()
	inner := base
	mu.RUnlock()

	for _, op := range h.ops {
		inner = op(inner)
	}
	return inner.Handle(ctx, r)
}

func (h *handler) with(op func(slog.Handler) slog.Handler) *handler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &handler{level: h.level, ops: append(ops, op)}
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(in slog.Handler) slog.Handler { return in.WithAttrs(attrs) })
}

func (h *handler) WithGroup(name string) slog.Handler {
	return h.with(func(in slog.Handler) slog.Handler { return in.WithGroup(name) })
}
