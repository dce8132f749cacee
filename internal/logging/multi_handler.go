// internal/logging/multi_handler.go
package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler fans one record stream out to several handlers: console,
// application log and security channel all see the same records.
type MultiHandler struct {
	targets []slog.Handler
}

// NewMultiHandler creates a handler that forwards to all targets.
func NewMultiHandler(targets ...slog.Handler) *MultiHandler {
	return &MultiHandler{targets: targets}
}

// Enabled reports whether any target would accept the level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, t := range m.targets {
		if t.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle forwards the record to every target that accepts its level. A
// failing console must not keep a security event out of the file, so all
// targets run and the errors come back joined.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, t := range m.targets {
		if !t.Enabled(ctx, r.Level) {
			continue
		}
		if err := t.Handle(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// derive clones the fan-out with each target transformed.
func (m *MultiHandler) derive(transform func(slog.Handler) slog.Handler) slog.Handler {
	targets := make([]slog.Handler, len(m.targets))
	for i, t := range m.targets {
		targets[i] = transform(t)
	}
	return &MultiHandler{targets: targets}
}

// WithAttrs binds the attributes on every target.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(t slog.Handler) slog.Handler { return t.WithAttrs(attrs) })
}

// WithGroup opens the group on every target.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.derive(func(t slog.Handler) slog.Handler { return t.WithGroup(name) })
}
