// internal/logging/level_filter.go
package logging

import (
	"context"
	"log/slog"
)

// LevelFilter drops records below a minimum level before they reach the
// wrapped handler. The security channel uses it to keep routine traffic
// out of security.log even though the file handler itself accepts
// everything. The minimum may be a *slog.LevelVar for runtime adjustment.
type LevelFilter struct {
	next slog.Handler
	min  slog.Leveler
}

// NewLevelFilter wraps next so only records at min or above pass through.
func NewLevelFilter(next slog.Handler, min slog.Leveler) *LevelFilter {
	return &LevelFilter{next: next, min: min}
}

func (f *LevelFilter) admits(level slog.Level) bool {
	return level >= f.min.Level()
}

// Enabled reports whether a record at the given level would be written.
func (f *LevelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return f.admits(level) && f.next.Enabled(ctx, level)
}

// Handle forwards the record when it meets the minimum.
func (f *LevelFilter) Handle(ctx context.Context, r slog.Record) error {
	if !f.admits(r.Level) {
		return nil
	}
	return f.next.Handle(ctx, r)
}

// WithAttrs derives the wrapped handler, keeping the filter in place.
func (f *LevelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelFilter{next: f.next.WithAttrs(attrs), min: f.min}
}

// WithGroup derives the wrapped handler, keeping the filter in place.
func (f *LevelFilter) WithGroup(name string) slog.Handler {
	return &LevelFilter{next: f.next.WithGroup(name), min: f.min}
}
