// internal/logging/logger.go
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"secureserve/internal/config"
)

// Sinks opened by NewLogger, closed again by Shutdown.
var (
	closersMu sync.Mutex
	closers   []io.Closer
)

// Initialize builds the process-wide logger from cfg and installs it
// as the slog default.
func Initialize(cfg config.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	slog.Info("Logging initialized",
		"level", cfg.Level,
		"format", cfg.Format,
		"dir", cfg.Dir,
		"console_enabled", cfg.Console.Enabled,
		"file_enabled", cfg.File.Enabled,
		"security_enabled", cfg.Security.Enabled,
	)
	return nil
}

// NewLogger assembles the console, file, and security channels
// described by cfg into one slog.Logger.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	var sinks []slog.Handler

	if cfg.Console.Enabled {
		sinks = append(sinks, newChannelHandler(os.Stdout, cfg.Console.Format, cfg.Console.Level))
	}

	if cfg.File.Enabled {
		// Main log file carries every level the channel admits.
		out := newRotatingSink(cfg, "secureserve.log")
		sinks = append(sinks, newChannelHandler(out, cfg.File.Format, cfg.File.Level))

		// security.log collects bans, blocked paths, and rejected
		// requests in one place, so it only admits warn and error.
		if cfg.Security.Enabled {
			sinks = append(sinks, newSecurityHandler(cfg))
		}
	}

	if len(sinks) == 1 {
		return slog.New(sinks[0]), nil
	}
	return slog.New(NewMultiHandler(sinks...)), nil
}

// Shutdown closes every sink opened since the last call. Buffering
// layers close before the files underneath them, so queued entries
// still reach disk.
func Shutdown() error {
	closersMu.Lock()
	defer closersMu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log sink: %w", err))
		}
	}

	closers = nil
	return errors.Join(errs...)
}

// newSecurityHandler builds the warn-and-above sink behind
// security.log, with optional duplicate suppression.
func newSecurityHandler(cfg config.LoggingConfig) slog.Handler {
	out := newRotatingSink(cfg, "security.log")
	var h slog.Handler = newChannelHandler(out, cfg.File.Format, "warn")
	if cfg.Security.Dedup {
		dh := NewDedupHandler(h)
		registerCloser(dh)
		h = dh
	}
	return NewLevelFilter(h, slog.LevelWarn)
}

// newRotatingSink opens a size-rotated log file, optionally wrapped in
// an AsyncWriter. Whatever it opens is registered for Shutdown.
func newRotatingSink(cfg config.LoggingConfig, name string) io.Writer {
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name),
		MaxSize:    cfg.Rotation.MaxSize,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAge,
		Compress:   cfg.Rotation.Compress,
	}

	if cfg.File.Async {
		// AsyncWriter.Close closes the file underneath it.
		aw := NewAsyncWriter(file)
		registerCloser(aw)
		return aw
	}

	registerCloser(file)
	return file
}

func registerCloser(c io.Closer) {
	closersMu.Lock()
	defer closersMu.Unlock()
	closers = append(closers, c)
}

// newChannelHandler builds a text or json handler writing to w with
// the channel's minimum level.
func newChannelHandler(w io.Writer, format, level string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return NewTextHandler(w, opts)
}

var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// parseLevel maps a config level name to its slog level. Unknown names
// fall back to info so a typo cannot silence logging entirely.
func parseLevel(name string) slog.Level {
	if lvl, ok := levelNames[name]; ok {
		return lvl
	}
	return slog.LevelInfo
}
