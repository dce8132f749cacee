// internal/logging/async_writer.go
package logging

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// AsyncWriter decouples log emission from disk latency. Write queues a
// copy of the entry and returns; a background goroutine coalesces
// queued entries into a pending buffer and hands the underlying writer
// one Write per flush. A flush happens when the pending buffer reaches
// CoalesceBytes or when FlushInterval elapses, whichever comes first.
type AsyncWriter struct {
	dst   io.Writer
	queue chan []byte
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	coalesceBytes int
	interval      time.Duration
}

// AsyncWriterConfig tunes queueing and flush behavior.
type AsyncWriterConfig struct {
	// QueueDepth is the number of entries that may wait unflushed
	// before Write starts blocking.
	QueueDepth int
	// CoalesceBytes triggers a flush once this many bytes are pending.
	CoalesceBytes int
	// FlushInterval bounds how long an entry can sit in the pending
	// buffer before it reaches the underlying writer.
	FlushInterval time.Duration
}

// DefaultAsyncWriterConfig returns the tuning used for log files.
func DefaultAsyncWriterConfig() AsyncWriterConfig {
	return AsyncWriterConfig{
		QueueDepth:    10000,
		CoalesceBytes: 32 << 10,
		FlushInterval: 100 * time.Millisecond,
	}
}

// NewAsyncWriter wraps w with the default tuning.
func NewAsyncWriter(w io.Writer) *AsyncWriter {
	return NewAsyncWriterWithConfig(w, DefaultAsyncWriterConfig())
}

// NewAsyncWriterWithConfig wraps w with explicit tuning. Zero and
// negative values fall back to the defaults.
func NewAsyncWriterWithConfig(w io.Writer, cfg AsyncWriterConfig) *AsyncWriter {
	def := DefaultAsyncWriterConfig()
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = def.QueueDepth
	}
	if cfg.CoalesceBytes <= 0 {
		cfg.CoalesceBytes = def.CoalesceBytes
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}

	aw := &AsyncWriter{
		dst:           w,
		queue:         make(chan []byte, cfg.QueueDepth),
		done:          make(chan struct{}),
		coalesceBytes: cfg.CoalesceBytes,
		interval:      cfg.FlushInterval,
	}
	go aw.run()
	return aw
}

// Write implements io.Writer. The entry is copied and queued; when the
// queue is full the call blocks until the flusher catches up, entries
// are never dropped. After Close it returns io.ErrClosedPipe.
func (aw *AsyncWriter) Write(p []byte) (int, error) {
	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.closed {
		return 0, io.ErrClosedPipe
	}
	aw.queue <- bytes.Clone(p)
	return len(p), nil
}

func (aw *AsyncWriter) run() {
	defer close(aw.done)

	ticker := time.NewTicker(aw.interval)
	defer ticker.Stop()

	var pending bytes.Buffer
	flush := func() {
		if pending.Len() == 0 {
			return
		}
		_, _ = aw.dst.Write(pending.Bytes())
		if f, ok := aw.dst.(interface{ Flush() error }); ok {
			_ = f.Flush()
		}
		pending.Reset()
	}

	for {
		select {
		case entry, ok := <-aw.queue:
			if !ok {
				flush()
				return
			}
			pending.Write(entry)
			if pending.Len() >= aw.coalesceBytes {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close drains the queue, flushes the pending buffer, and closes the
// underlying writer if it implements io.Closer.
func (aw *AsyncWriter) Close() error {
	aw.mu.Lock()
	if aw.closed {
		aw.mu.Unlock()
		return nil
	}
	aw.closed = true
	aw.mu.Unlock()

	// Senders hold the read lock across their queue send, so once the
	// write lock above has been held no send is in flight and closing
	// the channel is safe.
	close(aw.queue)
	<-aw.done

	if c, ok := aw.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
