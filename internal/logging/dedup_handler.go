// internal/logging/dedup_handler.go
package logging

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DedupHandler wraps a slog.Handler and collapses records that are
// identical apart from their timestamp. A scanner probing one blocked
// path produces a single line with a repeated_count attribute instead
// of one line per attempt. The first occurrence's timestamp is kept.
//
// Records are held back until the batch fills or the flush interval
// elapses, so output lags by at most the flush timeout.
type DedupHandler struct {
	handler slog.Handler
	state   *dedupState
}

// dedupState is shared between a DedupHandler and its WithAttrs and
// WithGroup derivatives, so duplicates collapse across all of them.
type dedupState struct {
	mu      sync.Mutex
	entries map[uint64]*dedupEntry
	order   []uint64

	ticker    *time.Ticker
	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	batchSize int
}

// dedupEntry tracks one unique record and the handler it arrived at.
type dedupEntry struct {
	record slog.Record
	sink   slog.Handler
	count  int
}

// DedupHandlerConfig tunes how long records are held back.
type DedupHandlerConfig struct {
	// BatchSize caps the number of distinct records held before a
	// flush happens inline.
	BatchSize int
	// FlushTimeout bounds how long a record waits before it is
	// written out.
	FlushTimeout time.Duration
}

// DefaultDedupHandlerConfig returns the tuning used for security.log.
func DefaultDedupHandlerConfig() DedupHandlerConfig {
	return DedupHandlerConfig{
		BatchSize:    100,
		FlushTimeout: time.Second,
	}
}

// NewDedupHandler wraps handler with duplicate suppression at the
// default tuning.
func NewDedupHandler(handler slog.Handler) *DedupHandler {
	return NewDedupHandlerWithConfig(handler, DefaultDedupHandlerConfig())
}

// NewDedupHandlerWithConfig wraps handler with explicit tuning.
func NewDedupHandlerWithConfig(handler slog.Handler, cfg DedupHandlerConfig) *DedupHandler {
	s := &dedupState{
		entries:   make(map[uint64]*dedupEntry),
		order:     make([]uint64, 0, cfg.BatchSize),
		ticker:    time.NewTicker(cfg.FlushTimeout),
		stopCh:    make(chan struct{}),
		batchSize: cfg.BatchSize,
	}
	h := &DedupHandler{handler: handler, state: s}

	s.wg.Add(1)
	go s.flushLoop()

	return h
}

// Enabled defers to the wrapped handler.
func (h *DedupHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle buffers the record, folding it into an existing entry when an
// identical one is already pending.
func (h *DedupHandler) Handle(ctx context.Context, r slog.Record) error {
	key := recordKey(r)
	s := h.state

	s.mu.Lock()
	if entry, exists := s.entries[key]; exists {
		entry.count++
		s.mu.Unlock()
		return nil
	}

	s.entries[key] = &dedupEntry{
		record: r.Clone(),
		sink:   h.handler,
		count:  1,
	}
	s.order = append(s.order, key)

	var batch []*dedupEntry
	if len(s.order) >= s.batchSize {
		batch = s.drainLocked()
	}
	s.mu.Unlock()

	// Dispatch outside the lock so a sink that logs can't deadlock us
	dispatch(batch)
	return nil
}

// recordKey fingerprints a record by level, message, and attributes,
// deliberately ignoring the timestamp. NUL separates the fields so a
// value containing "=" or "|" cannot collide with a different split.
// Handler-level attributes are not part of the key.
func recordKey(r slog.Record) uint64 {
	d := xxhash.New()
	sep := []byte{0}

	_, _ = d.Write(strconv.AppendInt(nil, int64(r.Level), 10))
	_, _ = d.Write(sep)
	_, _ = d.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		_, _ = d.Write(sep)
		_, _ = d.WriteString(a.Key)
		_, _ = d.Write(sep)
		_, _ = d.WriteString(a.Value.String())
		return true
	})

	return d.Sum64()
}

// flushLoop writes pending entries on every tick until Close.
func (s *dedupState) flushLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.mu.Lock()
			batch := s.drainLocked()
			s.mu.Unlock()
			dispatch(batch)

		case <-s.stopCh:
			s.mu.Lock()
			batch := s.drainLocked()
			s.mu.Unlock()
			dispatch(batch)
			return
		}
	}
}

// drainLocked removes all pending entries in arrival order.
// Must be called with s.mu held.
func (s *dedupState) drainLocked() []*dedupEntry {
	if len(s.order) == 0 {
		return nil
	}

	batch := make([]*dedupEntry, 0, len(s.order))
	for _, key := range s.order {
		if entry := s.entries[key]; entry != nil {
			batch = append(batch, entry)
		}
	}

	s.entries = make(map[uint64]*dedupEntry)
	s.order = s.order[:0]
	return batch
}

// dispatch hands drained entries to the sinks they arrived at.
func dispatch(batch []*dedupEntry) {
	for _, entry := range batch {
		r := entry.record
		if entry.count > 1 {
			r.AddAttrs(slog.Int("repeated_count", entry.count))
		}
		_ = entry.sink.Handle(context.Background(), r)
	}
}

// WithAttrs returns a new handler with additional attributes. The
// derivative shares the deduplication state, so identical records
// arriving through either handler still collapse together.
func (h *DedupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &DedupHandler{
		handler: h.handler.WithAttrs(attrs),
		state:   h.state,
	}
}

// WithGroup qualifies subsequent keys through the wrapped handler while
// sharing the deduplication state.
func (h *DedupHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &DedupHandler{
		handler: h.handler.WithGroup(name),
		state:   h.state,
	}
}

// Close flushes pending entries and stops the flush goroutine. Closing
// any derivative closes the shared state; repeated calls are no-ops.
func (h *DedupHandler) Close() error {
	h.state.closeOnce.Do(func() {
		close(h.state.stopCh)
		h.state.ticker.Stop()
		h.state.wg.Wait()
	})
	return nil
}
