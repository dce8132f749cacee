// internal/logging/async_writer_test.go
package logging

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records every Write it receives. When gate is non-nil,
// Write parks until the gate closes, which stalls the flusher.
type captureSink struct {
	mu      sync.Mutex
	writes  [][]byte
	flushes int
	gate    chan struct{}
}

func (s *captureSink) Write(p []byte) (int, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, bytes.Clone(p))
	return len(p), nil
}

func (s *captureSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *captureSink) snapshot() (writes int, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for _, w := range s.writes {
		b.Write(w)
	}
	return len(s.writes), b.String()
}

func (s *captureSink) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// closableSink lets tests observe Close propagation.
type closableSink struct {
	bytes.Buffer
	closed bool
}

func (s *closableSink) Close() error {
	s.closed = true
	return nil
}

func TestAsyncWriter_DefaultTuning(t *testing.T) {
	aw := NewAsyncWriter(io.Discard)
	t.Cleanup(func() { _ = aw.Close() })

	def := DefaultAsyncWriterConfig()
	assert.Equal(t, def.QueueDepth, cap(aw.queue))
	assert.Equal(t, def.CoalesceBytes, aw.coalesceBytes)
	assert.Equal(t, def.FlushInterval, aw.interval)
}

func TestAsyncWriter_ZeroConfigFallsBackToDefaults(t *testing.T) {
	aw := NewAsyncWriterWithConfig(io.Discard, AsyncWriterConfig{})
	t.Cleanup(func() { _ = aw.Close() })

	def := DefaultAsyncWriterConfig()
	assert.Equal(t, def.QueueDepth, cap(aw.queue))
	assert.Equal(t, def.CoalesceBytes, aw.coalesceBytes)
	assert.Equal(t, def.FlushInterval, aw.interval)
}

func TestAsyncWriter_CloseDeliversEverything(t *testing.T) {
	sink := &captureSink{}
	aw := NewAsyncWriter(sink)

	for i := 0; i < 40; i++ {
		line := fmt.Sprintf("entry %02d\n", i)
		n, err := aw.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
	require.NoError(t, aw.Close())

	_, content := sink.snapshot()
	for i := 0; i < 40; i++ {
		assert.Contains(t, content, fmt.Sprintf("entry %02d\n", i))
	}
}

func TestAsyncWriter_CoalescesIntoSingleWrite(t *testing.T) {
	sink := &captureSink{}
	aw := NewAsyncWriterWithConfig(sink, AsyncWriterConfig{
		QueueDepth:    16,
		CoalesceBytes: 1 << 20,
		FlushInterval: time.Hour,
	})

	for _, line := range []string{"first\n", "second\n", "third\n"} {
		_, err := aw.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, aw.Close())

	writes, content := sink.snapshot()
	assert.Equal(t, 1, writes, "entries below the threshold should land in one write")
	assert.Equal(t, "first\nsecond\nthird\n", content)
}

func TestAsyncWriter_FlushesAtCoalesceThreshold(t *testing.T) {
	sink := &captureSink{}
	aw := NewAsyncWriterWithConfig(sink, AsyncWriterConfig{
		QueueDepth:    16,
		CoalesceBytes: 10,
		FlushInterval: time.Hour,
	})
	t.Cleanup(func() { _ = aw.Close() })

	_, err := aw.Write([]byte("0123456789ABCDEF"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		writes, _ := sink.snapshot()
		return writes >= 1
	}, time.Second, 5*time.Millisecond, "crossing the threshold should flush without Close")
}

func TestAsyncWriter_FlushesOnInterval(t *testing.T) {
	sink := &captureSink{}
	aw := NewAsyncWriterWithConfig(sink, AsyncWriterConfig{
		QueueDepth:    16,
		CoalesceBytes: 1 << 20,
		FlushInterval: 20 * time.Millisecond,
	})
	t.Cleanup(func() { _ = aw.Close() })

	_, err := aw.Write([]byte("short line\n"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, content := sink.snapshot()
		return strings.Contains(content, "short line")
	}, time.Second, 5*time.Millisecond)
}

func TestAsyncWriter_ForwardsFlushToSink(t *testing.T) {
	sink := &captureSink{}
	aw := NewAsyncWriter(sink)

	_, err := aw.Write([]byte("flush me\n"))
	require.NoError(t, err)
	require.NoError(t, aw.Close())

	assert.Greater(t, sink.flushCount(), 0)
}

func TestAsyncWriter_WriteAfterClose(t *testing.T) {
	aw := NewAsyncWriter(io.Discard)
	require.NoError(t, aw.Close())

	_, err := aw.Write([]byte("late\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestAsyncWriter_CloseIsIdempotentAndPropagates(t *testing.T) {
	sink := &closableSink{}
	aw := NewAsyncWriter(sink)

	_, err := aw.Write([]byte("once\n"))
	require.NoError(t, err)

	require.NoError(t, aw.Close())
	assert.True(t, sink.closed)
	assert.Contains(t, sink.String(), "once")

	assert.NoError(t, aw.Close())
}

func TestAsyncWriter_ConcurrentWritersKeepEntriesWhole(t *testing.T) {
	sink := &captureSink{}
	aw := NewAsyncWriter(sink)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				line := fmt.Sprintf("worker=%d seq=%d\n", w, i)
				if _, err := aw.Write([]byte(line)); err != nil {
					t.Errorf("write worker %d: %v", w, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, aw.Close())

	_, content := sink.snapshot()
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	require.Len(t, lines, workers*perWorker)

	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		assert.Regexp(t, `^worker=\d seq=\d+$`, line)
		seen[line] = true
	}
	assert.Len(t, seen, workers*perWorker, "every entry should arrive exactly once")
}

func TestAsyncWriter_FullQueueBlocksInsteadOfDropping(t *testing.T) {
	gate := make(chan struct{})
	sink := &captureSink{gate: gate}
	aw := NewAsyncWriterWithConfig(sink, AsyncWriterConfig{
		QueueDepth:    2,
		CoalesceBytes: 1,
		FlushInterval: 10 * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			if _, err := aw.Write([]byte(fmt.Sprintf("queued %d\n", i))); err != nil {
				t.Errorf("write %d: %v", i, err)
				return
			}
		}
	}()

	select {
	case <-done:
		t.Fatal("writes finished while the sink was stalled")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	<-done
	require.NoError(t, aw.Close())

	_, content := sink.snapshot()
	for i := 0; i < 10; i++ {
		assert.Contains(t, content, fmt.Sprintf("queued %d\n", i))
	}
}

func BenchmarkAsyncWriter_Write(b *testing.B) {
	aw := NewAsyncWriter(io.Discard)
	defer aw.Close()

	line := []byte("benchmark line\n")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = aw.Write(line)
	}
}
