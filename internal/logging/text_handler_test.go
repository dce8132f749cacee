// internal/logging/text_handler_test.go
package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

const recordStamp = "2025-03-14T09:26:53Z"

func newRecord(msg string, attrs ...slog.Attr) slog.Record {
	r := slog.NewRecord(recordTime, slog.LevelInfo, msg, 0)
	r.AddAttrs(attrs...)
	return r
}

// lineFor runs one record through a fresh handler, optionally derived via
// bind, and returns the written line.
func lineFor(t *testing.T, r slog.Record, bind func(slog.Handler) slog.Handler) string {
	t.Helper()
	var buf bytes.Buffer
	var h slog.Handler = NewTextHandler(&buf, nil)
	if bind != nil {
		h = bind(h)
	}
	require.NoError(t, h.Handle(context.Background(), r))
	return buf.String()
}

func TestTextHandler_LineShape(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, nil)

	r := slog.NewRecord(recordTime, slog.LevelWarn, "SECURITY: Blocked unsafe path access", 0)
	r.AddAttrs(slog.String("path", "/../etc/passwd"), slog.String("ip", "203.0.113.9"))
	require.NoError(t, h.Handle(context.Background(), r))

	assert.Equal(t,
		recordStamp+" - WARN - SECURITY: Blocked unsafe path access path=/../etc/passwd ip=203.0.113.9\n",
		buf.String())
}

func TestTextHandler_ValueKinds(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"string bare", slog.String("path", "/static/app.js"), `path=/static/app.js`},
		{"string with spaces", slog.String("note", "two words"), `note="two words"`},
		{"string with quote", slog.String("q", `say "hi"`), `q="say \"hi\""`},
		{"string with newline", slog.String("n", "a\nb"), `n="a\nb"`},
		{"empty string", slog.String("empty", ""), `empty=`},
		{"int", slog.Int("port", 8000), `port=8000`},
		{"negative int", slog.Int("delta", -3), `delta=-3`},
		{"uint64", slog.Uint64("total", 18446744073709551615), `total=18446744073709551615`},
		{"float", slog.Float64("ratio", 0.25), `ratio=0.25`},
		{"bool", slog.Bool("enabled", true), `enabled=true`},
		{"duration", slog.Duration("elapsed", 1500*time.Millisecond), `elapsed=1.5s`},
		{"time", slog.Time("at", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)), `at=2025-01-02T03:04:05Z`},
		{"group value", slog.Group("req", slog.String("method", "GET"), slog.Int("status", 200)), `req={method=GET status=200}`},
		{"error", slog.Any("error", errors.New("boom")), `error=boom`},
		{"struct", slog.Any("peer", struct{ Host string }{"h1"}), `peer={Host:h1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			line := lineFor(t, newRecord("probe", tc.attr), nil)
			assert.Equal(t, recordStamp+" - INFO - probe "+tc.want+"\n", line)
		})
	}
}

func TestTextHandler_Enabled(t *testing.T) {
	ctx := context.Background()

	h := NewTextHandler(&bytes.Buffer{}, nil)
	assert.False(t, h.Enabled(ctx, slog.LevelDebug))
	assert.True(t, h.Enabled(ctx, slog.LevelInfo))

	verbose := NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})
	assert.True(t, verbose.Enabled(ctx, slog.LevelDebug))

	var lv slog.LevelVar
	lv.Set(slog.LevelError)
	dynamic := NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: &lv})
	assert.False(t, dynamic.Enabled(ctx, slog.LevelWarn))
	lv.Set(slog.LevelDebug)
	assert.True(t, dynamic.Enabled(ctx, slog.LevelDebug))
}

func TestTextHandler_WithAttrsPrecedeRecordAttrs(t *testing.T) {
	line := lineFor(t, newRecord("request", slog.Int("status", 200)), func(h slog.Handler) slog.Handler {
		return h.WithAttrs([]slog.Attr{slog.String("component", "server")})
	})
	assert.Equal(t, recordStamp+" - INFO - request component=server status=200\n", line)
}

func TestTextHandler_WithGroupQualifiesKeys(t *testing.T) {
	line := lineFor(t, newRecord("tick", slog.Int("n", 1)), func(h slog.Handler) slog.Handler {
		return h.WithGroup("sweep")
	})
	assert.Equal(t, recordStamp+" - INFO - tick sweep.n=1\n", line)
}

func TestTextHandler_NestedGroups(t *testing.T) {
	line := lineFor(t, newRecord("tick", slog.Int("n", 1)), func(h slog.Handler) slog.Handler {
		return h.WithGroup("outer").WithGroup("inner")
	})
	assert.Equal(t, recordStamp+" - INFO - tick outer.inner.n=1\n", line)
}

func TestTextHandler_LaterGroupDoesNotRequalifyBoundAttrs(t *testing.T) {
	line := lineFor(t, newRecord("tick", slog.Int("n", 1)), func(h slog.Handler) slog.Handler {
		return h.WithAttrs([]slog.Attr{slog.String("component", "server")}).WithGroup("sweep")
	})
	assert.Equal(t, recordStamp+" - INFO - tick component=server sweep.n=1\n", line)
}

func TestTextHandler_WithGroupEmptyNameIsNoop(t *testing.T) {
	h := NewTextHandler(&bytes.Buffer{}, nil)
	assert.Same(t, h, h.WithGroup(""))
}

type redacted struct{}

func (redacted) LogValue() slog.Value { return slog.StringValue("[hidden]") }

func TestTextHandler_ResolvesLogValuer(t *testing.T) {
	line := lineFor(t, newRecord("auth", slog.Any("token", redacted{})), nil)
	assert.Equal(t, recordStamp+" - INFO - auth token=[hidden]\n", line)
}

func TestTextHandler_SkipsEmptyAttr(t *testing.T) {
	line := lineFor(t, newRecord("plain", slog.Attr{}), nil)
	assert.Equal(t, recordStamp+" - INFO - plain\n", line)
}

type failWriter struct{ err error }

func (w failWriter) Write([]byte) (int, error) { return 0, w.err }

func TestTextHandler_PropagatesWriteError(t *testing.T) {
	sentinel := errors.New("disk full")
	h := NewTextHandler(failWriter{err: sentinel}, nil)
	assert.ErrorIs(t, h.Handle(context.Background(), newRecord("x")), sentinel)
}

// Clones share one lock; concurrent writes from derived handlers come out
// as whole lines.
func TestTextHandler_ConcurrentClonesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	base := NewTextHandler(&buf, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		h := base.WithAttrs([]slog.Attr{slog.Int("worker", i)})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = h.Handle(context.Background(), slog.NewRecord(recordTime, slog.LevelInfo, "line", 0))
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 400)
	for _, line := range lines {
		assert.Regexp(t, `^`+recordStamp+` - INFO - line worker=\d$`, line)
	}
}
