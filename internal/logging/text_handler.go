// internal/logging/text_handler.go
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TextHandler writes records as single lines of the form
//
//	<TIME> - <LEVEL> - <MSG> key=value group.key="quoted value"
//
// with the timestamp in RFC3339. Attributes bound via WithAttrs are
// rendered once, when bound, and replayed on every record; group names
// accumulate into a dotted key prefix. Clones share one mutex so lines
// from different clones of the same handler never interleave.
type TextHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler

	prefix string // dotted group path applied to subsequent keys
	bound  []byte // attrs from WithAttrs, already rendered
}

var linePool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 1024)
		return &b
	},
}

// NewTextHandler creates a text handler writing to w. Only the Level
// option is honored.
func NewTextHandler(w io.Writer, opts *slog.HandlerOptions) *TextHandler {
	h := &TextHandler{
		mu:    &sync.Mutex{},
		w:     w,
		level: slog.LevelInfo,
	}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

func (h *TextHandler) clone() *TextHandler {
	c := *h
	return &c
}

// Enabled reports whether records at the given level are written.
func (h *TextHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

// Handle renders the record and writes it as one line.
func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	bp := linePool.Get().(*[]byte)
	buf := (*bp)[:0]

	buf = r.Time.AppendFormat(buf, time.RFC3339)
	buf = append(buf, " - "...)
	buf = append(buf, r.Level.String()...)
	buf = append(buf, " - "...)
	buf = append(buf, r.Message...)

	buf = append(buf, h.bound...)
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, h.prefix, a)
		return true
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()

	// Oversized lines are not worth keeping around.
	if cap(buf) <= 16<<10 {
		*bp = buf
		linePool.Put(bp)
	}
	return err
}

// WithAttrs returns a handler that prepends the given attributes to every
// record. They are rendered here, under the group prefix in effect now;
// groups opened later do not requalify them.
func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	bound := make([]byte, len(h.bound), len(h.bound)+32*len(attrs))
	copy(bound, h.bound)
	for _, a := range attrs {
		bound = appendAttr(bound, h.prefix, a)
	}
	c := h.clone()
	c.bound = bound
	return c
}

// WithGroup returns a handler that qualifies subsequent keys with the
// group name.
func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return appendValue(buf, a.Value)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendText(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	case slog.KindGroup:
		return appendGroup(buf, v.Group())
	default:
		return fmt.Appendf(buf, "%+v", v.Any())
	}
}

// appendGroup renders a group value as {k=v k=v}. An empty group renders
// as nothing, leaving a bare key=.
func appendGroup(buf []byte, attrs []slog.Attr) []byte {
	if len(attrs) == 0 {
		return buf
	}
	buf = append(buf, '{')
	for i, a := range attrs {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		buf = appendValue(buf, a.Value)
	}
	return append(buf, '}')
}

// appendText writes a string bare when it is safe to grep unquoted, and
// Go-quoted otherwise.
func appendText(buf []byte, s string) []byte {
	if !strings.ContainsAny(s, " \"\\\n\t") {
		return append(buf, s...)
	}
	return strconv.AppendQuote(buf, s)
}
