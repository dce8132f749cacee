// internal/logging/multi_handler_test.go
package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandler records what it handled and can be forced to fail.
type stubHandler struct {
	min     slog.Level
	fail    error
	handled []slog.Record
}

func (s *stubHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= s.min }

func (s *stubHandler) Handle(_ context.Context, r slog.Record) error {
	s.handled = append(s.handled, r)
	return s.fail
}

func (s *stubHandler) WithAttrs([]slog.Attr) slog.Handler { return s }
func (s *stubHandler) WithGroup(string) slog.Handler      { return s }

func TestMultiHandler_FansOutToAllTargets(t *testing.T) {
	var first, second bytes.Buffer
	logger := slog.New(NewMultiHandler(
		NewTextHandler(&first, nil),
		NewTextHandler(&second, nil),
	))

	logger.Info("payload", "key", "value")

	for _, buf := range []*bytes.Buffer{&first, &second} {
		assert.Contains(t, buf.String(), " - INFO - payload key=value")
	}
}

func TestMultiHandler_EnabledWhenAnyTargetIs(t *testing.T) {
	ctx := context.Background()

	m := NewMultiHandler(
		&stubHandler{min: slog.LevelInfo},
		&stubHandler{min: slog.LevelError},
	)
	assert.True(t, m.Enabled(ctx, slog.LevelInfo))
	assert.False(t, m.Enabled(ctx, slog.LevelDebug))
}

func TestMultiHandler_LevelGatePerTarget(t *testing.T) {
	relaxed := &stubHandler{min: slog.LevelInfo}
	strict := &stubHandler{min: slog.LevelError}
	m := NewMultiHandler(relaxed, strict)

	r := slog.NewRecord(recordTime, slog.LevelWarn, "warning", 0)
	require.NoError(t, m.Handle(context.Background(), r))

	assert.Len(t, relaxed.handled, 1)
	assert.Empty(t, strict.handled, "target below its own threshold must not see the record")
}

func TestMultiHandler_FailureDoesNotStarveOthers(t *testing.T) {
	broken := &stubHandler{fail: errors.New("console gone")}
	healthy := &stubHandler{}
	m := NewMultiHandler(broken, healthy)

	err := m.Handle(context.Background(), slog.NewRecord(recordTime, slog.LevelWarn, "event", 0))

	assert.ErrorContains(t, err, "console gone")
	assert.Len(t, healthy.handled, 1, "remaining targets still see the record")
}

func TestMultiHandler_ErrorsJoined(t *testing.T) {
	errDisk := errors.New("disk full")
	errPipe := errors.New("pipe closed")
	m := NewMultiHandler(&stubHandler{fail: errDisk}, &stubHandler{fail: errPipe})

	err := m.Handle(context.Background(), slog.NewRecord(recordTime, slog.LevelInfo, "event", 0))

	assert.ErrorIs(t, err, errDisk)
	assert.ErrorIs(t, err, errPipe)
}

func TestMultiHandler_NoTargets(t *testing.T) {
	m := NewMultiHandler()

	assert.False(t, m.Enabled(context.Background(), slog.LevelError))
	assert.NoError(t, m.Handle(context.Background(), slog.NewRecord(recordTime, slog.LevelInfo, "event", 0)))
	assert.NotPanics(t, func() {
		slog.New(m).Info("nobody listening")
	})
}

func TestMultiHandler_WithAttrsReachesEveryTarget(t *testing.T) {
	var first, second bytes.Buffer
	m := NewMultiHandler(NewTextHandler(&first, nil), NewTextHandler(&second, nil))

	logger := slog.New(m.WithAttrs([]slog.Attr{slog.String("component", "ingest")}))
	logger.Info("bound")

	for _, buf := range []*bytes.Buffer{&first, &second} {
		assert.Contains(t, buf.String(), "bound component=ingest")
	}
}

func TestMultiHandler_WithGroupReachesEveryTarget(t *testing.T) {
	var first, second bytes.Buffer
	m := NewMultiHandler(NewTextHandler(&first, nil), NewTextHandler(&second, nil))

	logger := slog.New(m.WithGroup("request"))
	logger.Info("scoped", "id", "123")

	for _, buf := range []*bytes.Buffer{&first, &second} {
		assert.Contains(t, buf.String(), "request.id=123")
	}
}

func TestMultiHandler_WithGroupEmptyNameIsNoop(t *testing.T) {
	m := NewMultiHandler(&stubHandler{})
	assert.Same(t, m, m.WithGroup(""))
}
