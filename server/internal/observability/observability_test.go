package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContext_Attributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reqCtx := NewRequestContextWithID(logger, "req-1", "alice").ForCommand("remindme")
	reqCtx.Error("directive failed", errors.New("boom"), slog.String(LogFieldErrorCode, "PARSE_ERROR"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[LogFieldRequestID])
	assert.Equal(t, "alice", entry[LogFieldOwnerID])
	assert.Equal(t, "remindme", entry[LogFieldCommand])
	assert.Equal(t, "PARSE_ERROR", entry[LogFieldErrorCode])
	assert.Equal(t, "boom", entry["error"])
}

func TestRequestContext_GeneratedID(t *testing.T) {
	a := NewRequestContext(nil, "alice")
	b := NewRequestContext(nil, "alice")
	assert.Len(t, a.RequestID, 36)
	assert.NotEqual(t, a.RequestID, b.RequestID)
	assert.Empty(t, a.Command)
}

func TestFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	reqCtx := NewRequestContext(nil, "bob")
	ctx := WithRequestContext(context.Background(), reqCtx)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, reqCtx, got)
	assert.Same(t, reqCtx, FromContextOrNew(ctx, nil, "other"))
	assert.Equal(t, "other", FromContextOrNew(context.Background(), nil, "other").OwnerID)
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(2)

	m.RecordRequest("remindme")
	m.RecordDuration("remindme", 2*time.Millisecond)
	m.RecordRequest("remindme")
	m.RecordDuration("remindme", 4*time.Millisecond)
	m.RecordRequest("list")
	m.RecordFailure("list")
	m.RecordDuration("list", time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.RequestTotal)
	assert.Equal(t, int64(1), snap.RequestFailed)
	assert.Equal(t, 2, snap.DurationCount)
	assert.Equal(t, int64(2), snap.Commands["remindme"].ExecutionCount)
	assert.Equal(t, int64(3000), snap.Commands["remindme"].AverageDurationUs)
	assert.Equal(t, int64(1), snap.Commands["list"].ErrorCount)
	assert.InDelta(t, 66.67, snap.SuccessRate(), 0.01)
	assert.Equal(t, []string{"list", "remindme"}, m.GetCommands())

	m.Reset()
	assert.Zero(t, m.GetRequestTotal())
	assert.Equal(t, 100.0, m.Snapshot().SuccessRate())
}
