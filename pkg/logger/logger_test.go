package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerInjectsContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "dispatch-test", LevelDebug)

	ctx := wrap.WithAction(context.Background(), "create_ride")
	ctx = wrap.WithRideID(ctx, "42")
	ctx = wrap.WithDriverID(ctx, "7")

	l.Info(ctx, "ride created", "price", 150)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "ride created", entry["message"])
	assert.Equal(t, "create_ride", entry["action"])
	assert.Equal(t, "42", entry["ride_id"])
	assert.Equal(t, "7", entry["driver_id"])
	assert.Equal(t, "dispatch-test", entry["service"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestLoggerErrorCarriesWrappedContext(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "dispatch-test", LevelDebug)

	// Error wrapped deep inside a call chain keeps its LogCtx snapshot.
	inner := wrap.Error(wrap.WithAction(context.Background(), "spiral_search"), errors.New("no driver found"))

	l.Error(wrap.ErrorCtx(context.Background(), inner), "matching failed", inner)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "matching failed", entry["message"])
	assert.Equal(t, "spiral_search", entry["action"])

	errGroup, ok := entry["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "no driver found", errGroup["msg"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "dispatch-test", LevelWarn)

	l.Debug(context.Background(), "invisible")
	l.Info(context.Background(), "also invisible")
	require.Zero(t, buf.Len())

	l.Warn(context.Background(), "visible")
	require.NotZero(t, buf.Len())
}

func TestValidateLogLevel(t *testing.T) {
	for _, lvl := range []string{LevelDebug, LevelInfo, LevelWarn, LevelError, "info"} {
		assert.True(t, ValidateLogLevel(lvl), lvl)
	}
	assert.False(t, ValidateLogLevel("TRACE"))
}
