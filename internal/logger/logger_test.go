package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestWithBooking_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("info", "json", &buf)
	t.Cleanup(func() { Initialize("info", "text") })

	WithBooking("b-1").Info("Booking confirmed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Booking confirmed", entry["msg"])
	assert.Equal(t, "b-1", entry["bookingID"])
	assert.Equal(t, "gearbox-rental", entry["app"])
}

func TestExitMethodWithError_NilErrorStaysQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter("info", "text", &buf)
	t.Cleanup(func() { Initialize("info", "text") })

	ExitMethodWithError("svc.Op", nil)
	assert.Empty(t, buf.String())

	ExitMethodWithError("svc.Op", errors.New("boom"))
	assert.Contains(t, buf.String(), "boom")
}
