package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf, Level: slog.LevelInfo}).WithComponent(ComponentSync)

	logger.InfoContext(context.Background(), "Sync completed", NewFields().WithSync("historic_expenses", 2, 1, 0).ToSlice()...)
	logger.Debug("dropped")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Sync completed", rec["msg"])
	assert.Equal(t, ComponentSync, rec[FieldComponent])
	assert.Equal(t, "historic_expenses", rec[FieldSyncLabel])
	assert.EqualValues(t, 2, rec[FieldAdded])
}

func TestFromContext(t *testing.T) {
	logger := Discard().WithComponent(ComponentHTTP)
	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}
