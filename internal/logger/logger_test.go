package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewWithWriter(&buf), "notify")

	ctx := WithContext(context.Background(), l)
	got := FromContext(ctx)
	got.Info().Str("trigger", "low_balance").Msg("fired")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notify", entry["component"])
	assert.Equal(t, "low_balance", entry["trigger"])
	assert.Equal(t, "fired", entry["message"])
}

func TestFromContextWithoutLoggerIsSilent(t *testing.T) {
	l := FromContext(context.Background())
	// Must not panic and must not write anywhere.
	l.Error().Msg("dropped")
}
