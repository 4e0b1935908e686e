package clocksync

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&buf, "warn", false)
	require.NoError(t, err)
	log.Info().Msg("hidden")
	log.Warn().Str("device", "gate").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "gate", entry["device"])
	assert.Contains(t, entry, "time")

	buf.Reset()
	log, err = NewLogger(&buf, "error", true)
	require.NoError(t, err)
	log.Debug().Msg("debug wins")
	assert.Contains(t, buf.String(), "debug wins")

	_, err = NewLogger(&buf, "loud", false)
	assert.Error(t, err)
}
