package clocksync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFileClient_ReadsExportsAndSkipsMalformedPunches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "main", "2025"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main", "a.json"),
		[]byte(`[{"user_id":1,"timestamp":"2025-03-24 07:00:00","status":0,"punch":0},{"timestamp":"2025-03-24 07:00:01"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main", "2025", "b.json"),
		[]byte(`[{"user_id":"2","timestamp":"2025-03-24T07:05:00+05:00","status":1,"punch":4}]`), 0o644))

	c := NewExportFileClient(zerolog.Nop())

	flat, err := c.FetchEvents(context.Background(), Device{Name: "main", Address: filepath.Join(dir, "main", "*.json")})
	require.NoError(t, err)
	require.Len(t, flat, 1)
	assert.Equal(t, SubjectID("1"), flat[0].SubjectID)

	deep, err := c.FetchEvents(context.Background(), Device{Name: "main", Address: filepath.Join(dir, "main", "**", "*.json")})
	require.NoError(t, err)
	require.Len(t, deep, 2)
	assert.Equal(t, SubjectID("2"), deep[0].SubjectID, "paths are read in sorted order")
	assert.Equal(t, Code(4), deep[0].WorkCode)
}

func TestExportFileClient_Errors(t *testing.T) {
	dir := t.TempDir()
	c := NewExportFileClient(zerolog.Nop())

	_, err := c.FetchEvents(context.Background(), Device{Name: "none", Address: filepath.Join(dir, "*.json")})
	assert.Error(t, err, "no matching exports means the device is unreachable")

	_, err = c.FetchEvents(context.Background(), Device{Name: "blank"})
	assert.Error(t, err)

	p := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"user_id":1}`), 0o644))
	_, err = c.FetchEvents(context.Background(), Device{Name: "bad", Address: p})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.FetchEvents(ctx, Device{Name: "bad", Address: p})
	assert.ErrorIs(t, err, context.Canceled)
}
