package clocksync

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCamelCase(t *testing.T) {
	assert.Equal(t, "userId", toCamelCase("user_id"))
	assert.Equal(t, "fullName", toCamelCase("full_NAME"))
	assert.Equal(t, "name", toCamelCase("name"))
	assert.Equal(t, "aB", toCamelCase("a__b"))
}

func TestUploadStaffList(t *testing.T) {
	ctx := context.Background()
	ledger := openTestLedger(t)
	p := filepath.Join(t.TempDir(), "staffList.json")
	require.NoError(t, os.WriteFile(p, []byte(`[
		{"user_id": 1001000, "name": "Aishath", "job_title": "Clerk"},
		{"user_id": "1002", "name": "Ibrahim"},
		{"name": "No Id"}
	]`), 0o644))

	res, err := UploadStaffList(ctx, p, ledger, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, StaffUploadResult{Uploaded: 2, Invalid: 1}, res)

	exists, err := ledger.StaffExists(ctx, "1001000")
	require.NoError(t, err)
	assert.True(t, exists, "large numeric ids keep their literal form")

	var doc StaffDocument
	require.NoError(t, ledger.db.Table(ledger.staff).Where("user_id = ?", "1001000").First(&doc).Error)
	assert.Equal(t, "Aishath", doc.Name)
	var attrs map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc.Attributes), &attrs))
	assert.Equal(t, "Clerk", attrs["jobTitle"])

	res, err = UploadStaffList(ctx, p, ledger, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, StaffUploadResult{Skipped: 2, Invalid: 1}, res)
}

func TestUploadStaffList_MissingFile(t *testing.T) {
	_, err := UploadStaffList(context.Background(), filepath.Join(t.TempDir(), "missing.json"), openTestLedger(t), zerolog.Nop())
	assert.Error(t, err)
}
