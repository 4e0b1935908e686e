package clocksync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type StaffUploadResult struct {
	Uploaded int
	Skipped  int
	Invalid  int
}

// UploadStaffList loads a JSON array of roster entries from path, converts keys to
// camelCase and stores entries not yet present, keyed by userId.
func UploadStaffList(ctx context.Context, path string, ledger StaffLedger, log zerolog.Logger) (StaffUploadResult, error) {
	var res StaffUploadResult
	b, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	var entries []map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&entries); err != nil {
		return res, fmt.Errorf("decode %s: %w", path, err)
	}

	log = log.With().Str("component", "staff").Logger()
	for i, entry := range entries {
		doc := convertKeys(entry)
		userID := strings.TrimSpace(fmt.Sprint(doc["userId"]))
		if doc["userId"] == nil || userID == "" {
			res.Invalid++
			log.Warn().Int("index", i).Msg("skip staff entry without userId")
			continue
		}
		exists, err := ledger.StaffExists(ctx, userID)
		if err != nil {
			return res, fmt.Errorf("%w: staff %s: %v", ErrTransient, userID, err)
		}
		if exists {
			res.Skipped++
			log.Debug().Str("user_id", userID).Msg("staff entry already exists")
			continue
		}
		attrs, err := json.Marshal(doc)
		if err != nil {
			return res, err
		}
		name, _ := doc["name"].(string)
		created, err := ledger.CreateStaff(ctx, StaffDocument{UserID: userID, Name: name, Attributes: string(attrs)})
		if err != nil {
			return res, fmt.Errorf("%w: staff %s: %v", ErrTransient, userID, err)
		}
		if !created {
			res.Skipped++
			continue
		}
		res.Uploaded++
		log.Info().Str("user_id", userID).Str("name", name).Msg("uploaded staff entry")
	}
	return res, nil
}

func convertKeys(entry map[string]any) map[string]any {
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		out[toCamelCase(k)] = v
	}
	return out
}

func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + strings.ToLower(p[1:]))
	}
	return b.String()
}
