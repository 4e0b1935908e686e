package clocksync

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

const (
	uploadedArtifactPrefix   = "logs_"
	simpleArtifactPrefix     = "simplified_logs_"
	normalizedArtifactPrefix = "normalized_logs_"
)

// ArtifactStamp formats t for use in artifact file names, e.g. 2025-03-24_07-26-55.
func ArtifactStamp(t time.Time) string {
	s := t.Format(DeviceTimeLayout)
	s = strings.ReplaceAll(s, ":", "-")
	return strings.ReplaceAll(s, " ", "_")
}

// writeArtifact writes v as indented JSON to <dir>/<prefix><stamp>.json.
func writeArtifact(dir, prefix, stamp string, v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, prefix+stamp+".json")
	if err := writeFileAtomic(p, b); err != nil {
		return "", err
	}
	return p, nil
}
