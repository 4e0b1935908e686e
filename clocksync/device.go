package clocksync

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// DeviceClient fetches the attendance log currently held by one terminal.
type DeviceClient interface {
	FetchEvents(ctx context.Context, dev Device) ([]RawEvent, error)
}

// ExportFileClient reads attendance exports written by the terminal vendor tooling.
// Device.Address is a glob (with ** support) of JSON files, each holding an array
// of punches.
type ExportFileClient struct {
	log zerolog.Logger
}

func NewExportFileClient(log zerolog.Logger) *ExportFileClient {
	return &ExportFileClient{log: log.With().Str("component", "device").Logger()}
}

func (c *ExportFileClient) FetchEvents(ctx context.Context, dev Device) ([]RawEvent, error) {
	if strings.TrimSpace(dev.Address) == "" {
		return nil, fmt.Errorf("device %q has no address", dev.Name)
	}
	paths, err := expandGlobWithDoubleStar(dev.Address)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no exports match %q", dev.Address)
	}
	sort.Strings(paths)

	var out []RawEvent
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		events, err := c.readExport(p)
		if err != nil {
			return nil, err
		}
		out = append(out, events...)
	}
	return out, nil
}

func (c *ExportFileClient) readExport(p string) ([]RawEvent, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	out := make([]RawEvent, 0, len(items))
	for i, item := range items {
		var ev RawEvent
		if err := json.Unmarshal(item, &ev); err != nil {
			c.log.Warn().Err(err).Str("path", p).Int("index", i).Msg("skip malformed punch")
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func expandGlobWithDoubleStar(pattern string) ([]string, error) {
	// filepath.Glob doesn't support **.
	if !strings.Contains(pattern, "**") {
		return filepath.Glob(pattern)
	}

	idx := strings.Index(pattern, "**")
	basePart := strings.TrimRight(pattern[:idx], string(filepath.Separator)+"/")
	if basePart == "" {
		basePart = "."
	}
	basePart = filepath.Clean(basePart)

	suffix := strings.TrimLeft(pattern[idx+2:], string(filepath.Separator)+"/")
	if suffix == "" {
		suffix = "*"
	}

	baseSlash := filepath.ToSlash(basePart)
	suffixSlash := filepath.ToSlash(suffix)
	matchBasenameOnly := !strings.Contains(suffixSlash, "/")

	var matches []string
	err := filepath.WalkDir(basePart, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := strings.TrimLeft(strings.TrimPrefix(filepath.ToSlash(p), baseSlash), "/")
		candidate := rel
		if matchBasenameOnly {
			candidate = path.Base(rel)
		}
		ok, matchErr := path.Match(suffixSlash, candidate)
		if matchErr != nil {
			return matchErr
		}
		if ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}
