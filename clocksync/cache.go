package clocksync

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// IDSet is a set of record ids.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Add(id string) { s[id] = struct{}{} }

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Union returns a new set; neither operand is modified.
func (s IDSet) Union(others ...IDSet) IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out.Add(id)
	}
	for _, o := range others {
		for id := range o {
			out.Add(id)
		}
	}
	return out
}

func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DedupCache persists the ids already confirmed durable in the ledger as a JSON array.
// It assumes a single process owns the file.
type DedupCache struct {
	path string
	log  zerolog.Logger
}

func NewDedupCache(path string, log zerolog.Logger) *DedupCache {
	return &DedupCache{path: path, log: log.With().Str("component", "cache").Logger()}
}

func (c *DedupCache) Path() string { return c.path }

// Load returns an empty set when the file is absent or unreadable.
func (c *DedupCache) Load() IDSet {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn().Err(err).Str("path", c.path).Msg("cache unreadable, starting empty")
		}
		return IDSet{}
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		c.log.Warn().Err(err).Str("path", c.path).Msg("cache malformed, starting empty")
		return IDSet{}
	}
	return NewIDSet(ids...)
}

// Save replaces the file with ids. The write goes through a temp file and a rename.
func (c *DedupCache) Save(ids IDSet) error {
	b, err := json.MarshalIndent(ids.Sorted(), "", "    ")
	if err != nil {
		return err
	}
	return writeFileAtomic(c.path, b)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// RebuildCacheFromArtifacts collects doc_id values from every uploaded-records
// artifact in outputDir. Unreadable artifacts are skipped with a warning.
func RebuildCacheFromArtifacts(outputDir string, log zerolog.Logger) (IDSet, error) {
	matches, err := filepath.Glob(filepath.Join(outputDir, uploadedArtifactPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	ids := IDSet{}
	for _, p := range matches {
		b, err := os.ReadFile(p)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("skip artifact")
			continue
		}
		var recs []struct {
			ID string `json:"doc_id"`
		}
		if err := json.Unmarshal(b, &recs); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("skip artifact")
			continue
		}
		for _, r := range recs {
			if r.ID != "" {
				ids.Add(r.ID)
			}
		}
	}
	return ids, nil
}
