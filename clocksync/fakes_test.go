package clocksync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeDevices struct {
	mu     sync.Mutex
	events map[string][]RawEvent
	fail   map[string]error
	calls  []string
	onCall func(dev Device)
}

func (f *fakeDevices) FetchEvents(ctx context.Context, dev Device) ([]RawEvent, error) {
	f.mu.Lock()
	f.calls = append(f.calls, dev.Name)
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(dev)
	}
	if err, ok := f.fail[dev.Name]; ok {
		return nil, err
	}
	out := make([]RawEvent, len(f.events[dev.Name]))
	copy(out, f.events[dev.Name])
	return out, nil
}

type fakeLedger struct {
	mu          sync.Mutex
	docs        map[string]AttendanceDocument
	existsCalls int
	createCalls int
	failExists  map[string]bool
	failCreate  map[string]bool
}

func newFakeLedger(existing ...string) *fakeLedger {
	l := &fakeLedger{docs: map[string]AttendanceDocument{}, failExists: map[string]bool{}, failCreate: map[string]bool{}}
	for _, id := range existing {
		l.docs[id] = AttendanceDocument{ID: id}
	}
	return l
}

func (l *fakeLedger) Exists(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.existsCalls++
	if l.failExists[id] {
		return false, errors.New("deadline exceeded")
	}
	_, ok := l.docs[id]
	return ok, nil
}

func (l *fakeLedger) Create(ctx context.Context, doc AttendanceDocument) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.createCalls++
	if l.failCreate[doc.ID] {
		return false, errors.New("connection reset")
	}
	if _, ok := l.docs[doc.ID]; ok {
		return false, nil
	}
	doc.UploadedAt = time.Now()
	l.docs[doc.ID] = doc
	return true, nil
}

func (l *fakeLedger) calls() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.existsCalls, l.createCalls
}

func openTestLedger(t *testing.T) *SQLLedger {
	t.Helper()
	l, err := OpenLedger(LedgerConfig{DBPath: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}
