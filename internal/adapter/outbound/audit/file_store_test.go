package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danubesoft/ifn-gateway/internal/domain/audit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(op string, ts time.Time) audit.CallRecord {
	return audit.CallRecord{
		Timestamp:      ts,
		RequestID:      "req-1",
		Operation:      op,
		Endpoint:       op,
		Outcome:        audit.OutcomeRelayed,
		UpstreamStatus: 200,
		LatencyMicros:  1234,
		PayloadDigest:  audit.FingerprintPayload([]byte("<cerere/>")),
	}
}

func TestFileStore_AppendAndReadBack(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(FileStoreConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	now := time.Now().UTC()
	if err := store.Append(context.Background(),
		testRecord("listaMesaje", now),
		testRecord("stareMesaj", now),
	); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	path := filepath.Join(dir, "calls-"+now.Format("2006-01-02")+".log")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trail file: %v", err)
	}
	defer func() { _ = f.Close() }()

	var ops []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec audit.CallRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		ops = append(ops, rec.Operation)
	}
	if len(ops) != 2 || ops[0] != "listaMesaje" || ops[1] != "stareMesaj" {
		t.Errorf("trail file ops = %v, want [listaMesaje stareMesaj]", ops)
	}
}

func TestFileStore_GetRecentNewestFirst(t *testing.T) {
	store, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	now := time.Now().UTC()
	for _, op := range []string{"first", "second", "third"} {
		if err := store.Append(context.Background(), testRecord(op, now)); err != nil {
			t.Fatalf("Append(%s): %v", op, err)
		}
	}

	recent := store.GetRecent(2)
	if len(recent) != 2 {
		t.Fatalf("GetRecent(2) returned %d records", len(recent))
	}
	if recent[0].Operation != "third" || recent[1].Operation != "second" {
		t.Errorf("GetRecent order = [%s %s], want [third second]",
			recent[0].Operation, recent[1].Operation)
	}

	if got := store.GetRecent(100); len(got) != 3 {
		t.Errorf("GetRecent(100) = %d records, want all 3", len(got))
	}
	if got := store.GetRecent(0); got != nil {
		t.Errorf("GetRecent(0) = %v, want nil", got)
	}
}

func TestFileStore_SizeRotation(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(FileStoreConfig{Dir: dir, MaxFileSizeMB: 1}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	// Force the size check to trip without writing a megabyte.
	store.mu.Lock()
	store.currentSize = store.maxFileSize
	store.mu.Unlock()

	now := time.Now().UTC()
	if err := store.Append(context.Background(), testRecord("listaMesaje", now)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rotated := filepath.Join(dir, "calls-"+now.Format("2006-01-02")+"-1.log")
	if _, err := os.Stat(rotated); err != nil {
		t.Errorf("rotated file %s not created: %v", rotated, err)
	}
}

func TestFileStore_DateRotation(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(FileStoreConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	today := time.Now().UTC()

	// A record stamped yesterday rotates to yesterday's file, the next one
	// rotates back to today's.
	if err := store.Append(context.Background(), testRecord("old", yesterday)); err != nil {
		t.Fatalf("Append old: %v", err)
	}
	if err := store.Append(context.Background(), testRecord("new", today)); err != nil {
		t.Fatalf("Append new: %v", err)
	}

	for _, name := range []string{
		"calls-" + yesterday.Format("2006-01-02") + ".log",
		"calls-" + today.Format("2006-01-02") + ".log",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected trail file %s: %v", name, err)
		}
	}
}

func TestFileStore_RetentionCleanup(t *testing.T) {
	dir := t.TempDir()

	oldDate := time.Now().UTC().AddDate(0, 0, -40).Format("2006-01-02")
	oldFile := filepath.Join(dir, "calls-"+oldDate+".log")
	if err := os.WriteFile(oldFile, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("seed old file: %v", err)
	}
	unrelated := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(unrelated, []byte("keep"), 0600); err != nil {
		t.Fatalf("seed unrelated file: %v", err)
	}

	store, err := NewFileStore(FileStoreConfig{Dir: dir, RetentionDays: 30}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("file past retention should have been deleted at boot")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("non-trail files must not be touched by cleanup")
	}
}

func TestFileStore_CacheSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC()

	store, err := NewFileStore(FileStoreConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Append(context.Background(), testRecord("listaMesaje", now)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewFileStore(FileStoreConfig{Dir: dir}, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	recent := reopened.GetRecent(10)
	if len(recent) != 1 || recent[0].Operation != "listaMesaje" {
		t.Errorf("cache after restart = %+v, want the persisted record", recent)
	}
}

func TestFileStore_CloseIdempotent(t *testing.T) {
	store, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestParseTrailFilename(t *testing.T) {
	tests := []struct {
		name   string
		ok     bool
		date   string
		suffix int
	}{
		{"calls-2026-08-31.log", true, "2026-08-31", 0},
		{"calls-2026-08-31-3.log", true, "2026-08-31", 3},
		{"calls-2026-08-31.log.gz", false, "", 0},
		{"audit-2026-08-31.log", false, "", 0},
		{"notes.txt", false, "", 0},
	}

	for _, tt := range tests {
		info, ok := parseTrailFilename(tt.name)
		if ok != tt.ok {
			t.Errorf("parseTrailFilename(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && (info.date != tt.date || info.suffix != tt.suffix) {
			t.Errorf("parseTrailFilename(%q) = %+v, want date %s suffix %d",
				tt.name, info, tt.date, tt.suffix)
		}
	}
}

func TestRecordCache_RingOverwrite(t *testing.T) {
	c := newRecordCache(2)
	now := time.Now().UTC()
	c.Add(testRecord("a", now))
	c.Add(testRecord("b", now))
	c.Add(testRecord("c", now))

	recent := c.Recent(5)
	if len(recent) != 2 {
		t.Fatalf("cache holds %d records, want 2", len(recent))
	}
	if recent[0].Operation != "c" || recent[1].Operation != "b" {
		t.Errorf("cache = [%s %s], want [c b]", recent[0].Operation, recent[1].Operation)
	}
}
