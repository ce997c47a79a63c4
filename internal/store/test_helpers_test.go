package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/maude/internal/record"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testRow builds a row from alternating column/value pairs.
func testRow(kind record.Kind, pairs ...string) record.Row {
	header := make([]string, 0, len(pairs)/2)
	values := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		header = append(header, pairs[i])
		values = append(values, pairs[i+1])
	}
	return record.NewRow(kind, header, values)
}

// ingestTestFile writes rows and a ledger entry in one FileTx and commits.
// Returns the number of rows actually inserted.
func ingestTestFile(t *testing.T, s *Store, name string, kind record.Kind, rows ...record.Row) int {
	t.Helper()
	ctx := context.Background()

	tx, err := s.BeginFile(ctx)
	if err != nil {
		t.Fatalf("BeginFile() failed: %v", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, row := range rows {
		ok, err := tx.InsertRow(row, record.MustRowFingerprint(row))
		if err != nil {
			t.Fatalf("InsertRow() failed: %v", err)
		}
		if ok {
			inserted++
		}
	}

	_, err = tx.RecordFile(LedgerEntry{
		FileHash:     record.FileFingerprint([]byte(name)),
		FileName:     name,
		Kind:         kind,
		RowsInserted: inserted,
		RunID:        "run-test",
		IngestedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordFile() failed: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	return inserted
}
