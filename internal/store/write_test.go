package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/maude/internal/record"
)

func TestInsertRow_WidensAndInserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	row := testRow(record.KindDevice, "brand_name", "Acme Pump", "generic_name", "infusion pump")
	n := ingestTestFile(t, s, "device2001.zip", record.KindDevice, row)
	assert.Equal(t, 1, n)

	cols, err := s.Columns(ctx, record.KindDevice)
	require.NoError(t, err)
	assert.Equal(t, []string{"brand_name", "generic_name"}, cols)

	var brand, hash string
	err = s.db.QueryRow(`SELECT row_hash, brand_name FROM device`).Scan(&hash, &brand)
	require.NoError(t, err)
	assert.Equal(t, "Acme Pump", brand)
	assert.Equal(t, record.MustRowFingerprint(row), hash)
}

func TestInsertRow_DuplicateIsIgnored(t *testing.T) {
	s := createTestStore(t)

	row := testRow(record.KindFoiText, "mdr_report_key", "1", "foi_text", "lead fractured")
	first := ingestTestFile(t, s, "foitext1996.zip", record.KindFoiText, row, row)
	assert.Equal(t, 1, first, "same row twice in one file inserts once")

	second := ingestTestFile(t, s, "foitext1997.zip", record.KindFoiText, row)
	assert.Equal(t, 0, second, "row already stored in an earlier file")

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM foitext`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestInsertRow_LaterFileAddsColumns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ingestTestFile(t, s, "a.csv", record.KindDevice,
		testRow(record.KindDevice, "brand_name", "Acme"))
	ingestTestFile(t, s, "b.csv", record.KindDevice,
		testRow(record.KindDevice, "brand_name", "Bolt", "udi_di", "0001"))

	cols, err := s.Columns(ctx, record.KindDevice)
	require.NoError(t, err)
	assert.Equal(t, []string{"brand_name", "udi_di"}, cols)

	// Rows from the narrower file read back NULL for the new column.
	var udi *string
	err = s.db.QueryRow(`SELECT udi_di FROM device WHERE brand_name = 'Acme'`).Scan(&udi)
	require.NoError(t, err)
	assert.Nil(t, udi)
}

func TestInsertRow_SparseShapesInOneFile(t *testing.T) {
	s := createTestStore(t)

	n := ingestTestFile(t, s, "sparse.csv", record.KindDevice,
		testRow(record.KindDevice, "brand_name", "A", "model_number", "M1"),
		testRow(record.KindDevice, "brand_name", "B", "model_number", ""),
		testRow(record.KindDevice, "brand_name", "C", "model_number", "M3"),
	)
	assert.Equal(t, 3, n)
}

func TestInsertRow_InvalidKind(t *testing.T) {
	s := createTestStore(t)

	tx, err := s.BeginFile(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.InsertRow(record.Row{Kind: "mdr"}, "hash")
	require.Error(t, err)
	assert.True(t, IsStoreError(err))
}

func TestRollback_DiscardsEverything(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.BeginFile(ctx)
	require.NoError(t, err)

	row := testRow(record.KindFoiDev, "mdr_report_key", "9", "manufacturer_name", "Acme")
	_, err = tx.InsertRow(row, record.MustRowFingerprint(row))
	require.NoError(t, err)
	_, err = tx.RecordFile(LedgerEntry{
		FileHash:   "file-1",
		FileName:   "foidev1998.zip",
		Kind:       record.KindFoiDev,
		RunID:      "run-1",
		IngestedAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is a no-op")

	has, err := s.HasFile(ctx, "file-1")
	require.NoError(t, err)
	assert.False(t, has)

	cols, err := s.Columns(ctx, record.KindFoiDev)
	require.NoError(t, err)
	assert.Empty(t, cols, "widening is rolled back with the rows")

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM foidev`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestCommit_Twice(t *testing.T) {
	s := createTestStore(t)

	tx, err := s.BeginFile(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	err = tx.Commit()
	require.Error(t, err)
	assert.True(t, IsStoreError(err))
}

func TestRecordFile_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	entry := LedgerEntry{
		FileHash:     "abc",
		FileName:     "device2000.zip",
		Kind:         record.KindDevice,
		RowsInserted: 10,
		RunID:        "run-1",
		IngestedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	for i, want := range []bool{true, false} {
		tx, err := s.BeginFile(ctx)
		require.NoError(t, err)
		ok, err := tx.RecordFile(entry)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "attempt %d", i)
		require.NoError(t, tx.Commit())
	}

	ledger, err := s.Ledger(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, entry, ledger[0])
}

func TestRecordFile_InvalidKind(t *testing.T) {
	s := createTestStore(t)

	tx, err := s.BeginFile(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.RecordFile(LedgerEntry{FileHash: "x", FileName: "readme.txt", Kind: record.KindUnknown})
	require.Error(t, err)
}
