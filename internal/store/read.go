package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/maude/internal/record"
)

// TableStats describes one record table.
type TableStats struct {
	Kind    record.Kind `json:"table"`
	Rows    int64       `json:"rows"`
	Columns int         `json:"columns"`
}

// Stats summarizes the archive.
type Stats struct {
	Tables []TableStats `json:"tables"`
	Files  int64        `json:"files"`
}

// Rows returns the total row count across all tables.
func (s Stats) Rows() int64 {
	var n int64
	for _, t := range s.Tables {
		n += t.Rows
	}
	return n
}

// HasFile reports whether a file fingerprint is already in the ledger.
func (s *Store) HasFile(ctx context.Context, fileHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM ingestion_log WHERE file_hash = ?", fileHash,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("has file", err)
	}
	return true, nil
}

// Columns returns the source columns of a kind's table in the order they
// were added. The storage key is not included.
//
// Returns an empty slice (not nil) for a table that has never been widened.
func (s *Store) Columns(ctx context.Context, kind record.Kind) ([]string, error) {
	return columnsOf(ctx, s.db, kind)
}

// Stats returns row and column counts per table plus the ledger size.
// Tables are listed in record.Kinds order.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	for _, kind := range record.Kinds() {
		table, err := tableFor(kind)
		if err != nil {
			return Stats{}, wrap("stats", err)
		}

		var rows int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&rows); err != nil {
			return Stats{}, wrap("stats", fmt.Errorf("count %s: %w", kind, err))
		}

		cols, err := s.Columns(ctx, kind)
		if err != nil {
			return Stats{}, err
		}

		st.Tables = append(st.Tables, TableStats{Kind: kind, Rows: rows, Columns: len(cols)})
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingestion_log").Scan(&st.Files); err != nil {
		return Stats{}, wrap("stats", fmt.Errorf("count ledger: %w", err))
	}

	return st, nil
}

// Ledger returns every ingestion record.
// Results are ordered deterministically: ORDER BY ingested_at ASC, file_name ASC,
// file_hash ASC.
//
// Returns an empty slice (not nil) if nothing has been ingested.
func (s *Store) Ledger(ctx context.Context) ([]LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_hash, file_name, record_kind, rows_inserted, rows_dropped, run_id, ingested_at
		FROM ingestion_log
		ORDER BY ingested_at ASC, file_name COLLATE BINARY ASC, file_hash ASC
	`)
	if err != nil {
		return nil, wrap("ledger", err)
	}
	defer rows.Close()

	entries := []LedgerEntry{}
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap("ledger", err)
	}

	return entries, nil
}

func scanLedgerEntry(rows *sql.Rows) (LedgerEntry, error) {
	var (
		e          LedgerEntry
		kind       string
		ingestedAt string
	)

	if err := rows.Scan(
		&e.FileHash,
		&e.FileName,
		&kind,
		&e.RowsInserted,
		&e.RowsDropped,
		&e.RunID,
		&ingestedAt,
	); err != nil {
		return LedgerEntry{}, wrap("ledger", fmt.Errorf("scan: %w", err))
	}

	e.Kind = record.Kind(kind)

	t, err := time.Parse(timeLayout, ingestedAt)
	if err != nil {
		return LedgerEntry{}, wrap("ledger", fmt.Errorf("parse ingested_at %q: %w", ingestedAt, err))
	}
	e.IngestedAt = t

	return e, nil
}
