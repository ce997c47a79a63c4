package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/maude/internal/record"
)

// LedgerEntry is one row of ingestion_log.
type LedgerEntry struct {
	FileHash     string      `json:"file_hash"`
	FileName     string      `json:"file_name"`
	Kind         record.Kind `json:"record_kind"`
	RowsInserted int         `json:"rows_inserted"`
	RowsDropped  int         `json:"rows_dropped"`
	RunID        string      `json:"run_id"`
	IngestedAt   time.Time   `json:"ingested_at"`
}

// FileTx groups every write for one source file.
// Nothing a FileTx writes is visible until Commit; Rollback discards
// widened columns, inserted rows and the ledger entry together.
//
// A FileTx holds the store's only connection. Do not call other Store
// methods until it is committed or rolled back.
type FileTx struct {
	ctx     context.Context
	tx      *sql.Tx
	columns map[record.Kind]map[string]bool
	stmts   map[string]*sql.Stmt
	done    bool
}

// BeginFile starts the transaction for one source file.
func (s *Store) BeginFile(ctx context.Context) (*FileTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap("begin file", err)
	}
	return &FileTx{
		ctx:     ctx,
		tx:      tx,
		columns: make(map[record.Kind]map[string]bool),
		stmts:   make(map[string]*sql.Stmt),
	}, nil
}

// EnsureColumns widens the kind's table so that it has every named column.
// Existing columns are never altered or removed.
func (f *FileTx) EnsureColumns(kind record.Kind, cols []string) error {
	table, err := tableFor(kind)
	if err != nil {
		return wrap("ensure columns", err)
	}

	have, err := f.tableColumns(kind)
	if err != nil {
		return err
	}

	for _, col := range cols {
		if have[col] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", table, QuoteIdent(col))
		if _, err := f.tx.ExecContext(f.ctx, stmt); err != nil {
			return wrap("ensure columns", fmt.Errorf("add %s.%s: %w", kind, col, err))
		}
		have[col] = true
	}

	return nil
}

// InsertRow inserts a row keyed by its fingerprint.
// Uses ON CONFLICT(row_hash) DO NOTHING: a row already in the table is left
// untouched and inserted is false. Missing columns are added first.
func (f *FileTx) InsertRow(row record.Row, hash string) (inserted bool, err error) {
	table, err := tableFor(row.Kind)
	if err != nil {
		return false, wrap("insert row", err)
	}

	cols := row.Columns()
	if err := f.EnsureColumns(row.Kind, cols); err != nil {
		return false, err
	}

	stmt, err := f.insertStmt(table, cols)
	if err != nil {
		return false, err
	}

	args := make([]any, 0, len(row.Fields)+1)
	args = append(args, hash)
	for _, field := range row.Fields {
		args = append(args, field.Value)
	}

	result, err := stmt.ExecContext(f.ctx, args...)
	if err != nil {
		return false, wrap("insert row", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, wrap("insert row", err)
	}

	return n > 0, nil
}

// RecordFile appends the file's ledger entry.
// Uses ON CONFLICT(file_hash) DO NOTHING, so recording the same content twice
// keeps the first entry and returns false.
func (f *FileTx) RecordFile(entry LedgerEntry) (bool, error) {
	if !entry.Kind.Valid() {
		return false, wrap("record file", fmt.Errorf("invalid record kind %q", entry.Kind))
	}

	result, err := f.tx.ExecContext(f.ctx, `
		INSERT INTO ingestion_log
		(file_hash, file_name, record_kind, rows_inserted, rows_dropped, run_id, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_hash) DO NOTHING
	`,
		entry.FileHash,
		entry.FileName,
		string(entry.Kind),
		entry.RowsInserted,
		entry.RowsDropped,
		entry.RunID,
		formatTime(entry.IngestedAt),
	)
	if err != nil {
		return false, wrap("record file", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, wrap("record file", err)
	}

	return n > 0, nil
}

// Commit makes the file's writes durable.
func (f *FileTx) Commit() error {
	if f.done {
		return wrap("commit", sql.ErrTxDone)
	}
	f.closeStmts()
	f.done = true
	return wrap("commit", f.tx.Commit())
}

// Rollback discards the file's writes. It is a no-op after Commit.
func (f *FileTx) Rollback() error {
	if f.done {
		return nil
	}
	f.closeStmts()
	f.done = true
	return wrap("rollback", f.tx.Rollback())
}

func (f *FileTx) closeStmts() {
	for _, stmt := range f.stmts {
		stmt.Close()
	}
	clear(f.stmts)
}

// tableColumns loads the kind's column set once per transaction.
func (f *FileTx) tableColumns(kind record.Kind) (map[string]bool, error) {
	if have, ok := f.columns[kind]; ok {
		return have, nil
	}

	cols, err := columnsOf(f.ctx, f.tx, kind)
	if err != nil {
		return nil, err
	}

	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	f.columns[kind] = have
	return have, nil
}

// insertStmt returns a prepared insert for a column list, cached per
// transaction. Rows of one file mostly share the same sparse shape.
func (f *FileTx) insertStmt(table string, cols []string) (*sql.Stmt, error) {
	key := table + "\x00" + strings.Join(cols, "\x00")
	if stmt, ok := f.stmts[key]; ok {
		return stmt, nil
	}

	quoted := make([]string, 0, len(cols)+1)
	quoted = append(quoted, QuoteIdent(record.KeyColumn))
	for _, c := range cols {
		quoted = append(quoted, QuoteIdent(c))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", ")

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO NOTHING",
		table,
		strings.Join(quoted, ", "),
		placeholders,
		QuoteIdent(record.KeyColumn),
	)

	stmt, err := f.tx.PrepareContext(f.ctx, query)
	if err != nil {
		return nil, wrap("insert row", fmt.Errorf("prepare: %w", err))
	}
	f.stmts[key] = stmt
	return stmt, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// columnsOf lists a kind table's source columns in table order, without the
// storage key.
func columnsOf(ctx context.Context, q queryer, kind record.Kind) ([]string, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, wrap("columns", err)
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT name FROM pragma_table_info(%s) ORDER BY cid", quoteLiteral(string(kind))))
	if err != nil {
		return nil, wrap("columns", fmt.Errorf("table info %s: %w", table, err))
	}
	defer rows.Close()

	cols := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrap("columns", err)
		}
		if name == record.KeyColumn {
			continue
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("columns", err)
	}

	return cols, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// timeLayout is fixed width so that ingested_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
