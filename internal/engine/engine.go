package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/maude/internal/queryir"
	"github.com/roach88/maude/internal/querysql"
	"github.com/roach88/maude/internal/record"
	"github.com/roach88/maude/internal/store"
)

// SourcePrefix marks records that came from the local archive.
const SourcePrefix = "local_db:"

// Request is one term-match search.
type Request struct {
	// Table is a record kind ("device", "foitext", "foidev").
	// Empty searches every table that has Field.
	Table string `json:"table,omitempty"`

	// Field is the column to match against. It is normalized the same way
	// source headers are, so "FOI_TEXT" and "foi_text" are equivalent.
	Field string `json:"field"`

	// Include groups are AND-combined; terms within a group are OR-combined.
	// No groups matches every row.
	Include [][]string `json:"include,omitempty"`

	// Exclude groups use the same rule; a row is dropped only when every
	// exclude group matches.
	Exclude [][]string `json:"exclude,omitempty"`

	// Limit caps the number of records returned. 0 means no cap.
	Limit int `json:"limit,omitempty"`
}

// Record is one matching row.
type Record struct {
	Kind   record.Kind       `json:"table"`
	Source string            `json:"_source"`
	Hash   string            `json:"row_hash"`
	Fields map[string]string `json:"fields"`
}

// Engine runs searches against a store.
type Engine struct {
	store    *store.Store
	compiler *querysql.SQLCompiler
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine reading from s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		compiler: querysql.NewSQLCompiler(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query runs a search and returns matching records in storage order,
// table by table.
//
// Returns an empty slice (not nil) when nothing matches.
// Returns *ValidationError, with no records, for an unknown table, an
// unknown field or a negative limit.
func (e *Engine) Query(ctx context.Context, req Request) ([]Record, error) {
	if req.Limit < 0 {
		return nil, &ValidationError{Kind: InvalidLimit, Value: fmt.Sprint(req.Limit)}
	}

	field := record.NormalizeColumn(req.Field)
	if strings.TrimSpace(req.Field) == "" {
		return nil, &ValidationError{Kind: InvalidField, Value: req.Field, Table: req.Table}
	}

	kinds, err := e.resolveTables(ctx, req.Table, req.Field, field)
	if err != nil {
		return nil, err
	}

	records := []Record{}
	for _, kind := range kinds {
		limit := 0
		if req.Limit > 0 {
			limit = req.Limit - len(records)
			if limit <= 0 {
				break
			}
		}

		q := queryir.FromGroups(string(kind), field, req.Include, req.Exclude, limit)
		found, err := e.run(ctx, kind, q)
		if err != nil {
			return nil, err
		}
		records = append(records, found...)
	}

	e.logger.Debug("query complete",
		"table", req.Table,
		"field", field,
		"include_groups", len(req.Include),
		"exclude_groups", len(req.Exclude),
		"records", len(records),
	)

	return records, nil
}

// Tables returns the tables that have a column, in record.Kinds order.
func (e *Engine) Tables(ctx context.Context, field string) ([]record.Kind, error) {
	field = record.NormalizeColumn(field)

	var kinds []record.Kind
	for _, kind := range record.Kinds() {
		cols, err := e.store.Columns(ctx, kind)
		if err != nil {
			return nil, err
		}
		if slices.Contains(cols, field) {
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// resolveTables validates the table and field and returns the tables to
// search. raw is the field as supplied, used in error messages.
func (e *Engine) resolveTables(ctx context.Context, table, raw, field string) ([]record.Kind, error) {
	if table == "" {
		kinds, err := e.Tables(ctx, field)
		if err != nil {
			return nil, fmt.Errorf("resolve tables: %w", err)
		}
		if len(kinds) == 0 {
			return nil, &ValidationError{Kind: InvalidField, Value: raw}
		}
		return kinds, nil
	}

	kind, err := record.ParseKind(strings.ToLower(strings.TrimSpace(table)))
	if err != nil {
		return nil, &ValidationError{Kind: InvalidTable, Value: table}
	}

	cols, err := e.store.Columns(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("resolve tables: %w", err)
	}
	if !slices.Contains(cols, field) {
		return nil, &ValidationError{Kind: InvalidField, Value: raw, Table: string(kind)}
	}

	return []record.Kind{kind}, nil
}

// run compiles and executes one Select and scans every row.
func (e *Engine) run(ctx context.Context, kind record.Kind, q queryir.Select) ([]Record, error) {
	sqlStr, params, err := e.compiler.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	rows, err := e.store.Query(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows, kind, cols)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return records, nil
}

// scanRecord reads one row. NULL columns are left out of Fields, matching
// how sparse rows were written.
func scanRecord(rows *sql.Rows, kind record.Kind, cols []string) (Record, error) {
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := rows.Scan(dest...); err != nil {
		return Record{}, err
	}

	rec := Record{
		Kind:   kind,
		Source: SourcePrefix + string(kind),
		Fields: make(map[string]string, len(cols)),
	}
	for i, col := range cols {
		if !values[i].Valid {
			continue
		}
		if col == record.KeyColumn {
			rec.Hash = values[i].String
			continue
		}
		rec.Fields[col] = values[i].String
	}

	return rec, nil
}
