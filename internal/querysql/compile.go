package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/maude/internal/queryir"
	"github.com/roach88/maude/internal/store"
)

// SQLCompiler compiles query IR to parameterized SQL for the archive store.
//
// Every query is ordered by rowid, which is storage (insertion) order.
// Terms are always parameterized, never interpolated; identifiers are quoted.
// Substring tests use the contains_fold function registered by the store
// driver, so LIKE wildcards in user terms have no special meaning.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}

	if result := queryir.Validate(q); !result.IsValid {
		return "", nil, result.Err()
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var sb strings.Builder
	var params []any

	sb.WriteString("SELECT ")
	sb.WriteString(c.compileColumns(q.Columns))
	sb.WriteString(" FROM ")
	sb.WriteString(store.QuoteIdent(q.From))

	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(filterSQL)
		params = append(params, filterParams...)
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(stableOrderKey())

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}

	return sb.String(), params, nil
}

// compileColumns renders the select list. Nil means every column.
func (c *SQLCompiler) compileColumns(cols []string) string {
	if len(cols) == 0 {
		return "*"
	}
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = store.QuoteIdent(col)
	}
	return strings.Join(quoted, ", ")
}

// stableOrderKey is the ORDER BY for every query: storage order.
func stableOrderKey() string {
	return "rowid ASC"
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Contains:
		return c.compileContains(pred)
	case *queryir.Contains:
		return c.compileContains(*pred)
	case queryir.AnyOf:
		return c.compileList(pred.Predicates, " OR ", "1 = 0")
	case *queryir.AnyOf:
		return c.compileList(pred.Predicates, " OR ", "1 = 0")
	case queryir.AllOf:
		return c.compileList(pred.Predicates, " AND ", "1 = 1")
	case *queryir.AllOf:
		return c.compileList(pred.Predicates, " AND ", "1 = 1")
	case queryir.Not:
		return c.compileNot(pred)
	case *queryir.Not:
		return c.compileNot(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileContains compiles to contains_fold("field", ?).
// An empty term still compiles; contains_fold never matches it.
func (c *SQLCompiler) compileContains(ct queryir.Contains) (string, []any, error) {
	return fmt.Sprintf("contains_fold(%s, ?)", store.QuoteIdent(ct.Field)), []any{ct.Term}, nil
}

// compileList joins sub-predicates with op. An empty list compiles to
// identity, a single predicate compiles to itself, anything longer is
// parenthesized.
func (c *SQLCompiler) compileList(preds []queryir.Predicate, op, identity string) (string, []any, error) {
	if len(preds) == 0 {
		return identity, nil, nil
	}

	parts := make([]string, 0, len(preds))
	var params []any
	for _, pred := range preds {
		sql, subParams, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}

	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, op) + ")", params, nil
}

func (c *SQLCompiler) compileNot(n queryir.Not) (string, []any, error) {
	sql, params, err := c.compilePredicate(n.Predicate)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", params, nil
}
