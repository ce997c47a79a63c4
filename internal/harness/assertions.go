package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/maude/internal/record"
	"github.com/roach88/maude/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			switch event.Type {
			case StepIngest:
				fmt.Fprintf(&buf, "  [%d] ingest: %d processed, %d skipped, %d errored\n",
					event.Seq, event.Processed, event.Skipped, event.Errored)
			case StepQuery:
				fmt.Fprintf(&buf, "  [%d] query %s: %d records\n", event.Seq, event.Query.Field, event.Count)
			}
		}
	}

	return buf.String()
}

// AssertionContext gives assertions access to the final database.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

func assertTableRows(actx *AssertionContext, a Assertion) error {
	stats, err := actx.Store.Stats(actx.Ctx)
	if err != nil {
		return fmt.Errorf("table_rows: %w", err)
	}
	for _, t := range stats.Tables {
		if string(t.Kind) != a.Table {
			continue
		}
		if t.Rows != int64(a.Count) {
			return &AssertionError{
				Type:     AssertTableRows,
				Expected: fmt.Sprintf("%d rows in %s", a.Count, a.Table),
				Actual:   fmt.Sprintf("%d rows", t.Rows),
			}
		}
		return nil
	}
	return fmt.Errorf("table_rows: no table %q", a.Table)
}

func assertTableColumns(actx *AssertionContext, a Assertion) error {
	cols, err := actx.Store.Columns(actx.Ctx, record.Kind(a.Table))
	if err != nil {
		return fmt.Errorf("table_columns: %w", err)
	}
	if !slices.Equal(cols, a.Columns) {
		return &AssertionError{
			Type:     AssertTableColumns,
			Expected: fmt.Sprintf("%s columns %v", a.Table, a.Columns),
			Actual:   fmt.Sprintf("%v", cols),
		}
	}
	return nil
}

func assertLedgerCount(actx *AssertionContext, a Assertion) error {
	entries, err := actx.Store.Ledger(actx.Ctx)
	if err != nil {
		return fmt.Errorf("ledger_count: %w", err)
	}
	if len(entries) != a.Count {
		return &AssertionError{
			Type:     AssertLedgerCount,
			Expected: fmt.Sprintf("%d ledger entries", a.Count),
			Actual:   fmt.Sprintf("%d ledger entries", len(entries)),
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == a.Step {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s steps", a.Count, a.Step),
			Actual:   fmt.Sprintf("%d %s steps", count, a.Step),
			Trace:    trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		needsStore := assertion.Type != AssertTraceCount
		if needsStore && (actx == nil || actx.Store == nil) {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %s requires database context", i, assertion.Type))
			continue
		}

		switch assertion.Type {
		case AssertTableRows:
			err = assertTableRows(actx, assertion)
		case AssertTableColumns:
			err = assertTableColumns(actx, assertion)
		case AssertLedgerCount:
			err = assertLedgerCount(actx, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
