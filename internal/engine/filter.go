package engine

import (
	"github.com/roach88/maude/internal/queryir"
	"github.com/roach88/maude/internal/record"
)

// Matches reports whether fields satisfy the include/exclude groups on
// field. It is the in-memory twin of the SQL search.
func Matches(fields map[string]string, field string, include, exclude [][]string) bool {
	pred := queryir.Filter(record.NormalizeColumn(field), include, exclude)
	return queryir.Eval(pred, queryir.MapLookup(fields))
}

// Filter returns the records that match, keeping their order.
// It is part of the package's library surface for callers holding records
// outside the archive; the CLI and HTTP search filter in SQL. The scenario
// harness uses it to check SQL results against in-memory matching.
//
// Returns an empty slice (not nil) when nothing matches.
func Filter(records []Record, field string, include, exclude [][]string) []Record {
	pred := queryir.Filter(record.NormalizeColumn(field), include, exclude)

	out := []Record{}
	for _, rec := range records {
		if queryir.Eval(pred, queryir.MapLookup(rec.Fields)) {
			out = append(out, rec)
		}
	}
	return out
}
