package record

import (
	"slices"
	"strings"
)

// Field is a single normalized column/value pair.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Row is one source record: a kind plus an ordered mapping of normalized
// column names to text values. Fields keep source column order; nothing
// downstream may rely on that order for identity.
type Row struct {
	Kind   Kind
	Fields []Field
}

// NewRow pairs a normalized header with one record's values.
// Values are trimmed. Empty values are omitted so that a column which is
// merely present-but-blank in one year's extract does not change the row.
// Values beyond the header length are ignored; callers reject such records
// before they get here.
func NewRow(kind Kind, header, values []string) Row {
	fields := make([]Field, 0, len(header))
	for i, name := range header {
		if i >= len(values) {
			break
		}
		v := strings.TrimSpace(values[i])
		if v == "" {
			continue
		}
		fields = append(fields, Field{Name: name, Value: v})
	}
	return Row{Kind: kind, Fields: fields}
}

// Get returns the value for a column and whether it is present.
func (r Row) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Columns returns the column names in source order.
func (r Row) Columns() []string {
	cols := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		cols[i] = f.Name
	}
	return cols
}

// Map returns the fields as a plain map.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// SortedFields returns a copy of the fields ordered by column name.
func (r Row) SortedFields() []Field {
	out := slices.Clone(r.Fields)
	slices.SortFunc(out, func(a, b Field) int {
		return compareKeysRFC8785(a.Name, b.Name)
	})
	return out
}
