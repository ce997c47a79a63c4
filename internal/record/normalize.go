package record

import (
	"strconv"
	"strings"
)

// KeyColumn is the storage key column present in every record table.
// Source headers that normalize to it are renamed by NormalizeHeader.
const KeyColumn = "row_hash"

// NormalizeColumn maps a raw header string to a canonical identifier.
//
// Rules, applied in order:
//  1. trim surrounding whitespace and lower-case
//  2. '-' and '.' become '_'
//  3. any other rune outside [a-z0-9_] becomes '_'
//  4. a leading digit gets a '_' prefix
//  5. an empty result becomes "column"
//
// The function is total. A pathological header degrades to underscores, it
// never blocks ingestion.
func NormalizeColumn(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			// '-', '.', and everything else
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out == "" {
		return "column"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// NormalizeHeader normalizes every column of a header row and makes the
// results unique within the row. The first occurrence keeps its name; later
// collisions, and any column that would shadow KeyColumn, get "_2", "_3", ...
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := map[string]bool{KeyColumn: true}

	for i, raw := range header {
		name := NormalizeColumn(raw)
		if seen[name] {
			base := name
			for n := 2; ; n++ {
				name = base + "_" + strconv.Itoa(n)
				if !seen[name] {
					break
				}
			}
		}
		seen[name] = true
		out[i] = name
	}

	return out
}
