package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for a row, used only for
// fingerprinting:
//
//	{"fields":{"<col>":"<value>",...},"kind":"<kind>"}
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (RFC 8785), not UTF-8 bytes
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. U+2028 and U+2029 are emitted literally, not escaped
func MarshalCanonical(r Row) ([]byte, error) {
	if !r.Kind.Valid() {
		return nil, fmt.Errorf("canonical row: invalid kind %q", r.Kind)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"fields":{`)

	fields := r.SortedFields()
	for i, f := range fields {
		if i > 0 && fields[i-1].Name == f.Name {
			return nil, fmt.Errorf("canonical row: duplicate column %q", f.Name)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(&buf, f.Name); err != nil {
			return nil, fmt.Errorf("key %q: %w", f.Name, err)
		}
		buf.WriteByte(':')
		if err := writeCanonicalString(&buf, f.Value); err != nil {
			return nil, fmt.Errorf("value for key %q: %w", f.Name, err)
		}
	}

	buf.WriteString(`},"kind":`)
	if err := writeCanonicalString(&buf, string(r.Kind)); err != nil {
		return nil, err
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// writeCanonicalString appends an NFC-normalized JSON string.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}

	// json.Encoder adds trailing newline
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal runes. An escaped backslash followed by
// the text "u2028" is left untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 >= len(data) {
			out = append(out, data[i])
			continue
		}
		if i+5 < len(data) && data[i+1] == 'u' && string(data[i+2:i+5]) == "202" &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		// Any other escape: copy both bytes so the escaped char is never
		// mistaken for the start of a new escape.
		out = append(out, data[i], data[i+1])
		i++
	}
	return out
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
// Go's default string comparison uses UTF-8, which orders supplementary
// plane characters differently.
func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
