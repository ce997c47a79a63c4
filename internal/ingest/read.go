package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/roach88/maude/internal/record"
)

// Delimiter and encoding names accepted by Options.
const (
	DelimiterAuto = "auto"

	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
	EncodingUTF8        = "utf-8"
)

// Options controls how source bytes become records.
type Options struct {
	// Delimiter is a single character, "tab", or "auto" to pick '|', tab or
	// ',' by counting them in the header line. Default "|".
	Delimiter string `yaml:"delimiter" json:"delimiter"`

	// Encoding of the source text. Default latin1.
	Encoding string `yaml:"encoding" json:"encoding"`
}

// DefaultOptions matches the FDA archive extracts: pipe-delimited latin1.
func DefaultOptions() Options {
	return Options{Delimiter: "|", Encoding: EncodingLatin1}
}

// Table is one delimited text inside a source file.
type Table struct {
	// Name is the file name, or "archive.zip/member.txt" for ZIP members.
	Name string

	// Header holds normalized, unique column names.
	Header []string

	// Rows are the accepted records, each exactly len(Header) wide.
	Rows [][]string

	// Dropped lists the malformed records that were skipped.
	Dropped []*ParseError
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSource parses a source file already loaded into memory.
// A .zip yields one Table per .csv/.txt member (sorted by member name,
// readme members skipped); anything else yields a single Table.
//
// Malformed records are reported in Table.Dropped. Whole-file problems
// (corrupt archive, unknown encoding, no header) return *FileError.
func ReadSource(name string, data []byte, opts Options) ([]Table, error) {
	if strings.EqualFold(path.Ext(name), ".zip") {
		return readZip(name, data, opts)
	}

	t, err := readTable(name, data, opts)
	if err != nil {
		return nil, err
	}
	return []Table{t}, nil
}

func readZip(name string, data []byte, opts Options) ([]Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &FileError{File: name, Err: fmt.Errorf("open archive: %w", err)}
	}

	var members []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !wanted(path.Base(f.Name), []string{".csv", ".txt"}) {
			continue
		}
		members = append(members, f)
	}
	slices.SortFunc(members, func(a, b *zip.File) int {
		return strings.Compare(a.Name, b.Name)
	})

	if len(members) == 0 {
		return nil, &FileError{File: name, Err: errors.New("archive has no data members")}
	}

	tables := make([]Table, 0, len(members))
	for _, f := range members {
		memberData, err := readMember(f)
		if err != nil {
			return nil, &FileError{File: name, Err: fmt.Errorf("read member %s: %w", f.Name, err)}
		}
		t, err := readTable(name+"/"+f.Name, memberData, opts)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}

	return tables, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// readTable decodes and parses one delimited text.
func readTable(name string, data []byte, opts Options) (Table, error) {
	text, err := decode(bytes.TrimPrefix(data, utf8BOM), opts.Encoding)
	if err != nil {
		return Table{}, &FileError{File: name, Err: err}
	}

	delim, err := delimiter(opts.Delimiter, text)
	if err != nil {
		return Table{}, &FileError{File: name, Err: err}
	}

	return parseTable(name, text, delim)
}

// decode converts source bytes to UTF-8 text.
func decode(data []byte, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingLatin1, "iso-8859-1", "latin-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode latin1: %w", err)
		}
		return string(out), nil
	case EncodingWindows1252, "cp1252":
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode windows-1252: %w", err)
		}
		return string(out), nil
	case EncodingUTF8, "utf8":
		if utf8.Valid(data) {
			return string(data), nil
		}
		return strings.ToValidUTF8(string(data), "\uFFFD"), nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// delimiter resolves the configured delimiter against the text.
func delimiter(configured, text string) (rune, error) {
	switch configured {
	case "":
		return '|', nil
	case DelimiterAuto:
		return sniffDelimiter(text), nil
	case "tab", `\t`:
		return '\t', nil
	}

	r, size := utf8.DecodeRuneInString(configured)
	if size != len(configured) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", configured)
	}
	return r, nil
}

// sniffDelimiter counts candidates in the first line. Ties go to the
// earlier candidate; no candidates at all means '|'.
func sniffDelimiter(text string) rune {
	line, _, _ := strings.Cut(text, "\n")

	best, bestCount := '|', 0
	for _, c := range []rune{'|', '\t', ','} {
		if n := strings.Count(line, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// parseTable reads the header and every record. Blank lines and records
// whose fields are all empty are skipped silently.
func parseTable(name, text string, delim rune) (Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	t := Table{Name: name}

	for t.Header == nil {
		raw, err := r.Read()
		if errors.Is(err, io.EOF) {
			return Table{}, &FileError{File: name, Err: errors.New("no header row")}
		}
		if err != nil {
			return Table{}, &FileError{File: name, Err: fmt.Errorf("read header: %w", err)}
		}
		if isEmptyRow(raw) {
			continue
		}
		t.Header = record.NormalizeHeader(trimTrailingEmpty(raw))
	}

	for {
		values, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				t.Dropped = append(t.Dropped, &ParseError{File: name, Line: pe.StartLine, Err: pe.Err})
				continue
			}
			return Table{}, &FileError{File: name, Err: err}
		}

		if isEmptyRow(values) {
			continue
		}

		if len(values) > len(t.Header) && isEmptyRow(values[len(t.Header):]) {
			values = values[:len(t.Header)]
		}
		if len(values) != len(t.Header) {
			line, _ := r.FieldPos(0)
			t.Dropped = append(t.Dropped, &ParseError{
				File: name,
				Line: line,
				Err:  fmt.Errorf("%w: got %d, header has %d", errFieldCount, len(values), len(t.Header)),
			})
			continue
		}

		t.Rows = append(t.Rows, values)
	}

	return t, nil
}

// trimTrailingEmpty drops empty header fields left by a trailing delimiter.
func trimTrailingEmpty(values []string) []string {
	n := len(values)
	for n > 0 && strings.TrimSpace(values[n-1]) == "" {
		n--
	}
	return values[:n]
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
