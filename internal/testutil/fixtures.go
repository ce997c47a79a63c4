package testutil

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

// PipeText renders a header and rows as a pipe-delimited extract, one
// record per line, with a trailing newline.
func PipeText(header []string, rows ...[]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, "|"))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(strings.Join(row, "|"))
		b.WriteString("\n")
	}
	return b.String()
}

// Latin1 encodes s as ISO-8859-1, the encoding of the FDA extracts.
// Panics if s has a rune outside Latin-1.
func Latin1(s string) []byte {
	out, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic("testutil.Latin1: " + err.Error())
	}
	return out
}

// ZipBytes builds an in-memory ZIP archive. Members are written in name order.
func ZipBytes(t testing.TB, members map[string][]byte) []byte {
	t.Helper()

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(members[name]); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to dir/name and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteZip writes a ZIP archive to dir/name and returns the full path.
func WriteZip(t testing.TB, dir, name string, members map[string][]byte) string {
	t.Helper()
	return WriteFile(t, dir, name, ZipBytes(t, members))
}

// WriteTruncatedZip writes the first half of a valid archive, which no ZIP
// reader can open.
func WriteTruncatedZip(t testing.TB, dir, name string, members map[string][]byte) string {
	t.Helper()
	data := ZipBytes(t, members)
	return WriteFile(t, dir, name, data[:len(data)/2])
}

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
