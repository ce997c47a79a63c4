package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/maude/internal/testutil"
)

func TestDiscover_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"foitext1996.zip",
		"device2000.ZIP",
		"DEVICE_README.txt",
		"notes.md",
		"foidev1998.txt",
		"extra.csv",
	} {
		testutil.WriteFile(t, dir, name, []byte("x"))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.zip"), 0o755))

	paths, err := Discover(dir, nil)
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"device2000.ZIP", "extra.csv", "foidev1998.txt", "foitext1996.zip"}, names)
}

func TestDiscover_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.zip", []byte("x"))
	testutil.WriteFile(t, dir, "b.txt", []byte("x"))

	paths, err := Discover(dir, []string{".zip"})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "a.zip", filepath.Base(paths[0]))
}

func TestDiscover_MissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestDiscover_Empty(t *testing.T) {
	paths, err := Discover(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Empty(t, paths)
}
