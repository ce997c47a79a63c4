package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtensions are the source file types picked up by Discover.
var DefaultExtensions = []string{".zip", ".csv", ".txt"}

// Discover lists candidate source files in dir, sorted by name.
// It does not descend into subdirectories. Names containing "readme" are
// skipped, as are files whose extension is not in exts (compared lower-case).
// A nil exts means DefaultExtensions.
func Discover(dir string, exts []string) ([]string, error) {
	if exts == nil {
		exts = DefaultExtensions
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !wanted(name, exts) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}

	slices.Sort(paths)
	return paths, nil
}

func wanted(name string, exts []string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "readme") {
		return false
	}
	return slices.Contains(exts, filepath.Ext(lower))
}
