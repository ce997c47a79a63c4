package testutil

import (
	"fmt"
	"sync"
)

// SequenceRunIDs generates "<prefix>-1", "<prefix>-2", ... run IDs.
//
// This enables deterministic test execution and golden snapshot comparison.
// Implements ingest.RunIDGenerator.
//
// Thread-safety: SequenceRunIDs is safe for concurrent use via internal mutex.
type SequenceRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceRunIDs creates a generator. An empty prefix becomes "run".
func NewSequenceRunIDs(prefix string) *SequenceRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequenceRunIDs{prefix: prefix}
}

// Generate returns the next run ID.
func (g *SequenceRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// FixedRunID generates the same run ID every time.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID string

// Generate returns the fixed run ID, or "test-run" if empty.
func (f FixedRunID) Generate() string {
	if f == "" {
		return "test-run"
	}
	return string(f)
}
