package record

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s used for term matching.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether term occurs in value, ignoring case.
// Matching is substring, not word boundary. An empty term never matches,
// so a blank term cannot turn a filter into match-everything.
func ContainsFold(value, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(Fold(value), Fold(term))
}
