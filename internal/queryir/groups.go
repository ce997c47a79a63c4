package queryir

import "strings"

// Group converts one term group into an AnyOf over field.
// Terms are trimmed and empty terms are dropped, so a group made only of
// empty terms is AnyOf{} and never matches.
func Group(field string, terms []string) AnyOf {
	preds := make([]Predicate, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		preds = append(preds, Contains{Field: field, Term: term})
	}
	return AnyOf{Predicates: preds}
}

// Groups converts a group expression into an AllOf of AnyOf groups.
// No groups yields AllOf{}, which matches every row.
func Groups(field string, groups [][]string) AllOf {
	preds := make([]Predicate, 0, len(groups))
	for _, g := range groups {
		preds = append(preds, Group(field, g))
	}
	return AllOf{Predicates: preds}
}

// Filter builds the predicate for an include/exclude request:
//
//	AllOf(include) AND NOT AllOf(exclude)
//
// The NOT clause is left out when there are no exclude groups.
func Filter(field string, include, exclude [][]string) Predicate {
	inc := Groups(field, include)
	if len(exclude) == 0 {
		return inc
	}
	return AllOf{Predicates: []Predicate{
		inc,
		Not{Predicate: Groups(field, exclude)},
	}}
}

// FromGroups builds the Select for a term-match search on one table.
func FromGroups(table, field string, include, exclude [][]string, limit int) Select {
	return Select{
		From:   table,
		Filter: Filter(field, include, exclude),
		Limit:  limit,
	}
}

// SplitTerms parses "a, b ,c" into trimmed terms, dropping empties.
// Used by the CLI and HTTP surfaces, where one group is one argument.
func SplitTerms(s string) []string {
	parts := strings.Split(s, ",")
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

// Fields returns every distinct field a predicate reads, in first-seen order.
func Fields(p Predicate) []string {
	var out []string
	seen := map[string]bool{}
	walk(p, func(c Contains) {
		if !seen[c.Field] {
			seen[c.Field] = true
			out = append(out, c.Field)
		}
	})
	return out
}

func walk(p Predicate, fn func(Contains)) {
	switch pred := p.(type) {
	case Contains:
		fn(pred)
	case *Contains:
		fn(*pred)
	case AnyOf:
		for _, sub := range pred.Predicates {
			walk(sub, fn)
		}
	case *AnyOf:
		walk(*pred, fn)
	case AllOf:
		for _, sub := range pred.Predicates {
			walk(sub, fn)
		}
	case *AllOf:
		walk(*pred, fn)
	case Not:
		walk(pred.Predicate, fn)
	case *Not:
		walk(*pred, fn)
	}
}
