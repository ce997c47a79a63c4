package queryir

// Query represents an abstract query in the IR.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in the IR.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select reads rows from one record table.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY storage order LIMIT <limit>
//
// Columns nil means every column. Filter nil means no filtering.
// Limit 0 means no cap; negative limits are rejected by Validate.
type Select struct {
	From    string    `json:"from"`
	Columns []string  `json:"columns,omitempty"`
	Filter  Predicate `json:"filter,omitempty"`
	Limit   int       `json:"limit,omitempty"`
}

func (Select) queryNode() {}

// Contains is a case-insensitive substring test on one field.
//
//	Contains{Field: "foi_text", Term: "mri"}
//
// matches a field value of "MRI artifact observed".
type Contains struct {
	Field string `json:"field"`
	Term  string `json:"term"`
}

func (Contains) predicateNode() {}

// AnyOf is true if any predicate is true (OR).
// Empty Predicates means "never true".
type AnyOf struct {
	Predicates []Predicate `json:"any_of"`
}

func (AnyOf) predicateNode() {}

// AllOf is true if every predicate is true (AND).
// Empty Predicates means "always true" (vacuous truth).
type AllOf struct {
	Predicates []Predicate `json:"all_of"`
}

func (AllOf) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate `json:"not"`
}

func (Not) predicateNode() {}
