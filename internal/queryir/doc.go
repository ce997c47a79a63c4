// Package queryir provides the query intermediate representation (IR) for
// term-match searches over the archive.
//
// The IR sits between request parsing and the backends that execute it:
//
//	[include/exclude groups] → [Query IR] → [SQL backend]   (querysql)
//	                                      → [in-memory Eval] (engine.Filter)
//
// Both backends must agree on every predicate so that rows read from the
// archive and records fetched elsewhere can be merged under one filter.
//
// PREDICATES:
//
//   - Contains(field, term): case-insensitive substring match. An empty term
//     never matches, and a missing or NULL field never matches.
//   - AnyOf(p...): OR. Empty AnyOf is false.
//   - AllOf(p...): AND. Empty AllOf is true.
//   - Not(p): negation.
//
// GROUP EXPRESSIONS:
//
// A term group is a list of alternative terms (OR). An include expression is
// an ordered list of groups that must all match (AND). An exclude expression
// uses the same rule, and a row is discarded only when every exclude group
// matches:
//
//	AllOf(include...) AND NOT AllOf(exclude...)
//
// FromGroups builds that shape. With no exclude groups the NOT clause is
// omitted entirely.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Contains:
//	case AnyOf:
//	case AllOf:
//	case Not:
//	}
package queryir
