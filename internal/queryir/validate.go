package queryir

import "fmt"

// ValidationResult lists structural problems found in a query.
//
// Validate only checks shape. Whether a table or field exists is the
// engine's job, since that depends on what has been ingested.
type ValidationResult struct {
	// IsValid is true when Problems is empty.
	IsValid bool

	// Problems describes each defect found, in traversal order.
	Problems []string
}

// Err returns the first problem as an error, or nil.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return fmt.Errorf("invalid query: %s", r.Problems[0])
}

// Validate checks a query for structural problems:
//  1. Select must name a table
//  2. Limit must not be negative
//  3. Contains must name a field
//  4. Not must wrap a predicate
//  5. No nil predicates inside AnyOf/AllOf
//
// An empty Contains term is not a problem: it is legal and never matches.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addProblem("select has no table")
	}
	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Contains:
		v.validateContains(pred)
	case *Contains:
		v.validateContains(*pred)
	case AnyOf:
		v.validateList("any_of", pred.Predicates)
	case *AnyOf:
		v.validateList("any_of", pred.Predicates)
	case AllOf:
		v.validateList("all_of", pred.Predicates)
	case *AllOf:
		v.validateList("all_of", pred.Predicates)
	case Not:
		v.validateNot(pred)
	case *Not:
		v.validateNot(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateContains(c Contains) {
	if c.Field == "" {
		v.addProblem("contains %q has no field", c.Term)
	}
}

func (v *validator) validateList(name string, preds []Predicate) {
	for i, sub := range preds {
		if sub == nil {
			v.addProblem("%s[%d] is nil", name, i)
			continue
		}
		v.validatePredicate(sub)
	}
}

func (v *validator) validateNot(n Not) {
	if n.Predicate == nil {
		v.addProblem("not has no predicate")
		return
	}
	v.validatePredicate(n.Predicate)
}
