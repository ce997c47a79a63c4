package queryir

import "github.com/roach88/maude/internal/record"

// Lookup returns a field's value and whether the field is present.
type Lookup func(field string) (string, bool)

// MapLookup adapts a plain map.
func MapLookup(m map[string]string) Lookup {
	return func(field string) (string, bool) {
		v, ok := m[field]
		return v, ok
	}
}

// Eval evaluates a predicate in Go with the same semantics as the SQL
// backend. A nil predicate is true.
func Eval(p Predicate, lookup Lookup) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Contains:
		return evalContains(pred, lookup)
	case *Contains:
		return evalContains(*pred, lookup)
	case AnyOf:
		return evalAny(pred.Predicates, lookup)
	case *AnyOf:
		return evalAny(pred.Predicates, lookup)
	case AllOf:
		return evalAll(pred.Predicates, lookup)
	case *AllOf:
		return evalAll(pred.Predicates, lookup)
	case Not:
		return !Eval(pred.Predicate, lookup)
	case *Not:
		return !Eval(pred.Predicate, lookup)
	default:
		return false
	}
}

func evalContains(c Contains, lookup Lookup) bool {
	v, ok := lookup(c.Field)
	if !ok {
		return false
	}
	return record.ContainsFold(v, c.Term)
}

func evalAny(preds []Predicate, lookup Lookup) bool {
	for _, p := range preds {
		if Eval(p, lookup) {
			return true
		}
	}
	return false
}

func evalAll(preds []Predicate, lookup Lookup) bool {
	for _, p := range preds {
		if !Eval(p, lookup) {
			return false
		}
	}
	return true
}
