package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func text(s string) Lookup {
	return MapLookup(map[string]string{"foi_text": s})
}

func TestEval_AndOfOr(t *testing.T) {
	// (A OR B) AND C
	p := Filter("foi_text", [][]string{{"alpha", "beta"}, {"gamma"}}, nil)

	assert.True(t, Eval(p, text("alpha and gamma")), "A and C")
	assert.True(t, Eval(p, text("beta gamma")), "B and C")
	assert.False(t, Eval(p, text("alpha beta")), "A and B, no C")
}

func TestEval_Exclusion(t *testing.T) {
	p := Filter("foi_text", [][]string{{"MRI"}}, [][]string{{"ARTIFACT"}, {"SHADOW"}})

	assert.True(t, Eval(p, text("MRI with ARTIFACT")), "one exclude group is not enough")
	assert.False(t, Eval(p, text("MRI ARTIFACT SHADOW")), "all exclude groups matched")
	assert.True(t, Eval(p, text("MRI clean")))
	assert.False(t, Eval(p, text("CT ARTIFACT")), "include fails")
}

func TestEval_CaseInsensitive(t *testing.T) {
	p := Filter("foi_text", [][]string{{"mri"}}, nil)
	assert.True(t, Eval(p, text("MRI artifact")))
}

func TestEval_Substring(t *testing.T) {
	p := Filter("foi_text", [][]string{{"pace"}}, nil)
	assert.True(t, Eval(p, text("PACEMAKER")))
}

func TestEval_EmptyIncludeMatchesAll(t *testing.T) {
	p := Filter("foi_text", nil, nil)
	assert.True(t, Eval(p, text("")))
	assert.True(t, Eval(p, MapLookup(nil)))
}

func TestEval_EmptyTermIgnored(t *testing.T) {
	p := Filter("foi_text", [][]string{{""}}, nil)
	assert.False(t, Eval(p, text("anything")), "empty term must not match everything")

	p = Filter("foi_text", [][]string{{"", "lead"}}, nil)
	assert.True(t, Eval(p, text("LEAD fracture")))
	assert.False(t, Eval(p, text("battery")))
}

func TestEval_MissingField(t *testing.T) {
	p := Contains{Field: "foi_text", Term: "x"}
	assert.False(t, Eval(p, MapLookup(map[string]string{"other": "x"})))
	assert.True(t, Eval(Not{Predicate: p}, MapLookup(nil)))
}

func TestEval_EmptyConnectives(t *testing.T) {
	lookup := MapLookup(nil)
	assert.True(t, Eval(AllOf{}, lookup))
	assert.False(t, Eval(AnyOf{}, lookup))
	assert.True(t, Eval(nil, lookup))
	assert.True(t, Eval(&Not{Predicate: &AnyOf{}}, lookup))
}
