package ontology

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	saterrors "github.com/adalundhe/saturn/core/errors"
)

var (
	clsA  = Class("A")
	clsB  = Class("B")
	clsC  = Class("C")
	propR = ObjectProperty("R")
	propS = ObjectProperty("S")
)

func newTestIndex(t *testing.T, axioms ...Axiom) *Index {
	t.Helper()
	x := NewIndex(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, x.Add(axioms...))
	return x
}

func lookup(t *testing.T, x *Index, e Expr) *ClassExpression {
	t.Helper()
	ce, ok := x.Lookup(e)
	require.True(t, ok, "%s is not indexed", e)
	return ce
}

func superClasses(ce *ClassExpression) []*ClassExpression {
	r, ok := ce.rules.Find(RuleSuperClasses)
	if !ok {
		return nil
	}
	return r.(*SuperClassRule).Supers
}

func TestNewIndex(t *testing.T) {
	x := newTestIndex(t)

	assert.Equal(t, ThingIRI, x.Thing().IRI())
	assert.Equal(t, NothingIRI, x.Nothing().IRI())
	assert.Len(t, x.Classes(), 2)
	assert.Empty(t, x.Individuals())
	assert.Zero(t, x.AxiomCount())

	_, ok := x.ContextInitRules().Find(RuleContextRoot)
	assert.True(t, ok)
	_, ok = x.ContextInitRules().Find(RuleOwlThing)
	assert.False(t, ok, "owl:Thing does not occur negatively")
}

func TestAdd_SubClassOfOccurrences(t *testing.T) {
	x := newTestIndex(t, SubClassOf(clsA, clsB))

	a := lookup(t, x, clsA)
	b := lookup(t, x, clsB)
	assert.True(t, a.OccursNegatively())
	assert.False(t, a.OccursPositively())
	assert.True(t, b.OccursPositively())
	assert.False(t, b.OccursNegatively())
	assert.Equal(t, []*ClassExpression{b}, superClasses(a))
}

func TestAdd_ConjunctionRegistersOnBothConjuncts(t *testing.T) {
	x := newTestIndex(t, SubClassOf(And(clsA, clsB), clsC))

	a := lookup(t, x, clsA)
	b := lookup(t, x, clsB)
	conj := lookup(t, x, And(clsA, clsB))
	first, second := conj.Conjuncts()
	assert.ElementsMatch(t, []*ClassExpression{a, b}, []*ClassExpression{first, second})

	for _, owner := range []*ClassExpression{a, b} {
		r, ok := owner.rules.Find(RuleConjunctions)
		require.True(t, ok, owner.String())
		assert.NotEmpty(t, r.(*ConjunctionRule).ByConjunct)
	}
}

func TestAdd_ExistentialRegistersOnFiller(t *testing.T) {
	x := newTestIndex(t, SubClassOf(Some(propR, clsA), clsB))

	a := lookup(t, x, clsA)
	ex := lookup(t, x, Some(propR, clsA))
	r, ok := a.rules.Find(RuleExistentials)
	require.True(t, ok)
	assert.Equal(t, []*ClassExpression{ex}, r.(*ExistentialRule).Existentials)
	assert.Same(t, a, ex.Filler())

	p, ok := x.LookupProperty("R")
	require.True(t, ok)
	assert.Same(t, p, ex.Property())
}

func TestAdd_ThingOccurringNegatively(t *testing.T) {
	x := newTestIndex(t, SubClassOf(Thing(), clsA))

	_, ok := x.ContextInitRules().Find(RuleOwlThing)
	assert.True(t, ok)

	require.NoError(t, x.Remove(SubClassOf(Thing(), clsA)))
	_, ok = x.ContextInitRules().Find(RuleOwlThing)
	assert.False(t, ok)
}

func TestAdd_DisjointnessMakesNothingPositive(t *testing.T) {
	x := newTestIndex(t)
	assert.False(t, x.Nothing().OccursPositively())

	require.NoError(t, x.Add(DisjointClasses(clsA, clsB)))
	assert.True(t, x.Nothing().OccursPositively())
	_, ok := x.Nothing().rules.Find(RuleContradiction)
	assert.True(t, ok)

	a := lookup(t, x, clsA)
	r, ok := a.rules.Find(RuleDisjointness)
	require.True(t, ok)
	assert.Len(t, r.(*DisjointnessRule).Axioms, 1)

	require.NoError(t, x.Remove(DisjointClasses(clsA, clsB)))
	assert.False(t, x.Nothing().OccursPositively())
	_, ok = x.Lookup(clsA)
	assert.False(t, ok, "A no longer occurs")
}

func TestAdd_DisjointDuplicateMemberIsUnsatisfiable(t *testing.T) {
	x := newTestIndex(t, DisjointClasses(clsA, clsA))

	a := lookup(t, x, clsA)
	assert.Equal(t, []*ClassExpression{x.Nothing()}, superClasses(a))
	_, ok := a.rules.Find(RuleDisjointness)
	assert.False(t, ok)
}

func TestAdd_ValidationLeavesIndexUnchanged(t *testing.T) {
	x := newTestIndex(t, SubClassOf(clsA, clsB))

	err := x.Add(SubClassOf(clsC, clsA), Axiom{Kind: AxiomSubClassOf, Classes: []Expr{clsC}})
	require.Error(t, err)
	assert.Equal(t, saterrors.ClassInput, saterrors.GetClass(err))
	assert.Equal(t, 1, x.AxiomCount())
	_, ok := x.Lookup(clsC)
	assert.False(t, ok)
}

func TestAdd_DataHasValue(t *testing.T) {
	age42 := DataHasValue("age", "42")
	x := newTestIndex(t,
		SubClassOf(age42, clsA),
		ClassAssertion(age42, "ind"),
		SubClassOf(clsB, DataHasValue("age", "7")),
	)

	v := lookup(t, x, age42)
	assert.Equal(t, KindDataHasValue, v.Kind())
	assert.Equal(t, "age", v.IRI())
	assert.Equal(t, "42", v.Value())
	assert.False(t, v.IsNamed())
	assert.True(t, v.OccursNegatively())
	assert.True(t, v.OccursPositively())
	assert.Equal(t, []*ClassExpression{lookup(t, x, clsA)}, superClasses(v))
	assert.NotSame(t, v, lookup(t, x, DataHasValue("age", "7")))
	assert.Equal(t, `∃age.{"42"}`, v.String())

	for _, c := range x.Classes() {
		assert.NotEqual(t, KindDataHasValue, c.Kind(), "not a named class")
	}

	require.NoError(t, x.Remove(SubClassOf(age42, clsA), ClassAssertion(age42, "ind")))
	_, ok := x.Lookup(age42)
	assert.False(t, ok)
}

func TestRemove_Multiplicity(t *testing.T) {
	sub := SubClassOf(clsA, clsB)
	x := newTestIndex(t, sub, sub)
	assert.Equal(t, 2, x.AxiomCount())
	assert.Equal(t, []Axiom{sub, sub}, x.Axioms())

	require.NoError(t, x.Remove(sub))
	a := lookup(t, x, clsA)
	assert.Len(t, superClasses(a), 1)

	require.NoError(t, x.Remove(sub))
	assert.Zero(t, x.AxiomCount())
	_, ok := x.Lookup(clsA)
	assert.False(t, ok)
}

func TestRemove_NotLoaded(t *testing.T) {
	sub := SubClassOf(clsA, clsB)
	x := newTestIndex(t, sub)

	err := x.Remove(sub, sub)
	assert.ErrorIs(t, err, saterrors.ErrAxiomNotFound)
	assert.Equal(t, 1, x.AxiomCount(), "nothing is removed")

	err = x.Remove(SubClassOf(clsB, clsC))
	assert.ErrorIs(t, err, saterrors.ErrAxiomNotFound)
}

func TestRemovedIndividualGetsNewID(t *testing.T) {
	assertion := ClassAssertion(clsA, "ind")
	x := newTestIndex(t, assertion)
	ind, ok := x.LookupIndividual("ind")
	require.True(t, ok)
	old := ind.ID()

	require.NoError(t, x.Remove(assertion))
	_, ok = x.LookupIndividual("ind")
	assert.False(t, ok)

	require.NoError(t, x.Add(assertion))
	ind, ok = x.LookupIndividual("ind")
	require.True(t, ok)
	assert.NotEqual(t, old, ind.ID())
	assert.LessOrEqual(t, ind.ID(), x.MaxID())
}

func TestUpdateOccurrences_NegativeIsInvariantViolation(t *testing.T) {
	x := newTestIndex(t, SubClassOf(clsA, clsB))
	a := lookup(t, x, clsA)

	err := x.updateOccurrences(a, 0, -2)
	assert.ErrorIs(t, err, saterrors.ErrUnexpectedIndexing)
	assert.True(t, saterrors.IsFatal(err))
}

func TestChangeTracking(t *testing.T) {
	x := newTestIndex(t, SubClassOf(clsA, clsB))
	assert.False(t, x.IsTrackingChanges())
	assert.True(t, x.TakeChanges().IsEmpty())

	x.TrackChanges(true)
	require.NoError(t, x.Add(SubClassOf(clsB, clsC)))
	require.NoError(t, x.Remove(SubClassOf(clsA, clsB)))

	changes := x.TakeChanges()
	assert.False(t, changes.IsEmpty())
	assert.True(t, changes.HasRemovals())
	assert.False(t, changes.PropertiesChanged)

	b := lookup(t, x, clsB)
	assert.Equal(t, []*ClassExpression{b}, changes.AddedKeys())
	require.Len(t, changes.RemovedKeys(), 1)
	assert.Equal(t, "A", changes.RemovedKeys()[0].IRI())
	require.Len(t, changes.RemovedExpressions, 1)
	assert.Equal(t, "A", changes.RemovedExpressions[0].IRI())

	assert.True(t, x.TakeChanges().IsEmpty(), "taking resets the change set")

	require.NoError(t, x.Add(SubObjectPropertyOf(propR, propS)))
	assert.True(t, x.TakeChanges().PropertiesChanged)

	x.TrackChanges(false)
	require.NoError(t, x.Add(SubClassOf(clsC, clsA)))
	assert.True(t, x.TakeChanges().IsEmpty())
}

func TestClassesAndIndividualsOrdering(t *testing.T) {
	x := newTestIndex(t,
		SubClassOf(Class("Z"), Class("M")),
		ClassAssertion(Class("M"), "b"),
		ClassAssertion(Class("M"), "a"),
	)

	var classes []string
	for _, c := range x.Classes() {
		classes = append(classes, c.IRI())
	}
	assert.Equal(t, []string{"M", "Z", NothingIRI, ThingIRI}, classes)

	var inds []string
	for _, i := range x.Individuals() {
		inds = append(inds, i.String())
	}
	assert.Equal(t, []string{"{a}", "{b}"}, inds)
}

func TestAxiomJSON(t *testing.T) {
	axioms := []Axiom{
		SubClassOf(And(clsA, Some(propR, clsB)), clsC),
		ObjectPropertyAssertion(propR, "a", "b"),
		SubObjectPropertyOf(ChainOf("R", "S"), propS),
		ClassAssertion(DataHasValue("age", "42"), "a"),
	}
	data, err := json.Marshal(axioms)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"SubClassOf"`)
	assert.Contains(t, string(data), `"kind":"existential"`)
	assert.Contains(t, string(data), `"kind":"data-has-value"`)

	var decoded []Axiom
	require.NoError(t, json.Unmarshal(data, &decoded))
	for i := range axioms {
		assert.Equal(t, axioms[i].String(), decoded[i].String())
	}

	var bad Axiom
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"Nope"}`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"SubClassOf","classes":[{"kind":"nominal"}]}`), &bad))
}

func TestAxiomValidate(t *testing.T) {
	tests := []struct {
		name  string
		axiom Axiom
		ok    bool
	}{
		{"subclass", SubClassOf(clsA, clsB), true},
		{"chain as sub-property", SubObjectPropertyOf(ChainOf("R", "S"), propR), true},
		{"chain as super-property", SubObjectPropertyOf(propR, ChainOf("R", "S")), false},
		{"single disjoint member", DisjointClasses(clsA), false},
		{"empty individual", ClassAssertion(clsA, ""), false},
		{"empty conjunction", SubClassOf(And(), clsA), false},
		{"data has value", SubClassOf(DataHasValue("age", ""), clsA), true},
		{"data has value without property", SubClassOf(DataHasValue("", "42"), clsA), false},
		{"unknown kind", Axiom{Kind: AxiomKind(99)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.axiom.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAxiomString(t *testing.T) {
	assert.Equal(t, "SubClassOf(A B)", SubClassOf(clsA, clsB).String())
	assert.Equal(t, "ClassAssertion(A ind)", ClassAssertion(clsA, "ind").String())
	assert.Equal(t, "ObjectPropertyAssertion(R a b)", ObjectPropertyAssertion(propR, "a", "b").String())
	assert.Equal(t, `ClassAssertion(DataHasValue(age "42") ind)`, ClassAssertion(DataHasValue("age", "42"), "ind").String())
}
