package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saturatedIndex(t *testing.T, axioms ...Axiom) *Index {
	t.Helper()
	x := newTestIndex(t, axioms...)
	require.NoError(t, x.SaturateProperties())
	assert.False(t, x.PropertiesDirty())
	return x
}

func property(t *testing.T, x *Index, iri string) *PropertyChain {
	t.Helper()
	p, ok := x.LookupProperty(iri)
	require.True(t, ok, "property %s is not indexed", iri)
	require.NotNil(t, p.Saturated())
	return p
}

func binaryChain(t *testing.T, x *Index) *PropertyChain {
	t.Helper()
	for _, p := range x.PropertyChains() {
		if p.Kind() == KindBinaryChain {
			return p
		}
	}
	t.Fatal("no binary chain indexed")
	return nil
}

func TestSaturateProperties_Hierarchy(t *testing.T) {
	x := saturatedIndex(t,
		SubObjectPropertyOf(propR, propS),
		SubObjectPropertyOf(propS, ObjectProperty("T")),
	)
	r := property(t, x, "R")
	s := property(t, x, "S")
	tp := property(t, x, "T")

	assert.Equal(t, []*PropertyChain{r, s, tp}, r.Saturated().SuperProperties())
	assert.True(t, tp.Saturated().HasSubProperty(r))
	assert.True(t, r.Saturated().HasSubProperty(r), "every property is its own sub-property")
	assert.False(t, r.Saturated().HasSubProperty(s))
	assert.Same(t, r, r.Saturated().Root())
	assert.False(t, r.Saturated().HasLeftCompositions())
}

func TestSaturateProperties_Equivalence(t *testing.T) {
	x := saturatedIndex(t, EquivalentObjectProperties(propR, propS))
	r := property(t, x, "R")
	s := property(t, x, "S")

	assert.True(t, r.Saturated().HasSubProperty(s))
	assert.True(t, s.Saturated().HasSubProperty(r))
}

func TestSaturateProperties_Transitivity(t *testing.T) {
	x := saturatedIndex(t, TransitiveObjectProperty(propR))
	r := property(t, x, "R")
	rr := binaryChain(t, x)

	left, right := rr.Components()
	assert.Same(t, r, left)
	assert.Same(t, r, right)
	assert.True(t, r.Saturated().HasLeftCompositions())
	assert.Contains(t, r.Saturated().ComposeLeft(r), r)
	assert.Contains(t, r.Saturated().ComposeRight(r), r)
	assert.True(t, r.Saturated().HasSubProperty(rr))
}

func TestSaturateProperties_ChainComposition(t *testing.T) {
	x := saturatedIndex(t, SubObjectPropertyOf(ChainOf("R", "S"), ObjectProperty("T")))
	r := property(t, x, "R")
	s := property(t, x, "S")
	tp := property(t, x, "T")

	// s is the right component: R followed by S implies T
	assert.Contains(t, s.Saturated().ComposeLeft(r), tp)
	assert.Contains(t, r.Saturated().ComposeRight(s), tp)
	assert.Empty(t, r.Saturated().ComposeLeft(s))
}

func TestSaturateProperties_Reflexivity(t *testing.T) {
	x := saturatedIndex(t,
		ReflexiveObjectProperty(propR),
		ReflexiveObjectProperty(propS),
		SubObjectPropertyOf(propS, ObjectProperty("U")),
		SubObjectPropertyOf(ChainOf("R", "S"), ObjectProperty("T")),
	)
	r := property(t, x, "R")
	s := property(t, x, "S")
	u := property(t, x, "U")
	tp := property(t, x, "T")

	assert.True(t, r.IsToldReflexive())
	assert.False(t, u.IsToldReflexive())
	assert.True(t, u.Saturated().IsReflexive(), "reflexivity propagates to super-properties")
	assert.True(t, binaryChain(t, x).Saturated().IsReflexive())
	assert.True(t, tp.Saturated().IsReflexive(), "a chain of reflexive properties is reflexive")

	// a reflexive left component makes the right component a sub-property of the chain
	assert.True(t, tp.Saturated().HasSubProperty(s))
	assert.True(t, tp.Saturated().HasSubProperty(r))
}

func TestSaturateProperties_ClearAndRecompute(t *testing.T) {
	x := saturatedIndex(t, SubObjectPropertyOf(propR, propS))
	r := property(t, x, "R")
	first := r.Saturated()

	require.NoError(t, x.SaturateProperties())
	assert.Same(t, first, r.Saturated(), "clean saturations are kept")

	x.ClearPropertySaturations()
	assert.True(t, x.PropertiesDirty())
	assert.Nil(t, r.Saturated())

	require.NoError(t, x.SaturateProperties())
	assert.False(t, x.PropertiesDirty())
	require.NotNil(t, r.Saturated())
	assert.NotSame(t, first, r.Saturated())
}

func TestSaturateProperties_ChangeMarksDirty(t *testing.T) {
	x := saturatedIndex(t, SubObjectPropertyOf(propR, propS))

	require.NoError(t, x.Add(ReflexiveObjectProperty(propS)))
	assert.True(t, x.PropertiesDirty())

	require.NoError(t, x.SaturateProperties())
	assert.True(t, property(t, x, "S").Saturated().IsReflexive())
	assert.False(t, property(t, x, "R").Saturated().IsReflexive())

	require.NoError(t, x.Remove(SubObjectPropertyOf(propR, propS)))
	assert.True(t, x.PropertiesDirty())
	_, ok := x.LookupProperty("R")
	assert.False(t, ok)
}

func TestSaturatedPropertyChain_Equal(t *testing.T) {
	a := saturatedIndex(t, SubObjectPropertyOf(propR, propS))
	r := property(t, a, "R").Saturated()

	assert.True(t, r.equal(computeSaturations(a.PropertyChains())[r.Root()]))
	assert.False(t, r.equal(property(t, a, "S").Saturated()))
}
