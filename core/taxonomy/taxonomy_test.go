package taxonomy

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/ontology"
	"github.com/adalundhe/saturn/core/saturation"
)

var (
	clsA = ontology.Class("A")
	clsB = ontology.Class("B")
	clsC = ontology.Class("C")
	clsD = ontology.Class("D")
	clsE = ontology.Class("E")
)

func saturated(t *testing.T, axioms ...ontology.Axiom) *saturation.State {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx := ontology.NewIndex(logger)
	require.NoError(t, idx.Add(axioms...))
	state := saturation.NewState(idx, logger)
	roots := append(idx.Classes(), idx.Individuals()...)
	_, err := saturation.NewEngine(state, saturation.Options{Workers: 2, Logger: logger}).
		Run(context.Background(), saturation.RootInputs(roots))
	require.NoError(t, err)
	return state
}

func names[T interface{ String() string }](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.String()
	}
	return out
}

func node(t *testing.T, tax *Taxonomy, state *saturation.State, iri string) *Node {
	t.Helper()
	cls, ok := state.Index().LookupClass(iri)
	require.True(t, ok, iri)
	n, ok := tax.Node(cls)
	require.True(t, ok, iri)
	return n
}

func TestBuild_DirectParents(t *testing.T) {
	state := saturated(t,
		ontology.SubClassOf(clsA, clsB),
		ontology.SubClassOf(clsB, clsC),
		ontology.SubClassOf(clsA, clsC),
		ontology.SubClassOf(clsD, clsC),
	)
	tax, err := Build(state)
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, names(node(t, tax, state, "A").Parents()))
	assert.Equal(t, []string{"C"}, names(node(t, tax, state, "B").Parents()))
	assert.Equal(t, []string{"owl:Thing"}, names(node(t, tax, state, "C").Parents()))
	assert.Equal(t, []string{"B", "D"}, names(node(t, tax, state, "C").Children()))
	assert.Equal(t, []string{"B", "C", "owl:Thing"}, names(node(t, tax, state, "A").Ancestors()))
	assert.Equal(t, []string{"A", "D"}, names(tax.Bottom().Parents()))
}

func TestBuild_EquivalentClassesShareANode(t *testing.T) {
	state := saturated(t,
		ontology.EquivalentClasses(clsA, clsB),
		ontology.SubClassOf(clsC, clsA),
	)
	tax, err := Build(state)
	require.NoError(t, err)

	a := node(t, tax, state, "A")
	assert.Same(t, a, node(t, tax, state, "B"))
	assert.Equal(t, "[A B]", a.String())
	assert.Equal(t, []string{"[A B]"}, names(node(t, tax, state, "C").Parents()))
}

func TestBuild_UnsatisfiableClassesJoinBottom(t *testing.T) {
	r := ontology.ObjectProperty("R")
	state := saturated(t,
		ontology.DisjointClasses(clsA, clsB),
		ontology.SubClassOf(clsC, ontology.And(clsA, clsB)),
		ontology.SubClassOf(clsD, ontology.Some(r, clsC)),
		ontology.SubClassOf(clsE, clsA),
	)
	tax, err := Build(state)
	require.NoError(t, err)

	bottom := tax.Bottom()
	assert.Equal(t, []string{"C", "D", "owl:Nothing"}, names(bottom.Members()))
	assert.Same(t, bottom, node(t, tax, state, "owl:Nothing"))
	assert.Equal(t, []string{"B", "E"}, names(bottom.Parents()))
	assert.Equal(t, []string{"owl:Thing"}, names(node(t, tax, state, "A").Parents()))
}

func TestBuild_ThingEquivalence(t *testing.T) {
	state := saturated(t,
		ontology.SubClassOf(ontology.Thing(), clsA),
		ontology.SubClassOf(clsB, clsC),
	)
	tax, err := Build(state)
	require.NoError(t, err)

	assert.Same(t, tax.Top(), node(t, tax, state, "A"))
	assert.Equal(t, []string{"B"}, names(node(t, tax, state, "C").Children()))
	assert.Equal(t, []string{"C"}, names(node(t, tax, state, "B").Parents()))
}

func TestBuild_InconsistentOntology(t *testing.T) {
	state := saturated(t, ontology.SubClassOf(ontology.Thing(), ontology.Nothing()))
	_, err := Build(state)
	assert.ErrorIs(t, err, saterrors.ErrInconsistentOntology)
}

func TestBuild_RequiresSaturatedClasses(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx := ontology.NewIndex(logger)
	require.NoError(t, idx.Add(ontology.SubClassOf(clsA, clsB)))
	_, err := Build(saturation.NewState(idx, logger))
	assert.ErrorIs(t, err, saterrors.ErrUnexpectedIndexing)
}

func TestBuildInstances_DirectTypes(t *testing.T) {
	r := ontology.ObjectProperty("R")
	state := saturated(t,
		ontology.SubClassOf(clsA, clsB),
		ontology.SubClassOf(clsC, clsB),
		ontology.ClassAssertion(clsA, "ind"),
		ontology.ClassAssertion(clsB, "ind"),
		ontology.ClassAssertion(clsC, "other"),
		ontology.ObjectPropertyAssertion(r, "third", "ind"),
		ontology.SubClassOf(ontology.Some(r, clsA), clsD),
	)
	tax, err := Build(state)
	require.NoError(t, err)
	it, err := BuildInstances(tax, state)
	require.NoError(t, err)

	ind, ok := state.Index().LookupIndividual("ind")
	require.True(t, ok)
	direct, ok := it.Types(ind, true)
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, names(direct))
	all, _ := it.Types(ind, false)
	assert.Equal(t, []string{"A", "B", "owl:Thing"}, names(all))

	third, ok := state.Index().LookupIndividual("third")
	require.True(t, ok)
	direct, _ = it.Types(third, true)
	assert.Equal(t, []string{"D"}, names(direct))

	b := node(t, tax, state, "B")
	assert.Empty(t, it.Instances(b, true))
	assert.Equal(t, []string{"{ind}", "{other}"}, names(it.Instances(b, false)))
	assert.Equal(t, []string{"{ind}", "{other}", "{third}"}, names(it.Individuals()))
}

func TestBuildInstances_InconsistentIndividual(t *testing.T) {
	state := saturated(t,
		ontology.DisjointClasses(clsA, clsB),
		ontology.ClassAssertion(clsA, "ind"),
		ontology.ClassAssertion(clsB, "ind"),
	)
	tax, err := Build(state)
	require.NoError(t, err)
	_, err = BuildInstances(tax, state)
	assert.ErrorIs(t, err, saterrors.ErrInconsistentOntology)
}
