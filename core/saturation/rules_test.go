package saturation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/saturn/core/ontology"
)

// newTestApplier returns an applier over a fresh state of the given axioms
// with saturated properties. Contexts are not initialized.
func newTestApplier(t *testing.T, axioms ...ontology.Axiom) (*State, *applier, *Stats) {
	t.Helper()
	idx := newTestIndex(t, axioms...)
	require.NoError(t, idx.SaturateProperties())
	state := NewState(idx, quietLogger())
	stats := &Stats{}
	return state, newApplier(state.Writer(stats, nil)), stats
}

func rawContext(t *testing.T, state *State, e ontology.Expr) *Context {
	t.Helper()
	ce, ok := state.Index().Lookup(e)
	require.True(t, ok, "%s not indexed", e)
	c, _ := state.contexts.getOrCreate(ce)
	return c
}

// settle processes every active context until no work is left.
func settle(t *testing.T, state *State, a *applier) {
	t.Helper()
	for {
		x, ok := state.active.TryPop()
		if !ok {
			return
		}
		for {
			c, ok := x.pop()
			if !ok {
				break
			}
			require.NoError(t, a.apply(x, c))
		}
		x.active.Store(false)
		state.outstanding.Add(-1)
	}
}

func renderLinks(links []Link) []string {
	var out []string
	for _, l := range links {
		out = append(out, fmt.Sprintf("%s:%d", l.Relation, l.Context))
	}
	return out
}

func renderContext(c *Context) string {
	var subs []string
	for _, s := range c.Subsumers() {
		subs = append(subs, s.String())
	}
	return fmt.Sprintf("subsumers=%v backward=%v forward=%v inconsistent=%t",
		subs, renderLinks(c.BackwardLinks()), renderLinks(c.ForwardLinks()), c.IsInconsistent())
}

func TestApplier_PropagationIndependentOfLinkOrder(t *testing.T) {
	axioms := []ontology.Axiom{
		ontology.SubClassOf(clsA, clsE),
		ontology.SubClassOf(ontology.Some(propR, clsC), clsD),
	}

	run := func(t *testing.T, backwardFirst bool) (map[string]string, Stats) {
		state, a, stats := newTestApplier(t, axioms...)
		src := rawContext(t, state, clsA)
		filler := rawContext(t, state, clsC)
		rel, ok := state.Index().LookupProperty("R")
		require.True(t, ok)

		order := []Conclusion{BackwardLink(src.ID(), rel), PositiveSubsumer(filler.Root())}
		if !backwardFirst {
			order[0], order[1] = order[1], order[0]
		}
		for _, c := range order {
			require.NoError(t, a.apply(filler, c))
			settle(t, state, a)
		}

		var subs []string
		for _, s := range src.Subsumers() {
			subs = append(subs, s.String())
		}
		assert.Contains(t, subs, "∃R.C")
		assert.Contains(t, subs, "D")
		return map[string]string{"A": renderContext(src), "C": renderContext(filler)}, *stats
	}

	before, beforeStats := run(t, true)
	after, afterStats := run(t, false)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeStats.Inserted, afterStats.Inserted)
}

func TestApplier_ForwardLinkIndependentOfLinkOrder(t *testing.T) {
	axioms := []ontology.Axiom{
		ontology.SubClassOf(clsA, clsE),
		ontology.SubClassOf(clsB, clsE),
		ontology.SubClassOf(clsC, clsE),
		ontology.TransitiveObjectProperty(propR),
	}

	run := func(t *testing.T, backwardFirst bool) map[string]string {
		state, a, _ := newTestApplier(t, axioms...)
		ca := rawContext(t, state, clsA)
		cb := rawContext(t, state, clsB)
		cc := rawContext(t, state, clsC)
		rel, ok := state.Index().LookupProperty("R")
		require.True(t, ok)

		// A -R-> B -R-> C
		order := []Conclusion{BackwardLink(ca.ID(), rel), ForwardLink(rel, cc.ID())}
		if !backwardFirst {
			order[0], order[1] = order[1], order[0]
		}
		for _, c := range order {
			require.NoError(t, a.apply(cb, c))
			settle(t, state, a)
		}

		assert.Contains(t, cc.BackwardLinks(), Link{Relation: rel, Context: ca.ID()}, "A -R-> C by transitivity")
		return map[string]string{"A": renderContext(ca), "B": renderContext(cb), "C": renderContext(cc)}
	}

	assert.Equal(t, run(t, true), run(t, false))
}

func TestApplier_DuplicateDoesNotFireRules(t *testing.T) {
	state, a, stats := newTestApplier(t,
		ontology.SubClassOf(clsA, clsB),
		ontology.SubClassOf(clsB, clsC),
		ontology.SubClassOf(ontology.Some(propR, clsB), clsD),
	)
	x := rawContext(t, state, clsA)
	src := rawContext(t, state, clsD)
	b, ok := state.Index().LookupClass("B")
	require.True(t, ok)
	rel, ok := state.Index().LookupProperty("R")
	require.True(t, ok)

	for _, c := range []Conclusion{PositiveSubsumer(b), BackwardLink(src.ID(), rel)} {
		require.NoError(t, a.apply(x, c))
		rules, produced, firings := stats.RuleApplications, stats.Produced, stats.LinkRuleFirings
		require.NotZero(t, stats.TotalProduced())

		require.NoError(t, a.apply(x, c))
		assert.Equal(t, rules, stats.RuleApplications, c.String())
		assert.Equal(t, produced, stats.Produced, c.String())
		assert.Equal(t, firings, stats.LinkRuleFirings, c.String())
		assert.EqualValues(t, 1, stats.Duplicates[c.Kind()], c.String())
	}
}
