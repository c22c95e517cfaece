package saturation

import (
	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/ontology"
)

// applier fires the inference rules for conclusions popped from a context
// owned by the calling worker. It reads only the owned context; effects on
// other contexts go through the writer.
type applier struct {
	w      *Writer
	stats  *Stats
	tracer *Tracer

	// contradicted, if set, is called once per context that becomes
	// inconsistent.
	contradicted func(*Context)
}

func newApplier(w *Writer) *applier {
	return &applier{w: w, stats: w.stats, tracer: w.tracer}
}

func (a *applier) apply(x *Context, c Conclusion) error {
	if x.IsInconsistent() && c.kind != KindBackwardLink && c.kind != KindChangesReplay {
		a.stats.Skipped++
		return nil
	}
	if !x.insert(c) {
		a.stats.Duplicates[c.kind]++
		return nil
	}
	a.stats.Inserted[c.kind]++
	a.tracer.inserted(x, c)

	switch c.kind {
	case KindPositiveSubsumer:
		if err := a.decompose(x, c.expr); err != nil {
			return err
		}
		return a.compose(x, c.expr, c.expr.CompositionRules())
	case KindNegativeSubsumer:
		return a.compose(x, c.expr, c.expr.CompositionRules())
	case KindBackwardLink:
		return a.backwardLink(x, c.context, c.relation)
	case KindForwardLink:
		return a.forwardLink(x, c.relation, c.context)
	case KindPropagation:
		return a.propagation(x, c.relation, c.expr)
	case KindContradiction:
		if a.contradicted != nil {
			a.contradicted(x)
		}
		return a.contradiction(x)
	case KindDisjointnessAxiom:
		if len(x.disjointness[c.axiom]) > 1 {
			a.w.Produce(x, Contradiction())
		}
		return nil
	case KindChangesReplay:
		if x.IsInconsistent() {
			return nil
		}
		return a.replay(x, c.delta)
	}
	return saterrors.Invariantf("apply conclusion", "unknown conclusion kind %d", c.kind)
}

// decompose fires the decomposition rules of a positive subsumer.
func (a *applier) decompose(x *Context, e *ontology.ClassExpression) error {
	switch e.Kind() {
	case ontology.KindConjunction:
		first, second := e.Conjuncts()
		a.w.Produce(x, PositiveSubsumer(first))
		a.w.Produce(x, PositiveSubsumer(second))
	case ontology.KindExistential:
		target := a.w.GetCreateContext(e.Filler())
		a.w.Produce(target, BackwardLink(x.ID(), e.Property()))
	}
	return nil
}

// compose fires the rules of chain with premise as the triggering subsumer.
func (a *applier) compose(x *Context, premise *ontology.ClassExpression, chain *ontology.RuleChain) error {
	var err error
	chain.Each(func(kind ontology.RuleKind, r ontology.Rule) bool {
		a.stats.RuleApplications[kind]++
		err = a.composeRule(x, premise, r)
		return err == nil
	})
	return err
}

func (a *applier) composeRule(x *Context, premise *ontology.ClassExpression, r ontology.Rule) error {
	switch rule := r.(type) {
	case *ontology.SuperClassRule:
		for _, sup := range rule.Supers {
			a.w.Produce(x, PositiveSubsumer(sup))
		}
	case *ontology.ConjunctionRule:
		for other, conjunction := range rule.ByConjunct {
			if x.HasSubsumer(other) {
				a.w.Produce(x, NegativeSubsumer(conjunction))
			}
		}
	case *ontology.ExistentialRule:
		for _, ex := range rule.Existentials {
			sat, err := saturationOf(ex.Property())
			if err != nil {
				return err
			}
			if sat.IsReflexive() {
				a.w.Produce(x, NegativeSubsumer(ex))
			}
			for rel := range x.backwardLinks {
				if sat.HasSubProperty(rel) {
					a.w.Produce(x, Propagation(rel, ex))
				}
			}
		}
	case *ontology.ContradictionRule:
		a.w.Produce(x, Contradiction())
	case *ontology.DisjointnessRule:
		for _, ax := range rule.Axioms {
			a.w.Produce(x, DisjointnessAxiom(ax, premise))
		}
	case *ontology.ContextRootRule:
		a.w.Produce(x, PositiveSubsumer(x.root))
	case *ontology.OwlThingRule:
		a.w.Produce(x, PositiveSubsumer(rule.Thing))
	default:
		return saterrors.Invariantf("apply rule", "unexpected rule %T on %s", r, premise)
	}
	return nil
}

// backwardLink handles a new link source -rel-> x.
func (a *applier) backwardLink(x *Context, source ContextID, rel *ontology.PropertyChain) error {
	src, err := a.context(source)
	if err != nil {
		return err
	}
	if x.IsInconsistent() {
		a.w.Produce(src, Contradiction())
		return nil
	}

	if len(x.backwardLinks[rel]) == 1 {
		if err := a.generatePropagations(x, rel); err != nil {
			return err
		}
	}

	a.stats.LinkRuleFirings++
	if fr := x.forwardLinkRule(); fr != nil {
		for fwd, targets := range fr.targets {
			sat, err := saturationOf(fwd)
			if err != nil {
				return err
			}
			compositions := sat.ComposeLeft(rel)
			if len(compositions) == 0 {
				continue
			}
			for t := range targets {
				target, err := a.context(t)
				if err != nil {
					return err
				}
				for _, comp := range compositions {
					a.w.Produce(target, BackwardLink(source, comp))
				}
			}
		}
	}
	if pr := x.propagationRule(); pr != nil {
		for carry := range pr.carries[rel] {
			a.w.Produce(src, NegativeSubsumer(carry))
		}
	}

	sat, err := saturationOf(rel)
	if err != nil {
		return err
	}
	if sat.HasLeftCompositions() {
		a.w.Produce(src, ForwardLink(rel, x.ID()))
	}
	return nil
}

// generatePropagations derives the propagations over rel for every
// subsumer that is the filler of a negative existential.
func (a *applier) generatePropagations(x *Context, rel *ontology.PropertyChain) error {
	for e := range x.subsumers {
		found, ok := e.CompositionRules().Find(ontology.RuleExistentials)
		if !ok {
			continue
		}
		for _, ex := range found.(*ontology.ExistentialRule).Existentials {
			sat, err := saturationOf(ex.Property())
			if err != nil {
				return err
			}
			if sat.HasSubProperty(rel) {
				a.w.Produce(x, Propagation(rel, ex))
			}
		}
	}
	return nil
}

// forwardLink composes the link x -rel-> target with the backward links of x.
func (a *applier) forwardLink(x *Context, rel *ontology.PropertyChain, targetID ContextID) error {
	target, err := a.context(targetID)
	if err != nil {
		return err
	}
	sat, err := saturationOf(rel)
	if err != nil {
		return err
	}
	for back, sources := range x.backwardLinks {
		for _, comp := range sat.ComposeLeft(back) {
			for src := range sources {
				a.w.Produce(target, BackwardLink(src, comp))
			}
		}
	}
	return nil
}

func (a *applier) propagation(x *Context, rel *ontology.PropertyChain, carry *ontology.ClassExpression) error {
	for src := range x.backwardLinks[rel] {
		target, err := a.context(src)
		if err != nil {
			return err
		}
		a.w.Produce(target, NegativeSubsumer(carry))
	}
	return nil
}

func (a *applier) contradiction(x *Context) error {
	for _, sources := range x.backwardLinks {
		for src := range sources {
			target, err := a.context(src)
			if err != nil {
				return err
			}
			a.w.Produce(target, Contradiction())
		}
	}
	return nil
}

// replay applies added rules to a context that was saturated before they
// were added.
func (a *applier) replay(x *Context, delta *RuleDelta) error {
	if delta.Init != nil && delta.Init.Len() > 0 {
		a.w.initContext(x, delta.Init)
	}
	if len(delta.Chains) == 0 {
		return nil
	}
	if PreferSubsumerScan(len(x.subsumers), len(delta.Chains), delta.ScanRatio) {
		for e := range x.subsumers {
			if chain, ok := delta.Chains[e]; ok {
				if err := a.compose(x, e, chain); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for e, chain := range delta.Chains {
		if x.HasSubsumer(e) {
			if err := a.compose(x, e, chain); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *applier) context(id ContextID) (*Context, error) {
	c := a.w.state.contexts.get(id)
	if c == nil {
		return nil, saterrors.Invariantf("resolve context", "context #%d does not exist", id)
	}
	return c, nil
}

func saturationOf(p *ontology.PropertyChain) (*ontology.SaturatedPropertyChain, error) {
	sat := p.Saturated()
	if sat == nil {
		return nil, saterrors.Invariantf("saturate class expressions", "property %s is not saturated", p)
	}
	return sat, nil
}
