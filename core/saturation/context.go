package saturation

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/adalundhe/saturn/core/ontology"
)

// Context holds the conclusions derived for one root class expression.
//
// The sets are owned by whichever worker has activated the context; only
// the todo queue is touched by other goroutines. The read accessors are
// meant for callers that run after saturation has finished.
type Context struct {
	root *ontology.ClassExpression

	subsumers     map[*ontology.ClassExpression]struct{}
	backwardLinks map[*ontology.PropertyChain]map[ContextID]struct{}
	linkRules     ontology.Chain[linkRuleKind, linkRule]
	disjointness  map[*ontology.DisjointnessAxiom]map[*ontology.ClassExpression]struct{}

	inconsistent atomic.Bool
	saturated    atomic.Bool
	active       atomic.Bool

	todoMu sync.Mutex
	todo   []Conclusion
}

func newContext(root *ontology.ClassExpression) *Context {
	return &Context{
		root:          root,
		subsumers:     make(map[*ontology.ClassExpression]struct{}),
		backwardLinks: make(map[*ontology.PropertyChain]map[ContextID]struct{}),
	}
}

// Root returns the class expression the context is created for.
func (c *Context) Root() *ontology.ClassExpression { return c.root }

// ID returns the context identifier.
func (c *Context) ID() ContextID { return ContextID(c.root.ID()) }

// IsInconsistent reports whether a contradiction was derived.
func (c *Context) IsInconsistent() bool { return c.inconsistent.Load() }

// IsSaturated reports whether every conclusion of the context is derived.
func (c *Context) IsSaturated() bool { return c.saturated.Load() }

// HasSubsumer reports whether e was derived as a subsumer of the root.
func (c *Context) HasSubsumer(e *ontology.ClassExpression) bool {
	_, ok := c.subsumers[e]
	return ok
}

// SubsumerCount returns the number of derived subsumers.
func (c *Context) SubsumerCount() int { return len(c.subsumers) }

// Subsumers returns the derived subsumers ordered by ID. For an
// inconsistent context the set is partial; every class subsumes its root.
func (c *Context) Subsumers() []*ontology.ClassExpression {
	out := make([]*ontology.ClassExpression, 0, len(c.subsumers))
	for e := range c.subsumers {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// EachSubsumer calls fn for every derived subsumer until fn returns false.
func (c *Context) EachSubsumer(fn func(*ontology.ClassExpression) bool) {
	for e := range c.subsumers {
		if !fn(e) {
			return
		}
	}
}

// EachBackwardLinkSource calls fn once per context that links into c.
func (c *Context) EachBackwardLinkSource(fn func(ContextID)) {
	seen := make(map[ContextID]struct{})
	for _, sources := range c.backwardLinks {
		for src := range sources {
			if _, ok := seen[src]; !ok {
				seen[src] = struct{}{}
				fn(src)
			}
		}
	}
}

// Link is an existential edge between two contexts.
type Link struct {
	Relation *ontology.PropertyChain
	Context  ContextID
}

// BackwardLinks returns the backward links of the context, ordered by
// relation and source.
func (c *Context) BackwardLinks() []Link {
	var out []Link
	for rel, sources := range c.backwardLinks {
		for src := range sources {
			out = append(out, Link{Relation: rel, Context: src})
		}
	}
	sortLinks(out)
	return out
}

// ForwardLinks returns the forward links stored in the context, ordered by
// relation and target.
func (c *Context) ForwardLinks() []Link {
	var out []Link
	if r := c.forwardLinkRule(); r != nil {
		for rel, targets := range r.targets {
			for t := range targets {
				out = append(out, Link{Relation: rel, Context: t})
			}
		}
	}
	sortLinks(out)
	return out
}

func sortLinks(links []Link) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].Relation.ID() != links[j].Relation.ID() {
			return links[i].Relation.ID() < links[j].Relation.ID()
		}
		return links[i].Context < links[j].Context
	})
}

// =============================================================================
// Todo queue
// =============================================================================

func (c *Context) push(cl Conclusion) {
	c.todoMu.Lock()
	c.todo = append(c.todo, cl)
	c.todoMu.Unlock()
}

func (c *Context) pop() (Conclusion, bool) {
	c.todoMu.Lock()
	defer c.todoMu.Unlock()
	if len(c.todo) == 0 {
		return Conclusion{}, false
	}
	cl := c.todo[0]
	c.todo[0] = Conclusion{}
	c.todo = c.todo[1:]
	if len(c.todo) == 0 {
		c.todo = nil
	}
	return cl, true
}

func (c *Context) hasTodo() bool {
	c.todoMu.Lock()
	defer c.todoMu.Unlock()
	return len(c.todo) > 0
}

// =============================================================================
// Insertion
// =============================================================================

// insert stores the conclusion and reports whether the state changed.
func (c *Context) insert(cl Conclusion) bool {
	switch cl.kind {
	case KindPositiveSubsumer, KindNegativeSubsumer:
		if _, ok := c.subsumers[cl.expr]; ok {
			return false
		}
		c.subsumers[cl.expr] = struct{}{}
		return true
	case KindBackwardLink:
		sources, ok := c.backwardLinks[cl.relation]
		if !ok {
			sources = make(map[ContextID]struct{}, 1)
			c.backwardLinks[cl.relation] = sources
		}
		if _, ok := sources[cl.context]; ok {
			return false
		}
		sources[cl.context] = struct{}{}
		return true
	case KindForwardLink:
		return c.linkRules.GetOrCreate(linkRuleForward, newForwardLinkRule).(*forwardLinkRule).add(cl.relation, cl.context)
	case KindPropagation:
		return c.linkRules.GetOrCreate(linkRulePropagation, newPropagationRule).(*propagationRule).add(cl.relation, cl.expr)
	case KindContradiction:
		return c.inconsistent.CompareAndSwap(false, true)
	case KindDisjointnessAxiom:
		if c.disjointness == nil {
			c.disjointness = make(map[*ontology.DisjointnessAxiom]map[*ontology.ClassExpression]struct{})
		}
		members, ok := c.disjointness[cl.axiom]
		if !ok {
			members = make(map[*ontology.ClassExpression]struct{}, 2)
			c.disjointness[cl.axiom] = members
		}
		if _, ok := members[cl.expr]; ok {
			return false
		}
		members[cl.expr] = struct{}{}
		return true
	case KindChangesReplay:
		return true
	}
	return false
}

// =============================================================================
// Incremental cleaning
// =============================================================================

// removeLinksFrom drops every backward and forward link whose other end is
// in dropped. It reports whether anything was removed.
func (c *Context) removeLinksFrom(dropped map[ContextID]struct{}) bool {
	removed := false
	for rel, sources := range c.backwardLinks {
		for src := range sources {
			if _, ok := dropped[src]; ok {
				delete(sources, src)
				removed = true
			}
		}
		if len(sources) == 0 {
			delete(c.backwardLinks, rel)
		}
	}
	if r := c.forwardLinkRule(); r != nil && r.removeTargets(dropped) {
		removed = true
		if r.isEmpty() {
			c.linkRules.Remove(linkRuleForward)
		}
	}
	return removed
}
