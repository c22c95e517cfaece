package ontology

// =============================================================================
// Chain
// =============================================================================

// Chain is a small ordered map from a rule kind to the single rule instance
// of that kind. Insertion order is preserved.
type Chain[K comparable, R any] struct {
	keys  []K
	rules map[K]R
}

// Find returns the rule of the given kind.
func (c *Chain[K, R]) Find(kind K) (R, bool) {
	r, ok := c.rules[kind]
	return r, ok
}

// GetOrCreate returns the rule of the given kind, creating it if absent.
func (c *Chain[K, R]) GetOrCreate(kind K, create func() R) R {
	if r, ok := c.rules[kind]; ok {
		return r
	}
	if c.rules == nil {
		c.rules = make(map[K]R, 2)
	}
	r := create()
	c.rules[kind] = r
	c.keys = append(c.keys, kind)
	return r
}

// Remove deletes the rule of the given kind.
func (c *Chain[K, R]) Remove(kind K) (R, bool) {
	r, ok := c.rules[kind]
	if !ok {
		return r, false
	}
	delete(c.rules, kind)
	for i, k := range c.keys {
		if k == kind {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return r, true
}

// Each calls fn for every rule in insertion order until fn returns false.
func (c *Chain[K, R]) Each(fn func(K, R) bool) {
	if c == nil {
		return
	}
	for _, k := range c.keys {
		if !fn(k, c.rules[k]) {
			return
		}
	}
}

// Len returns the number of rules in the chain.
func (c *Chain[K, R]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Clear removes all rules.
func (c *Chain[K, R]) Clear() {
	c.keys = nil
	c.rules = nil
}

// =============================================================================
// Rules
// =============================================================================

// RuleKind identifies a rule attached to an indexed expression or to the
// context-initialization chain.
type RuleKind uint8

const (
	// RuleSuperClasses derives told superclasses.
	RuleSuperClasses RuleKind = iota
	// RuleConjunctions derives negatively occurring conjunctions.
	RuleConjunctions
	// RuleExistentials derives propagations of negative existentials.
	RuleExistentials
	// RuleContradiction derives a contradiction from owl:Nothing.
	RuleContradiction
	// RuleDisjointness derives disjointness triggers.
	RuleDisjointness
	// RuleContextRoot initializes every context with its root.
	RuleContextRoot
	// RuleOwlThing initializes every context with owl:Thing.
	RuleOwlThing
)

var ruleNames = map[RuleKind]string{
	RuleSuperClasses:  "superclasses",
	RuleConjunctions:  "conjunctions",
	RuleExistentials:  "existentials",
	RuleContradiction: "contradiction",
	RuleDisjointness:  "disjointness",
	RuleContextRoot:   "context-root",
	RuleOwlThing:      "owl-thing",
}

// String returns the rule kind name.
func (k RuleKind) String() string {
	if name, ok := ruleNames[k]; ok {
		return name
	}
	return "unknown"
}

// Rule is a rule stored in a RuleChain. The concrete types are
// *SuperClassRule, *ConjunctionRule, *ExistentialRule, *ContradictionRule,
// *DisjointnessRule, *ContextRootRule and *OwlThingRule.
type Rule interface {
	Kind() RuleKind
	isEmpty() bool
}

// RuleChain is the chain of rules attached to an expression.
type RuleChain = Chain[RuleKind, Rule]

// SuperClassRule holds the told superclasses of an expression. A superclass
// told by several axioms appears once per axiom.
type SuperClassRule struct {
	Supers []*ClassExpression
}

func (r *SuperClassRule) Kind() RuleKind { return RuleSuperClasses }
func (r *SuperClassRule) isEmpty() bool  { return len(r.Supers) == 0 }

// ConjunctionRule maps the other conjunct of every negatively occurring
// conjunction containing the owner to that conjunction.
type ConjunctionRule struct {
	ByConjunct map[*ClassExpression]*ClassExpression
}

func (r *ConjunctionRule) Kind() RuleKind { return RuleConjunctions }
func (r *ConjunctionRule) isEmpty() bool  { return len(r.ByConjunct) == 0 }

// ExistentialRule lists the negatively occurring existentials whose filler
// is the owner.
type ExistentialRule struct {
	Existentials []*ClassExpression
}

func (r *ExistentialRule) Kind() RuleKind { return RuleExistentials }
func (r *ExistentialRule) isEmpty() bool  { return len(r.Existentials) == 0 }

// ContradictionRule is attached to owl:Nothing while it occurs positively.
type ContradictionRule struct{}

func (r *ContradictionRule) Kind() RuleKind { return RuleContradiction }
func (r *ContradictionRule) isEmpty() bool  { return false }

// DisjointnessRule lists the disjointness axioms the owner is a member of.
type DisjointnessRule struct {
	Axioms []*DisjointnessAxiom
}

func (r *DisjointnessRule) Kind() RuleKind { return RuleDisjointness }
func (r *DisjointnessRule) isEmpty() bool  { return len(r.Axioms) == 0 }

// ContextRootRule makes the root of every context one of its subsumers.
type ContextRootRule struct{}

func (r *ContextRootRule) Kind() RuleKind { return RuleContextRoot }
func (r *ContextRootRule) isEmpty() bool  { return false }

// OwlThingRule makes owl:Thing a subsumer of every context. Registered while
// owl:Thing occurs negatively.
type OwlThingRule struct {
	Thing *ClassExpression
}

func (r *OwlThingRule) Kind() RuleKind { return RuleOwlThing }
func (r *OwlThingRule) isEmpty() bool  { return false }

// =============================================================================
// Rule chain mutation
// =============================================================================

func addSuperClass(chain *RuleChain, sup *ClassExpression) {
	r := chain.GetOrCreate(RuleSuperClasses, func() Rule { return &SuperClassRule{} }).(*SuperClassRule)
	r.Supers = append(r.Supers, sup)
}

func removeSuperClass(chain *RuleChain, sup *ClassExpression) bool {
	found, ok := chain.Find(RuleSuperClasses)
	if !ok {
		return false
	}
	r := found.(*SuperClassRule)
	for i, s := range r.Supers {
		if s == sup {
			r.Supers = append(r.Supers[:i], r.Supers[i+1:]...)
			removeIfEmpty(chain, r)
			return true
		}
	}
	return false
}

func addConjunction(chain *RuleChain, other, conjunction *ClassExpression) {
	r := chain.GetOrCreate(RuleConjunctions, func() Rule {
		return &ConjunctionRule{ByConjunct: make(map[*ClassExpression]*ClassExpression)}
	}).(*ConjunctionRule)
	r.ByConjunct[other] = conjunction
}

func removeConjunction(chain *RuleChain, other, conjunction *ClassExpression) bool {
	found, ok := chain.Find(RuleConjunctions)
	if !ok {
		return false
	}
	r := found.(*ConjunctionRule)
	if r.ByConjunct[other] != conjunction {
		return false
	}
	delete(r.ByConjunct, other)
	removeIfEmpty(chain, r)
	return true
}

func addExistential(chain *RuleChain, existential *ClassExpression) {
	r := chain.GetOrCreate(RuleExistentials, func() Rule { return &ExistentialRule{} }).(*ExistentialRule)
	r.Existentials = append(r.Existentials, existential)
}

func removeExistential(chain *RuleChain, existential *ClassExpression) bool {
	found, ok := chain.Find(RuleExistentials)
	if !ok {
		return false
	}
	r := found.(*ExistentialRule)
	for i, e := range r.Existentials {
		if e == existential {
			r.Existentials = append(r.Existentials[:i], r.Existentials[i+1:]...)
			removeIfEmpty(chain, r)
			return true
		}
	}
	return false
}

func addDisjointness(chain *RuleChain, axiom *DisjointnessAxiom) {
	r := chain.GetOrCreate(RuleDisjointness, func() Rule { return &DisjointnessRule{} }).(*DisjointnessRule)
	r.Axioms = append(r.Axioms, axiom)
}

func removeDisjointness(chain *RuleChain, axiom *DisjointnessAxiom) bool {
	found, ok := chain.Find(RuleDisjointness)
	if !ok {
		return false
	}
	r := found.(*DisjointnessRule)
	for i, a := range r.Axioms {
		if a == axiom {
			r.Axioms = append(r.Axioms[:i], r.Axioms[i+1:]...)
			removeIfEmpty(chain, r)
			return true
		}
	}
	return false
}

// addSingleton registers a stateless rule. It reports false if the kind is
// already registered.
func addSingleton(chain *RuleChain, rule Rule) bool {
	if _, ok := chain.Find(rule.Kind()); ok {
		return false
	}
	chain.GetOrCreate(rule.Kind(), func() Rule { return rule })
	return true
}

func removeSingleton(chain *RuleChain, kind RuleKind) bool {
	_, ok := chain.Remove(kind)
	return ok
}

func removeIfEmpty(chain *RuleChain, r Rule) {
	if r.isEmpty() {
		chain.Remove(r.Kind())
	}
}
