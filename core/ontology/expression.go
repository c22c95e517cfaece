package ontology

import (
	"fmt"
	"sync/atomic"
)

// =============================================================================
// ClassExpression
// =============================================================================

// ClassExpression is an indexed class expression. Instances are interned by
// structure, so pointer equality is expression equality. Everything except
// the saturation slot is mutated only by the Index, outside of saturation.
type ClassExpression struct {
	id    uint32
	kind  ExprKind
	iri   string
	// literal of a data has-value restriction; iri is its property
	value string

	// conjunction operands, ordered by ID
	first, second *ClassExpression

	// existential
	property *PropertyChain
	filler   *ClassExpression

	positiveOccurrences int
	negativeOccurrences int

	rules RuleChain
}

// ID returns the stable identifier of the expression.
func (e *ClassExpression) ID() uint32 { return e.id }

// Kind returns the expression variant.
func (e *ClassExpression) Kind() ExprKind { return e.kind }

// Value returns the literal of a data has-value restriction.
func (e *ClassExpression) Value() string { return e.value }

// IRI returns the IRI of a named class or individual.
func (e *ClassExpression) IRI() string { return e.iri }

// Conjuncts returns the operands of a conjunction.
func (e *ClassExpression) Conjuncts() (*ClassExpression, *ClassExpression) {
	return e.first, e.second
}

// Property returns the relation of an existential.
func (e *ClassExpression) Property() *PropertyChain { return e.property }

// Filler returns the filler of an existential.
func (e *ClassExpression) Filler() *ClassExpression { return e.filler }

// OccursPositively reports whether the expression occurs on the right of an
// inclusion somewhere in the ontology.
func (e *ClassExpression) OccursPositively() bool { return e.positiveOccurrences > 0 }

// OccursNegatively reports whether the expression occurs on the left of an
// inclusion somewhere in the ontology.
func (e *ClassExpression) OccursNegatively() bool { return e.negativeOccurrences > 0 }

// IsNamed reports whether the expression is a named class or individual.
func (e *ClassExpression) IsNamed() bool {
	return e.kind == KindClass || e.kind == KindIndividual
}

// CompositionRules returns the composition rule chain of the expression. The
// chain must not be modified by callers.
func (e *ClassExpression) CompositionRules() *RuleChain { return &e.rules }

func (e *ClassExpression) occurs() bool {
	return e.positiveOccurrences > 0 || e.negativeOccurrences > 0
}

func (e *ClassExpression) String() string {
	switch e.kind {
	case KindClass:
		return e.iri
	case KindIndividual:
		return "{" + e.iri + "}"
	case KindConjunction:
		return fmt.Sprintf("(%s ⊓ %s)", e.first, e.second)
	case KindExistential:
		return fmt.Sprintf("∃%s.%s", e.property, e.filler)
	case KindDataHasValue:
		return fmt.Sprintf("∃%s.{%q}", e.iri, e.value)
	default:
		return "?"
	}
}

// atomKey is the interning key of a class, individual or data has-value
// restriction.
func atomKey(kind ExprKind, iri, value string) string {
	if kind == KindDataHasValue {
		return "V:" + iri + "\x00" + value
	}
	return classKey(kind, iri, 0, 0)
}

func classKey(kind ExprKind, iri string, a, b uint32) string {
	switch kind {
	case KindClass:
		return "C:" + iri
	case KindIndividual:
		return "I:" + iri
	case KindConjunction:
		return fmt.Sprintf("A:%d,%d", a, b)
	default:
		return fmt.Sprintf("E:%d,%d", a, b)
	}
}

// =============================================================================
// PropertyChain
// =============================================================================

// PropertyKind identifies the variant of a property chain.
type PropertyKind uint8

const (
	// KindObjectProperty is a named object property.
	KindObjectProperty PropertyKind = iota
	// KindBinaryChain is the composition of a named property with a chain.
	KindBinaryChain
)

// PropertyChain is an indexed object property or binary property chain.
type PropertyChain struct {
	id   uint32
	kind PropertyKind
	iri  string

	// binary chain: left is always a named property
	left, right *PropertyChain

	toldSubProperties   []*PropertyChain
	toldSuperProperties []*PropertyChain

	// chains in which this property is the left or right component
	leftChains, rightChains []*PropertyChain

	reflexiveAxioms int
	occurrences     int

	saturated atomic.Pointer[SaturatedPropertyChain]
}

// ID returns the stable identifier of the property chain.
func (p *PropertyChain) ID() uint32 { return p.id }

// Kind returns the property variant.
func (p *PropertyChain) Kind() PropertyKind { return p.kind }

// IRI returns the IRI of a named property.
func (p *PropertyChain) IRI() string { return p.iri }

// Components returns the left and right parts of a binary chain.
func (p *PropertyChain) Components() (*PropertyChain, *PropertyChain) {
	return p.left, p.right
}

// IsToldReflexive reports whether a reflexivity axiom names the property.
func (p *PropertyChain) IsToldReflexive() bool { return p.reflexiveAxioms > 0 }

// Saturated returns the saturation of the chain, or nil if it has not been
// computed since the last property initialization.
func (p *PropertyChain) Saturated() *SaturatedPropertyChain {
	return p.saturated.Load()
}

// SetSaturated assigns the saturation slot once. Concurrent assignments
// resolve to the first one, which is returned.
func (p *PropertyChain) SetSaturated(s *SaturatedPropertyChain) *SaturatedPropertyChain {
	if p.saturated.CompareAndSwap(nil, s) {
		return s
	}
	return p.saturated.Load()
}

func (p *PropertyChain) clearSaturated() {
	p.saturated.Store(nil)
}

func (p *PropertyChain) String() string {
	if p.kind == KindObjectProperty {
		return p.iri
	}
	return fmt.Sprintf("%s∘%s", p.left, p.right)
}

func propertyKey(kind PropertyKind, iri string, left, right uint32) string {
	if kind == KindObjectProperty {
		return "P:" + iri
	}
	return fmt.Sprintf("R:%d,%d", left, right)
}

// =============================================================================
// DisjointnessAxiom
// =============================================================================

// DisjointnessAxiom is an indexed DisjointClasses axiom over distinct members.
type DisjointnessAxiom struct {
	id          uint32
	members     []*ClassExpression
	occurrences int
}

// ID returns the stable identifier of the axiom.
func (d *DisjointnessAxiom) ID() uint32 { return d.id }

// Members returns the distinct members of the axiom.
func (d *DisjointnessAxiom) Members() []*ClassExpression { return d.members }

func (d *DisjointnessAxiom) String() string {
	s := "DisjointClasses("
	for i, m := range d.members {
		if i > 0 {
			s += " "
		}
		s += m.String()
	}
	return s + ")"
}

// =============================================================================
// ID allocation
// =============================================================================

type idAllocator struct {
	counter atomic.Uint32
}

func (a *idAllocator) next() uint32 {
	return a.counter.Add(1) - 1
}

func (a *idAllocator) current() uint32 {
	return a.counter.Load()
}
