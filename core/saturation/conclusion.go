package saturation

import (
	"fmt"

	"github.com/adalundhe/saturn/core/ontology"
)

// ContextID identifies a context. It equals the ID of the context's root.
type ContextID uint32

// ConclusionKind identifies the variant of a conclusion.
type ConclusionKind uint8

const (
	KindPositiveSubsumer ConclusionKind = iota
	KindNegativeSubsumer
	KindBackwardLink
	KindForwardLink
	KindPropagation
	KindContradiction
	KindDisjointnessAxiom
	// KindChangesReplay carries rule deltas to the worker owning a context.
	KindChangesReplay

	numConclusionKinds
)

var conclusionNames = [numConclusionKinds]string{
	"positive_subsumer",
	"negative_subsumer",
	"backward_link",
	"forward_link",
	"propagation",
	"contradiction",
	"disjointness_axiom",
	"changes_replay",
}

// String returns the conclusion kind name.
func (k ConclusionKind) String() string {
	if k < numConclusionKinds {
		return conclusionNames[k]
	}
	return "unknown"
}

// ConclusionKinds returns every conclusion kind in declaration order.
func ConclusionKinds() []ConclusionKind {
	kinds := make([]ConclusionKind, numConclusionKinds)
	for i := range kinds {
		kinds[i] = ConclusionKind(i)
	}
	return kinds
}

// Conclusion is an immutable fact derived during saturation. Which fields
// are set depends on the kind.
type Conclusion struct {
	kind     ConclusionKind
	expr     *ontology.ClassExpression
	relation *ontology.PropertyChain
	context  ContextID
	axiom    *ontology.DisjointnessAxiom
	delta    *RuleDelta
}

// PositiveSubsumer is a subsumer that is decomposed further.
func PositiveSubsumer(e *ontology.ClassExpression) Conclusion {
	return Conclusion{kind: KindPositiveSubsumer, expr: e}
}

// NegativeSubsumer is a subsumer that is not decomposed.
func NegativeSubsumer(e *ontology.ClassExpression) Conclusion {
	return Conclusion{kind: KindNegativeSubsumer, expr: e}
}

// BackwardLink is an existential edge into the owning context from source.
func BackwardLink(source ContextID, relation *ontology.PropertyChain) Conclusion {
	return Conclusion{kind: KindBackwardLink, context: source, relation: relation}
}

// ForwardLink is an existential edge from the owning context to target.
func ForwardLink(relation *ontology.PropertyChain, target ContextID) Conclusion {
	return Conclusion{kind: KindForwardLink, relation: relation, context: target}
}

// Propagation derives carry in the source of every backward link over relation.
func Propagation(relation *ontology.PropertyChain, carry *ontology.ClassExpression) Conclusion {
	return Conclusion{kind: KindPropagation, relation: relation, expr: carry}
}

// Contradiction marks the owning context inconsistent.
func Contradiction() Conclusion {
	return Conclusion{kind: KindContradiction}
}

// DisjointnessAxiom records that member of axiom is a subsumer.
func DisjointnessAxiom(axiom *ontology.DisjointnessAxiom, member *ontology.ClassExpression) Conclusion {
	return Conclusion{kind: KindDisjointnessAxiom, axiom: axiom, expr: member}
}

// ChangesReplay asks the owner of a context to apply the rule delta to it.
func ChangesReplay(delta *RuleDelta) Conclusion {
	return Conclusion{kind: KindChangesReplay, delta: delta}
}

// Kind returns the conclusion variant.
func (c Conclusion) Kind() ConclusionKind { return c.kind }

// Expression returns the subsumer, the propagation carry, or the
// disjointness member.
func (c Conclusion) Expression() *ontology.ClassExpression { return c.expr }

// Relation returns the relation of a link or propagation.
func (c Conclusion) Relation() *ontology.PropertyChain { return c.relation }

// Axiom returns the axiom of a disjointness conclusion.
func (c Conclusion) Axiom() *ontology.DisjointnessAxiom { return c.axiom }

// LinkedContext returns the source of a backward link or the target of a
// forward link.
func (c Conclusion) LinkedContext() ContextID { return c.context }

// SourceContext returns the context whose root implies the conclusion: the
// link source for backward links, otherwise the context it is stored in.
func (c Conclusion) SourceContext(storedIn ContextID) ContextID {
	if c.kind == KindBackwardLink {
		return c.context
	}
	return storedIn
}

func (c Conclusion) String() string {
	switch c.kind {
	case KindPositiveSubsumer:
		return "+" + c.expr.String()
	case KindNegativeSubsumer:
		return "-" + c.expr.String()
	case KindBackwardLink:
		return fmt.Sprintf("%s<-#%d", c.relation, c.context)
	case KindForwardLink:
		return fmt.Sprintf("%s->#%d", c.relation, c.context)
	case KindPropagation:
		return fmt.Sprintf("%s~>%s", c.relation, c.expr)
	case KindContradiction:
		return "⊥"
	case KindDisjointnessAxiom:
		return fmt.Sprintf("%s[%s]", c.axiom, c.expr)
	case KindChangesReplay:
		return "replay"
	default:
		return "?"
	}
}
