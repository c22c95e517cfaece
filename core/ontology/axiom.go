package ontology

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Well-known IRIs
// =============================================================================

const (
	// ThingIRI is the IRI of the universal class.
	ThingIRI = "owl:Thing"
	// NothingIRI is the IRI of the empty class.
	NothingIRI = "owl:Nothing"
)

// =============================================================================
// Class Expressions (input model)
// =============================================================================

// ExprKind identifies the variant of a class expression.
type ExprKind uint8

const (
	// KindClass is a named class, including owl:Thing and owl:Nothing.
	KindClass ExprKind = iota
	// KindIndividual is a nominal {a} for a named individual a.
	KindIndividual
	// KindConjunction is ObjectIntersectionOf.
	KindConjunction
	// KindExistential is ObjectSomeValuesFrom.
	KindExistential
	// KindDataHasValue is DataHasValue(p v). It is reasoned over as an
	// opaque atom: two occurrences are equal iff property and literal are.
	KindDataHasValue
)

// String returns a human-readable representation of the expression kind.
func (k ExprKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindIndividual:
		return "individual"
	case KindConjunction:
		return "conjunction"
	case KindExistential:
		return "existential"
	case KindDataHasValue:
		return "data-has-value"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k ExprKind) MarshalText() ([]byte, error) {
	if k > KindDataHasValue {
		return nil, fmt.Errorf("unknown expression kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *ExprKind) UnmarshalText(text []byte) error {
	for kind := KindClass; kind <= KindDataHasValue; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown expression kind %q", text)
}

// Expr is an unindexed class expression as produced by a loader.
type Expr struct {
	Kind     ExprKind  `json:"kind"`
	IRI      string    `json:"iri,omitempty"`
	Operands []Expr    `json:"operands,omitempty"`
	Property *Property `json:"property,omitempty"`
	// Value is the literal of a DataHasValue restriction.
	Value string `json:"value,omitempty"`
}

// Class returns the named class with the given IRI.
func Class(iri string) Expr {
	return Expr{Kind: KindClass, IRI: iri}
}

// Thing returns owl:Thing.
func Thing() Expr {
	return Class(ThingIRI)
}

// Nothing returns owl:Nothing.
func Nothing() Expr {
	return Class(NothingIRI)
}

// Individual returns the nominal of the named individual with the given IRI.
func Individual(iri string) Expr {
	return Expr{Kind: KindIndividual, IRI: iri}
}

// And returns the intersection of the operands. A single operand is
// returned unchanged.
func And(operands ...Expr) Expr {
	if len(operands) == 1 {
		return operands[0]
	}
	return Expr{Kind: KindConjunction, Operands: operands}
}

// Some returns the existential restriction of filler over p.
func Some(p Property, filler Expr) Expr {
	return Expr{Kind: KindExistential, Property: &p, Operands: []Expr{filler}}
}

// DataHasValue returns the restriction to individuals with value for the
// data property with the given IRI.
func DataHasValue(property, value string) Expr {
	return Expr{Kind: KindDataHasValue, IRI: property, Value: value}
}

func (e Expr) validate() error {
	switch e.Kind {
	case KindClass, KindIndividual, KindDataHasValue:
		if e.IRI == "" {
			return fmt.Errorf("%s without IRI", e.Kind)
		}
	case KindConjunction:
		if len(e.Operands) < 2 {
			return fmt.Errorf("conjunction needs at least two operands, got %d", len(e.Operands))
		}
		for _, op := range e.Operands {
			if err := op.validate(); err != nil {
				return err
			}
		}
	case KindExistential:
		if e.Property == nil || len(e.Operands) != 1 {
			return fmt.Errorf("existential needs a property and one filler")
		}
		if err := e.Property.validate(); err != nil {
			return err
		}
		return e.Operands[0].validate()
	default:
		return fmt.Errorf("unknown expression kind %d", e.Kind)
	}
	return nil
}

func (e Expr) String() string {
	switch e.Kind {
	case KindClass:
		return e.IRI
	case KindIndividual:
		return "ObjectOneOf(" + e.IRI + ")"
	case KindConjunction:
		parts := make([]string, len(e.Operands))
		for i, op := range e.Operands {
			parts[i] = op.String()
		}
		return "ObjectIntersectionOf(" + strings.Join(parts, " ") + ")"
	case KindExistential:
		filler := ""
		if len(e.Operands) > 0 {
			filler = e.Operands[0].String()
		}
		prop := ""
		if e.Property != nil {
			prop = e.Property.String()
		}
		return "ObjectSomeValuesFrom(" + prop + " " + filler + ")"
	case KindDataHasValue:
		return "DataHasValue(" + e.IRI + " " + strconv.Quote(e.Value) + ")"
	default:
		return "?"
	}
}

// =============================================================================
// Properties (input model)
// =============================================================================

// Property is a named object property or a property chain. A chain of
// length one is a named property.
type Property struct {
	Chain []string `json:"chain"`
}

// ObjectProperty returns the named object property with the given IRI.
func ObjectProperty(iri string) Property {
	return Property{Chain: []string{iri}}
}

// ChainOf returns the composition of the given named properties.
func ChainOf(iris ...string) Property {
	return Property{Chain: append([]string(nil), iris...)}
}

// IsChain reports whether p is a composition of two or more properties.
func (p Property) IsChain() bool {
	return len(p.Chain) > 1
}

func (p Property) validate() error {
	if len(p.Chain) == 0 {
		return fmt.Errorf("empty property")
	}
	for _, iri := range p.Chain {
		if iri == "" {
			return fmt.Errorf("property without IRI")
		}
	}
	return nil
}

func (p Property) String() string {
	if len(p.Chain) == 1 {
		return p.Chain[0]
	}
	return "ObjectPropertyChain(" + strings.Join(p.Chain, " ") + ")"
}

// =============================================================================
// Axioms
// =============================================================================

// AxiomKind identifies the type of an axiom.
type AxiomKind uint8

const (
	AxiomSubClassOf AxiomKind = iota
	AxiomEquivalentClasses
	AxiomDisjointClasses
	AxiomClassAssertion
	AxiomObjectPropertyAssertion
	AxiomObjectPropertyDomain
	AxiomSubObjectPropertyOf
	AxiomEquivalentObjectProperties
	AxiomTransitiveObjectProperty
	AxiomReflexiveObjectProperty
)

var axiomNames = map[AxiomKind]string{
	AxiomSubClassOf:                 "SubClassOf",
	AxiomEquivalentClasses:          "EquivalentClasses",
	AxiomDisjointClasses:            "DisjointClasses",
	AxiomClassAssertion:             "ClassAssertion",
	AxiomObjectPropertyAssertion:    "ObjectPropertyAssertion",
	AxiomObjectPropertyDomain:       "ObjectPropertyDomain",
	AxiomSubObjectPropertyOf:        "SubObjectPropertyOf",
	AxiomEquivalentObjectProperties: "EquivalentObjectProperties",
	AxiomTransitiveObjectProperty:   "TransitiveObjectProperty",
	AxiomReflexiveObjectProperty:    "ReflexiveObjectProperty",
}

// String returns the functional-syntax name of the axiom kind.
func (k AxiomKind) String() string {
	if name, ok := axiomNames[k]; ok {
		return name
	}
	return "UnknownAxiom"
}

func (k AxiomKind) MarshalText() ([]byte, error) {
	name, ok := axiomNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown axiom kind %d", k)
	}
	return []byte(name), nil
}

func (k *AxiomKind) UnmarshalText(text []byte) error {
	for kind, name := range axiomNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown axiom kind %q", text)
}

// Axiom is a single ontology axiom. Which fields are used depends on Kind.
type Axiom struct {
	Kind        AxiomKind  `json:"kind"`
	Classes     []Expr     `json:"classes,omitempty"`
	Properties  []Property `json:"properties,omitempty"`
	Individuals []string   `json:"individuals,omitempty"`
}

// SubClassOf returns the axiom sub ⊑ sup.
func SubClassOf(sub, sup Expr) Axiom {
	return Axiom{Kind: AxiomSubClassOf, Classes: []Expr{sub, sup}}
}

// EquivalentClasses returns the axiom stating all members are equivalent.
func EquivalentClasses(members ...Expr) Axiom {
	return Axiom{Kind: AxiomEquivalentClasses, Classes: members}
}

// DisjointClasses returns the axiom stating the members are pairwise disjoint.
func DisjointClasses(members ...Expr) Axiom {
	return Axiom{Kind: AxiomDisjointClasses, Classes: members}
}

// ClassAssertion returns the axiom stating individual is an instance of c.
func ClassAssertion(c Expr, individual string) Axiom {
	return Axiom{Kind: AxiomClassAssertion, Classes: []Expr{c}, Individuals: []string{individual}}
}

// ObjectPropertyAssertion returns the axiom p(subject, object).
func ObjectPropertyAssertion(p Property, subject, object string) Axiom {
	return Axiom{
		Kind:        AxiomObjectPropertyAssertion,
		Properties:  []Property{p},
		Individuals: []string{subject, object},
	}
}

// ObjectPropertyDomain returns the axiom stating the domain of p is c.
func ObjectPropertyDomain(p Property, c Expr) Axiom {
	return Axiom{Kind: AxiomObjectPropertyDomain, Properties: []Property{p}, Classes: []Expr{c}}
}

// SubObjectPropertyOf returns the axiom sub ⊑ sup. sub may be a chain.
func SubObjectPropertyOf(sub, sup Property) Axiom {
	return Axiom{Kind: AxiomSubObjectPropertyOf, Properties: []Property{sub, sup}}
}

// EquivalentObjectProperties returns the axiom stating all members are equivalent.
func EquivalentObjectProperties(members ...Property) Axiom {
	return Axiom{Kind: AxiomEquivalentObjectProperties, Properties: members}
}

// TransitiveObjectProperty returns the axiom stating p is transitive.
func TransitiveObjectProperty(p Property) Axiom {
	return Axiom{Kind: AxiomTransitiveObjectProperty, Properties: []Property{p}}
}

// ReflexiveObjectProperty returns the axiom stating p is reflexive.
func ReflexiveObjectProperty(p Property) Axiom {
	return Axiom{Kind: AxiomReflexiveObjectProperty, Properties: []Property{p}}
}

// Validate checks that the axiom is well formed for its kind.
func (a Axiom) Validate() error {
	if err := a.validateArity(); err != nil {
		return fmt.Errorf("%s: %w", a.Kind, err)
	}
	for _, c := range a.Classes {
		if err := c.validate(); err != nil {
			return fmt.Errorf("%s: %w", a.Kind, err)
		}
	}
	for i, p := range a.Properties {
		if err := p.validate(); err != nil {
			return fmt.Errorf("%s: %w", a.Kind, err)
		}
		if p.IsChain() && !(a.Kind == AxiomSubObjectPropertyOf && i == 0) {
			return fmt.Errorf("%s: property chain only allowed as sub-property", a.Kind)
		}
	}
	for _, ind := range a.Individuals {
		if ind == "" {
			return fmt.Errorf("%s: individual without IRI", a.Kind)
		}
	}
	return nil
}

func (a Axiom) validateArity() error {
	want := func(classes, props, inds int) error {
		if len(a.Classes) != classes || len(a.Properties) != props || len(a.Individuals) != inds {
			return fmt.Errorf("got %d classes, %d properties, %d individuals",
				len(a.Classes), len(a.Properties), len(a.Individuals))
		}
		return nil
	}
	switch a.Kind {
	case AxiomSubClassOf:
		return want(2, 0, 0)
	case AxiomEquivalentClasses, AxiomDisjointClasses:
		if len(a.Classes) < 2 || len(a.Properties) != 0 || len(a.Individuals) != 0 {
			return fmt.Errorf("needs at least two classes")
		}
	case AxiomClassAssertion:
		return want(1, 0, 1)
	case AxiomObjectPropertyAssertion:
		return want(0, 1, 2)
	case AxiomObjectPropertyDomain:
		return want(1, 1, 0)
	case AxiomSubObjectPropertyOf:
		return want(0, 2, 0)
	case AxiomEquivalentObjectProperties:
		if len(a.Properties) < 2 || len(a.Classes) != 0 || len(a.Individuals) != 0 {
			return fmt.Errorf("needs at least two properties")
		}
	case AxiomTransitiveObjectProperty, AxiomReflexiveObjectProperty:
		return want(0, 1, 0)
	default:
		return fmt.Errorf("unknown axiom kind %d", a.Kind)
	}
	return nil
}

// String renders the axiom in functional-style syntax. The rendering is
// canonical and serves as the axiom's identity in the loaded-axiom multiset.
func (a Axiom) String() string {
	parts := make([]string, 0, len(a.Classes)+len(a.Properties)+len(a.Individuals))
	switch a.Kind {
	case AxiomClassAssertion:
		parts = append(parts, a.Classes[0].String(), a.Individuals[0])
	case AxiomObjectPropertyAssertion:
		parts = append(parts, a.Properties[0].String(), a.Individuals[0], a.Individuals[1])
	case AxiomObjectPropertyDomain:
		parts = append(parts, a.Properties[0].String(), a.Classes[0].String())
	default:
		for _, c := range a.Classes {
			parts = append(parts, c.String())
		}
		for _, p := range a.Properties {
			parts = append(parts, p.String())
		}
		parts = append(parts, a.Individuals...)
	}
	return a.Kind.String() + "(" + strings.Join(parts, " ") + ")"
}
