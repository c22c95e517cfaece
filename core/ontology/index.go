// Package ontology holds the indexed ontology graph consumed by saturation:
// interned class expressions and property chains with occurrence counters,
// the composition rules attached to them, and the context-initialization
// rules. It also records the rule deltas caused by axiom changes.
//
// The index is mutated only between saturation runs. Saturation reads it
// without locking.
package ontology

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	saterrors "github.com/adalundhe/saturn/core/errors"
)

// =============================================================================
// Index
// =============================================================================

type loadedAxiom struct {
	axiom Axiom
	count int
}

// Index is the indexed ontology graph.
type Index struct {
	mu sync.RWMutex

	ids          idAllocator
	classes      map[string]*ClassExpression
	properties   map[string]*PropertyChain
	disjointness map[string]*DisjointnessAxiom

	thing   *ClassExpression
	nothing *ClassExpression

	initRules RuleChain

	axioms map[string]*loadedAxiom

	changes         *ChangeSet
	propertiesDirty bool

	logger *slog.Logger
}

// NewIndex creates an index containing only owl:Thing and owl:Nothing.
func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	x := &Index{
		classes:      make(map[string]*ClassExpression),
		properties:   make(map[string]*PropertyChain),
		disjointness: make(map[string]*DisjointnessAxiom),
		axioms:       make(map[string]*loadedAxiom),
		logger:       logger,
	}
	x.thing = x.newClassExpression(KindClass, ThingIRI, "")
	x.nothing = x.newClassExpression(KindClass, NothingIRI, "")
	addSingleton(&x.initRules, &ContextRootRule{})
	return x
}

func (x *Index) newClassExpression(kind ExprKind, iri, value string) *ClassExpression {
	e := &ClassExpression{id: x.ids.next(), kind: kind, iri: iri, value: value}
	x.classes[atomKey(kind, iri, value)] = e
	return e
}

// =============================================================================
// Axiom loading
// =============================================================================

// Add indexes the given axioms. Validation errors leave the index unchanged;
// invariant violations are fatal.
func (x *Index) Add(axioms ...Axiom) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, a := range axioms {
		if err := a.Validate(); err != nil {
			return saterrors.New(saterrors.ClassInput, "add axiom", err.Error(), err)
		}
	}
	for _, a := range axioms {
		key := a.String()
		if err := x.applyAxiom(a, 1); err != nil {
			return fmt.Errorf("index %s: %w", key, err)
		}
		loaded, ok := x.axioms[key]
		if !ok {
			loaded = &loadedAxiom{axiom: a}
			x.axioms[key] = loaded
		}
		loaded.count++
		x.logger.Debug("axiom added", slog.String("axiom", key))
	}
	return nil
}

// Remove unindexes the given axioms. Every axiom must be loaded, counting
// multiplicity; otherwise ErrAxiomNotFound is returned and nothing changes.
func (x *Index) Remove(axioms ...Axiom) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	requested := make(map[string]int, len(axioms))
	for _, a := range axioms {
		if err := a.Validate(); err != nil {
			return saterrors.New(saterrors.ClassInput, "remove axiom", err.Error(), err)
		}
		key := a.String()
		requested[key]++
		if loaded, ok := x.axioms[key]; !ok || loaded.count < requested[key] {
			return fmt.Errorf("remove %s: %w", key, saterrors.ErrAxiomNotFound)
		}
	}
	for _, a := range axioms {
		key := a.String()
		if err := x.applyAxiom(a, -1); err != nil {
			return fmt.Errorf("unindex %s: %w", key, err)
		}
		loaded := x.axioms[key]
		loaded.count--
		if loaded.count == 0 {
			delete(x.axioms, key)
		}
		x.logger.Debug("axiom removed", slog.String("axiom", key))
	}
	return nil
}

func (x *Index) applyAxiom(a Axiom, sign int) error {
	switch a.Kind {
	case AxiomSubClassOf:
		return x.applySubClassOf(a.Classes[0], a.Classes[1], sign)
	case AxiomEquivalentClasses:
		first := a.Classes[0]
		for _, c := range a.Classes[1:] {
			if err := x.applySubClassOf(first, c, sign); err != nil {
				return err
			}
			if err := x.applySubClassOf(c, first, sign); err != nil {
				return err
			}
		}
		return nil
	case AxiomDisjointClasses:
		return x.applyDisjointClasses(a.Classes, sign)
	case AxiomClassAssertion:
		return x.applySubClassOf(Individual(a.Individuals[0]), a.Classes[0], sign)
	case AxiomObjectPropertyAssertion:
		return x.applySubClassOf(Individual(a.Individuals[0]),
			Some(a.Properties[0], Individual(a.Individuals[1])), sign)
	case AxiomObjectPropertyDomain:
		return x.applySubClassOf(Some(a.Properties[0], Thing()), a.Classes[0], sign)
	case AxiomSubObjectPropertyOf:
		return x.applySubPropertyOf(a.Properties[0], a.Properties[1], sign)
	case AxiomEquivalentObjectProperties:
		first := a.Properties[0]
		for _, p := range a.Properties[1:] {
			if err := x.applySubPropertyOf(first, p, sign); err != nil {
				return err
			}
			if err := x.applySubPropertyOf(p, first, sign); err != nil {
				return err
			}
		}
		return nil
	case AxiomTransitiveObjectProperty:
		p := a.Properties[0]
		return x.applySubPropertyOf(ChainOf(p.Chain[0], p.Chain[0]), p, sign)
	case AxiomReflexiveObjectProperty:
		return x.applyReflexive(a.Properties[0], sign)
	default:
		return saterrors.New(saterrors.ClassInput, "index axiom", fmt.Sprintf("unsupported axiom kind %s", a.Kind), nil)
	}
}

func (x *Index) applySubClassOf(sub, sup Expr, sign int) error {
	if sign > 0 {
		s, err := x.indexClass(sub, 0, 1)
		if err != nil {
			return err
		}
		p, err := x.indexClass(sup, 1, 0)
		if err != nil {
			return err
		}
		x.addToldSuper(s, p)
		return nil
	}

	s, err := x.resolveClass(sub)
	if err != nil {
		return err
	}
	p, err := x.resolveClass(sup)
	if err != nil {
		return err
	}
	if err := x.removeToldSuper(s, p); err != nil {
		return err
	}
	if _, err := x.indexClass(sub, 0, -1); err != nil {
		return err
	}
	_, err = x.indexClass(sup, -1, 0)
	return err
}

func (x *Index) addToldSuper(s, p *ClassExpression) {
	addSuperClass(&s.rules, p)
	if x.changes != nil {
		addSuperClass(x.changes.added(s), p)
	}
}

func (x *Index) removeToldSuper(s, p *ClassExpression) error {
	if !removeSuperClass(&s.rules, p) {
		return saterrors.Invariantf("remove told superclass", "%s is not a told superclass of %s", p, s)
	}
	if x.changes != nil {
		addSuperClass(x.changes.removed(s), p)
	}
	return nil
}

func (x *Index) applyDisjointClasses(members []Expr, sign int) error {
	indexed := make([]*ClassExpression, len(members))
	for i, m := range members {
		var err error
		if sign > 0 {
			indexed[i], err = x.indexClass(m, 0, 1)
		} else {
			indexed[i], err = x.resolveClass(m)
		}
		if err != nil {
			return err
		}
	}

	distinct, duplicates := splitDuplicates(indexed)
	if len(distinct) > 1 {
		if err := x.updateDisjointnessAxiom(distinct, sign); err != nil {
			return err
		}
		// a disjointness axiom can derive owl:Nothing
		if err := x.updateOccurrences(x.nothing, sign, 0); err != nil {
			return err
		}
	}
	for _, d := range duplicates {
		if sign > 0 {
			if err := x.updateOccurrences(x.nothing, 1, 0); err != nil {
				return err
			}
			x.addToldSuper(d, x.nothing)
			continue
		}
		if err := x.removeToldSuper(d, x.nothing); err != nil {
			return err
		}
		if err := x.updateOccurrences(x.nothing, -1, 0); err != nil {
			return err
		}
	}

	if sign < 0 {
		for _, m := range members {
			if _, err := x.indexClass(m, 0, -1); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitDuplicates(members []*ClassExpression) (distinct, duplicates []*ClassExpression) {
	seen := make(map[*ClassExpression]bool, len(members))
	for _, m := range members {
		if seen[m] {
			duplicates = append(duplicates, m)
			continue
		}
		seen[m] = true
		distinct = append(distinct, m)
	}
	sortByID(distinct)
	return distinct, duplicates
}

func (x *Index) updateDisjointnessAxiom(members []*ClassExpression, sign int) error {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = fmt.Sprint(m.id)
	}
	key := "D:" + strings.Join(ids, ",")

	axiom, ok := x.disjointness[key]
	if !ok {
		if sign < 0 {
			return saterrors.Invariantf("remove disjointness", "disjointness axiom %s is not indexed", key)
		}
		axiom = &DisjointnessAxiom{id: x.ids.next(), members: members}
		x.disjointness[key] = axiom
	}

	old := axiom.occurrences
	axiom.occurrences += sign
	switch {
	case axiom.occurrences < 0:
		return saterrors.Invariantf("update disjointness", "negative occurrence count for %s", axiom)
	case old == 0 && axiom.occurrences > 0:
		for _, m := range members {
			addDisjointness(&m.rules, axiom)
			if x.changes != nil {
				addDisjointness(x.changes.added(m), axiom)
			}
		}
	case old > 0 && axiom.occurrences == 0:
		for _, m := range members {
			if !removeDisjointness(&m.rules, axiom) {
				return saterrors.Invariantf("remove disjointness", "%s is not registered on %s", axiom, m)
			}
			if x.changes != nil {
				addDisjointness(x.changes.removed(m), axiom)
			}
		}
		delete(x.disjointness, key)
	}
	return nil
}

func (x *Index) applySubPropertyOf(sub, sup Property, sign int) error {
	x.propertiesDirty = true
	if x.changes != nil {
		x.changes.PropertiesChanged = true
	}

	if sign > 0 {
		s, err := x.indexProperty(sub, 1)
		if err != nil {
			return err
		}
		p, err := x.indexProperty(sup, 1)
		if err != nil {
			return err
		}
		s.toldSuperProperties = append(s.toldSuperProperties, p)
		p.toldSubProperties = append(p.toldSubProperties, s)
		return nil
	}

	s, err := x.resolveProperty(sub)
	if err != nil {
		return err
	}
	p, err := x.resolveProperty(sup)
	if err != nil {
		return err
	}
	var ok bool
	if s.toldSuperProperties, ok = removeProperty(s.toldSuperProperties, p); !ok {
		return saterrors.Invariantf("remove sub-property", "%s is not a told super-property of %s", p, s)
	}
	if p.toldSubProperties, ok = removeProperty(p.toldSubProperties, s); !ok {
		return saterrors.Invariantf("remove sub-property", "%s is not a told sub-property of %s", s, p)
	}
	if _, err := x.indexProperty(sub, -1); err != nil {
		return err
	}
	_, err = x.indexProperty(sup, -1)
	return err
}

func (x *Index) applyReflexive(p Property, sign int) error {
	x.propertiesDirty = true
	if x.changes != nil {
		x.changes.PropertiesChanged = true
	}

	if sign > 0 {
		prop, err := x.indexProperty(p, 1)
		if err != nil {
			return err
		}
		prop.reflexiveAxioms++
		return nil
	}

	prop, err := x.resolveProperty(p)
	if err != nil {
		return err
	}
	prop.reflexiveAxioms--
	if prop.reflexiveAxioms < 0 {
		return saterrors.Invariantf("remove reflexivity", "negative reflexivity count for %s", prop)
	}
	_, err = x.indexProperty(p, -1)
	return err
}

func removeProperty(list []*PropertyChain, p *PropertyChain) ([]*PropertyChain, bool) {
	for i, q := range list {
		if q == p {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

// =============================================================================
// Class expression indexing
// =============================================================================

// indexClass interns e and adds the given occurrence increments to it and
// to its sub-expressions. Negative increments require e to be indexed.
func (x *Index) indexClass(e Expr, pos, neg int) (*ClassExpression, error) {
	create := pos > 0 || neg > 0

	var ce *ClassExpression
	switch e.Kind {
	case KindClass, KindIndividual, KindDataHasValue:
		ce = x.classes[atomKey(e.Kind, e.IRI, e.Value)]
		if ce == nil {
			if !create {
				return nil, saterrors.Invariantf("index class", "%s is not indexed", e)
			}
			ce = x.newClassExpression(e.Kind, e.IRI, e.Value)
		}

	case KindConjunction:
		n := len(e.Operands)
		a, err := x.indexClass(And(e.Operands[:n-1]...), pos, neg)
		if err != nil {
			return nil, err
		}
		b, err := x.indexClass(e.Operands[n-1], pos, neg)
		if err != nil {
			return nil, err
		}
		if ce, err = x.internConjunction(a, b, create); err != nil {
			return nil, err
		}

	case KindExistential:
		p, err := x.indexProperty(*e.Property, pos+neg)
		if err != nil {
			return nil, err
		}
		f, err := x.indexClass(e.Operands[0], pos, neg)
		if err != nil {
			return nil, err
		}
		if ce, err = x.internExistential(p, f, create); err != nil {
			return nil, err
		}

	default:
		return nil, saterrors.Invariantf("index class", "unknown expression kind %d", e.Kind)
	}

	return ce, x.updateOccurrences(ce, pos, neg)
}

// resolveClass looks up e without changing occurrences.
func (x *Index) resolveClass(e Expr) (*ClassExpression, error) {
	switch e.Kind {
	case KindClass, KindIndividual, KindDataHasValue:
		if ce := x.classes[atomKey(e.Kind, e.IRI, e.Value)]; ce != nil {
			return ce, nil
		}
	case KindConjunction:
		n := len(e.Operands)
		a, err := x.resolveClass(And(e.Operands[:n-1]...))
		if err != nil {
			return nil, err
		}
		b, err := x.resolveClass(e.Operands[n-1])
		if err != nil {
			return nil, err
		}
		return x.internConjunction(a, b, false)
	case KindExistential:
		p, err := x.resolveProperty(*e.Property)
		if err != nil {
			return nil, err
		}
		f, err := x.resolveClass(e.Operands[0])
		if err != nil {
			return nil, err
		}
		return x.internExistential(p, f, false)
	}
	return nil, saterrors.Invariantf("resolve class", "%s is not indexed", e)
}

func (x *Index) internConjunction(a, b *ClassExpression, create bool) (*ClassExpression, error) {
	if a.id > b.id {
		a, b = b, a
	}
	key := classKey(KindConjunction, "", a.id, b.id)
	if ce := x.classes[key]; ce != nil {
		return ce, nil
	}
	if !create {
		return nil, saterrors.Invariantf("index conjunction", "(%s ⊓ %s) is not indexed", a, b)
	}
	ce := &ClassExpression{id: x.ids.next(), kind: KindConjunction, first: a, second: b}
	x.classes[key] = ce
	return ce, nil
}

func (x *Index) internExistential(p *PropertyChain, f *ClassExpression, create bool) (*ClassExpression, error) {
	key := classKey(KindExistential, "", p.id, f.id)
	if ce := x.classes[key]; ce != nil {
		return ce, nil
	}
	if !create {
		return nil, saterrors.Invariantf("index existential", "∃%s.%s is not indexed", p, f)
	}
	ce := &ClassExpression{id: x.ids.next(), kind: KindExistential, property: p, filler: f}
	x.classes[key] = ce
	return ce, nil
}

func (x *Index) updateOccurrences(ce *ClassExpression, pos, neg int) error {
	oldPos, oldNeg := ce.positiveOccurrences, ce.negativeOccurrences
	newPos, newNeg := oldPos+pos, oldNeg+neg
	if newPos < 0 || newNeg < 0 {
		return saterrors.Invariantf("update occurrences", "negative occurrence count for %s (%d, %d)", ce, newPos, newNeg)
	}
	ce.positiveOccurrences, ce.negativeOccurrences = newPos, newNeg

	var err error
	switch {
	case oldNeg == 0 && newNeg > 0:
		x.registerNegative(ce)
	case oldNeg > 0 && newNeg == 0:
		err = x.unregisterNegative(ce)
	}
	if err != nil {
		return err
	}

	switch {
	case oldPos == 0 && newPos > 0:
		x.registerPositive(ce)
	case oldPos > 0 && newPos == 0:
		err = x.unregisterPositive(ce)
	}
	if err != nil {
		return err
	}

	if !ce.occurs() && ce != x.thing && ce != x.nothing {
		x.removeClassExpression(ce)
	}
	return nil
}

func (x *Index) registerNegative(ce *ClassExpression) {
	switch {
	case ce.kind == KindConjunction:
		x.addConjunctionRule(ce.first, ce.second, ce)
		if ce.first != ce.second {
			x.addConjunctionRule(ce.second, ce.first, ce)
		}
	case ce.kind == KindExistential:
		addExistential(&ce.filler.rules, ce)
		if x.changes != nil {
			addExistential(x.changes.added(ce.filler), ce)
		}
	case ce == x.thing:
		rule := &OwlThingRule{Thing: x.thing}
		addSingleton(&x.initRules, rule)
		if x.changes != nil {
			addSingleton(&x.changes.AddedInit, rule)
		}
	}
}

func (x *Index) unregisterNegative(ce *ClassExpression) error {
	switch {
	case ce.kind == KindConjunction:
		if err := x.removeConjunctionRule(ce.first, ce.second, ce); err != nil {
			return err
		}
		if ce.first != ce.second {
			return x.removeConjunctionRule(ce.second, ce.first, ce)
		}
	case ce.kind == KindExistential:
		if !removeExistential(&ce.filler.rules, ce) {
			return saterrors.Invariantf("unregister existential", "%s is not registered on %s", ce, ce.filler)
		}
		if x.changes != nil {
			addExistential(x.changes.removed(ce.filler), ce)
		}
	case ce == x.thing:
		rule, ok := x.initRules.Find(RuleOwlThing)
		if !ok || !removeSingleton(&x.initRules, RuleOwlThing) {
			return saterrors.Invariantf("unregister owl:Thing", "owl:Thing initialization rule is not registered")
		}
		if x.changes != nil {
			addSingleton(&x.changes.RemovedInit, rule)
		}
	}
	return nil
}

func (x *Index) addConjunctionRule(owner, other, conjunction *ClassExpression) {
	addConjunction(&owner.rules, other, conjunction)
	if x.changes != nil {
		addConjunction(x.changes.added(owner), other, conjunction)
	}
}

func (x *Index) removeConjunctionRule(owner, other, conjunction *ClassExpression) error {
	if !removeConjunction(&owner.rules, other, conjunction) {
		return saterrors.Invariantf("unregister conjunction", "%s is not registered on %s", conjunction, owner)
	}
	if x.changes != nil {
		addConjunction(x.changes.removed(owner), other, conjunction)
	}
	return nil
}

func (x *Index) registerPositive(ce *ClassExpression) {
	if ce != x.nothing {
		return
	}
	rule := &ContradictionRule{}
	addSingleton(&ce.rules, rule)
	if x.changes != nil {
		addSingleton(x.changes.added(ce), rule)
	}
}

func (x *Index) unregisterPositive(ce *ClassExpression) error {
	if ce != x.nothing {
		return nil
	}
	rule, ok := ce.rules.Find(RuleContradiction)
	if !ok || !removeSingleton(&ce.rules, RuleContradiction) {
		return saterrors.Invariantf("unregister owl:Nothing", "contradiction rule is not registered")
	}
	if x.changes != nil {
		addSingleton(x.changes.removed(ce), rule)
	}
	return nil
}

func (x *Index) removeClassExpression(ce *ClassExpression) {
	var key string
	switch ce.kind {
	case KindConjunction:
		key = classKey(ce.kind, "", ce.first.id, ce.second.id)
	case KindExistential:
		key = classKey(ce.kind, "", ce.property.id, ce.filler.id)
	default:
		key = atomKey(ce.kind, ce.iri, ce.value)
	}
	delete(x.classes, key)
	if x.changes != nil {
		x.changes.RemovedExpressions = append(x.changes.RemovedExpressions, ce)
	}
}

// =============================================================================
// Property indexing
// =============================================================================

func (x *Index) indexProperty(p Property, inc int) (*PropertyChain, error) {
	var chain *PropertyChain
	if len(p.Chain) == 1 {
		key := propertyKey(KindObjectProperty, p.Chain[0], 0, 0)
		chain = x.properties[key]
		if chain == nil {
			if inc <= 0 {
				return nil, saterrors.Invariantf("index property", "%s is not indexed", p)
			}
			chain = &PropertyChain{id: x.ids.next(), kind: KindObjectProperty, iri: p.Chain[0]}
			x.properties[key] = chain
			x.propertiesDirty = true
		}
	} else {
		left, err := x.indexProperty(ObjectProperty(p.Chain[0]), inc)
		if err != nil {
			return nil, err
		}
		right, err := x.indexProperty(ChainOf(p.Chain[1:]...), inc)
		if err != nil {
			return nil, err
		}
		key := propertyKey(KindBinaryChain, "", left.id, right.id)
		chain = x.properties[key]
		if chain == nil {
			if inc <= 0 {
				return nil, saterrors.Invariantf("index property", "%s is not indexed", p)
			}
			chain = &PropertyChain{id: x.ids.next(), kind: KindBinaryChain, left: left, right: right}
			x.properties[key] = chain
			x.propertiesDirty = true
		}
	}

	old := chain.occurrences
	chain.occurrences += inc
	switch {
	case chain.occurrences < 0:
		return nil, saterrors.Invariantf("update occurrences", "negative occurrence count for property %s", chain)
	case old == 0 && chain.occurrences > 0 && chain.kind == KindBinaryChain:
		chain.left.leftChains = append(chain.left.leftChains, chain)
		chain.right.rightChains = append(chain.right.rightChains, chain)
	case old > 0 && chain.occurrences == 0:
		if chain.kind == KindBinaryChain {
			var okLeft, okRight bool
			chain.left.leftChains, okLeft = removeProperty(chain.left.leftChains, chain)
			chain.right.rightChains, okRight = removeProperty(chain.right.rightChains, chain)
			if !okLeft || !okRight {
				return nil, saterrors.Invariantf("unregister chain", "%s is not registered on its components", chain)
			}
			delete(x.properties, propertyKey(KindBinaryChain, "", chain.left.id, chain.right.id))
		} else {
			delete(x.properties, propertyKey(KindObjectProperty, chain.iri, 0, 0))
		}
		x.propertiesDirty = true
	}
	return chain, nil
}

func (x *Index) resolveProperty(p Property) (*PropertyChain, error) {
	if len(p.Chain) == 1 {
		if chain := x.properties[propertyKey(KindObjectProperty, p.Chain[0], 0, 0)]; chain != nil {
			return chain, nil
		}
		return nil, saterrors.Invariantf("resolve property", "%s is not indexed", p)
	}
	left, err := x.resolveProperty(ObjectProperty(p.Chain[0]))
	if err != nil {
		return nil, err
	}
	right, err := x.resolveProperty(ChainOf(p.Chain[1:]...))
	if err != nil {
		return nil, err
	}
	if chain := x.properties[propertyKey(KindBinaryChain, "", left.id, right.id)]; chain != nil {
		return chain, nil
	}
	return nil, saterrors.Invariantf("resolve property", "%s is not indexed", p)
}

// =============================================================================
// Change tracking
// =============================================================================

// TrackChanges enables or disables recording of rule deltas.
func (x *Index) TrackChanges(enabled bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	switch {
	case enabled && x.changes == nil:
		x.changes = NewChangeSet()
	case !enabled:
		x.changes = nil
	}
}

// IsTrackingChanges reports whether rule deltas are being recorded.
func (x *Index) IsTrackingChanges() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.changes != nil
}

// TakeChanges returns the recorded deltas and starts a new change set.
// It returns an empty change set when tracking is disabled.
func (x *Index) TakeChanges() *ChangeSet {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.changes == nil {
		return NewChangeSet()
	}
	taken := x.changes
	x.changes = NewChangeSet()
	return taken
}

// =============================================================================
// Accessors
// =============================================================================

// Thing returns the indexed owl:Thing.
func (x *Index) Thing() *ClassExpression { return x.thing }

// Nothing returns the indexed owl:Nothing.
func (x *Index) Nothing() *ClassExpression { return x.nothing }

// ContextInitRules returns the context-initialization rule chain. The chain
// must not be modified by callers.
func (x *Index) ContextInitRules() *RuleChain { return &x.initRules }

// ClassExpressions returns every indexed class expression ordered by ID.
func (x *Index) ClassExpressions() []*ClassExpression {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]*ClassExpression, 0, len(x.classes))
	for _, ce := range x.classes {
		out = append(out, ce)
	}
	sortByID(out)
	return out
}

// Classes returns the named classes, including owl:Thing and owl:Nothing,
// ordered by IRI.
func (x *Index) Classes() []*ClassExpression {
	return x.named(KindClass)
}

// Individuals returns the named individuals ordered by IRI.
func (x *Index) Individuals() []*ClassExpression {
	return x.named(KindIndividual)
}

func (x *Index) named(kind ExprKind) []*ClassExpression {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []*ClassExpression
	for _, ce := range x.classes {
		if ce.kind == kind {
			out = append(out, ce)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].iri < out[j].iri })
	return out
}

// LookupClass returns the indexed named class with the given IRI.
func (x *Index) LookupClass(iri string) (*ClassExpression, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ce, ok := x.classes[classKey(KindClass, iri, 0, 0)]
	return ce, ok
}

// LookupIndividual returns the indexed individual with the given IRI.
func (x *Index) LookupIndividual(iri string) (*ClassExpression, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ce, ok := x.classes[classKey(KindIndividual, iri, 0, 0)]
	return ce, ok
}

// Lookup returns the indexed form of e if it is indexed.
func (x *Index) Lookup(e Expr) (*ClassExpression, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if err := e.validate(); err != nil {
		return nil, false
	}
	ce, err := x.resolveClass(e)
	return ce, err == nil
}

// LookupProperty returns the indexed named property with the given IRI.
func (x *Index) LookupProperty(iri string) (*PropertyChain, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.properties[propertyKey(KindObjectProperty, iri, 0, 0)]
	return p, ok
}

// PropertyChains returns every indexed property chain ordered by ID.
func (x *Index) PropertyChains() []*PropertyChain {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.propertyChainsLocked()
}

func (x *Index) propertyChainsLocked() []*PropertyChain {
	out := make([]*PropertyChain, 0, len(x.properties))
	for _, p := range x.properties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Axioms returns the loaded axioms, repeated by multiplicity, ordered by
// their canonical rendering.
func (x *Index) Axioms() []Axiom {
	x.mu.RLock()
	defer x.mu.RUnlock()
	keys := make([]string, 0, len(x.axioms))
	for k := range x.axioms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []Axiom
	for _, k := range keys {
		loaded := x.axioms[k]
		for i := 0; i < loaded.count; i++ {
			out = append(out, loaded.axiom)
		}
	}
	return out
}

// AxiomCount returns the number of loaded axioms, counting multiplicity.
func (x *Index) AxiomCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, loaded := range x.axioms {
		n += loaded.count
	}
	return n
}

// MaxID returns an upper bound for the IDs allocated so far.
func (x *Index) MaxID() uint32 {
	return x.ids.current()
}

func sortByID(list []*ClassExpression) {
	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
}
