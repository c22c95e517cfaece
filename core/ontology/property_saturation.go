package ontology

import (
	"sort"

	saterrors "github.com/adalundhe/saturn/core/errors"
)

// SaturatedPropertyChain caches the derived hierarchy facts of a property
// chain: its sub- and super-properties, reflexivity, and the compositions in
// which it takes part. Immutable once assigned.
type SaturatedPropertyChain struct {
	root      *PropertyChain
	reflexive bool

	subProperties   map[*PropertyChain]struct{}
	superProperties map[*PropertyChain]struct{}

	// left sub-property S -> chains T such that S followed by root implies T
	compositionsByLeft map[*PropertyChain][]*PropertyChain
	// right sub-property S -> chains T such that root followed by S implies T
	compositionsByRight map[*PropertyChain][]*PropertyChain
}

// Root returns the chain this saturation belongs to.
func (s *SaturatedPropertyChain) Root() *PropertyChain { return s.root }

// IsReflexive reports whether the chain is derived reflexive.
func (s *SaturatedPropertyChain) IsReflexive() bool { return s.reflexive }

// HasSubProperty reports whether p is a derived sub-property of the root.
// Every chain is a sub-property of itself.
func (s *SaturatedPropertyChain) HasSubProperty(p *PropertyChain) bool {
	_, ok := s.subProperties[p]
	return ok
}

// SubProperties returns the derived sub-properties ordered by ID.
func (s *SaturatedPropertyChain) SubProperties() []*PropertyChain {
	return sortedProperties(s.subProperties)
}

// SuperProperties returns the derived super-properties ordered by ID.
func (s *SaturatedPropertyChain) SuperProperties() []*PropertyChain {
	return sortedProperties(s.superProperties)
}

// HasLeftCompositions reports whether some property composes with the root
// from the left.
func (s *SaturatedPropertyChain) HasLeftCompositions() bool {
	return len(s.compositionsByLeft) > 0
}

// ComposeLeft returns the chains implied by left followed by the root.
func (s *SaturatedPropertyChain) ComposeLeft(left *PropertyChain) []*PropertyChain {
	return s.compositionsByLeft[left]
}

// ComposeRight returns the chains implied by the root followed by right.
func (s *SaturatedPropertyChain) ComposeRight(right *PropertyChain) []*PropertyChain {
	return s.compositionsByRight[right]
}

func sortedProperties(set map[*PropertyChain]struct{}) []*PropertyChain {
	out := make([]*PropertyChain, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *SaturatedPropertyChain) equal(o *SaturatedPropertyChain) bool {
	if s.root != o.root || s.reflexive != o.reflexive {
		return false
	}
	if !sameSet(s.subProperties, o.subProperties) || !sameSet(s.superProperties, o.superProperties) {
		return false
	}
	return sameCompositions(s.compositionsByLeft, o.compositionsByLeft) &&
		sameCompositions(s.compositionsByRight, o.compositionsByRight)
}

func sameSet(a, b map[*PropertyChain]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for p := range a {
		if _, ok := b[p]; !ok {
			return false
		}
	}
	return true
}

func sameCompositions(a, b map[*PropertyChain][]*PropertyChain) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if va[i] != vb[i] {
				return false
			}
		}
	}
	return true
}

// =============================================================================
// Property stages
// =============================================================================

// PropertiesDirty reports whether the property hierarchy changed since the
// saturations were last computed.
func (x *Index) PropertiesDirty() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.propertiesDirty
}

// ClearPropertySaturations resets the saturation slot of every chain.
func (x *Index) ClearPropertySaturations() {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, p := range x.properties {
		p.clearSaturated()
	}
	x.propertiesDirty = true
}

// SaturateProperties computes the saturation of every indexed property chain
// and assigns the unassigned slots. A slot already holding a different
// saturation is an invariant violation; the property hierarchy must be
// cleared with ClearPropertySaturations after it changes.
func (x *Index) SaturateProperties() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	chains := x.propertyChainsLocked()
	if x.propertiesDirty {
		for _, p := range chains {
			p.clearSaturated()
		}
	} else if allSaturated(chains) {
		return nil
	}

	computed := computeSaturations(chains)
	for _, p := range chains {
		s := computed[p]
		if winner := p.SetSaturated(s); winner != s && !winner.equal(s) {
			return saterrors.Invariantf("saturate properties", "saturation of %s reassigned with a different value", p)
		}
	}
	x.propertiesDirty = false
	return nil
}

func allSaturated(chains []*PropertyChain) bool {
	for _, p := range chains {
		if p.Saturated() == nil {
			return false
		}
	}
	return true
}

func computeSaturations(chains []*PropertyChain) map[*PropertyChain]*SaturatedPropertyChain {
	reflexive := computeReflexivity(chains)

	// sub -> direct supers, including the supers implied by reflexive components
	supers := make(map[*PropertyChain][]*PropertyChain, len(chains))
	for _, p := range chains {
		supers[p] = append(supers[p], p.toldSuperProperties...)
		if p.kind == KindBinaryChain {
			if reflexive[p.left] {
				supers[p.right] = append(supers[p.right], p)
			}
			if reflexive[p.right] {
				supers[p.left] = append(supers[p.left], p)
			}
		}
	}

	result := make(map[*PropertyChain]*SaturatedPropertyChain, len(chains))
	for _, p := range chains {
		result[p] = &SaturatedPropertyChain{
			root:                p,
			reflexive:           reflexive[p],
			subProperties:       make(map[*PropertyChain]struct{}),
			superProperties:     reachable(p, supers),
			compositionsByLeft:  make(map[*PropertyChain][]*PropertyChain),
			compositionsByRight: make(map[*PropertyChain][]*PropertyChain),
		}
	}
	for _, p := range chains {
		for sup := range result[p].superProperties {
			if s, ok := result[sup]; ok {
				s.subProperties[p] = struct{}{}
			}
		}
	}

	left := make(map[*PropertyChain]map[*PropertyChain]map[*PropertyChain]struct{})
	right := make(map[*PropertyChain]map[*PropertyChain]map[*PropertyChain]struct{})
	for _, chain := range chains {
		if chain.kind != KindBinaryChain {
			continue
		}
		implied := result[chain].superProperties
		for l := range result[chain.left].subProperties {
			for r := range result[chain.right].subProperties {
				addCompositions(left, r, l, implied)
				addCompositions(right, l, r, implied)
			}
		}
	}
	for owner, byKey := range left {
		for key, set := range byKey {
			result[owner].compositionsByLeft[key] = sortedProperties(set)
		}
	}
	for owner, byKey := range right {
		for key, set := range byKey {
			result[owner].compositionsByRight[key] = sortedProperties(set)
		}
	}
	return result
}

func addCompositions(
	index map[*PropertyChain]map[*PropertyChain]map[*PropertyChain]struct{},
	owner, key *PropertyChain,
	implied map[*PropertyChain]struct{},
) {
	byKey, ok := index[owner]
	if !ok {
		byKey = make(map[*PropertyChain]map[*PropertyChain]struct{})
		index[owner] = byKey
	}
	set, ok := byKey[key]
	if !ok {
		set = make(map[*PropertyChain]struct{}, len(implied))
		byKey[key] = set
	}
	for t := range implied {
		set[t] = struct{}{}
	}
}

// computeReflexivity derives reflexivity: told reflexive properties, their
// super-properties, and chains of two reflexive components.
func computeReflexivity(chains []*PropertyChain) map[*PropertyChain]bool {
	reflexive := make(map[*PropertyChain]bool)
	for _, p := range chains {
		if p.IsToldReflexive() {
			reflexive[p] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for _, p := range chains {
			if reflexive[p] {
				for _, sup := range p.toldSuperProperties {
					if !reflexive[sup] {
						reflexive[sup] = true
						changed = true
					}
				}
				continue
			}
			if p.kind == KindBinaryChain && reflexive[p.left] && reflexive[p.right] {
				reflexive[p] = true
				changed = true
			}
		}
	}
	return reflexive
}

func reachable(start *PropertyChain, edges map[*PropertyChain][]*PropertyChain) map[*PropertyChain]struct{} {
	seen := map[*PropertyChain]struct{}{start: {}}
	stack := []*PropertyChain{start}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range edges[p] {
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				stack = append(stack, next)
			}
		}
	}
	return seen
}
