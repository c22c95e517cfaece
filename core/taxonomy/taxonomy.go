// Package taxonomy builds the class hierarchy and the direct types of
// individuals from a saturated state.
package taxonomy

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/ontology"
	"github.com/adalundhe/saturn/core/saturation"
)

// =============================================================================
// Node
// =============================================================================

// Node is a set of equivalent named classes.
type Node struct {
	members   []*ontology.ClassExpression
	parents   []*Node
	children  []*Node
	instances []*ontology.ClassExpression

	// strict is the set of nodes strictly above this one
	strict map[*Node]struct{}
}

// Members returns the equivalent classes of the node ordered by IRI.
func (n *Node) Members() []*ontology.ClassExpression { return n.members }

// Canonical returns the first member by IRI.
func (n *Node) Canonical() *ontology.ClassExpression { return n.members[0] }

// Parents returns the direct super-nodes.
func (n *Node) Parents() []*Node { return n.parents }

// Children returns the direct sub-nodes.
func (n *Node) Children() []*Node { return n.children }

// Instances returns the individuals for which the node is a direct type.
// It is empty until the instance taxonomy is built.
func (n *Node) Instances() []*ontology.ClassExpression { return n.instances }

// Contains reports whether e is a member of the node.
func (n *Node) Contains(e *ontology.ClassExpression) bool {
	for _, m := range n.members {
		if m == e {
			return true
		}
	}
	return false
}

// Ancestors returns every node strictly above n, ordered by canonical IRI.
func (n *Node) Ancestors() []*Node {
	out := make([]*Node, 0, len(n.strict))
	for s := range n.strict {
		out = append(out, s)
	}
	sortNodes(out)
	return out
}

// Descendants returns every node strictly below n, ordered by canonical IRI.
func (n *Node) Descendants() []*Node {
	seen := make(map[*Node]struct{})
	stack := append([]*Node(nil), n.children...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		stack = append(stack, c.children...)
	}
	out := make([]*Node, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sortNodes(out)
	return out
}

func (n *Node) String() string {
	names := make([]string, len(n.members))
	for i, m := range n.members {
		names[i] = m.String()
	}
	if len(names) == 1 {
		return names[0]
	}
	return "[" + strings.Join(names, " ") + "]"
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Canonical().IRI() < nodes[j].Canonical().IRI()
	})
}

// =============================================================================
// Class taxonomy
// =============================================================================

// Taxonomy is the hierarchy of named classes.
type Taxonomy struct {
	nodes  []*Node
	byExpr map[*ontology.ClassExpression]*Node
	top    *Node
	bottom *Node
}

// Top returns the node of owl:Thing.
func (t *Taxonomy) Top() *Node { return t.top }

// Bottom returns the node of owl:Nothing, which holds every unsatisfiable
// class.
func (t *Taxonomy) Bottom() *Node { return t.bottom }

// Nodes returns every node ordered by canonical IRI.
func (t *Taxonomy) Nodes() []*Node { return t.nodes }

// Node returns the node containing the named class e.
func (t *Taxonomy) Node(e *ontology.ClassExpression) (*Node, bool) {
	n, ok := t.byExpr[e]
	return n, ok
}

// Build computes the class taxonomy from a state in which every named class
// is saturated. It fails with ErrInconsistentOntology when owl:Thing is
// unsatisfiable.
func Build(state *saturation.State) (*Taxonomy, error) {
	const op = "taxonomy.Build"
	index := state.Index()
	thing, nothing := index.Thing(), index.Nothing()

	var satisfiable, unsatisfiable []*ontology.ClassExpression
	for _, cls := range index.Classes() {
		c := state.Context(cls)
		if c == nil || !c.IsSaturated() {
			return nil, saterrors.Invariantf(op, "class %s is not saturated", cls)
		}
		if cls == nothing || c.IsInconsistent() {
			unsatisfiable = append(unsatisfiable, cls)
			continue
		}
		satisfiable = append(satisfiable, cls)
	}
	if state.Context(thing).IsInconsistent() {
		return nil, saterrors.ErrInconsistentOntology
	}

	g := simple.NewDirectedGraph()
	for _, cls := range satisfiable {
		g.AddNode(simple.Node(int64(cls.ID())))
	}
	for _, cls := range satisfiable {
		for _, sup := range namedSubsumers(state.Context(cls), thing) {
			if sup == cls || sup == nothing {
				continue
			}
			if g.Node(int64(sup.ID())) == nil {
				return nil, saterrors.Invariantf(op, "subsumer %s of %s is not satisfiable", sup, cls)
			}
			g.SetEdge(g.NewEdge(simple.Node(int64(cls.ID())), simple.Node(int64(sup.ID()))))
		}
	}

	byID := make(map[int64]*ontology.ClassExpression, len(satisfiable))
	for _, cls := range satisfiable {
		byID[int64(cls.ID())] = cls
	}
	t := &Taxonomy{byExpr: make(map[*ontology.ClassExpression]*Node, len(satisfiable)+len(unsatisfiable))}
	for _, component := range topo.TarjanSCC(g) {
		n := &Node{}
		for _, gn := range component {
			n.members = append(n.members, byID[gn.ID()])
		}
		t.add(n)
	}
	t.top = t.byExpr[thing]

	for _, n := range t.nodes {
		n.strict = make(map[*Node]struct{})
		for _, sup := range namedSubsumers(state.Context(n.Canonical()), thing) {
			if s := t.byExpr[sup]; s != nil && s != n {
				n.strict[s] = struct{}{}
			}
		}
	}
	for _, n := range t.nodes {
		for _, p := range direct(n.strict) {
			n.parents = append(n.parents, p)
			p.children = append(p.children, n)
		}
	}

	t.bottom = &Node{members: unsatisfiable, strict: make(map[*Node]struct{})}
	for _, n := range t.nodes {
		t.bottom.strict[n] = struct{}{}
		if len(n.children) == 0 {
			t.bottom.parents = append(t.bottom.parents, n)
		}
	}
	for _, p := range t.bottom.parents {
		p.children = append(p.children, t.bottom)
	}
	t.add(t.bottom)

	for _, n := range t.nodes {
		sortNodes(n.parents)
		sortNodes(n.children)
	}
	return t, nil
}

func (t *Taxonomy) add(n *Node) {
	sort.Slice(n.members, func(i, j int) bool { return n.members[i].IRI() < n.members[j].IRI() })
	for _, m := range n.members {
		t.byExpr[m] = n
	}
	i := sort.Search(len(t.nodes), func(i int) bool {
		return t.nodes[i].Canonical().IRI() >= n.Canonical().IRI()
	})
	t.nodes = append(t.nodes, nil)
	copy(t.nodes[i+1:], t.nodes[i:])
	t.nodes[i] = n
}

// namedSubsumers returns the named classes derived in c, with owl:Thing
// added since it subsumes every satisfiable class.
func namedSubsumers(c *saturation.Context, thing *ontology.ClassExpression) []*ontology.ClassExpression {
	out := []*ontology.ClassExpression{thing}
	c.EachSubsumer(func(e *ontology.ClassExpression) bool {
		if e.Kind() == ontology.KindClass && e != thing {
			out = append(out, e)
		}
		return true
	})
	return out
}

// direct keeps the nodes of supers that are not strictly below another
// node of supers.
func direct(supers map[*Node]struct{}) []*Node {
	var out []*Node
	for s := range supers {
		covered := false
		for other := range supers {
			if other == s {
				continue
			}
			if _, ok := other.strict[s]; ok {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// Instance taxonomy
// =============================================================================

// InstanceTaxonomy extends a class taxonomy with the types of individuals.
type InstanceTaxonomy struct {
	*Taxonomy
	types map[*ontology.ClassExpression][]*Node
	all   map[*ontology.ClassExpression][]*Node
}

// BuildInstances computes the types of every individual. It fails with
// ErrInconsistentOntology when an individual is inconsistent. The class
// nodes of t record their direct instances.
func BuildInstances(t *Taxonomy, state *saturation.State) (*InstanceTaxonomy, error) {
	const op = "taxonomy.BuildInstances"
	index := state.Index()
	it := &InstanceTaxonomy{
		Taxonomy: t,
		types:    make(map[*ontology.ClassExpression][]*Node),
		all:      make(map[*ontology.ClassExpression][]*Node),
	}
	for _, n := range t.nodes {
		n.instances = nil
	}

	for _, ind := range index.Individuals() {
		c := state.Context(ind)
		if c == nil || !c.IsSaturated() {
			return nil, saterrors.Invariantf(op, "individual %s is not saturated", ind)
		}
		if c.IsInconsistent() {
			return nil, saterrors.ErrInconsistentOntology
		}
		types := make(map[*Node]struct{})
		for _, cls := range namedSubsumers(c, index.Thing()) {
			n, ok := t.byExpr[cls]
			if !ok {
				return nil, saterrors.Invariantf(op, "type %s of %s is not in the taxonomy", cls, ind)
			}
			types[n] = struct{}{}
		}
		all := make([]*Node, 0, len(types))
		for n := range types {
			all = append(all, n)
		}
		sortNodes(all)
		directTypes := direct(types)
		sortNodes(directTypes)
		it.all[ind] = all
		it.types[ind] = directTypes
		for _, n := range directTypes {
			n.instances = append(n.instances, ind)
		}
	}
	for _, n := range t.nodes {
		sort.Slice(n.instances, func(i, j int) bool { return n.instances[i].IRI() < n.instances[j].IRI() })
	}
	return it, nil
}

// Types returns the type nodes of an individual, only the most specific
// ones when direct is set.
func (it *InstanceTaxonomy) Types(ind *ontology.ClassExpression, direct bool) ([]*Node, bool) {
	if direct {
		types, ok := it.types[ind]
		return types, ok
	}
	types, ok := it.all[ind]
	return types, ok
}

// Instances returns the individuals of a node, including those of its
// descendants unless direct is set.
func (it *InstanceTaxonomy) Instances(n *Node, direct bool) []*ontology.ClassExpression {
	if direct {
		return n.instances
	}
	seen := make(map[*ontology.ClassExpression]struct{})
	for _, ind := range n.instances {
		seen[ind] = struct{}{}
	}
	for _, d := range n.Descendants() {
		for _, ind := range d.instances {
			seen[ind] = struct{}{}
		}
	}
	out := make([]*ontology.ClassExpression, 0, len(seen))
	for ind := range seen {
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IRI() < out[j].IRI() })
	return out
}

// Individuals returns the individuals with computed types ordered by IRI.
func (it *InstanceTaxonomy) Individuals() []*ontology.ClassExpression {
	out := make([]*ontology.ClassExpression, 0, len(it.types))
	for ind := range it.types {
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IRI() < out[j].IRI() })
	return out
}
