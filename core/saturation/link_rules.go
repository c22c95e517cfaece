package saturation

import "github.com/adalundhe/saturn/core/ontology"

// linkRuleKind identifies a rule stored in a context and fired for every
// new backward link of that context.
type linkRuleKind uint8

const (
	linkRuleForward linkRuleKind = iota
	linkRulePropagation
)

type linkRule interface {
	kind() linkRuleKind
}

// forwardLinkRule composes new backward links with stored forward links.
type forwardLinkRule struct {
	targets map[*ontology.PropertyChain]map[ContextID]struct{}
}

func newForwardLinkRule() linkRule {
	return &forwardLinkRule{targets: make(map[*ontology.PropertyChain]map[ContextID]struct{})}
}

func (r *forwardLinkRule) kind() linkRuleKind { return linkRuleForward }

func (r *forwardLinkRule) add(rel *ontology.PropertyChain, target ContextID) bool {
	set, ok := r.targets[rel]
	if !ok {
		set = make(map[ContextID]struct{}, 1)
		r.targets[rel] = set
	}
	if _, ok := set[target]; ok {
		return false
	}
	set[target] = struct{}{}
	return true
}

func (r *forwardLinkRule) removeTargets(dropped map[ContextID]struct{}) bool {
	removed := false
	for rel, set := range r.targets {
		for t := range set {
			if _, ok := dropped[t]; ok {
				delete(set, t)
				removed = true
			}
		}
		if len(set) == 0 {
			delete(r.targets, rel)
		}
	}
	return removed
}

func (r *forwardLinkRule) isEmpty() bool { return len(r.targets) == 0 }

// propagationRule derives carried existentials in the sources of new
// backward links over the propagation relation.
type propagationRule struct {
	carries map[*ontology.PropertyChain]map[*ontology.ClassExpression]struct{}
}

func newPropagationRule() linkRule {
	return &propagationRule{carries: make(map[*ontology.PropertyChain]map[*ontology.ClassExpression]struct{})}
}

func (r *propagationRule) kind() linkRuleKind { return linkRulePropagation }

func (r *propagationRule) add(rel *ontology.PropertyChain, carry *ontology.ClassExpression) bool {
	set, ok := r.carries[rel]
	if !ok {
		set = make(map[*ontology.ClassExpression]struct{}, 1)
		r.carries[rel] = set
	}
	if _, ok := set[carry]; ok {
		return false
	}
	set[carry] = struct{}{}
	return true
}

func (c *Context) forwardLinkRule() *forwardLinkRule {
	r, ok := c.linkRules.Find(linkRuleForward)
	if !ok {
		return nil
	}
	return r.(*forwardLinkRule)
}

func (c *Context) propagationRule() *propagationRule {
	r, ok := c.linkRules.Find(linkRulePropagation)
	if !ok {
		return nil
	}
	return r.(*propagationRule)
}
