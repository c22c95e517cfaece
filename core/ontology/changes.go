package ontology

// ChangeSet records the rule deltas produced by indexing while change
// tracking is enabled. It is the input of incremental maintenance.
type ChangeSet struct {
	// Added maps an expression to the composition rules registered on it.
	Added map[*ClassExpression]*RuleChain
	// Removed maps an expression to the composition rules removed from it.
	Removed map[*ClassExpression]*RuleChain
	// AddedInit holds newly registered context-initialization rules.
	AddedInit RuleChain
	// RemovedInit holds removed context-initialization rules.
	RemovedInit RuleChain
	// RemovedExpressions lists expressions that no longer occur.
	RemovedExpressions []*ClassExpression
	// PropertiesChanged is set when the property hierarchy, chains or
	// reflexivity changed.
	PropertiesChanged bool
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Added:   make(map[*ClassExpression]*RuleChain),
		Removed: make(map[*ClassExpression]*RuleChain),
	}
}

// IsEmpty reports whether nothing was recorded.
func (c *ChangeSet) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 &&
		c.AddedInit.Len() == 0 && c.RemovedInit.Len() == 0 &&
		len(c.RemovedExpressions) == 0 && !c.PropertiesChanged
}

// HasRemovals reports whether any rule or expression was removed.
func (c *ChangeSet) HasRemovals() bool {
	return len(c.Removed) > 0 || c.RemovedInit.Len() > 0 || len(c.RemovedExpressions) > 0
}

// AddedKeys returns the expressions with added composition rules.
func (c *ChangeSet) AddedKeys() []*ClassExpression {
	return chainKeys(c.Added)
}

// RemovedKeys returns the expressions with removed composition rules.
func (c *ChangeSet) RemovedKeys() []*ClassExpression {
	return chainKeys(c.Removed)
}

func chainKeys(m map[*ClassExpression]*RuleChain) []*ClassExpression {
	keys := make([]*ClassExpression, 0, len(m))
	for e := range m {
		keys = append(keys, e)
	}
	sortByID(keys)
	return keys
}

func (c *ChangeSet) chain(m map[*ClassExpression]*RuleChain, e *ClassExpression) *RuleChain {
	chain, ok := m[e]
	if !ok {
		chain = &RuleChain{}
		m[e] = chain
	}
	return chain
}

func (c *ChangeSet) added(e *ClassExpression) *RuleChain {
	return c.chain(c.Added, e)
}

func (c *ChangeSet) removed(e *ClassExpression) *RuleChain {
	return c.chain(c.Removed, e)
}
