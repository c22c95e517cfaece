package saturation

import (
	"log/slog"
	"sync/atomic"

	"github.com/adalundhe/saturn/core/concurrency"
	"github.com/adalundhe/saturn/core/ontology"
)

// State is the saturation state of one ontology index: the contexts, the
// queue of active contexts and the count of outstanding work. It survives
// interrupted runs, so a later run resumes where the previous one stopped.
type State struct {
	index  *ontology.Index
	logger *slog.Logger

	contexts arena
	active   *concurrency.WorkQueue[*Context]

	// contexts queued or being processed, plus job submissions in flight
	outstanding atomic.Int64
}

// NewState creates an empty state over the index.
func NewState(index *ontology.Index, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		index:  index,
		logger: logger,
		active: concurrency.NewWorkQueue[*Context](),
	}
}

// Index returns the ontology index the state is computed for.
func (s *State) Index() *ontology.Index { return s.index }

// Context returns the context of root, or nil if none was created.
func (s *State) Context(root *ontology.ClassExpression) *Context {
	return s.contexts.get(ContextID(root.ID()))
}

// ContextByID returns the context with the given ID, or nil.
func (s *State) ContextByID(id ContextID) *Context {
	return s.contexts.get(id)
}

// Contexts returns every context ordered by ID.
func (s *State) Contexts() []*Context {
	out := make([]*Context, 0, s.contexts.count.Load())
	s.contexts.each(func(c *Context) bool {
		out = append(out, c)
		return true
	})
	return out
}

// ContextCount returns the number of contexts.
func (s *State) ContextCount() int { return int(s.contexts.count.Load()) }

// HasPendingWork reports whether an interrupted run left work behind.
func (s *State) HasPendingWork() bool { return s.outstanding.Load() > 0 }

// RemoveContexts drops the contexts and strips every link that points to
// them from the remaining contexts. It must not run concurrently with a
// saturation run. It returns the number of surviving contexts that lost
// links.
func (s *State) RemoveContexts(ids map[ContextID]struct{}) int {
	for id := range ids {
		s.contexts.remove(id)
	}
	if n := s.contexts.trim(); n > 0 {
		s.logger.Debug("released empty context chunks", "chunks", n)
	}
	touched := 0
	s.contexts.each(func(c *Context) bool {
		if c.removeLinksFrom(ids) {
			c.saturated.Store(false)
			touched++
		}
		return true
	})
	return touched
}

// MarkAllSaturated flags every context as saturated.
func (s *State) MarkAllSaturated() {
	s.contexts.each(func(c *Context) bool {
		c.saturated.Store(true)
		return true
	})
}

// Reset drops every context and any pending work.
func (s *State) Reset() {
	s.active.Drain()
	s.outstanding.Store(0)
	s.contexts.reset()
}

// Writer returns a writer that records its work in stats.
func (s *State) Writer(stats *Stats, tracer *Tracer) *Writer {
	return &Writer{state: s, stats: stats, tracer: tracer}
}

// =============================================================================
// Writer
// =============================================================================

// Writer produces conclusions into contexts and creates contexts on demand.
// A Writer belongs to a single worker.
type Writer struct {
	state  *State
	stats  *Stats
	tracer *Tracer
}

// Produce appends the conclusion to the todo queue of the context and
// activates the context if it is idle.
func (w *Writer) Produce(target *Context, c Conclusion) {
	w.stats.Produced[c.kind]++
	target.push(c)
	if target.active.CompareAndSwap(false, true) {
		target.saturated.Store(false)
		w.stats.ContextActivations++
		w.state.outstanding.Add(1)
		w.state.active.Push(target)
	}
}

// GetCreateContext returns the context of root. A context created by this
// call is initialized with the context-initialization rules.
func (w *Writer) GetCreateContext(root *ontology.ClassExpression) *Context {
	c, created := w.state.contexts.getOrCreate(root)
	if created {
		w.stats.ContextsCreated++
		w.initContext(c, w.state.index.ContextInitRules())
	}
	return c
}

func (w *Writer) initContext(c *Context, rules *ontology.RuleChain) {
	rules.Each(func(kind ontology.RuleKind, r ontology.Rule) bool {
		w.stats.RuleApplications[kind]++
		switch rule := r.(type) {
		case *ontology.ContextRootRule:
			w.Produce(c, PositiveSubsumer(c.root))
		case *ontology.OwlThingRule:
			w.Produce(c, PositiveSubsumer(rule.Thing))
		}
		return true
	})
}

// =============================================================================
// Rule deltas
// =============================================================================

// RuleDelta is a set of newly added rules replayed in existing contexts.
type RuleDelta struct {
	// Chains maps expressions to their added composition rules.
	Chains map[*ontology.ClassExpression]*ontology.RuleChain
	// Init holds added context-initialization rules.
	Init *ontology.RuleChain
	// ScanRatio tunes the choice between scanning subsumers and scanning
	// changed expressions; see PreferSubsumerScan.
	ScanRatio int
}

// PreferSubsumerScan reports whether the subsumers of a context should be
// scanned for changed expressions rather than the changed expressions
// looked up among the subsumers.
func PreferSubsumerScan(subsumers, changed, ratio int) bool {
	if ratio <= 0 {
		ratio = DefaultScanRatio
	}
	return subsumers*ratio <= changed
}

// DefaultScanRatio is the cost ratio between a map lookup during the
// changed-expression scan and an iteration step during the subsumer scan.
const DefaultScanRatio = 4
