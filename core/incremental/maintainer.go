// Package incremental brings a saturation state up to date after axioms
// are added or removed, touching only the contexts the change can affect.
package incremental

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adalundhe/saturn/core/ontology"
	"github.com/adalundhe/saturn/core/saturation"
)

const defaultBatchSize = 128

// Mode tells how a change set was applied.
type Mode uint8

const (
	// ModeNone means the change set was empty.
	ModeNone Mode = iota
	// ModeIncremental means only affected contexts were recomputed.
	ModeIncremental
	// ModeFull means the state was dropped and saturated again.
	ModeFull
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeIncremental:
		return "incremental"
	case ModeFull:
		return "full"
	default:
		return "unknown"
	}
}

// Options configures a Maintainer.
type Options struct {
	Saturation saturation.Options
	// ScanRatio is passed to saturation.PreferSubsumerScan.
	ScanRatio int
	// BatchSize is the number of contexts per replay job.
	BatchSize int
}

// Result summarises an update.
type Result struct {
	Mode Mode

	AddedKeys   int
	RemovedKeys int

	// contexts dropped because a removed rule may have fired in them
	ClearedContexts int
	// surviving contexts that lost links to cleared contexts
	TouchedContexts int
	// surviving contexts the added rules were replayed in
	ReplayedContexts int
	// roots submitted for saturation afterwards
	ResaturatedRoots int

	Stats    saturation.Stats
	Duration time.Duration
}

// Maintainer applies change sets to a saturation state.
type Maintainer struct {
	state  *saturation.State
	opts   Options
	logger *slog.Logger
}

// NewMaintainer creates a maintainer for the state.
func NewMaintainer(state *saturation.State, opts Options) *Maintainer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.ScanRatio <= 0 {
		opts.ScanRatio = saturation.DefaultScanRatio
	}
	logger := opts.Saturation.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintainer{state: state, opts: opts, logger: logger}
}

// Update makes the state reflect the index after the changes, which must
// already be applied to the index. On any error, ErrInterrupted included,
// the added rules may not have reached every context and the state must be
// reset before it is used again.
func (m *Maintainer) Update(ctx context.Context, changes *ontology.ChangeSet) (Result, error) {
	started := time.Now()
	result := Result{
		AddedKeys:   len(changes.Added),
		RemovedKeys: len(changes.Removed),
	}
	if changes.IsEmpty() {
		return result, nil
	}

	index := m.state.Index()
	if changes.PropertiesChanged {
		m.logger.Debug("property hierarchy changed, saturating from scratch")
		result.Mode = ModeFull
		m.state.Reset()
		index.ClearPropertySaturations()
		if err := index.SaturateProperties(); err != nil {
			return result, err
		}
		err := m.resaturate(ctx, &result)
		result.Duration = time.Since(started)
		return result, err
	}

	result.Mode = ModeIncremental
	engine := saturation.NewEngine(m.state, m.opts.Saturation)
	if m.state.HasPendingWork() {
		stats, err := engine.Run(ctx, saturation.SliceInputs(nil))
		result.Stats.Merge(stats)
		if err != nil {
			return result, fmt.Errorf("complete pending work: %w", err)
		}
	}

	if changes.HasRemovals() {
		cleared := m.affectedContexts(changes)
		result.ClearedContexts = len(cleared)
		result.TouchedContexts = m.state.RemoveContexts(cleared)
	}

	if delta := m.liveDelta(changes); delta != nil {
		survivors := m.state.Contexts()
		result.ReplayedContexts = len(survivors)
		stats, err := engine.Run(ctx, saturation.SliceInputs(m.batches(survivors, delta)))
		result.Stats.Merge(stats)
		if err != nil {
			return result, fmt.Errorf("replay added rules: %w", err)
		}
	}

	err := m.resaturate(ctx, &result)
	result.Duration = time.Since(started)
	m.logger.Debug("incremental update finished",
		"cleared", result.ClearedContexts,
		"touched", result.TouchedContexts,
		"replayed", result.ReplayedContexts,
		"roots", result.ResaturatedRoots,
		"duration", result.Duration,
	)
	return result, err
}

func (m *Maintainer) resaturate(ctx context.Context, result *Result) error {
	index := m.state.Index()
	roots := append(index.Classes(), index.Individuals()...)
	result.ResaturatedRoots = len(roots)
	stats, err := saturation.NewEngine(m.state, m.opts.Saturation).Run(ctx, saturation.RootInputs(roots))
	result.Stats.Merge(stats)
	if err != nil {
		return fmt.Errorf("resaturate roots: %w", err)
	}
	return nil
}

// affectedContexts returns the contexts in which a removed rule may have
// fired, closed under backward-link sources, plus the contexts of removed
// expressions.
func (m *Maintainer) affectedContexts(changes *ontology.ChangeSet) map[saturation.ContextID]struct{} {
	affected := make(map[saturation.ContextID]struct{})
	var queue []saturation.ContextID
	mark := func(id saturation.ContextID) {
		if _, ok := affected[id]; !ok {
			affected[id] = struct{}{}
			queue = append(queue, id)
		}
	}

	allContexts := changes.RemovedInit.Len() > 0
	for _, c := range m.state.Contexts() {
		if allContexts || m.usesRemovedRule(c, changes.Removed) {
			mark(c.ID())
		}
	}
	for _, e := range changes.RemovedExpressions {
		if c := m.state.Context(e); c != nil {
			mark(c.ID())
		}
	}

	for len(queue) > 0 {
		id := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if c := m.state.ContextByID(id); c != nil {
			c.EachBackwardLinkSource(mark)
		}
	}
	return affected
}

func (m *Maintainer) usesRemovedRule(c *saturation.Context, removed map[*ontology.ClassExpression]*ontology.RuleChain) bool {
	if len(removed) == 0 {
		return false
	}
	if saturation.PreferSubsumerScan(c.SubsumerCount(), len(removed), m.opts.ScanRatio) {
		found := false
		c.EachSubsumer(func(e *ontology.ClassExpression) bool {
			_, found = removed[e]
			return !found
		})
		return found
	}
	for e := range removed {
		if c.HasSubsumer(e) {
			return true
		}
	}
	return false
}

func (m *Maintainer) batches(contexts []*saturation.Context, delta *saturation.RuleDelta) []saturation.Job {
	var jobs []saturation.Job
	for start := 0; start < len(contexts); start += m.opts.BatchSize {
		end := min(start+m.opts.BatchSize, len(contexts))
		jobs = append(jobs, saturation.BatchJob(contexts[start:end], saturation.ChangesReplay(delta)))
	}
	return jobs
}

// liveDelta keeps the added rules that are still registered, so that a
// rule added and removed within one change set is not replayed.
func (m *Maintainer) liveDelta(changes *ontology.ChangeSet) *saturation.RuleDelta {
	removed := make(map[*ontology.ClassExpression]struct{}, len(changes.RemovedExpressions))
	for _, e := range changes.RemovedExpressions {
		removed[e] = struct{}{}
	}

	chains := make(map[*ontology.ClassExpression]*ontology.RuleChain)
	for e, added := range changes.Added {
		if _, gone := removed[e]; gone {
			continue
		}
		live := liveRules(added, e.CompositionRules())
		if live.Len() > 0 {
			chains[e] = live
		}
	}
	init := liveRules(&changes.AddedInit, m.state.Index().ContextInitRules())

	if len(chains) == 0 && init.Len() == 0 {
		return nil
	}
	return &saturation.RuleDelta{Chains: chains, Init: init, ScanRatio: m.opts.ScanRatio}
}

func liveRules(added, current *ontology.RuleChain) *ontology.RuleChain {
	live := &ontology.RuleChain{}
	added.Each(func(kind ontology.RuleKind, r ontology.Rule) bool {
		registered, ok := current.Find(kind)
		if !ok {
			return true
		}
		if kept := intersectRule(r, registered); kept != nil {
			live.GetOrCreate(kind, func() ontology.Rule { return kept })
		}
		return true
	})
	return live
}

func intersectRule(added, registered ontology.Rule) ontology.Rule {
	switch a := added.(type) {
	case *ontology.SuperClassRule:
		reg := registered.(*ontology.SuperClassRule)
		var supers []*ontology.ClassExpression
		for _, s := range a.Supers {
			if containsExpr(reg.Supers, s) {
				supers = append(supers, s)
			}
		}
		if len(supers) == 0 {
			return nil
		}
		return &ontology.SuperClassRule{Supers: supers}
	case *ontology.ConjunctionRule:
		reg := registered.(*ontology.ConjunctionRule)
		by := make(map[*ontology.ClassExpression]*ontology.ClassExpression)
		for other, conj := range a.ByConjunct {
			if reg.ByConjunct[other] == conj {
				by[other] = conj
			}
		}
		if len(by) == 0 {
			return nil
		}
		return &ontology.ConjunctionRule{ByConjunct: by}
	case *ontology.ExistentialRule:
		reg := registered.(*ontology.ExistentialRule)
		var kept []*ontology.ClassExpression
		for _, e := range a.Existentials {
			if containsExpr(reg.Existentials, e) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			return nil
		}
		return &ontology.ExistentialRule{Existentials: kept}
	case *ontology.DisjointnessRule:
		reg := registered.(*ontology.DisjointnessRule)
		var kept []*ontology.DisjointnessAxiom
		for _, ax := range a.Axioms {
			for _, r := range reg.Axioms {
				if r == ax {
					kept = append(kept, ax)
					break
				}
			}
		}
		if len(kept) == 0 {
			return nil
		}
		return &ontology.DisjointnessRule{Axioms: kept}
	default:
		// stateless rules: registered means live
		return registered
	}
}

func containsExpr(list []*ontology.ClassExpression, e *ontology.ClassExpression) bool {
	for _, x := range list {
		if x == e {
			return true
		}
	}
	return false
}
