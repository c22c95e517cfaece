// Package consistency decides whether owl:Nothing is derivable for
// owl:Thing or for a named individual, stopping the saturation as soon as a
// contradiction is found.
package consistency

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/ontology"
	"github.com/adalundhe/saturn/core/saturation"
)

// Result is the outcome of a consistency check.
type Result struct {
	Inconsistent bool
	// Witness is the root whose context was found inconsistent.
	Witness *ontology.ClassExpression
	// Roots is the number of roots scheduled; zero when owl:Nothing does
	// not occur positively.
	Roots int
	Stats saturation.Stats
}

// Monitor records the inconsistency of the ontology and interrupts the
// running saturation when it is detected.
type Monitor struct {
	inconsistent atomic.Bool
	witness      atomic.Pointer[ontology.ClassExpression]
	cancel       context.CancelCauseFunc
	next         saturation.Listener
}

// NewMonitor returns a monitor that cancels with ErrInconsistentOntology as
// cause. next, if not nil, receives every finished job as well.
func NewMonitor(cancel context.CancelCauseFunc, next saturation.Listener) *Monitor {
	return &Monitor{cancel: cancel, next: next}
}

// IsInconsistent reports whether an inconsistent root was found.
func (m *Monitor) IsInconsistent() bool { return m.inconsistent.Load() }

// Witness returns the first root found inconsistent.
func (m *Monitor) Witness() *ontology.ClassExpression { return m.witness.Load() }

// SetInconsistent flags the ontology inconsistent and interrupts the workers.
func (m *Monitor) SetInconsistent(root *ontology.ClassExpression) {
	if m.inconsistent.CompareAndSwap(false, true) {
		m.witness.Store(root)
		if m.cancel != nil {
			m.cancel(saterrors.ErrInconsistentOntology)
		}
	}
}

// JobFinished implements saturation.Listener.
func (m *Monitor) JobFinished(job saturation.Job, c *saturation.Context) {
	if c != nil && c.IsInconsistent() {
		m.SetInconsistent(job.Root())
	}
	if m.next != nil {
		m.next.JobFinished(job, c)
	}
}

// ContradictionDerived implements saturation.ContradictionListener. A
// contradiction in the context of owl:Thing or of an individual makes the
// ontology inconsistent without waiting for the job to finish.
func (m *Monitor) ContradictionDerived(c *saturation.Context) {
	if isRoot(c.Root()) {
		m.SetInconsistent(c.Root())
	}
	if cl, ok := m.next.(saturation.ContradictionListener); ok {
		cl.ContradictionDerived(c)
	}
}

func isRoot(e *ontology.ClassExpression) bool {
	switch e.Kind() {
	case ontology.KindIndividual:
		return true
	case ontology.KindClass:
		return e.IRI() == ontology.ThingIRI
	}
	return false
}

// todo hands out root jobs until the monitor flags inconsistency.
type todo struct {
	roots   []*ontology.ClassExpression
	next    int
	monitor *Monitor
}

func (t *todo) Next() (saturation.Job, bool) {
	if t.monitor.IsInconsistent() || t.next >= len(t.roots) {
		return saturation.Job{}, false
	}
	root := t.roots[t.next]
	t.next++
	return saturation.RootJob(root), true
}

func (t *todo) Len() int { return len(t.roots) }

// Checker runs consistency checks over a saturation state.
type Checker struct {
	state  *saturation.State
	opts   saturation.Options
	logger *slog.Logger
}

// NewChecker creates a checker. The listener in opts is chained behind the
// consistency monitor.
func NewChecker(state *saturation.State, opts saturation.Options) *Checker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{state: state, opts: opts, logger: logger}
}

// Roots returns the roots whose saturation decides consistency: owl:Thing
// and every named individual, or nothing when owl:Nothing does not occur
// positively.
func Roots(index *ontology.Index) []*ontology.ClassExpression {
	if !index.Nothing().OccursPositively() {
		return nil
	}
	return append([]*ontology.ClassExpression{index.Thing()}, index.Individuals()...)
}

// Check saturates the consistency roots. Inconsistency is reported in the
// result, not as an error; ErrInterrupted is returned only when ctx itself
// is cancelled first.
func (c *Checker) Check(ctx context.Context) (Result, error) {
	roots := Roots(c.state.Index())
	if len(roots) == 0 {
		c.logger.Debug("owl:Nothing does not occur positively, ontology is consistent")
		return Result{}, nil
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	monitor := NewMonitor(cancel, c.opts.Listener)

	opts := c.opts
	opts.Listener = monitor
	engine := saturation.NewEngine(c.state, opts)
	stats, err := engine.Run(runCtx, &todo{roots: roots, monitor: monitor})

	result := Result{Roots: len(roots), Stats: stats}
	if err != nil && !errors.Is(err, saterrors.ErrInterrupted) {
		return result, err
	}
	if monitor.IsInconsistent() {
		result.Inconsistent = true
		result.Witness = monitor.Witness()
		c.logger.Debug("ontology is inconsistent",
			"witness", result.Witness.String(),
			"interrupted", errors.Is(err, saterrors.ErrInterrupted),
		)
		return result, nil
	}
	return result, err
}
