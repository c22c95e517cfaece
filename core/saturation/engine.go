package saturation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adalundhe/saturn/core/concurrency"
	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/ontology"
)

// =============================================================================
// Jobs
// =============================================================================

// Job is a unit of input work: either a root whose context is saturated,
// or a conclusion produced into a batch of existing contexts.
type Job struct {
	root       *ontology.ClassExpression
	contexts   []*Context
	conclusion Conclusion
}

// RootJob saturates the context of root.
func RootJob(root *ontology.ClassExpression) Job {
	return Job{root: root}
}

// BatchJob produces c into each of the contexts.
func BatchJob(contexts []*Context, c Conclusion) Job {
	return Job{contexts: contexts, conclusion: c}
}

// Root returns the root of a root job, or nil for a batch job.
func (j Job) Root() *ontology.ClassExpression { return j.root }

// Inputs supplies jobs to the workers. Next is called under a lock.
type Inputs interface {
	// Next returns the next job, or false when the inputs are exhausted.
	Next() (Job, bool)
	// Len returns the total number of jobs, or -1 if unknown.
	Len() int
}

// SliceInputs returns inputs over a fixed list of jobs.
func SliceInputs(jobs []Job) Inputs {
	return &sliceInputs{jobs: jobs}
}

// RootInputs returns one root job per expression.
func RootInputs(roots []*ontology.ClassExpression) Inputs {
	jobs := make([]Job, len(roots))
	for i, r := range roots {
		jobs[i] = RootJob(r)
	}
	return SliceInputs(jobs)
}

type sliceInputs struct {
	jobs []Job
	next int
}

func (s *sliceInputs) Next() (Job, bool) {
	if s.next >= len(s.jobs) {
		return Job{}, false
	}
	j := s.jobs[s.next]
	s.next++
	return j, true
}

func (s *sliceInputs) Len() int { return len(s.jobs) }

// Listener is notified when a job is finished, that is, when every
// conclusion it could cause has been derived. context is the root context
// of a root job and nil for a batch job. Calls may come from any worker.
type Listener interface {
	JobFinished(job Job, context *Context)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(job Job, context *Context)

func (f ListenerFunc) JobFinished(job Job, context *Context) { f(job, context) }

// ContradictionListener is an optional extension of Listener. It is called
// from the worker that inserts a contradiction into context, before any
// job depending on that context is finished.
type ContradictionListener interface {
	ContradictionDerived(context *Context)
}

// ProgressMonitor receives the number of finished jobs. total is -1 when
// the inputs do not know their length.
type ProgressMonitor interface {
	Report(done, total int)
}

// =============================================================================
// Engine
// =============================================================================

// Options configures an Engine.
type Options struct {
	// Workers is the number of workers; 0 uses one per CPU.
	Workers  int
	Listener Listener
	Progress ProgressMonitor
	Tracer   *Tracer
	Logger   *slog.Logger
}

// Engine runs the saturation workers over a State.
type Engine struct {
	state    *State
	pool     *concurrency.WorkerPool
	listener Listener
	progress ProgressMonitor
	tracer   *Tracer
	logger   *slog.Logger

	statsMu sync.Mutex
	totals  Stats
}

// NewEngine creates an engine for the state.
func NewEngine(state *State, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = state.logger
	}
	return &Engine{
		state:    state,
		pool:     concurrency.NewWorkerPool(opts.Workers),
		listener: opts.Listener,
		progress: opts.Progress,
		tracer:   opts.Tracer,
		logger:   logger,
	}
}

// Workers returns the number of workers of a run.
func (e *Engine) Workers() int { return e.pool.Size() }

// Totals returns the merged statistics of every run so far.
func (e *Engine) Totals() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.totals
}

// Run processes the inputs and any work left by an interrupted run until
// the state is quiescent. When ctx is cancelled the pending work is kept
// and ErrInterrupted is returned.
func (e *Engine) Run(ctx context.Context, inputs Inputs) (Stats, error) {
	if err := e.state.index.SaturateProperties(); err != nil {
		return Stats{}, err
	}

	started := time.Now()
	r := &run{
		engine: e,
		state:  e.state,
		inputs: inputs,
		total:  inputs.Len(),
		stats:  make([]Stats, e.pool.Size()),
	}
	runCtx, finish := context.WithCancel(ctx)
	defer finish()
	r.finish = finish

	err := e.pool.Run(runCtx, func(wctx context.Context, worker int) error {
		return r.work(ctx, wctx, &r.stats[worker])
	})

	var merged Stats
	for _, s := range r.stats {
		merged.Merge(s)
	}
	merged.JobsFinished = r.finished.Load()
	merged.Duration = time.Since(started)
	e.statsMu.Lock()
	e.totals.Merge(merged)
	e.statsMu.Unlock()

	if err != nil {
		return merged, err
	}
	if ctx.Err() != nil && !r.completed.Load() {
		e.logger.Debug("saturation interrupted",
			"pending_contexts", e.state.active.Len(),
			"jobs_finished", merged.JobsFinished,
		)
		return merged, saterrors.ErrInterrupted
	}
	e.state.MarkAllSaturated()
	return merged, nil
}

type pendingJob struct {
	job     Job
	context *Context
}

type run struct {
	engine *Engine
	state  *State
	stats  []Stats

	inputsMu   sync.Mutex
	inputs     Inputs
	inputsDone atomic.Bool
	total      int

	pendingMu sync.Mutex
	pending   []pendingJob
	finished  atomic.Int64

	completed atomic.Bool
	finish    context.CancelFunc
}

func (r *run) work(parent, wctx context.Context, stats *Stats) error {
	w := r.state.Writer(stats, r.engine.tracer)
	a := newApplier(w)
	if cl, ok := r.engine.listener.(ContradictionListener); ok {
		a.contradicted = cl.ContradictionDerived
	}

	for {
		if parent.Err() != nil {
			return nil
		}
		if !r.inputsDone.Load() {
			if job, ok := r.nextJob(); ok {
				r.submit(w, job)
			}
		}
		if err := r.drain(parent, a); err != nil {
			return err
		}
		r.flush()

		if !r.inputsDone.Load() {
			continue
		}
		if r.state.outstanding.Load() == 0 {
			r.flush()
			if r.state.outstanding.Load() == 0 && r.pendingEmpty() {
				r.completed.Store(true)
				r.finish()
				return nil
			}
			continue
		}
		x, err := r.state.active.PopWithContext(wctx)
		if err != nil {
			return nil
		}
		if err := r.process(parent, a, x); err != nil {
			return err
		}
	}
}

func (r *run) nextJob() (Job, bool) {
	r.inputsMu.Lock()
	defer r.inputsMu.Unlock()
	if r.inputsDone.Load() {
		return Job{}, false
	}
	job, ok := r.inputs.Next()
	if !ok {
		r.inputsDone.Store(true)
		return job, false
	}
	// released by submit
	r.state.outstanding.Add(1)
	return job, true
}

func (r *run) submit(w *Writer, job Job) {
	defer r.state.outstanding.Add(-1)
	w.stats.JobsSubmitted++

	var root *Context
	if job.root != nil {
		root = w.GetCreateContext(job.root)
		if root.IsSaturated() {
			r.notify(pendingJob{job: job, context: root})
			return
		}
	} else {
		for _, c := range job.contexts {
			w.Produce(c, job.conclusion)
		}
	}

	r.pendingMu.Lock()
	r.pending = append(r.pending, pendingJob{job: job, context: root})
	r.pendingMu.Unlock()
}

// drain processes active contexts until the queue is empty.
func (r *run) drain(parent context.Context, a *applier) error {
	for {
		if parent.Err() != nil {
			return nil
		}
		x, ok := r.state.active.TryPop()
		if !ok {
			return nil
		}
		if err := r.process(parent, a, x); err != nil {
			return err
		}
	}
}

// process applies the todo conclusions of an activated context. On
// interruption the context is queued again with its remaining work.
func (r *run) process(parent context.Context, a *applier, x *Context) error {
	for {
		if parent.Err() != nil {
			r.state.active.Push(x)
			return nil
		}
		c, ok := x.pop()
		if !ok {
			x.active.Store(false)
			if x.hasTodo() && x.active.CompareAndSwap(false, true) {
				continue
			}
			r.state.outstanding.Add(-1)
			return nil
		}
		if err := a.apply(x, c); err != nil {
			return err
		}
	}
}

// flush finishes the submitted jobs once no work is outstanding.
func (r *run) flush() {
	if r.state.outstanding.Load() != 0 {
		return
	}
	r.pendingMu.Lock()
	if r.state.outstanding.Load() != 0 || len(r.pending) == 0 {
		r.pendingMu.Unlock()
		return
	}
	finished := r.pending
	r.pending = nil
	r.pendingMu.Unlock()

	for _, p := range finished {
		if p.context != nil {
			p.context.saturated.Store(true)
		}
		r.notify(p)
	}
}

func (r *run) pendingEmpty() bool {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return len(r.pending) == 0
}

func (r *run) notify(p pendingJob) {
	done := r.finished.Add(1)
	if r.engine.listener != nil {
		r.engine.listener.JobFinished(p.job, p.context)
	}
	if r.engine.progress != nil {
		r.engine.progress.Report(int(done), r.total)
	}
}
