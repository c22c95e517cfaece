// Package reasoner ties indexing, saturation, consistency checking,
// incremental maintenance and taxonomy construction together behind a
// query interface. Stages run lazily when a query needs them.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adalundhe/saturn/core/config"
	"github.com/adalundhe/saturn/core/consistency"
	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/incremental"
	"github.com/adalundhe/saturn/core/metrics"
	"github.com/adalundhe/saturn/core/ontology"
	"github.com/adalundhe/saturn/core/saturation"
	"github.com/adalundhe/saturn/core/store"
	"github.com/adalundhe/saturn/core/taxonomy"
)

// Stage names used in logs, spans and metrics.
const (
	StageIncremental = "incremental"
	StageReset       = "reset"
	StageProperties  = "properties"
	StageConsistency = "consistency"
	StageClasses     = "classes"
	StageTaxonomy    = "taxonomy"
	StageIndividuals = "individuals"
	StageInstances   = "instances"
)

var (
	// ErrNoStore is returned by Persist when no store is configured.
	ErrNoStore = errors.New("no store configured")

	// ErrUnknownEntity is returned by queries about a class or individual
	// that does not occur in the ontology.
	ErrUnknownEntity = saterrors.New(saterrors.ClassInput, "", "unknown entity", nil)
)

// Options configures a Reasoner.
type Options struct {
	Workers       int
	Incremental   bool
	ScanRatio     int
	BatchSize     int
	TracePatterns []string
	// CacheSize is the number of cached query results; 0 disables caching.
	CacheSize int
	// StorePath enables persistence when not empty.
	StorePath string
	Metrics   *metrics.Collectors
	Logger    *slog.Logger
}

// OptionsFromConfig maps the loaded configuration to reasoner options.
// Metrics are left to the caller, which owns the registry.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:       cfg.Reasoner.Workers,
		Incremental:   cfg.Reasoner.Incremental,
		ScanRatio:     cfg.Reasoner.ScanRatio,
		BatchSize:     cfg.Reasoner.BatchSize,
		TracePatterns: cfg.Reasoner.TracePatterns,
		CacheSize:     cfg.Cache.QuerySize,
		StorePath:     cfg.Store.Path,
	}
}

// Reasoner answers classification and realisation queries over a mutable
// set of axioms. It is safe for concurrent use; calls are serialised.
type Reasoner struct {
	mu sync.Mutex

	opts    Options
	logger  *slog.Logger
	metrics *metrics.Collectors
	satOpts saturation.Options

	index      *ontology.Index
	state      *saturation.State
	maintainer *incremental.Maintainer
	store      *store.Store
	cache      *lru.Cache[string, []string]

	// stage results, cleared when the axioms change
	consistency *consistency.Result
	classesDone bool
	individuals bool
	taxonomy    *taxonomy.Taxonomy
	instances   *taxonomy.InstanceTaxonomy

	totals saturation.Stats
	closed bool
}

// New creates a reasoner. When a store path is configured, the journaled
// axioms are loaded from it.
func New(ctx context.Context, opts Options) (*Reasoner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer, err := saturation.NewTracer(opts.TracePatterns, logger)
	if err != nil {
		return nil, err
	}

	r := &Reasoner{
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
		satOpts: saturation.Options{Workers: opts.Workers, Tracer: tracer, Logger: logger},
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create query cache: %w", err)
		}
		r.cache = cache
	}
	r.resetIndex()

	if opts.StorePath != "" {
		s, err := store.Open(ctx, store.Config{Path: opts.StorePath})
		if err != nil {
			return nil, err
		}
		r.store = s
		axioms, err := s.Axioms(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := r.index.Add(axioms...); err != nil {
			s.Close()
			return nil, fmt.Errorf("load journaled axioms: %w", err)
		}
		logger.Info("loaded axioms from store", "path", opts.StorePath, "axioms", len(axioms))
	}
	r.metrics.SetAxioms(r.index.AxiomCount())
	return r, nil
}

func (r *Reasoner) resetIndex() {
	r.index = ontology.NewIndex(r.logger)
	r.index.TrackChanges(true)
	r.state = saturation.NewState(r.index, r.logger)
	r.maintainer = r.newMaintainer()
	r.invalidate()
	r.classesDone = false
}

func (r *Reasoner) newMaintainer() *incremental.Maintainer {
	return incremental.NewMaintainer(r.state, incremental.Options{
		Saturation: r.satOpts,
		ScanRatio:  r.opts.ScanRatio,
		BatchSize:  r.opts.BatchSize,
	})
}

// ApplyConfig takes over the tunable reasoner settings of a reloaded
// configuration: workers, incremental mode, scan ratio, batch size and
// trace patterns. They apply from the next stage on. The cache size and
// the store path are fixed for the lifetime of the reasoner.
func (r *Reasoner) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	tracer, err := saturation.NewTracer(cfg.Reasoner.TracePatterns, r.logger)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return saterrors.ErrClosed
	}
	r.opts.Workers = cfg.Reasoner.Workers
	r.opts.Incremental = cfg.Reasoner.Incremental
	r.opts.ScanRatio = cfg.Reasoner.ScanRatio
	r.opts.BatchSize = cfg.Reasoner.BatchSize
	r.opts.TracePatterns = cfg.Reasoner.TracePatterns
	r.satOpts.Workers = cfg.Reasoner.Workers
	r.satOpts.Tracer = tracer
	r.maintainer = r.newMaintainer()

	r.logger.Info("reasoner configuration applied",
		"workers", r.opts.Workers,
		"incremental", r.opts.Incremental,
		"scan_ratio", r.opts.ScanRatio,
		"trace", len(r.opts.TracePatterns),
	)
	return nil
}

// Options returns the current options of the reasoner.
func (r *Reasoner) Options() Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}

// invalidate drops every derived result that depends on the axioms.
func (r *Reasoner) invalidate() {
	r.consistency = nil
	r.individuals = false
	r.taxonomy = nil
	r.instances = nil
	if r.cache != nil {
		r.cache.Purge()
	}
}

// Close releases the store. Later calls fail with ErrClosed.
func (r *Reasoner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// Stats returns the saturation statistics accumulated over every stage.
func (r *Reasoner) Stats() saturation.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals
}

// Axioms returns the loaded axioms.
func (r *Reasoner) Axioms() []ontology.Axiom {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.Axioms()
}

// =============================================================================
// Changes
// =============================================================================

// Load replaces the loaded axioms.
func (r *Reasoner) Load(ctx context.Context, axioms ...ontology.Axiom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return saterrors.ErrClosed
	}

	previous := r.index.Axioms()
	r.resetIndex()
	if err := r.index.Add(axioms...); err != nil {
		r.resetIndex()
		return err
	}
	r.metrics.SetAxioms(r.index.AxiomCount())
	return r.journal(ctx, axioms, previous)
}

// AddAxioms adds axioms. Nothing is recomputed until the next query.
func (r *Reasoner) AddAxioms(ctx context.Context, axioms ...ontology.Axiom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return saterrors.ErrClosed
	}
	if err := r.index.Add(axioms...); err != nil {
		return err
	}
	r.changed()
	return r.journal(ctx, axioms, nil)
}

// RemoveAxioms removes one occurrence of each axiom. Removing an axiom that
// is not loaded fails with ErrAxiomNotFound and leaves the ontology
// unchanged.
func (r *Reasoner) RemoveAxioms(ctx context.Context, axioms ...ontology.Axiom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return saterrors.ErrClosed
	}
	if err := r.index.Remove(axioms...); err != nil {
		return err
	}
	r.changed()
	return r.journal(ctx, nil, axioms)
}

func (r *Reasoner) changed() {
	r.invalidate()
	r.metrics.SetAxioms(r.index.AxiomCount())
}

func (r *Reasoner) journal(ctx context.Context, added, removed []ontology.Axiom) error {
	if r.store == nil || (len(added) == 0 && len(removed) == 0) {
		return nil
	}
	if _, err := r.store.AppendChanges(ctx, added, removed); err != nil {
		return fmt.Errorf("journal axioms: %w", err)
	}
	return nil
}

// =============================================================================
// Stages
// =============================================================================

type stageFunc func(ctx context.Context) (saturation.Stats, error)

func (r *Reasoner) stage(ctx context.Context, runID, name string, fn stageFunc) error {
	ctx, span := metrics.StartStage(ctx, name, runID)
	started := time.Now()
	stats, err := fn(ctx)
	elapsed := time.Since(started)
	metrics.EndStage(span, stats, err)

	r.totals.Merge(stats)
	r.metrics.ObserveStage(name, elapsed, err)
	r.metrics.ObserveStats(stats)
	r.metrics.SetContexts(r.state.ContextCount())

	attrs := []any{
		"run", runID,
		"stage", name,
		"duration", elapsed,
		"produced", stats.TotalProduced(),
		"inserted", stats.TotalInserted(),
		"contexts", r.state.ContextCount(),
	}
	switch {
	case err == nil:
		r.logger.Debug("stage finished", attrs...)
	case saterrors.IsFatal(err):
		r.logger.Error("stage failed", append(attrs, "error", err)...)
	default:
		r.logger.Debug("stage stopped", append(attrs, "error", err)...)
	}
	return err
}

// applyChanges brings the saturation state up to date with the index.
func (r *Reasoner) applyChanges(ctx context.Context, runID string) error {
	changes := r.index.TakeChanges()
	if changes.IsEmpty() {
		return nil
	}
	if !r.classesDone || !r.opts.Incremental {
		return r.stage(ctx, runID, StageReset, func(context.Context) (saturation.Stats, error) {
			r.state.Reset()
			r.index.ClearPropertySaturations()
			r.classesDone = false
			return saturation.Stats{}, nil
		})
	}
	return r.stage(ctx, runID, StageIncremental, func(ctx context.Context) (saturation.Stats, error) {
		result, err := r.maintainer.Update(ctx, changes)
		r.metrics.ObserveUpdate(result.Mode.String())
		if err != nil {
			// replayed rules may be missing from some contexts
			r.state.Reset()
			r.index.ClearPropertySaturations()
			r.classesDone = false
			return result.Stats, err
		}
		r.logger.Debug("change set applied",
			"run", runID,
			"mode", result.Mode.String(),
			"added_keys", result.AddedKeys,
			"removed_keys", result.RemovedKeys,
			"cleared", result.ClearedContexts,
			"replayed", result.ReplayedContexts,
			"resaturated", result.ResaturatedRoots,
		)
		return result.Stats, nil
	})
}

func (r *Reasoner) ensureConsistency(ctx context.Context, runID string) (*consistency.Result, error) {
	if r.closed {
		return nil, saterrors.ErrClosed
	}
	if err := r.applyChanges(ctx, runID); err != nil {
		return nil, err
	}
	if r.consistency != nil {
		return r.consistency, nil
	}
	if err := r.stage(ctx, runID, StageProperties, func(context.Context) (saturation.Stats, error) {
		return saturation.Stats{}, r.index.SaturateProperties()
	}); err != nil {
		return nil, err
	}

	var result consistency.Result
	err := r.stage(ctx, runID, StageConsistency, func(ctx context.Context) (saturation.Stats, error) {
		var err error
		result, err = consistency.NewChecker(r.state, r.satOpts).Check(ctx)
		return result.Stats, err
	})
	if err != nil {
		return nil, err
	}
	if result.Inconsistent {
		r.logger.Info("ontology is inconsistent", "run", runID, "witness", result.Witness.String())
	}
	r.consistency = &result
	return r.consistency, nil
}

func (r *Reasoner) ensureTaxonomy(ctx context.Context, runID string) (*taxonomy.Taxonomy, error) {
	result, err := r.ensureConsistency(ctx, runID)
	if err != nil {
		return nil, err
	}
	if result.Inconsistent {
		return nil, saterrors.ErrInconsistentOntology
	}
	if r.taxonomy != nil {
		return r.taxonomy, nil
	}

	if !r.classesDone {
		err := r.stage(ctx, runID, StageClasses, func(ctx context.Context) (saturation.Stats, error) {
			engine := saturation.NewEngine(r.state, r.satOpts)
			return engine.Run(ctx, saturation.RootInputs(r.index.Classes()))
		})
		if err != nil {
			return nil, err
		}
		r.classesDone = true
	}

	var tax *taxonomy.Taxonomy
	err = r.stage(ctx, runID, StageTaxonomy, func(context.Context) (saturation.Stats, error) {
		var err error
		tax, err = taxonomy.Build(r.state)
		return saturation.Stats{}, err
	})
	if err != nil {
		return nil, err
	}
	r.taxonomy = tax
	return tax, nil
}

func (r *Reasoner) ensureInstances(ctx context.Context, runID string) (*taxonomy.InstanceTaxonomy, error) {
	tax, err := r.ensureTaxonomy(ctx, runID)
	if err != nil {
		return nil, err
	}
	if r.instances != nil {
		return r.instances, nil
	}

	if !r.individuals {
		err := r.stage(ctx, runID, StageIndividuals, func(ctx context.Context) (saturation.Stats, error) {
			engine := saturation.NewEngine(r.state, r.satOpts)
			return engine.Run(ctx, saturation.RootInputs(r.index.Individuals()))
		})
		if err != nil {
			return nil, err
		}
		r.individuals = true
	}

	var it *taxonomy.InstanceTaxonomy
	err = r.stage(ctx, runID, StageInstances, func(context.Context) (saturation.Stats, error) {
		var err error
		it, err = taxonomy.BuildInstances(tax, r.state)
		return saturation.Stats{}, err
	})
	if err != nil {
		return nil, err
	}
	r.instances = it
	return it, nil
}

func (r *Reasoner) begin(op string) string {
	runID := uuid.New().String()
	r.logger.Debug("query", "run", runID, "op", op)
	return runID
}

// =============================================================================
// Queries
// =============================================================================

// IsInconsistent reports whether the ontology is inconsistent.
func (r *Reasoner) IsInconsistent(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result, err := r.ensureConsistency(ctx, r.begin("IsInconsistent"))
	if err != nil {
		return false, err
	}
	return result.Inconsistent, nil
}

// Taxonomy returns the class taxonomy. It fails with
// ErrInconsistentOntology when the ontology is inconsistent.
func (r *Reasoner) Taxonomy(ctx context.Context) (*taxonomy.Taxonomy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureTaxonomy(ctx, r.begin("Taxonomy"))
}

// InstanceTaxonomy returns the taxonomy extended with individuals.
func (r *Reasoner) InstanceTaxonomy(ctx context.Context) (*taxonomy.InstanceTaxonomy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureInstances(ctx, r.begin("InstanceTaxonomy"))
}

// Subsumers returns the IRIs of the named classes subsuming class: the
// members of the direct super-nodes when direct is set, otherwise every
// member of the class node and of all nodes above it.
func (r *Reasoner) Subsumers(ctx context.Context, class string, direct bool) ([]string, error) {
	return r.cached(cacheKey("subsumers", class, direct), func() ([]string, error) {
		tax, err := r.ensureTaxonomy(ctx, r.begin("Subsumers"))
		if err != nil {
			return nil, err
		}
		n, err := r.classNode(tax, class)
		if err != nil {
			return nil, err
		}
		if direct {
			return nodeIRIs(n.Parents()), nil
		}
		return nodeIRIs(append([]*taxonomy.Node{n}, n.Ancestors()...)), nil
	})
}

// Subclasses returns the IRIs of the named classes below class: the direct
// sub-nodes when direct is set, otherwise every node below it, owl:Nothing
// included.
func (r *Reasoner) Subclasses(ctx context.Context, class string, direct bool) ([]string, error) {
	return r.cached(cacheKey("subclasses", class, direct), func() ([]string, error) {
		tax, err := r.ensureTaxonomy(ctx, r.begin("Subclasses"))
		if err != nil {
			return nil, err
		}
		n, err := r.classNode(tax, class)
		if err != nil {
			return nil, err
		}
		if direct {
			return nodeIRIs(n.Children()), nil
		}
		return nodeIRIs(n.Descendants()), nil
	})
}

// Equivalents returns the IRIs of the classes equivalent to class, the
// class included.
func (r *Reasoner) Equivalents(ctx context.Context, class string) ([]string, error) {
	return r.cached(cacheKey("equivalents", class, false), func() ([]string, error) {
		tax, err := r.ensureTaxonomy(ctx, r.begin("Equivalents"))
		if err != nil {
			return nil, err
		}
		n, err := r.classNode(tax, class)
		if err != nil {
			return nil, err
		}
		return nodeIRIs([]*taxonomy.Node{n}), nil
	})
}

// Types returns the IRIs of the named classes an individual belongs to.
func (r *Reasoner) Types(ctx context.Context, individual string, direct bool) ([]string, error) {
	return r.cached(cacheKey("types", individual, direct), func() ([]string, error) {
		it, err := r.ensureInstances(ctx, r.begin("Types"))
		if err != nil {
			return nil, err
		}
		ind, ok := r.index.LookupIndividual(individual)
		if !ok {
			return nil, fmt.Errorf("individual %s: %w", individual, ErrUnknownEntity)
		}
		types, _ := it.Types(ind, direct)
		return nodeIRIs(types), nil
	})
}

// Instances returns the IRIs of the individuals of class, only those whose
// most specific type it is when direct is set.
func (r *Reasoner) Instances(ctx context.Context, class string, direct bool) ([]string, error) {
	return r.cached(cacheKey("instances", class, direct), func() ([]string, error) {
		it, err := r.ensureInstances(ctx, r.begin("Instances"))
		if err != nil {
			return nil, err
		}
		n, err := r.classNode(it.Taxonomy, class)
		if err != nil {
			return nil, err
		}
		inds := it.Instances(n, direct)
		out := make([]string, len(inds))
		for i, ind := range inds {
			out[i] = ind.IRI()
		}
		return out, nil
	})
}

func (r *Reasoner) classNode(tax *taxonomy.Taxonomy, class string) (*taxonomy.Node, error) {
	cls, ok := r.index.LookupClass(class)
	if !ok {
		return nil, fmt.Errorf("class %s: %w", class, ErrUnknownEntity)
	}
	n, ok := tax.Node(cls)
	if !ok {
		return nil, saterrors.Invariantf("reasoner.classNode", "class %s has no taxonomy node", class)
	}
	return n, nil
}

// cached serves a query from the cache, computing and storing it on a
// miss. The lock is held for the whole call.
func (r *Reasoner) cached(key string, compute func() ([]string, error)) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, saterrors.ErrClosed
	}
	// pending axiom changes purge the cache before they are applied
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			r.metrics.CacheLookup(true)
			return v, nil
		}
		r.metrics.CacheLookup(false)
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(key, v)
	}
	return v, nil
}

func cacheKey(query, iri string, direct bool) string {
	if direct {
		return query + ":direct:" + iri
	}
	return query + ":all:" + iri
}

func nodeIRIs(nodes []*taxonomy.Node) []string {
	var out []string
	for _, n := range nodes {
		for _, m := range n.Members() {
			out = append(out, m.IRI())
		}
	}
	sort.Strings(out)
	return out
}
