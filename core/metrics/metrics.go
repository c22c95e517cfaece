// Package metrics exposes Prometheus collectors and OpenTelemetry spans for
// reasoner stages.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/ontology"
	"github.com/adalundhe/saturn/core/saturation"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "saturn"

// Stage outcomes used as label values.
const (
	OutcomeOK           = "ok"
	OutcomeInterrupted  = "interrupted"
	OutcomeInconsistent = "inconsistent"
	OutcomeError        = "error"
)

var tracer = otel.Tracer("saturn.reasoner")

// Collectors holds the reasoner metrics. A nil *Collectors records nothing.
type Collectors struct {
	stageRuns        *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	conclusions      *prometheus.CounterVec
	ruleApplications *prometheus.CounterVec
	contexts         prometheus.Gauge
	axioms           prometheus.Gauge
	cacheLookups     *prometheus.CounterVec
	updates          *prometheus.CounterVec
}

// New registers the collectors with reg under namespace.
func New(reg prometheus.Registerer, namespace string) *Collectors {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)
	return &Collectors{
		// Labels: stage, outcome (ok, interrupted, inconsistent, error)
		stageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "runs_total",
			Help:      "Reasoner stage executions by outcome",
		}, []string{"stage", "outcome"}),

		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Reasoner stage duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),

		// Labels: kind (conclusion kind), result (produced, inserted, duplicate)
		conclusions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "conclusions_total",
			Help:      "Conclusions processed by kind and result",
		}, []string{"kind", "result"}),

		ruleApplications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "rule_applications_total",
			Help:      "Rule applications by rule kind",
		}, []string{"rule"}),

		contexts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "contexts",
			Help:      "Contexts held by the saturation state",
		}),

		axioms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ontology",
			Name:      "axioms",
			Help:      "Loaded axioms, counting multiplicity",
		}),

		// Labels: result (hit, miss)
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Query cache lookups by result",
		}, []string{"result"}),

		// Labels: mode (none, incremental, full)
		updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incremental",
			Name:      "updates_total",
			Help:      "Applied change sets by maintenance mode",
		}, []string{"mode"}),
	}
}

// Outcome maps a stage error to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, saterrors.ErrInconsistentOntology):
		return OutcomeInconsistent
	case errors.Is(err, saterrors.ErrInterrupted):
		return OutcomeInterrupted
	default:
		return OutcomeError
	}
}

// ObserveStage records one stage execution.
func (c *Collectors) ObserveStage(stage string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.stageRuns.WithLabelValues(stage, Outcome(err)).Inc()
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveStats adds the counters of a saturation run.
func (c *Collectors) ObserveStats(stats saturation.Stats) {
	if c == nil {
		return
	}
	for _, kind := range saturation.ConclusionKinds() {
		name := kind.String()
		if n := stats.Produced[kind]; n > 0 {
			c.conclusions.WithLabelValues(name, "produced").Add(float64(n))
		}
		if n := stats.Inserted[kind]; n > 0 {
			c.conclusions.WithLabelValues(name, "inserted").Add(float64(n))
		}
		if n := stats.Duplicates[kind]; n > 0 {
			c.conclusions.WithLabelValues(name, "duplicate").Add(float64(n))
		}
	}
	for kind := ontology.RuleSuperClasses; kind <= ontology.RuleOwlThing; kind++ {
		if n := stats.RuleApplication(kind); n > 0 {
			c.ruleApplications.WithLabelValues(kind.String()).Add(float64(n))
		}
	}
}

// SetContexts records the current number of contexts.
func (c *Collectors) SetContexts(n int) {
	if c != nil {
		c.contexts.Set(float64(n))
	}
}

// SetAxioms records the current number of loaded axioms.
func (c *Collectors) SetAxioms(n int) {
	if c != nil {
		c.axioms.Set(float64(n))
	}
}

// CacheLookup records a query cache hit or miss.
func (c *Collectors) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveUpdate records the maintenance mode of an applied change set.
func (c *Collectors) ObserveUpdate(mode string) {
	if c != nil {
		c.updates.WithLabelValues(mode).Inc()
	}
}

// =============================================================================
// Tracing
// =============================================================================

// StartStage starts a span for a reasoner stage.
func StartStage(ctx context.Context, stage, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Reasoner."+stage,
		trace.WithAttributes(
			attribute.String("saturn.stage", stage),
			attribute.String("saturn.run_id", runID),
		),
	)
}

// EndStage records the outcome and the saturation counters on span and
// ends it.
func EndStage(span trace.Span, stats saturation.Stats, err error) {
	span.SetAttributes(
		attribute.String("saturn.outcome", Outcome(err)),
		attribute.Int64("saturn.conclusions.produced", stats.TotalProduced()),
		attribute.Int64("saturn.conclusions.inserted", stats.TotalInserted()),
		attribute.Int64("saturn.contexts.created", stats.ContextsCreated),
	)
	if err != nil && Outcome(err) == OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
