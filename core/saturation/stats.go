package saturation

import (
	"time"

	"github.com/adalundhe/saturn/core/ontology"
)

const numRuleKinds = int(ontology.RuleOwlThing) + 1

// Stats counts saturation work. Each worker fills its own instance; they
// are merged when the run finishes.
type Stats struct {
	Produced   [numConclusionKinds]int64
	Inserted   [numConclusionKinds]int64
	Duplicates [numConclusionKinds]int64
	// Skipped counts conclusions dropped because their context was
	// already inconsistent.
	Skipped int64

	RuleApplications   [numRuleKinds]int64
	LinkRuleFirings    int64
	ContextsCreated    int64
	ContextActivations int64
	JobsSubmitted      int64
	JobsFinished       int64

	Duration time.Duration
}

// Merge adds the counters of o to s.
func (s *Stats) Merge(o Stats) {
	for i := range s.Produced {
		s.Produced[i] += o.Produced[i]
		s.Inserted[i] += o.Inserted[i]
		s.Duplicates[i] += o.Duplicates[i]
	}
	for i := range s.RuleApplications {
		s.RuleApplications[i] += o.RuleApplications[i]
	}
	s.Skipped += o.Skipped
	s.LinkRuleFirings += o.LinkRuleFirings
	s.ContextsCreated += o.ContextsCreated
	s.ContextActivations += o.ContextActivations
	s.JobsSubmitted += o.JobsSubmitted
	s.JobsFinished += o.JobsFinished
	s.Duration += o.Duration
}

// TotalProduced returns the number of produced conclusions of every kind.
func (s *Stats) TotalProduced() int64 {
	var n int64
	for _, v := range s.Produced {
		n += v
	}
	return n
}

// TotalInserted returns the number of conclusions that changed a context.
func (s *Stats) TotalInserted() int64 {
	var n int64
	for _, v := range s.Inserted {
		n += v
	}
	return n
}

// RuleApplication returns the application count of one rule kind.
func (s *Stats) RuleApplication(kind ontology.RuleKind) int64 {
	if int(kind) >= numRuleKinds {
		return 0
	}
	return s.RuleApplications[kind]
}
