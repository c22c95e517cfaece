package reasoner

import (
	"context"
	"errors"

	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/store"
	"github.com/adalundhe/saturn/core/taxonomy"
)

// Persist stores a snapshot of the current taxonomy, computing it first if
// needed, and returns the snapshot ID. An inconsistent ontology is stored
// as a snapshot without nodes.
func (r *Reasoner) Persist(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", saterrors.ErrClosed
	}
	if r.store == nil {
		return "", ErrNoStore
	}

	runID := r.begin("Persist")
	snap := &store.Snapshot{}
	it, err := r.ensureInstances(ctx, runID)
	switch {
	case err == nil:
		snapshotOf(it, snap)
	case errors.Is(err, saterrors.ErrInconsistentOntology):
		snap.Inconsistent = true
	default:
		return "", err
	}

	seq, err := r.store.JournalSeq(ctx)
	if err != nil {
		return "", err
	}
	snap.JournalSeq = seq
	id, err := r.store.SaveSnapshot(ctx, snap)
	if err != nil {
		return "", err
	}
	r.logger.Info("taxonomy persisted",
		"run", runID,
		"snapshot", id,
		"journal_seq", seq,
		"nodes", len(snap.Nodes),
		"inconsistent", snap.Inconsistent,
	)
	return id, nil
}

// LatestSnapshot returns the most recently persisted snapshot.
func (r *Reasoner) LatestSnapshot(ctx context.Context) (*store.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, saterrors.ErrClosed
	}
	if r.store == nil {
		return nil, ErrNoStore
	}
	return r.store.LatestSnapshot(ctx)
}

// CompactJournal rewrites the axiom journal as a single change.
func (r *Reasoner) CompactJournal(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return saterrors.ErrClosed
	}
	if r.store == nil {
		return ErrNoStore
	}
	return r.store.Compact(ctx)
}

func snapshotOf(it *taxonomy.InstanceTaxonomy, snap *store.Snapshot) {
	nodes := it.Nodes()
	pos := make(map[*taxonomy.Node]int, len(nodes))
	for i, n := range nodes {
		pos[n] = i
	}
	snap.Nodes = make([]store.NodeRecord, len(nodes))
	for i, n := range nodes {
		rec := store.NodeRecord{}
		for _, m := range n.Members() {
			rec.Members = append(rec.Members, m.IRI())
		}
		for _, p := range n.Parents() {
			rec.Parents = append(rec.Parents, pos[p])
		}
		snap.Nodes[i] = rec
	}
	for _, ind := range it.Individuals() {
		types, _ := it.Types(ind, true)
		rec := store.TypeRecord{Individual: ind.IRI()}
		for _, n := range types {
			rec.Nodes = append(rec.Nodes, pos[n])
		}
		snap.Types = append(snap.Types, rec)
	}
}
