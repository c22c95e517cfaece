package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/ontology"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Path: MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	subAB    = ontology.SubClassOf(ontology.Class("A"), ontology.Class("B"))
	subBC    = ontology.SubClassOf(ontology.Class("B"), ontology.Some(ontology.ObjectProperty("R"), ontology.Class("C")))
	assertA  = ontology.ClassAssertion(ontology.Class("A"), "ind")
	chainAxm = ontology.SubObjectPropertyOf(ontology.ChainOf("R", "S"), ontology.ObjectProperty("T"))
)

func TestAxioms_ReplaysJournal(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	_, err := s.AppendChanges(ctx, []ontology.Axiom{subAB, subBC, assertA, subAB}, nil)
	require.NoError(t, err)
	_, err = s.AppendChanges(ctx, []ontology.Axiom{chainAxm}, []ontology.Axiom{subAB, subBC})
	require.NoError(t, err)

	axioms, err := s.Axioms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ontology.Axiom{subAB, assertA, chainAxm}, axioms)

	seq, err := s.JournalSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}

func TestAppendChanges_ReturnsDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	first, err := s.AppendChanges(ctx, []ontology.Axiom{subAB}, nil)
	require.NoError(t, err)
	second, err := s.AppendChanges(ctx, []ontology.Axiom{subBC}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Len(t, first, 36)
}

func TestCompact(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	_, err := s.AppendChanges(ctx, []ontology.Axiom{subAB, subBC, assertA}, nil)
	require.NoError(t, err)
	_, err = s.AppendChanges(ctx, nil, []ontology.Axiom{subBC})
	require.NoError(t, err)
	require.NoError(t, s.Compact(ctx))

	axioms, err := s.Axioms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ontology.Axiom{subAB, assertA}, axioms)

	var rows int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM axiom_journal`).Scan(&rows))
	assert.Equal(t, 2, rows)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	_, err := s.LatestSnapshot(ctx)
	require.ErrorIs(t, err, ErrNoSnapshot)

	older := &Snapshot{JournalSeq: 1, Nodes: []NodeRecord{{Members: []string{"owl:Thing"}}}}
	_, err = s.SaveSnapshot(ctx, older)
	require.NoError(t, err)

	snap := &Snapshot{
		JournalSeq: 4,
		Nodes: []NodeRecord{
			{Members: []string{"owl:Thing"}},
			{Members: []string{"A", "B"}, Parents: []int{0}},
			{Members: []string{"C"}, Parents: []int{1}},
			{Members: []string{"owl:Nothing"}, Parents: []int{2}},
		},
		Types: []TypeRecord{
			{Individual: "ind", Nodes: []int{2}},
			{Individual: "other", Nodes: []int{1}},
		},
	}
	id, err := s.SaveSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, id, snap.ID)
	assert.NotEqual(t, older.ID, id)

	loaded, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, loaded.ID)
	assert.Equal(t, int64(4), loaded.JournalSeq)
	assert.False(t, loaded.Inconsistent)
	assert.Equal(t, snap.Nodes, loaded.Nodes)
	assert.Equal(t, snap.Types, loaded.Types)
	assert.WithinDuration(t, snap.CreatedAt, loaded.CreatedAt, time.Second)
}

func TestOpen_FileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "saturn.db")

	s, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	_, err = s.AppendChanges(ctx, []ontology.Axiom{subAB}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer s.Close()
	axioms, err := s.Axioms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ontology.Axiom{subAB}, axioms)
	assert.Equal(t, path, s.Path())
}

func TestClosedStore(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Axioms(context.Background())
	assert.ErrorIs(t, err, saterrors.ErrClosed)
	_, err = s.AppendChanges(context.Background(), []ontology.Axiom{subAB}, nil)
	assert.ErrorIs(t, err, saterrors.ErrClosed)
}
