package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	saterrors "github.com/adalundhe/saturn/core/errors"
)

// Snapshot is a stored taxonomy. Nodes are referenced by their position in
// Nodes.
type Snapshot struct {
	ID           string
	CreatedAt    time.Time
	JournalSeq   int64
	Inconsistent bool
	Nodes        []NodeRecord
	Types        []TypeRecord
}

// NodeRecord is one taxonomy node.
type NodeRecord struct {
	Members []string
	Parents []int
}

// TypeRecord lists the direct type nodes of an individual.
type TypeRecord struct {
	Individual string
	Nodes      []int
}

// SaveSnapshot stores snap under a new ID, which is returned. CreatedAt is
// set when zero.
func (s *Store) SaveSnapshot(ctx context.Context, snap *Snapshot) (string, error) {
	id := uuid.New().String()
	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	err := s.write(ctx, "store.SaveSnapshot", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO taxonomy_snapshots (id, created_at, journal_seq, inconsistent)
			VALUES (?, ?, ?, ?)
		`, id, created, snap.JournalSeq, snap.Inconsistent); err != nil {
			return err
		}
		for i, n := range snap.Nodes {
			for _, iri := range n.Members {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO taxonomy_members (snapshot_id, node, iri) VALUES (?, ?, ?)`,
					id, i, iri); err != nil {
					return err
				}
			}
			for _, p := range n.Parents {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO taxonomy_edges (snapshot_id, child, parent) VALUES (?, ?, ?)`,
					id, i, p); err != nil {
					return err
				}
			}
		}
		for _, t := range snap.Types {
			for _, n := range t.Nodes {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO taxonomy_types (snapshot_id, individual, node) VALUES (?, ?, ?)`,
					id, t.Individual, n); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	snap.ID = id
	snap.CreatedAt = created
	return id, nil
}

// LatestSnapshot returns the most recently saved snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	const op = "store.LatestSnapshot"
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	snap := &Snapshot{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, journal_seq, inconsistent
		FROM taxonomy_snapshots
		ORDER BY rowid DESC
		LIMIT 1
	`).Scan(&snap.ID, &snap.CreatedAt, &snap.JournalSeq, &snap.Inconsistent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, saterrors.Wrap(saterrors.ClassStorage, op, err)
	}
	if err := s.loadNodes(ctx, snap); err != nil {
		return nil, saterrors.Wrap(saterrors.ClassStorage, op, err)
	}
	if err := s.loadTypes(ctx, snap); err != nil {
		return nil, saterrors.Wrap(saterrors.ClassStorage, op, err)
	}
	return snap, nil
}

func (s *Store) loadNodes(ctx context.Context, snap *Snapshot) error {
	grow := func(node int) {
		for len(snap.Nodes) <= node {
			snap.Nodes = append(snap.Nodes, NodeRecord{})
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT node, iri FROM taxonomy_members WHERE snapshot_id = ? ORDER BY node, rowid`, snap.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var node int
		var iri string
		if err := rows.Scan(&node, &iri); err != nil {
			rows.Close()
			return err
		}
		grow(node)
		snap.Nodes[node].Members = append(snap.Nodes[node].Members, iri)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT child, parent FROM taxonomy_edges WHERE snapshot_id = ? ORDER BY child, rowid`, snap.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var child, parent int
		if err := rows.Scan(&child, &parent); err != nil {
			return err
		}
		grow(child)
		snap.Nodes[child].Parents = append(snap.Nodes[child].Parents, parent)
	}
	return rows.Err()
}

func (s *Store) loadTypes(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT individual, node FROM taxonomy_types WHERE snapshot_id = ? ORDER BY rowid`, snap.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	byIndividual := make(map[string]int)
	for rows.Next() {
		var ind string
		var node int
		if err := rows.Scan(&ind, &node); err != nil {
			return err
		}
		i, ok := byIndividual[ind]
		if !ok {
			i = len(snap.Types)
			byIndividual[ind] = i
			snap.Types = append(snap.Types, TypeRecord{Individual: ind})
		}
		snap.Types[i].Nodes = append(snap.Types[i].Nodes, node)
	}
	return rows.Err()
}
