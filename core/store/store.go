// Package store persists the axiom journal of a reasoner and the
// taxonomies computed from it in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	saterrors "github.com/adalundhe/saturn/core/errors"
	"github.com/adalundhe/saturn/core/ontology"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var (
	// ErrNoSnapshot is returned when no taxonomy snapshot was saved yet.
	ErrNoSnapshot = errors.New("no taxonomy snapshot")
)

const schema = `
CREATE TABLE IF NOT EXISTS axiom_journal (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	change_id TEXT NOT NULL,
	op TEXT NOT NULL,
	kind TEXT NOT NULL,
	axiom TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS taxonomy_snapshots (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	journal_seq INTEGER NOT NULL,
	inconsistent INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS taxonomy_members (
	snapshot_id TEXT NOT NULL REFERENCES taxonomy_snapshots(id) ON DELETE CASCADE,
	node INTEGER NOT NULL,
	iri TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS taxonomy_edges (
	snapshot_id TEXT NOT NULL REFERENCES taxonomy_snapshots(id) ON DELETE CASCADE,
	child INTEGER NOT NULL,
	parent INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS taxonomy_types (
	snapshot_id TEXT NOT NULL REFERENCES taxonomy_snapshots(id) ON DELETE CASCADE,
	individual TEXT NOT NULL,
	node INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_members_snapshot ON taxonomy_members(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_edges_snapshot ON taxonomy_edges(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_types_snapshot ON taxonomy_types(snapshot_id);
`

const (
	opAdd    = "add"
	opRemove = "remove"
)

// Config configures a Store.
type Config struct {
	// Path of the database file, or MemoryPath.
	Path string
	// Retry is applied to writes that hit a locked database.
	Retry *saterrors.RetryPolicy
}

// Store is a SQLite-backed axiom journal and taxonomy snapshot store.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	retry  *saterrors.RetryPolicy
	closed bool
}

// Open opens or creates the database at cfg.Path.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	const op = "store.Open"
	if cfg.Path == "" {
		cfg.Path = MemoryPath
	}
	if cfg.Retry == nil {
		cfg.Retry = saterrors.DefaultStoragePolicy()
	}
	if cfg.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, saterrors.Wrap(saterrors.ClassStorage, op, fmt.Errorf("create directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, saterrors.Wrap(saterrors.ClassStorage, op, fmt.Errorf("open database: %w", err))
	}
	// one connection keeps an in-memory database alive and serialises writers
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"}
	if cfg.Path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, saterrors.Wrap(saterrors.ClassStorage, op, fmt.Errorf("%s: %w", p, err))
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, saterrors.Wrap(saterrors.ClassStorage, op, fmt.Errorf("create schema: %w", err))
	}
	return &Store{db: db, path: cfg.Path, retry: cfg.Retry}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return saterrors.ErrClosed
	}
	return nil
}

// write runs fn in a transaction, retrying when the database is locked.
func (s *Store) write(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return saterrors.Retry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classify(op, err)
		}
		defer tx.Rollback()
		if err := fn(tx); err != nil {
			return classify(op, err)
		}
		return classify(op, tx.Commit())
	})
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return saterrors.Transient(op, err)
		}
	}
	return saterrors.Wrap(saterrors.ClassStorage, op, err)
}

// =============================================================================
// Axiom journal
// =============================================================================

// AppendChanges records one change of the loaded axioms and returns its ID.
func (s *Store) AppendChanges(ctx context.Context, added, removed []ontology.Axiom) (string, error) {
	changeID := uuid.New().String()
	err := s.write(ctx, "store.AppendChanges", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO axiom_journal (change_id, op, kind, axiom, recorded_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UTC()
		insert := func(op string, axioms []ontology.Axiom) error {
			for _, ax := range axioms {
				payload, err := json.Marshal(ax)
				if err != nil {
					return fmt.Errorf("encode %s: %w", ax, err)
				}
				if _, err := stmt.ExecContext(ctx, changeID, op, ax.Kind.String(), string(payload), now); err != nil {
					return err
				}
			}
			return nil
		}
		if err := insert(opAdd, added); err != nil {
			return err
		}
		return insert(opRemove, removed)
	})
	if err != nil {
		return "", err
	}
	return changeID, nil
}

// Axioms replays the journal and returns the loaded axioms, repeated by
// multiplicity, in the order they were first added.
func (s *Store) Axioms(ctx context.Context) ([]ontology.Axiom, error) {
	const op = "store.Axioms"
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT op, axiom FROM axiom_journal ORDER BY seq`)
	if err != nil {
		return nil, saterrors.Wrap(saterrors.ClassStorage, op, err)
	}
	defer rows.Close()

	type entry struct {
		axiom ontology.Axiom
		count int
		first int
	}
	loaded := make(map[string]*entry)
	n := 0
	for rows.Next() {
		var kind, payload string
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, saterrors.Wrap(saterrors.ClassStorage, op, err)
		}
		var ax ontology.Axiom
		if err := json.Unmarshal([]byte(payload), &ax); err != nil {
			return nil, saterrors.Wrap(saterrors.ClassStorage, op, fmt.Errorf("decode axiom %d: %w", n, err))
		}
		key := ax.String()
		e, ok := loaded[key]
		switch kind {
		case opAdd:
			if !ok {
				e = &entry{axiom: ax, first: n}
				loaded[key] = e
			}
			e.count++
		case opRemove:
			if ok {
				e.count--
				if e.count == 0 {
					delete(loaded, key)
				}
			}
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, saterrors.Wrap(saterrors.ClassStorage, op, err)
	}

	entries := make([]*entry, 0, len(loaded))
	for _, e := range loaded {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].first < entries[j].first })
	var out []ontology.Axiom
	for _, e := range entries {
		for i := 0; i < e.count; i++ {
			out = append(out, e.axiom)
		}
	}
	return out, nil
}

// JournalSeq returns the sequence number of the last journal entry.
func (s *Store) JournalSeq(ctx context.Context) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM axiom_journal`).Scan(&seq); err != nil {
		return 0, saterrors.Wrap(saterrors.ClassStorage, "store.JournalSeq", err)
	}
	return seq.Int64, nil
}

// Compact rewrites the journal as a single change holding the currently
// loaded axioms.
func (s *Store) Compact(ctx context.Context) error {
	axioms, err := s.Axioms(ctx)
	if err != nil {
		return err
	}
	changeID := uuid.New().String()
	return s.write(ctx, "store.Compact", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM axiom_journal`); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, ax := range axioms {
			payload, err := json.Marshal(ax)
			if err != nil {
				return fmt.Errorf("encode %s: %w", ax, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO axiom_journal (change_id, op, kind, axiom, recorded_at)
				VALUES (?, ?, ?, ?, ?)
			`, changeID, opAdd, ax.Kind.String(), string(payload), now); err != nil {
				return err
			}
		}
		return nil
	})
}
