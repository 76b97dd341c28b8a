// Package blockstore persists the trees of a library as data blocks in a
// SQLite database. Every tree is one row holding its HCL document and the
// BLAKE3 fingerprint of that document; saving skips rows whose fingerprint
// did not change.
package blockstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vk/nodeweave/internal/ctxlog"
	"github.com/vk/nodeweave/internal/document"
	"github.com/vk/nodeweave/internal/library"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrBlockNotFound is returned when no block has the requested name.
var ErrBlockNotFound = errors.New("block not found")

// Block is one stored tree.
type Block struct {
	ID          string
	Name        string
	Kind        string
	Position    int
	Fingerprint string
	Body        []byte
	UpdatedAt   time.Time
}

// SaveStats reports what a Save did.
type SaveStats struct {
	Written   int
	Unchanged int
	Deleted   int
}

// Store wraps a SQLite connection holding data blocks.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens or creates a block store. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared between calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes every tree of lib. Trees are stored wrapped trees first so
// that Load can resolve group references in one pass. Blocks of trees no
// longer in the library are deleted.
func (s *Store) Save(ctx context.Context, lib *library.Library) (SaveStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	logger := ctxlog.FromContext(ctx)

	var stats SaveStats
	trees, err := lib.Closure()
	if err != nil {
		return stats, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing := map[string]string{}
	byName := map[string]string{}
	rows, err := tx.QueryContext(ctx, "SELECT id, name, fingerprint FROM blocks")
	if err != nil {
		return stats, fmt.Errorf("listing blocks: %w", err)
	}
	for rows.Next() {
		var id, name, fp string
		if err := rows.Scan(&id, &name, &fp); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scanning block: %w", err)
		}
		existing[id] = fp
		byName[name] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("listing blocks: %w", err)
	}

	// A renamed tree may take a name still held by a stale row.
	now := time.Now().UnixNano()
	libIDs := map[string]bool{}
	for _, e := range lib.Entries() {
		libIDs[e.ID] = true
	}
	keep := map[string]bool{}
	for pos, tr := range trees {
		e, ok := lib.Get(tr.Name())
		if !ok {
			continue
		}
		// A tree the store does not know by id takes over the block of
		// the same name, unless another tree of the library owns it.
		prev := e.ID
		if _, known := existing[e.ID]; !known {
			if id, ok := byName[tr.Name()]; ok && !libIDs[id] {
				prev = id
			}
		}
		keep[prev] = true
		body := document.Encode(tr)
		fp := document.Fingerprint(tr)
		if old, ok := existing[prev]; ok && old == fp {
			if _, err := tx.ExecContext(ctx, "UPDATE blocks SET id = ?, position = ? WHERE id = ?", e.ID, pos, prev); err != nil {
				return stats, fmt.Errorf("updating block %s: %w", tr.Name(), err)
			}
			stats.Unchanged++
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM blocks WHERE name = ? AND id != ?", tr.Name(), e.ID); err != nil {
			return stats, fmt.Errorf("clearing name %s: %w", tr.Name(), err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO blocks (id, name, kind, position, fingerprint, body, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, tr.Name(), tr.Kind(), pos, fp, body, now,
		)
		if err != nil {
			return stats, fmt.Errorf("writing block %s: %w", tr.Name(), err)
		}
		stats.Written++
	}

	for id := range existing {
		if keep[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM blocks WHERE id = ?", id); err != nil {
			return stats, fmt.Errorf("deleting block %s: %w", id, err)
		}
		stats.Deleted++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("committing blocks: %w", err)
	}
	logger.Info("Library saved.", "path", s.path, "written", stats.Written, "unchanged", stats.Unchanged, "deleted", stats.Deleted)
	return stats, nil
}

// Blocks lists the stored blocks in load order.
func (s *Store) Blocks(ctx context.Context) ([]Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, kind, position, fingerprint, body, updated_at FROM blocks ORDER BY position, name")
	if err != nil {
		return nil, fmt.Errorf("listing blocks: %w", err)
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		var b Block
		var updated int64
		if err := rows.Scan(&b.ID, &b.Name, &b.Kind, &b.Position, &b.Fingerprint, &b.Body, &updated); err != nil {
			return nil, fmt.Errorf("scanning block: %w", err)
		}
		b.UpdatedAt = time.Unix(0, updated)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Block returns one block by tree name.
func (s *Store) Block(ctx context.Context, name string) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b Block
	var updated int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, kind, position, fingerprint, body, updated_at FROM blocks WHERE name = ?", name,
	).Scan(&b.ID, &b.Name, &b.Kind, &b.Position, &b.Fingerprint, &b.Body, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Block{}, fmt.Errorf("%w: %q", ErrBlockNotFound, name)
	}
	if err != nil {
		return Block{}, fmt.Errorf("reading block %s: %w", name, err)
	}
	b.UpdatedAt = time.Unix(0, updated)
	return b, nil
}

// Load restores every stored tree into lib, keeping block ids. It stops at
// the first block that fails to load.
func (s *Store) Load(ctx context.Context, lib *library.Library) (int, error) {
	blocks, err := s.Blocks(ctx)
	if err != nil {
		return 0, err
	}
	for i, b := range blocks {
		if _, err := lib.Restore(ctx, b.ID, b.Name+".hcl", b.Body); err != nil {
			return i, fmt.Errorf("loading block %s: %w", b.Name, err)
		}
	}
	ctxlog.FromContext(ctx).Info("Library loaded.", "path", s.path, "blocks", len(blocks))
	return len(blocks), nil
}
