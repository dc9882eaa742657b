// Package sqlite provides a durable backend on SQLite.
//
// Entries are stored in their canonical JSON form, one row per entry, with
// the tree root denormalized for filtering. Graph queries load the relevant
// tree into a snapshot and run the shared DAG algorithms over it; SQLite is
// the durability layer, not the graph engine.
package sqlite

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loomdb/loom/backend"
	"github.com/loomdb/loom/entry"
	"github.com/loomdb/loom/errs"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Backend persists entries in a SQLite database.
// Uses WAL mode for concurrent read access.
type Backend struct {
	db *sql.DB
}

var _ backend.Backend = (*Backend)(nil)
var _ backend.Closer = (*Backend)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.Wrap(errs.CodeIO, "opening database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.CodeIO, "connecting to database", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Backend{db: db}, nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errs.Wrap(errs.CodeIO, fmt.Sprintf("executing %q", pragma), err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and stamps the schema
// version. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return errs.Wrap(errs.CodeIO, "applying schema", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errs.Wrap(errs.CodeIO, "reading schema version", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return errs.Wrap(errs.CodeIO, "stamping schema version", err)
		}
	}

	return nil
}

// Get loads a persisted entry by ID.
func (b *Backend) Get(id entry.ID) (*entry.Entry, error) {
	var body string
	err := b.db.QueryRow("SELECT body FROM entries WHERE id = ?", id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("entry " + id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.CodeIO, "loading entry", err)
	}
	return decodeEntry(body)
}

// Put persists an entry in its canonical form. Duplicate IDs silently
// succeed: the ID identifies the content.
func (b *Backend) Put(e *entry.Entry) error {
	_, err := b.db.Exec(
		"INSERT OR IGNORE INTO entries (id, root, body) VALUES (?, ?, ?)",
		e.ID(), e.Root(), string(e.CanonicalBytes()),
	)
	if err != nil {
		return errs.Wrap(errs.CodeIO, "storing entry", err)
	}
	return nil
}

// GetTips returns the tree-dimension tips of the tree.
func (b *Backend) GetTips(tree entry.ID) ([]entry.ID, error) {
	snap, err := b.snapshot(tree)
	if err != nil {
		return nil, err
	}
	return snap.Tips(tree), nil
}

// GetSubtreeTips returns the subtree-dimension tips of the named subtree.
func (b *Backend) GetSubtreeTips(tree entry.ID, subtree string) ([]entry.ID, error) {
	snap, err := b.snapshot(tree)
	if err != nil {
		return nil, err
	}
	return snap.SubtreeTips(tree, subtree), nil
}

// AllRoots returns every top-level root entry ID.
func (b *Backend) AllRoots() ([]entry.ID, error) {
	rows, err := b.db.Query("SELECT id FROM entries WHERE root = '' ORDER BY id")
	if err != nil {
		return nil, errs.Wrap(errs.CodeIO, "listing roots", err)
	}
	defer rows.Close()

	var roots []entry.ID
	for rows.Next() {
		var id entry.ID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(errs.CodeIO, "scanning root id", err)
		}
		roots = append(roots, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeIO, "listing roots", err)
	}
	return roots, nil
}

// GetTree returns all entries of the tree, topologically sorted.
func (b *Backend) GetTree(tree entry.ID) ([]*entry.Entry, error) {
	snap, err := b.snapshot(tree)
	if err != nil {
		return nil, err
	}
	return snap.TreeEntries(tree), nil
}

// GetSubtree returns all entries containing the subtree, sorted by
// subtree-dimension height.
func (b *Backend) GetSubtree(tree entry.ID, subtree string) ([]*entry.Entry, error) {
	snap, err := b.snapshot(tree)
	if err != nil {
		return nil, err
	}
	return snap.SubtreeEntries(tree, subtree), nil
}

// GetTreeFromTips returns the ancestors of tips within the tree.
func (b *Backend) GetTreeFromTips(tree entry.ID, tips []entry.ID) ([]*entry.Entry, error) {
	snap, err := b.snapshot(tree)
	if err != nil {
		return nil, err
	}
	return snap.TreeEntriesFromTips(tree, tips), nil
}

// GetSubtreeFromTips returns the subtree-dimension ancestors of tips.
func (b *Backend) GetSubtreeFromTips(tree entry.ID, subtree string, tips []entry.ID) ([]*entry.Entry, error) {
	snap, err := b.snapshot(tree)
	if err != nil {
		return nil, err
	}
	return snap.SubtreeEntriesFromTips(tree, subtree, tips), nil
}

// snapshot loads every entry of the tree (including its root entry) into a
// Snapshot for the shared DAG algorithms.
func (b *Backend) snapshot(tree entry.ID) (backend.Snapshot, error) {
	rows, err := b.db.Query("SELECT body FROM entries WHERE root = ? OR id = ?", tree, tree)
	if err != nil {
		return nil, errs.Wrap(errs.CodeIO, "loading tree", err)
	}
	defer rows.Close()

	snap := make(backend.Snapshot)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errs.Wrap(errs.CodeIO, "scanning entry", err)
		}
		e, err := decodeEntry(body)
		if err != nil {
			return nil, err
		}
		snap[e.ID()] = e
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeIO, "loading tree", err)
	}
	return snap, nil
}

func decodeEntry(body string) (*entry.Entry, error) {
	var e entry.Entry
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return nil, errs.Wrap(errs.CodeSerialization, "decoding stored entry", err)
	}
	return &e, nil
}
