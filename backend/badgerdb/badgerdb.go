// Package badgerdb provides a durable backend on BadgerDB, an embedded
// LSM-tree key-value store with low-latency access.
//
// Layout: entry bodies live under e:<id> in canonical JSON; a secondary
// index r:<root>:<id> records tree membership so a single prefix scan loads
// one tree. Graph queries load the tree into a snapshot and run the shared
// DAG algorithms over it.
package badgerdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/loomdb/loom/backend"
	"github.com/loomdb/loom/entry"
	"github.com/loomdb/loom/errs"
)

const (
	entryPrefix = "e:"
	rootPrefix  = "r:"
)

// Config holds configuration for a Badger-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns a production configuration: durable synchronous
// writes at the given directory.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for testing: no disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Backend persists entries in a Badger database.
type Backend struct {
	db *badger.DB
}

var _ backend.Backend = (*Backend)(nil)
var _ backend.Closer = (*Backend)(nil)

// Open opens (creating if necessary) a Badger-backed store.
func Open(cfg Config) (*Backend, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(slogAdapter{cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.Wrap(errs.CodeIO, "opening badger database", err)
	}
	return &Backend{db: db}, nil
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Get loads a persisted entry by ID.
func (b *Backend) Get(id entry.ID) (*entry.Entry, error) {
	var e *entry.Entry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeEntry(val)
			if err != nil {
				return err
			}
			e = decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errs.NotFound("entry " + id)
	}
	if err != nil {
		var le *errs.Error
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, errs.Wrap(errs.CodeIO, "loading entry", err)
	}
	return e, nil
}

// Put persists an entry and its tree-membership index record. Duplicate IDs
// overwrite with identical content, so Put stays idempotent.
func (b *Backend) Put(e *entry.Entry) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(entryPrefix+e.ID()), e.CanonicalBytes()); err != nil {
			return err
		}
		return txn.Set([]byte(rootPrefix+e.Root()+":"+e.ID()), nil)
	})
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
	prefix := []byte(rootPrefix + ":")
	var roots []entry.ID
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			roots = append(roots, entry.ID(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
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
	ids := []entry.ID{tree}
	prefix := []byte(rootPrefix + tree + ":")
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			ids = append(ids, entry.ID(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.CodeIO, "scanning tree index", err)
	}

	snap := make(backend.Snapshot, len(ids))
	for _, id := range ids {
		e, err := b.Get(id)
		if err != nil {
			if errs.IsNotFound(err) {
				// The tree's own root ID is probed unconditionally; a tree
				// that does not exist yet simply has no root entry.
				continue
			}
			return nil, err
		}
		snap[e.ID()] = e
	}
	return snap, nil
}

func decodeEntry(val []byte) (*entry.Entry, error) {
	var e entry.Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, errs.Wrap(errs.CodeSerialization, "decoding stored entry", err)
	}
	return &e, nil
}

// slogAdapter bridges badger's Logger interface onto slog.
type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Errorf(format string, args ...any) {
	a.l.Error("badger", "msg", fmt.Sprintf(format, args...))
}

func (a slogAdapter) Warningf(format string, args ...any) {
	a.l.Warn("badger", "msg", fmt.Sprintf(format, args...))
}

func (a slogAdapter) Infof(format string, args ...any) {
	a.l.Info("badger", "msg", fmt.Sprintf(format, args...))
}

func (a slogAdapter) Debugf(format string, args ...any) {
	a.l.Debug("badger", "msg", fmt.Sprintf(format, args...))
}
