package loom

import (
	"github.com/loomdb/loom/backend"
	"github.com/loomdb/loom/crdt"
	"github.com/loomdb/loom/entry"
	"github.com/loomdb/loom/errs"
)

// Database is the facade over a backend. It creates and locates trees and
// hands out Tree handles that share the backend behind one lock.
type Database struct {
	backend *lockedBackend
}

// New creates a Database over the given backend. The Database owns all
// synchronization; the backend itself need not be safe for concurrent use.
func New(be backend.Backend) *Database {
	return &Database{backend: &lockedBackend{be: be}}
}

// Backend returns the underlying backend. Callers must not invoke it
// concurrently with database operations; it exists so embedders can reach
// implementation-specific capabilities such as file persistence.
func (db *Database) Backend() backend.Backend {
	return db.backend.be
}

// NewTree creates a new tree by committing a single root entry whose
// settings subtree is seeded with the given KVNested. The root's tree.root
// is the empty sentinel, so the root entry's own ID becomes the tree ID.
func (db *Database) NewTree(settings *crdt.KVNested) (*Tree, error) {
	if settings == nil {
		settings = crdt.NewKVNested()
	}
	data, err := settings.MarshalJSON()
	if err != nil {
		return nil, err
	}

	b := entry.NewBuilder("")
	b.SetSubtreeData(SettingsSubtree, string(data))
	root := b.Build()

	if err := db.backend.Put(root); err != nil {
		return nil, err
	}
	return &Tree{root: root.ID(), backend: db.backend}, nil
}

// LoadTree returns a handle to an existing tree by its root ID. Returns a
// NOT_FOUND error when the root entry is not persisted.
func (db *Database) LoadTree(rootID entry.ID) (*Tree, error) {
	if _, err := db.backend.Get(rootID); err != nil {
		return nil, err
	}
	return &Tree{root: rootID, backend: db.backend}, nil
}

// AllTrees returns a handle for every tree stored in the backend.
func (db *Database) AllTrees() ([]*Tree, error) {
	roots, err := db.backend.AllRoots()
	if err != nil {
		return nil, err
	}
	trees := make([]*Tree, 0, len(roots))
	for _, root := range roots {
		trees = append(trees, &Tree{root: root, backend: db.backend})
	}
	return trees, nil
}

// FindTree returns all trees whose settings name matches. Returns a
// NOT_FOUND error when no tree carries the name.
func (db *Database) FindTree(name string) ([]*Tree, error) {
	trees, err := db.AllTrees()
	if err != nil {
		return nil, err
	}

	var matches []*Tree
	for _, t := range trees {
		// Trees without a readable name are skipped, not reported.
		treeName, err := t.Name()
		if err != nil {
			continue
		}
		if treeName == name {
			matches = append(matches, t)
		}
	}

	if len(matches) == 0 {
		return nil, errs.NotFound("tree named " + name)
	}
	return matches, nil
}
