// Package backend defines the storage contract the engine depends on, plus
// the graph algorithms shared by its implementations.
//
// A Backend persists immutable entries by ID and answers the graph queries
// the rest of the engine relies on: tip computation, topological ordering by
// height, and ancestor traversal. Implementations vary in durability; the
// contract is uniform. Backends are not required to be safe for concurrent
// use on their own: the database facade serializes access behind a lock.
package backend

import (
	"github.com/loomdb/loom/entry"
)

// Backend abstracts the underlying storage mechanism for entries.
//
// Much of the performance-sensitive logic, particularly tip calculation and
// topological ordering, lives behind this interface because the optimal
// approach depends on the storage medium.
type Backend interface {
	// Get loads a persisted entry. Returns a NOT_FOUND error for unknown IDs.
	Get(id entry.ID) (*entry.Entry, error)

	// Put persists an entry. Idempotent for equal IDs: the ID identifies the
	// content, so storing the same entry twice silently succeeds. The
	// contract is permissive about unknown parents; the operation layer is
	// responsible for passing valid parent sets.
	Put(e *entry.Entry) error

	// GetTips returns the IDs of all entries in the tree that have no child
	// in the tree dimension.
	GetTips(tree entry.ID) ([]entry.ID, error)

	// GetSubtreeTips returns the IDs of all entries in the tree that contain
	// the named subtree and have no child, within that subtree's parent
	// dimension, that also contains it.
	GetSubtreeTips(tree entry.ID, subtree string) ([]entry.ID, error)

	// AllRoots returns every entry whose tree root is the empty sentinel.
	AllRoots() ([]entry.ID, error)

	// GetTree returns all entries belonging to the tree, sorted by height
	// ascending, ties broken by ID ascending.
	GetTree(tree entry.ID) ([]*entry.Entry, error)

	// GetSubtree returns all entries of the tree containing the named
	// subtree, sorted by subtree-dimension height, ties broken by ID.
	GetSubtree(tree entry.ID, subtree string) ([]*entry.Entry, error)

	// GetTreeFromTips returns the ancestors of the given tips (inclusive)
	// within the tree, topologically sorted. This reads a pinned historical
	// frontier rather than the live head.
	GetTreeFromTips(tree entry.ID, tips []entry.ID) ([]*entry.Entry, error)

	// GetSubtreeFromTips returns the subtree-dimension ancestors of the
	// given tips (inclusive), topologically sorted.
	GetSubtreeFromTips(tree entry.ID, subtree string, tips []entry.ID) ([]*entry.Entry, error)
}

// Closer is implemented by backends holding external resources.
type Closer interface {
	Close() error
}
