// Package loom is an embeddable, decentralized database engine. Its unit of
// persistence is an immutable, content-addressed entry forming a Merkle-DAG;
// on top of that DAG it exposes named trees partitioned into typed subtrees,
// each backed by a CRDT.
//
// All writes go through an atomic Operation: it pins a consistent parent
// frontier, accumulates staged mutations across subtrees, and commits them
// as one new entry whose ID derives from its canonical serialization.
// Concurrent writers produce sibling tips; readers fold the DAG back
// together with deterministic CRDT merges.
package loom

import (
	"sync"

	"github.com/loomdb/loom/backend"
	"github.com/loomdb/loom/entry"
)

// SettingsSubtree is the reserved subtree holding tree-level metadata.
const SettingsSubtree = "_settings"

// ReservedPrefix marks subtree names reserved for the engine.
const ReservedPrefix = "_"

// NameKey is the key within the settings subtree holding the tree's
// human-readable name.
const NameKey = "name"

// lockedBackend serializes all access to the shared backend. Entries are
// immutable once stored, so references obtained under the lock stay safe
// after it is released.
type lockedBackend struct {
	mu sync.Mutex
	be backend.Backend
}

func (lb *lockedBackend) Get(id entry.ID) (*entry.Entry, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.be.Get(id)
}

func (lb *lockedBackend) Put(e *entry.Entry) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.be.Put(e)
}

func (lb *lockedBackend) GetTips(tree entry.ID) ([]entry.ID, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.be.GetTips(tree)
}

func (lb *lockedBackend) GetSubtreeTips(tree entry.ID, subtree string) ([]entry.ID, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.be.GetSubtreeTips(tree, subtree)
}

func (lb *lockedBackend) AllRoots() ([]entry.ID, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.be.AllRoots()
}

func (lb *lockedBackend) GetTree(tree entry.ID) ([]*entry.Entry, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.be.GetTree(tree)
}

func (lb *lockedBackend) GetSubtree(tree entry.ID, subtree string) ([]*entry.Entry, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.be.GetSubtree(tree, subtree)
}

func (lb *lockedBackend) GetTreeFromTips(tree entry.ID, tips []entry.ID) ([]*entry.Entry, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.be.GetTreeFromTips(tree, tips)
}

func (lb *lockedBackend) GetSubtreeFromTips(tree entry.ID, subtree string, tips []entry.ID) ([]*entry.Entry, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.be.GetSubtreeFromTips(tree, subtree, tips)
}
