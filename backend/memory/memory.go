// Package memory provides an in-memory backend backed by a plain map, with
// optional JSON file persistence.
//
// Suitable for tests, development, and embedders that handle durability
// externally by saving and loading the whole state.
package memory

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/loomdb/loom/backend"
	"github.com/loomdb/loom/entry"
	"github.com/loomdb/loom/errs"
)

// Backend stores entries in a map keyed by ID.
type Backend struct {
	entries backend.Snapshot
}

var _ backend.Backend = (*Backend)(nil)

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{entries: make(backend.Snapshot)}
}

// Load reads a backend state previously written by SaveFile. A missing file
// yields a new, empty backend.
func Load(path string) (*Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, errs.Wrap(errs.CodeIO, "reading "+path, err)
	}

	var raw struct {
		Entries map[entry.ID]*entry.Entry `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.CodeSerialization, "decoding "+path, err)
	}

	b := New()
	for _, e := range raw.Entries {
		// Key by the re-derived ID rather than the file's key, so a renamed
		// key in a hand-edited file cannot alias an entry.
		b.entries[e.ID()] = e
	}
	return b, nil
}

// SaveFile writes the entire backend state to path as JSON. Entries are
// written in their canonical serialization, so a reload reproduces every ID.
func (b *Backend) SaveFile(path string) error {
	raw := struct {
		Entries map[entry.ID]*entry.Entry `json:"entries"`
	}{Entries: b.entries}

	data, err := json.Marshal(raw)
	if err != nil {
		return errs.Wrap(errs.CodeSerialization, "encoding backend state", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.CodeIO, "writing "+path, err)
	}
	return nil
}

// Len returns the number of stored entries.
func (b *Backend) Len() int {
	return len(b.entries)
}

// Get loads a persisted entry.
func (b *Backend) Get(id entry.ID) (*entry.Entry, error) {
	e, ok := b.entries[id]
	if !ok {
		return nil, errs.NotFound("entry " + id)
	}
	return e, nil
}

// Put persists an entry. Storing an already-known ID silently succeeds.
func (b *Backend) Put(e *entry.Entry) error {
	b.entries[e.ID()] = e
	return nil
}

// GetTips returns the tree-dimension tips of the tree.
func (b *Backend) GetTips(tree entry.ID) ([]entry.ID, error) {
	return b.entries.Tips(tree), nil
}

// GetSubtreeTips returns the subtree-dimension tips of the named subtree.
func (b *Backend) GetSubtreeTips(tree entry.ID, subtree string) ([]entry.ID, error) {
	return b.entries.SubtreeTips(tree, subtree), nil
}

// AllRoots returns every top-level root entry ID.
func (b *Backend) AllRoots() ([]entry.ID, error) {
	return b.entries.Roots(), nil
}

// GetTree returns all entries of the tree, topologically sorted.
func (b *Backend) GetTree(tree entry.ID) ([]*entry.Entry, error) {
	return b.entries.TreeEntries(tree), nil
}

// GetSubtree returns all entries containing the subtree, sorted by
// subtree-dimension height.
func (b *Backend) GetSubtree(tree entry.ID, subtree string) ([]*entry.Entry, error) {
	return b.entries.SubtreeEntries(tree, subtree), nil
}

// GetTreeFromTips returns the ancestors of tips within the tree.
func (b *Backend) GetTreeFromTips(tree entry.ID, tips []entry.ID) ([]*entry.Entry, error) {
	return b.entries.TreeEntriesFromTips(tree, tips), nil
}

// GetSubtreeFromTips returns the subtree-dimension ancestors of tips.
func (b *Backend) GetSubtreeFromTips(tree entry.ID, subtree string, tips []entry.ID) ([]*entry.Entry, error) {
	return b.entries.SubtreeEntriesFromTips(tree, subtree, tips), nil
}
