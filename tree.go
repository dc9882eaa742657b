package loom

import (
	"github.com/loomdb/loom/crdt"
	"github.com/loomdb/loom/entry"
)

// Tree is a lightweight handle to one logical container, identified by the
// ID of its root entry. Handles are cheap: all state lives in the backend.
type Tree struct {
	root    entry.ID
	backend *lockedBackend
}

// RootID returns the ID of the tree's root entry, which identifies the tree.
func (t *Tree) RootID() entry.ID {
	return t.root
}

// GetRoot retrieves the root entry from the backend.
func (t *Tree) GetRoot() (*entry.Entry, error) {
	return t.backend.Get(t.root)
}

// NewOperation opens an atomic operation on this tree. The operation pins
// the tree's current tips as the pending entry's parents.
func (t *Tree) NewOperation() (*Operation, error) {
	return newOperation(t)
}

// GetTips returns the current tips of the tree's main dimension.
func (t *Tree) GetTips() ([]entry.ID, error) {
	return t.backend.GetTips(t.root)
}

// GetTipEntries returns the full entries for the current tips.
func (t *Tree) GetTipEntries() ([]*entry.Entry, error) {
	tips, err := t.backend.GetTips(t.root)
	if err != nil {
		return nil, err
	}
	entries := make([]*entry.Entry, 0, len(tips))
	for _, id := range tips {
		e, err := t.backend.Get(id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetSettings returns the merged state of the reserved settings subtree at
// the current tips.
func (t *Tree) GetSettings() (*crdt.KVNested, error) {
	return t.SubtreeState(SettingsSubtree)
}

// Name returns the tree's human-readable name from its settings.
func (t *Tree) Name() (string, error) {
	settings, err := t.GetSettings()
	if err != nil {
		return "", err
	}
	return settings.GetString(NameKey)
}

// SubtreeState folds the named subtree's full history, at the tips current
// when called, into a merged KVNested. Viewer-style snapshot read.
func (t *Tree) SubtreeState(name string) (*crdt.KVNested, error) {
	payloads, err := t.subtreePayloads(name)
	if err != nil {
		return nil, err
	}
	return crdt.Fold[crdt.KVNested](payloads)
}

// subtreePayloads pins the subtree's current tips and returns the ancestor
// payloads in backend topological order.
func (t *Tree) subtreePayloads(name string) ([]string, error) {
	tips, err := t.backend.GetSubtreeTips(t.root, name)
	if err != nil {
		return nil, err
	}
	if len(tips) == 0 {
		return nil, nil
	}
	entries, err := t.backend.GetSubtreeFromTips(t.root, name, tips)
	if err != nil {
		return nil, err
	}
	payloads := make([]string, 0, len(entries))
	for _, e := range entries {
		data, err := e.SubtreeData(name)
		if err != nil {
			continue
		}
		payloads = append(payloads, data)
	}
	return payloads, nil
}

// InsertRaw persists a pre-built entry without staging. Intended for test
// scaffolding and replication hooks that already hold a finalized entry.
func (t *Tree) InsertRaw(e *entry.Entry) (entry.ID, error) {
	if err := t.backend.Put(e); err != nil {
		return "", err
	}
	return e.ID(), nil
}
