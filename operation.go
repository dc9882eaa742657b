package loom

import (
	"encoding/json"

	"github.com/loomdb/loom/crdt"
	"github.com/loomdb/loom/entry"
	"github.com/loomdb/loom/errs"
)

// Operation is a staged, multi-subtree transaction scoped to one tree.
//
// Opening an operation pins the tree's current tips as the pending entry's
// parents. Touching a subtree for the first time pins that subtree's tips.
// Writes stage serialized CRDT values; nothing reaches the backend until
// Commit, which finalizes and persists exactly one new entry. Dropping an
// operation without committing discards all staged state.
//
// An Operation is not safe for concurrent use, and handles obtained from it
// must not outlive it.
type Operation struct {
	tree      *Tree
	builder   *entry.Builder
	committed bool
}

func newOperation(t *Tree) (*Operation, error) {
	tips, err := t.backend.GetTips(t.root)
	if err != nil {
		return nil, err
	}
	b := entry.NewBuilder(t.root)
	b.SetParents(tips)
	return &Operation{tree: t, builder: b}, nil
}

// Tree returns the tree this operation is scoped to.
func (op *Operation) Tree() *Tree {
	return op.tree
}

func (op *Operation) usable() error {
	if op.committed {
		return errs.New(errs.CodeInvalidOperation, "operation has already been committed")
	}
	return nil
}

// Touch pins the named subtree's current tips as the staged parents for
// that subtree, without staging any data. The first write or historical
// read does this implicitly; Touch exists so callers can fix the frontier
// early. Touching an already-pinned subtree is a no-op.
func (op *Operation) Touch(name string) error {
	if err := op.usable(); err != nil {
		return err
	}
	return op.pin(name)
}

// pin records the subtree's tips on first contact.
func (op *Operation) pin(name string) error {
	if op.builder.HasSubtree(name) {
		return nil
	}
	tips, err := op.tree.backend.GetSubtreeTips(op.tree.root, name)
	if err != nil {
		return err
	}
	op.builder.SetSubtreeData(name, "")
	op.builder.SetSubtreeParents(name, tips)
	return nil
}

// Stage records serialized CRDT data for the named subtree, pinning the
// subtree's tips first if this is its first touch. Intended for subtree
// handles; the data must be the full staged value for this operation, not a
// delta.
func (op *Operation) Stage(name, data string) error {
	if err := op.usable(); err != nil {
		return err
	}
	if err := op.pin(name); err != nil {
		return err
	}
	op.builder.SetSubtreeData(name, data)
	return nil
}

// Staged returns the data staged for the named subtree in this operation.
// The second result is false when nothing has been staged.
func (op *Operation) Staged(name string) (string, bool) {
	data, ok := op.builder.SubtreeData(name)
	if !ok || data == "" {
		return "", false
	}
	return data, true
}

// History returns the named subtree's ancestor entries up to the pinned
// frontier, in backend topological order (height ascending, ID ascending).
// The subtree is pinned on first call. A subtree with no history yields nil.
func (op *Operation) History(name string) ([]*entry.Entry, error) {
	if err := op.usable(); err != nil {
		return nil, err
	}
	if err := op.pin(name); err != nil {
		return nil, err
	}
	parents := op.builder.SubtreeParents(name)
	if len(parents) == 0 {
		return nil, nil
	}
	return op.tree.backend.GetSubtreeFromTips(op.tree.root, name, parents)
}

// HistoryPayloads returns the subtree's ancestor payloads in merge-fold
// order, ready for a CRDT fold.
func (op *Operation) HistoryPayloads(name string) ([]string, error) {
	entries, err := op.History(name)
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

// Commit finalizes the pending entry and persists it. Subtrees staged with
// empty data are stripped, the metadata channel pins the settings tips when
// the operation does not itself stage settings, and exactly one backend Put
// makes the entry observable. The operation is unusable afterwards.
//
// Before Commit, an operation is observationally side-effect-free: on a Put
// failure the tree's tips are unchanged and no new entry is visible.
func (op *Operation) Commit() (entry.ID, error) {
	if err := op.usable(); err != nil {
		return "", err
	}

	if staged, _ := op.builder.SubtreeData(SettingsSubtree); staged == "" {
		if err := op.attachSettingsMetadata(); err != nil {
			return "", err
		}
	}

	e := op.builder.Build()
	// The operation is spent either way: a failed Put leaves the tree
	// untouched, but the operation cannot be retried.
	op.committed = true
	if err := op.tree.backend.Put(e); err != nil {
		return "", err
	}
	return e.ID(), nil
}

// attachSettingsMetadata records the settings tips in effect when this
// entry was created. The tips are read relative to the live head; an
// operation that mutates settings itself skips the channel entirely.
func (op *Operation) attachSettingsMetadata() error {
	tips, err := op.tree.backend.GetSubtreeTips(op.tree.root, SettingsSubtree)
	if err != nil {
		return err
	}
	if len(tips) == 0 {
		return nil
	}

	tipsJSON, err := json.Marshal(tips)
	if err != nil {
		return errs.Wrap(errs.CodeSerialization, "encoding settings tips", err)
	}
	meta := crdt.NewKVOverWrite()
	meta.Set(SettingsSubtree, string(tipsJSON))
	metaJSON, err := meta.MarshalJSON()
	if err != nil {
		return err
	}
	op.builder.SetMetadata(string(metaJSON))
	return nil
}
