package subtree

import (
	"github.com/loomdb/loom"
	"github.com/loomdb/loom/crdt"
	"github.com/loomdb/loom/errs"
)

// KVStore is a key-value handle over a KVNested subtree. It supports string
// values, nested maps with a path editor, and deletions via tombstones.
type KVStore struct {
	name string
	op   *loom.Operation
}

var _ Handle = (*KVStore)(nil)

// NewKVStore opens a KVStore handle on the named subtree within op, pinning
// the subtree's tips if this is its first touch.
func NewKVStore(op *loom.Operation, name string) (*KVStore, error) {
	if err := op.Touch(name); err != nil {
		return nil, err
	}
	return &KVStore{name: name, op: op}, nil
}

// NewKVViewer opens a read-only KVStore snapshot on a tree: the tips are
// pinned now and never advance. Writes through a viewer are ephemeral, as
// its backing operation is never committed.
func NewKVViewer(t *loom.Tree, name string) (*KVStore, error) {
	op, err := t.NewOperation()
	if err != nil {
		return nil, err
	}
	return NewKVStore(op, name)
}

// Name returns the subtree name this handle is bound to.
func (s *KVStore) Name() string {
	return s.name
}

// Get returns the value for key from the merged view (history up to the
// pinned tips, staged changes on top). Returns a NOT_FOUND error for absent
// or deleted keys.
func (s *KVStore) Get(key string) (crdt.Value, error) {
	data, err := state[crdt.KVNested](s.op, s.name)
	if err != nil {
		return nil, err
	}
	v, ok := data.Get(key)
	if !ok {
		return nil, errs.NotFound("key " + key)
	}
	return v, nil
}

// GetString returns the string value for key. A nested map yields an
// INVALID_OPERATION error; a deleted or absent key yields NOT_FOUND.
func (s *KVStore) GetString(key string) (string, error) {
	data, err := state[crdt.KVNested](s.op, s.name)
	if err != nil {
		return "", err
	}
	return data.GetString(key)
}

// Set stages key = value. The change is not persisted until the operation
// commits.
func (s *KVStore) Set(key, value string) error {
	return s.mutate(func(data *crdt.KVNested) error {
		data.SetString(key, value)
		return nil
	})
}

// SetValue stages any Value (string, nested map, or tombstone) at key.
func (s *KVStore) SetValue(key string, value crdt.Value) error {
	return s.mutate(func(data *crdt.KVNested) error {
		data.Set(key, value)
		return nil
	})
}

// Delete stages a tombstone for key. Reads then report NOT_FOUND, while the
// tombstone itself survives in canonical form so the deletion propagates
// through merges.
func (s *KVStore) Delete(key string) error {
	return s.mutate(func(data *crdt.KVNested) error {
		data.Remove(key)
		return nil
	})
}

// GetPath returns the value at a key path in the merged view.
func (s *KVStore) GetPath(path []string) (crdt.Value, error) {
	data, err := state[crdt.KVNested](s.op, s.name)
	if err != nil {
		return nil, err
	}
	return data.GetPath(path)
}

// GetStringPath returns the string at a key path in the merged view.
func (s *KVStore) GetStringPath(path []string) (string, error) {
	data, err := state[crdt.KVNested](s.op, s.name)
	if err != nil {
		return "", err
	}
	return data.GetStringPath(path)
}

// SetPath stages a string at a key path, creating intermediate maps.
//
// The staged value is computed against the merged view, so a path set in an
// earlier commit extends rather than replaces the nested structure.
func (s *KVStore) SetPath(path []string, value string) error {
	return s.mutateMerged(func(data *crdt.KVNested) error {
		return data.SetStringPath(path, value)
	})
}

// SetValuePath stages any Value at a key path, creating intermediate maps.
func (s *KVStore) SetValuePath(path []string, value crdt.Value) error {
	return s.mutateMerged(func(data *crdt.KVNested) error {
		return data.SetPath(path, value)
	})
}

// DeletePath stages a tombstone at a key path.
func (s *KVStore) DeletePath(path []string) error {
	return s.mutateMerged(func(data *crdt.KVNested) error {
		return data.DeletePath(path)
	})
}

// GetAll returns the merged view of the whole subtree.
func (s *KVStore) GetAll() (*crdt.KVNested, error) {
	return state[crdt.KVNested](s.op, s.name)
}

// mutate applies fn to the locally staged value and stages the result.
// Top-level keys merge independently, so the staged map only needs the keys
// this operation wrote.
func (s *KVStore) mutate(fn func(*crdt.KVNested) error) error {
	data, err := staged[crdt.KVNested](s.op, s.name)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return s.stage(data)
}

// mutateMerged applies fn to the merged view and stages the result, so the
// staged payload holds the whole merged structure of the subtree, not only
// the keys this operation wrote.
func (s *KVStore) mutateMerged(fn func(*crdt.KVNested) error) error {
	data, err := state[crdt.KVNested](s.op, s.name)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return s.stage(data)
}

func (s *KVStore) stage(data *crdt.KVNested) error {
	serialized, err := data.MarshalJSON()
	if err != nil {
		return err
	}
	return s.op.Stage(s.name, string(serialized))
}
