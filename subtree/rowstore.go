package subtree

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/crdt"
	"github.com/loomdb/loom/errs"
)

// RowStore is a record-oriented handle over a KVOverWrite subtree, similar
// to a table with automatic primary keys. Inserts mint UUIDv4 identifiers;
// updates against the same ID are last-writer-wins by topological order;
// removal writes a tombstone that merges like any other write, so a
// concurrent update ordered after it in the merge fold restores the record.
type RowStore[T any] struct {
	name string
	op   *loom.Operation
}

// Row pairs a record with its stable identifier.
type Row[T any] struct {
	ID    string
	Value T
}

// NewRowStore opens a RowStore handle on the named subtree within op,
// pinning the subtree's tips if this is its first touch.
func NewRowStore[T any](op *loom.Operation, name string) (*RowStore[T], error) {
	if err := op.Touch(name); err != nil {
		return nil, err
	}
	return &RowStore[T]{name: name, op: op}, nil
}

// NewRowViewer opens a read-only RowStore snapshot on a tree: the tips are
// pinned now and never advance.
func NewRowViewer[T any](t *loom.Tree, name string) (*RowStore[T], error) {
	op, err := t.NewOperation()
	if err != nil {
		return nil, err
	}
	return NewRowStore[T](op, name)
}

// Name returns the subtree name this handle is bound to.
func (s *RowStore[T]) Name() string {
	return s.name
}

// Get returns the record with the given primary key from the merged view.
// Returns a NOT_FOUND error for unknown or removed keys.
func (s *RowStore[T]) Get(key string) (T, error) {
	var zero T
	data, err := state[crdt.KVOverWrite](s.op, s.name)
	if err != nil {
		return zero, err
	}
	raw, ok := data.Get(key)
	if !ok {
		return zero, errs.NotFound("record " + key)
	}
	var row T
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return zero, errs.Wrap(errs.CodeSerialization, "decoding record "+key, err)
	}
	return row, nil
}

// Insert mints a fresh UUIDv4 primary key for the record and stages it.
// Inserting always succeeds with a distinct key, even for equal records.
func (s *RowStore[T]) Insert(row T) (string, error) {
	key := uuid.NewString()
	if err := s.Set(key, row); err != nil {
		return "", err
	}
	return key, nil
}

// Set stages the record under an existing primary key, replacing the
// previous value. Setting an unknown key creates the record with that key.
func (s *RowStore[T]) Set(key string, row T) error {
	serialized, err := json.Marshal(row)
	if err != nil {
		return errs.Wrap(errs.CodeSerialization, "encoding record", err)
	}
	return s.mutate(func(data *crdt.KVOverWrite) {
		data.Set(key, string(serialized))
	})
}

// Remove stages a tombstone for the primary key. A later Get reports
// NOT_FOUND. The tombstone does not outrank concurrent updates: as with any
// write to the key, the one later in the merge fold wins.
func (s *RowStore[T]) Remove(key string) error {
	return s.mutate(func(data *crdt.KVOverWrite) {
		data.Remove(key)
	})
}

// Search scans the merged view and returns every record matching the
// predicate, with its primary key. Order is unspecified.
func (s *RowStore[T]) Search(match func(T) bool) ([]Row[T], error) {
	data, err := state[crdt.KVOverWrite](s.op, s.name)
	if err != nil {
		return nil, err
	}

	var rows []Row[T]
	for key, raw := range data.Entries() {
		if raw == nil {
			continue
		}
		var row T
		if err := json.Unmarshal([]byte(*raw), &row); err != nil {
			return nil, errs.Wrap(errs.CodeSerialization, "decoding record "+key, err)
		}
		if match(row) {
			rows = append(rows, Row[T]{ID: key, Value: row})
		}
	}
	return rows, nil
}

// mutate applies fn to the locally staged value and stages the result. Keys
// merge independently, so the staged map only needs this operation's keys.
func (s *RowStore[T]) mutate(fn func(*crdt.KVOverWrite)) error {
	data, err := staged[crdt.KVOverWrite](s.op, s.name)
	if err != nil {
		return err
	}
	fn(data)
	serialized, err := data.MarshalJSON()
	if err != nil {
		return err
	}
	return s.op.Stage(s.name, string(serialized))
}
