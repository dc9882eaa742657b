package crdt

import (
	"encoding/json"

	"github.com/loomdb/loom/errs"
)

// Value is a sealed sum type for KVNested entries. Only String, *KVNested
// and Deleted implement it. Deletion is modeled as an explicit tombstone
// value rather than removal from the map, so it serializes and merges.
type Value interface {
	nestedValue()
}

// String is a leaf string value.
type String string

func (String) nestedValue() {}

// Deleted is a tombstone. It survives serialization and outranks earlier
// writes when it is the topologically later side of a merge.
type Deleted struct{}

func (Deleted) nestedValue() {}

// A *KVNested is itself a Value, giving arbitrary nesting.
func (*KVNested) nestedValue() {}

// KVNested is a last-writer-wins map whose values are strings, nested maps,
// or tombstones. Maps on both sides of a merge are merged recursively; any
// other combination lets the newer side win.
//
// The zero value is ready to use.
type KVNested struct {
	data map[string]Value
}

// NewKVNested creates an empty KVNested.
func NewKVNested() *KVNested {
	return &KVNested{data: make(map[string]Value)}
}

// Get returns the value for key. The second result is false if the key is
// absent or deleted.
func (kv *KVNested) Get(key string) (Value, bool) {
	v, ok := kv.data[key]
	if !ok {
		return nil, false
	}
	if _, deleted := v.(Deleted); deleted {
		return nil, false
	}
	return v, true
}

// GetString returns the string at key. Returns a NOT_FOUND error for absent
// or deleted keys and an INVALID_OPERATION error when the value is a map.
func (kv *KVNested) GetString(key string) (string, error) {
	v, ok := kv.Get(key)
	if !ok {
		return "", errs.NotFound("key " + key)
	}
	s, ok := v.(String)
	if !ok {
		return "", errs.Newf(errs.CodeInvalidOperation, "key %q holds a nested map, not a string", key)
	}
	return string(s), nil
}

// Set stores any Value at key, replacing tombstones.
func (kv *KVNested) Set(key string, value Value) *KVNested {
	if kv.data == nil {
		kv.data = make(map[string]Value)
	}
	kv.data[key] = value
	return kv
}

// SetString stores a string value at key.
func (kv *KVNested) SetString(key, value string) *KVNested {
	return kv.Set(key, String(value))
}

// SetMap stores a nested map at key.
func (kv *KVNested) SetMap(key string, value *KVNested) *KVNested {
	return kv.Set(key, value)
}

// Remove writes a tombstone at key. The tombstone is written even if the key
// was never set, so the deletion propagates.
func (kv *KVNested) Remove(key string) *KVNested {
	return kv.Set(key, Deleted{})
}

// HasTombstone reports whether key carries a tombstone.
func (kv *KVNested) HasTombstone(key string) bool {
	v, ok := kv.data[key]
	if !ok {
		return false
	}
	_, deleted := v.(Deleted)
	return deleted
}

// Len returns the number of live keys.
func (kv *KVNested) Len() int {
	n := 0
	for _, v := range kv.data {
		if _, deleted := v.(Deleted); !deleted {
			n++
		}
	}
	return n
}

// Keys returns the live keys in unspecified order.
func (kv *KVNested) Keys() []string {
	keys := make([]string, 0, len(kv.data))
	for k, v := range kv.data {
		if _, deleted := v.(Deleted); !deleted {
			keys = append(keys, k)
		}
	}
	return keys
}

// Entries returns a copy of the underlying map, tombstones included.
func (kv *KVNested) Entries() map[string]Value {
	out := make(map[string]Value, len(kv.data))
	for k, v := range kv.data {
		out[k] = cloneValue(v)
	}
	return out
}

// Clone returns a deep copy.
func (kv *KVNested) Clone() *KVNested {
	return &KVNested{data: kv.Entries()}
}

func cloneValue(v Value) Value {
	if m, ok := v.(*KVNested); ok {
		return m.Clone()
	}
	return v
}

// Merge returns a new KVNested with other applied on top of the receiver.
// Per key: maps on both sides merge recursively; otherwise other's value,
// tombstones included, replaces the receiver's. Keys only in the receiver
// are kept.
func (kv *KVNested) Merge(other *KVNested) *KVNested {
	merged := kv.Clone()
	for key, otherValue := range other.data {
		otherMap, otherIsMap := otherValue.(*KVNested)
		if !otherIsMap {
			merged.data[key] = otherValue
			continue
		}
		if selfMap, ok := merged.data[key].(*KVNested); ok {
			merged.data[key] = selfMap.Merge(otherMap)
			continue
		}
		merged.data[key] = otherMap.Clone()
	}
	return merged
}

// tombstoneJSON is the wire form of a Deleted value.
const tombstoneJSON = `"Deleted"`

func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		inner, err := json.Marshal(string(val))
		if err != nil {
			return nil, err
		}
		return append(append([]byte(`{"String":`), inner...), '}'), nil
	case *KVNested:
		inner, err := val.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return append(append([]byte(`{"Map":`), inner...), '}'), nil
	case Deleted:
		return []byte(tombstoneJSON), nil
	}
	return nil, errs.Newf(errs.CodeSerialization, "unknown nested value type %T", v)
}

func unmarshalValue(b []byte) (Value, error) {
	var tag string
	if err := json.Unmarshal(b, &tag); err == nil {
		if tag == "Deleted" {
			return Deleted{}, nil
		}
		return nil, errs.Newf(errs.CodeSerialization, "unknown nested value tag %q", tag)
	}

	var variants struct {
		String *string          `json:"String"`
		Map    *json.RawMessage `json:"Map"`
	}
	if err := json.Unmarshal(b, &variants); err != nil {
		return nil, errs.Wrap(errs.CodeSerialization, "decoding nested value", err)
	}
	switch {
	case variants.String != nil:
		return String(*variants.String), nil
	case variants.Map != nil:
		m := NewKVNested()
		if err := m.UnmarshalJSON(*variants.Map); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, errs.New(errs.CodeSerialization, "nested value has no recognized variant")
}

// MarshalJSON produces the canonical serialization: map keys are written in
// sorted order by encoding/json, values are externally tagged.
func (kv *KVNested) MarshalJSON() ([]byte, error) {
	raw := make(map[string]json.RawMessage, len(kv.data))
	for k, v := range kv.data {
		b, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		raw[k] = b
	}
	out, err := json.Marshal(struct {
		Data map[string]json.RawMessage `json:"data"`
	}{Data: raw})
	if err != nil {
		return nil, errs.Wrap(errs.CodeSerialization, "encoding KVNested", err)
	}
	return out, nil
}

// UnmarshalJSON restores a serialized KVNested, tombstones included.
func (kv *KVNested) UnmarshalJSON(b []byte) error {
	var raw struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return errs.Wrap(errs.CodeSerialization, "decoding KVNested", err)
	}
	kv.data = make(map[string]Value, len(raw.Data))
	for k, rb := range raw.Data {
		v, err := unmarshalValue(rb)
		if err != nil {
			return err
		}
		kv.data[k] = v
	}
	return nil
}
