package crdt

import (
	"encoding/json"
	"maps"

	"github.com/loomdb/loom/errs"
)

// KVOverWrite is a last-writer-wins map from string keys to string values.
// A nil value is a tombstone: deletions are recorded, not erased, so they
// propagate through merges.
//
// The zero value is ready to use.
type KVOverWrite struct {
	data map[string]*string
}

// NewKVOverWrite creates an empty KVOverWrite.
func NewKVOverWrite() *KVOverWrite {
	return &KVOverWrite{data: make(map[string]*string)}
}

// KVOverWriteFrom creates a KVOverWrite seeded from a plain map.
func KVOverWriteFrom(initial map[string]string) *KVOverWrite {
	kv := NewKVOverWrite()
	for k, v := range initial {
		kv.Set(k, v)
	}
	return kv
}

// Get returns the value for key. The second result is false if the key is
// absent or deleted.
func (kv *KVOverWrite) Get(key string) (string, bool) {
	v, ok := kv.data[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Set overwrites the value for key, replacing any tombstone.
func (kv *KVOverWrite) Set(key, value string) *KVOverWrite {
	if kv.data == nil {
		kv.data = make(map[string]*string)
	}
	kv.data[key] = &value
	return kv
}

// Remove writes a tombstone for key. A tombstone is written even if the key
// was never set, so the deletion propagates to replicas that have it.
func (kv *KVOverWrite) Remove(key string) *KVOverWrite {
	if kv.data == nil {
		kv.data = make(map[string]*string)
	}
	kv.data[key] = nil
	return kv
}

// Len returns the number of live (non-tombstone) keys.
func (kv *KVOverWrite) Len() int {
	n := 0
	for _, v := range kv.data {
		if v != nil {
			n++
		}
	}
	return n
}

// Keys returns the live keys in unspecified order.
func (kv *KVOverWrite) Keys() []string {
	keys := make([]string, 0, len(kv.data))
	for k, v := range kv.data {
		if v != nil {
			keys = append(keys, k)
		}
	}
	return keys
}

// Entries returns a copy of the underlying map, tombstones included as nil.
func (kv *KVOverWrite) Entries() map[string]*string {
	out := make(map[string]*string, len(kv.data))
	maps.Copy(out, kv.data)
	return out
}

// HasTombstone reports whether key carries a tombstone.
func (kv *KVOverWrite) HasTombstone(key string) bool {
	v, ok := kv.data[key]
	return ok && v == nil
}

// Merge returns a new KVOverWrite with other applied on top of the receiver.
// For every key present in other, other's entry wins, tombstones included.
// Keys only in the receiver are kept.
func (kv *KVOverWrite) Merge(other *KVOverWrite) *KVOverWrite {
	merged := make(map[string]*string, len(kv.data)+len(other.data))
	maps.Copy(merged, kv.data)
	maps.Copy(merged, other.data)
	return &KVOverWrite{data: merged}
}

type kvOverWriteJSON struct {
	Data map[string]*string `json:"data"`
}

// MarshalJSON produces the canonical serialization. encoding/json writes map
// keys in sorted order, so equal logical content yields equal bytes.
func (kv *KVOverWrite) MarshalJSON() ([]byte, error) {
	data := kv.data
	if data == nil {
		data = map[string]*string{}
	}
	return json.Marshal(kvOverWriteJSON{Data: data})
}

// UnmarshalJSON restores a serialized KVOverWrite, tombstones included.
func (kv *KVOverWrite) UnmarshalJSON(b []byte) error {
	var raw kvOverWriteJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return errs.Wrap(errs.CodeSerialization, "decoding KVOverWrite", err)
	}
	kv.data = raw.Data
	if kv.data == nil {
		kv.data = make(map[string]*string)
	}
	return nil
}
