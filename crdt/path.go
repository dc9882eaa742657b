package crdt

import (
	"strings"

	"github.com/loomdb/loom/errs"
)

// Path editing over KVNested. A path is a sequence of keys descending
// through nested maps; SplitPath turns "user/profile/email" into one.

// SplitPath splits a slash-separated path into its keys.
func SplitPath(path string) []string {
	return strings.Split(path, "/")
}

// GetPath descends the path and returns the value at its end. Returns a
// NOT_FOUND error when any step is absent or deleted.
func (kv *KVNested) GetPath(path []string) (Value, error) {
	if len(path) == 0 {
		return nil, errs.New(errs.CodeInvalidOperation, "empty path")
	}
	current := kv
	for i, key := range path {
		v, ok := current.Get(key)
		if !ok {
			return nil, errs.NotFound("path " + strings.Join(path[:i+1], "/"))
		}
		if i == len(path)-1 {
			return v, nil
		}
		m, ok := v.(*KVNested)
		if !ok {
			return nil, errs.NotFound("path " + strings.Join(path[:i+1], "/"))
		}
		current = m
	}
	return nil, errs.NotFound("path " + strings.Join(path, "/"))
}

// GetStringPath returns the string at the end of the path. A nested map at
// the final key yields an INVALID_OPERATION error.
func (kv *KVNested) GetStringPath(path []string) (string, error) {
	v, err := kv.GetPath(path)
	if err != nil {
		return "", err
	}
	s, ok := v.(String)
	if !ok {
		return "", errs.Newf(errs.CodeInvalidOperation,
			"path %q holds a nested map, not a string", strings.Join(path, "/"))
	}
	return string(s), nil
}

// SetPath stores a value at the end of the path, creating intermediate maps
// as needed. A string or tombstone on an intermediate step is replaced by a
// fresh map.
func (kv *KVNested) SetPath(path []string, value Value) error {
	if len(path) == 0 {
		return errs.New(errs.CodeInvalidOperation, "empty path")
	}
	current := kv
	for _, key := range path[:len(path)-1] {
		if current.data == nil {
			current.data = make(map[string]Value)
		}
		next, ok := current.data[key].(*KVNested)
		if !ok {
			next = NewKVNested()
			current.data[key] = next
		}
		current = next
	}
	current.Set(path[len(path)-1], value)
	return nil
}

// SetStringPath stores a string at the end of the path.
func (kv *KVNested) SetStringPath(path []string, value string) error {
	return kv.SetPath(path, String(value))
}

// DeletePath writes a tombstone at the end of the path, creating
// intermediate maps as needed so the deletion propagates even when the path
// was never set locally.
func (kv *KVNested) DeletePath(path []string) error {
	return kv.SetPath(path, Deleted{})
}
