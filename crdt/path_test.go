package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdb/loom/errs"
)

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"user", "profile", "email"}, SplitPath("user/profile/email"))
	assert.Equal(t, []string{"single"}, SplitPath("single"))
}

func TestSetPathCreatesIntermediateMaps(t *testing.T) {
	kv := NewKVNested()
	require.NoError(t, kv.SetStringPath([]string{"user", "profile", "email"}, "x@y"))

	s, err := kv.GetStringPath([]string{"user", "profile", "email"})
	require.NoError(t, err)
	assert.Equal(t, "x@y", s)

	// The intermediate levels exist as maps
	user := mustGet(t, kv, "user").(*KVNested)
	_, ok := user.Get("profile")
	assert.True(t, ok)
}

func TestSetPathReplacesStringIntermediate(t *testing.T) {
	kv := NewKVNested()
	kv.SetString("user", "plain")

	require.NoError(t, kv.SetStringPath([]string{"user", "name"}, "alice"))

	s, err := kv.GetStringPath([]string{"user", "name"})
	require.NoError(t, err)
	assert.Equal(t, "alice", s)
}

func TestGetPathMissing(t *testing.T) {
	kv := NewKVNested()
	require.NoError(t, kv.SetStringPath([]string{"a", "b"}, "v"))

	_, err := kv.GetPath([]string{"a", "missing"})
	assert.True(t, errs.IsNotFound(err))

	// A path whose parent is absent reports NOT_FOUND too
	_, err = kv.GetPath([]string{"nope", "child"})
	assert.True(t, errs.IsNotFound(err))

	// Descending through a string leaf reports NOT_FOUND
	_, err = kv.GetPath([]string{"a", "b", "deeper"})
	assert.True(t, errs.IsNotFound(err))
}

func TestDeletePath(t *testing.T) {
	kv := NewKVNested()
	require.NoError(t, kv.SetStringPath([]string{"user", "profile", "email"}, "x@y"))
	require.NoError(t, kv.DeletePath([]string{"user", "profile", "email"}))

	_, err := kv.GetPath([]string{"user", "profile", "email"})
	assert.True(t, errs.IsNotFound(err))

	// The tombstone is present in the nested map
	user := mustGet(t, kv, "user").(*KVNested)
	profile := mustGet(t, user, "profile").(*KVNested)
	assert.True(t, profile.HasTombstone("email"))
}

func TestDeletePathCreatesTombstoneForAbsentKey(t *testing.T) {
	kv := NewKVNested()
	require.NoError(t, kv.DeletePath([]string{"user", "gone"}))

	user := mustGet(t, kv, "user").(*KVNested)
	assert.True(t, user.HasTombstone("gone"), "the deletion must propagate on merge")
}

func TestEmptyPath(t *testing.T) {
	kv := NewKVNested()
	_, err := kv.GetPath(nil)
	assert.True(t, errs.IsInvalidOperation(err))
	assert.True(t, errs.IsInvalidOperation(kv.SetStringPath(nil, "v")))
}
