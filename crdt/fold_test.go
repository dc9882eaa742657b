package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEmptyPayload(t *testing.T) {
	kv, err := Decode[KVOverWrite]("")
	require.NoError(t, err)
	assert.Equal(t, 0, kv.Len())
}

func TestDecodeInvalidPayload(t *testing.T) {
	_, err := Decode[KVOverWrite]("{broken")
	require.Error(t, err)
}

func TestFoldAppliesLastWriterWins(t *testing.T) {
	first := mustJSON(t, NewKVOverWrite().Set("theme", "dark").Set("lang", "en"))
	second := mustJSON(t, NewKVOverWrite().Set("theme", "light"))

	kv, err := Fold[KVOverWrite]([]string{first, second})
	require.NoError(t, err)

	v, _ := kv.Get("theme")
	assert.Equal(t, "light", v, "the later payload wins")
	v, _ = kv.Get("lang")
	assert.Equal(t, "en", v)
}

func TestFoldSkipsEmptyPayloads(t *testing.T) {
	payload := mustJSON(t, NewKVOverWrite().Set("k", "v"))

	kv, err := Fold[KVOverWrite]([]string{"", payload, ""})
	require.NoError(t, err)

	v, _ := kv.Get("k")
	assert.Equal(t, "v", v)
}

func TestFoldEmptyInputYieldsEmptyValue(t *testing.T) {
	kv, err := Fold[KVOverWrite](nil)
	require.NoError(t, err)
	assert.Equal(t, 0, kv.Len())
}

func TestFoldNested(t *testing.T) {
	a := NewKVNested()
	require.NoError(t, a.SetStringPath([]string{"user", "name"}, "alice"))
	b := NewKVNested()
	require.NoError(t, b.SetStringPath([]string{"user", "email"}, "a@b"))

	kv, err := Fold[KVNested]([]string{mustJSON(t, a), mustJSON(t, b)})
	require.NoError(t, err)

	name, err := kv.GetStringPath([]string{"user", "name"})
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	email, err := kv.GetStringPath([]string{"user", "email"})
	require.NoError(t, err)
	assert.Equal(t, "a@b", email)
}
