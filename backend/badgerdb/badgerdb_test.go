package badgerdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdb/loom/entry"
	"github.com/loomdb/loom/errs"
)

func openTest(t *testing.T) *Backend {
	t.Helper()
	be, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { be.Close() })
	return be
}

func buildRoot(t *testing.T, name string) *entry.Entry {
	t.Helper()
	b := entry.NewBuilder("")
	b.SetSubtreeData("_settings", "{\"data\":{\"name\":{\"String\":\""+name+"\"}}}")
	return b.Build()
}

func buildChild(t *testing.T, root entry.ID, data string, parents ...entry.ID) *entry.Entry {
	t.Helper()
	b := entry.NewBuilder(root)
	b.SetData(data)
	b.SetParents(parents)
	return b.Build()
}

func TestPutGetRoundTrip(t *testing.T) {
	be := openTest(t)
	root := buildRoot(t, "rt")

	require.NoError(t, be.Put(root))

	got, err := be.Get(root.ID())
	require.NoError(t, err)
	assert.Equal(t, root.ID(), got.ID())
	assert.Equal(t, root.CanonicalBytes(), got.CanonicalBytes())
}

func TestGetMissing(t *testing.T) {
	be := openTest(t)
	_, err := be.Get("no-such-id")
	assert.True(t, errs.IsNotFound(err))
}

func TestTipsAndTree(t *testing.T) {
	be := openTest(t)
	root := buildRoot(t, "graph")
	e1 := buildChild(t, root.ID(), "{\"v\":1}", root.ID())
	e2 := buildChild(t, root.ID(), "{\"v\":2}", e1.ID())

	require.NoError(t, be.Put(root))
	require.NoError(t, be.Put(e1))
	require.NoError(t, be.Put(e2))

	tips, err := be.GetTips(root.ID())
	require.NoError(t, err)
	assert.Equal(t, []entry.ID{e2.ID()}, tips)

	entries, err := be.GetTree(root.ID())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, root.ID(), entries[0].ID())
	assert.Equal(t, e1.ID(), entries[1].ID())
	assert.Equal(t, e2.ID(), entries[2].ID())
}

func TestAllRoots(t *testing.T) {
	be := openTest(t)
	r1 := buildRoot(t, "one")
	r2 := buildRoot(t, "two")
	child := buildChild(t, r1.ID(), "{}", r1.ID())

	require.NoError(t, be.Put(r1))
	require.NoError(t, be.Put(r2))
	require.NoError(t, be.Put(child))

	roots, err := be.AllRoots()
	require.NoError(t, err)
	assert.ElementsMatch(t, []entry.ID{r1.ID(), r2.ID()}, roots)
}

func TestSubtreeQueries(t *testing.T) {
	be := openTest(t)
	root := buildRoot(t, "subtrees")

	b := entry.NewBuilder(root.ID())
	b.SetParents([]entry.ID{root.ID()})
	b.SetSubtreeData("things", "{\"data\":{\"k\":null}}")
	e1 := b.Build()

	require.NoError(t, be.Put(root))
	require.NoError(t, be.Put(e1))

	tips, err := be.GetSubtreeTips(root.ID(), "things")
	require.NoError(t, err)
	assert.Equal(t, []entry.ID{e1.ID()}, tips)

	entries, err := be.GetSubtree(root.ID(), "things")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e1.ID(), entries[0].ID())
}
