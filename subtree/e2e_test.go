package subtree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/backend/memory"
	"github.com/loomdb/loom/crdt"
	"github.com/loomdb/loom/errs"
	"github.com/loomdb/loom/subtree"
)

type todo struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

func newTree(t *testing.T, name string) (*loom.Database, *loom.Tree) {
	t.Helper()
	db := loom.New(memory.New())
	settings := crdt.NewKVNested()
	settings.SetString(loom.NameKey, name)
	tree, err := db.NewTree(settings)
	require.NoError(t, err)
	return db, tree
}

func commit(t *testing.T, op *loom.Operation) string {
	t.Helper()
	id, err := op.Commit()
	require.NoError(t, err)
	return id
}

func TestRowStoreInsertAndView(t *testing.T) {
	_, tree := newTree(t, "t")

	op1, err := tree.NewOperation()
	require.NoError(t, err)
	rows1, err := subtree.NewRowStore[todo](op1, "todos")
	require.NoError(t, err)
	idA, err := rows1.Insert(todo{Title: "a"})
	require.NoError(t, err)
	entry1 := commit(t, op1)

	op2, err := tree.NewOperation()
	require.NoError(t, err)
	rows2, err := subtree.NewRowStore[todo](op2, "todos")
	require.NoError(t, err)
	idB, err := rows2.Insert(todo{Title: "b"})
	require.NoError(t, err)
	entry2 := commit(t, op2)

	assert.NotEqual(t, entry1, entry2)
	assert.NotEqual(t, idA, idB)

	viewer, err := subtree.NewRowViewer[todo](tree, "todos")
	require.NoError(t, err)
	all, err := viewer.Search(func(todo) bool { return true })
	require.NoError(t, err)
	require.Len(t, all, 2)

	titles := map[string]string{}
	for _, row := range all {
		titles[row.ID] = row.Value.Title
	}
	assert.Equal(t, "a", titles[idA])
	assert.Equal(t, "b", titles[idB])
}

func TestRowStoreUpdateKeepsIdentity(t *testing.T) {
	_, tree := newTree(t, "t")

	op1, err := tree.NewOperation()
	require.NoError(t, err)
	rows1, err := subtree.NewRowStore[todo](op1, "todos")
	require.NoError(t, err)
	idA, err := rows1.Insert(todo{Title: "a"})
	require.NoError(t, err)
	idB, err := rows1.Insert(todo{Title: "b"})
	require.NoError(t, err)
	commit(t, op1)

	op2, err := tree.NewOperation()
	require.NoError(t, err)
	rows2, err := subtree.NewRowStore[todo](op2, "todos")
	require.NoError(t, err)
	got, err := rows2.Get(idA)
	require.NoError(t, err)
	got.Completed = true
	require.NoError(t, rows2.Set(idA, got))
	commit(t, op2)

	viewer, err := subtree.NewRowViewer[todo](tree, "todos")
	require.NoError(t, err)

	updated, err := viewer.Get(idA)
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "a", updated.Title)

	untouched, err := viewer.Get(idB)
	require.NoError(t, err)
	assert.False(t, untouched.Completed, "the other record is unchanged")
}

func TestRowStoreDistinctIDsForEqualRecords(t *testing.T) {
	_, tree := newTree(t, "t")

	op, err := tree.NewOperation()
	require.NoError(t, err)
	rows, err := subtree.NewRowStore[todo](op, "todos")
	require.NoError(t, err)

	id1, err := rows.Insert(todo{Title: "same"})
	require.NoError(t, err)
	id2, err := rows.Insert(todo{Title: "same"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2, "equal records still get distinct identities")
}

func TestRowStoreRemove(t *testing.T) {
	_, tree := newTree(t, "t")

	op1, err := tree.NewOperation()
	require.NoError(t, err)
	rows1, err := subtree.NewRowStore[todo](op1, "todos")
	require.NoError(t, err)
	id, err := rows1.Insert(todo{Title: "doomed"})
	require.NoError(t, err)
	commit(t, op1)

	op2, err := tree.NewOperation()
	require.NoError(t, err)
	rows2, err := subtree.NewRowStore[todo](op2, "todos")
	require.NoError(t, err)
	require.NoError(t, rows2.Remove(id))
	commit(t, op2)

	viewer, err := subtree.NewRowViewer[todo](tree, "todos")
	require.NoError(t, err)
	_, err = viewer.Get(id)
	assert.True(t, errs.IsNotFound(err))

	all, err := viewer.Search(func(todo) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSettingsThroughKVStore(t *testing.T) {
	_, tree := newTree(t, "initial")

	op, err := tree.NewOperation()
	require.NoError(t, err)
	settings, err := subtree.NewKVStore(op, loom.SettingsSubtree)
	require.NoError(t, err)
	require.NoError(t, settings.Set("name", "T"))
	commit(t, op)

	name, err := tree.Name()
	require.NoError(t, err)
	assert.Equal(t, "T", name)
}

func TestLastWriterWinsAcrossConcurrentOperations(t *testing.T) {
	_, tree := newTree(t, "t")

	// Both operations pin the same tips before either commits
	opA, err := tree.NewOperation()
	require.NoError(t, err)
	opB, err := tree.NewOperation()
	require.NoError(t, err)

	cfgA, err := subtree.NewKVStore(opA, "config")
	require.NoError(t, err)
	cfgB, err := subtree.NewKVStore(opB, "config")
	require.NoError(t, err)

	require.NoError(t, cfgA.Set("theme", "dark"))
	require.NoError(t, cfgB.Set("theme", "light"))

	idA := commit(t, opA)

	tips, err := tree.GetTips()
	require.NoError(t, err)
	assert.Len(t, tips, 1, "one tip after A commits")

	idB := commit(t, opB)

	tips, err = tree.GetTips()
	require.NoError(t, err)
	assert.Len(t, tips, 2, "A and B are siblings")

	viewer, err := subtree.NewKVViewer(tree, "config")
	require.NoError(t, err)
	theme, err := viewer.GetString("theme")
	require.NoError(t, err)

	// Siblings share a height, so the merge fold orders them by ID: the
	// lexicographically larger sibling is the topologically later writer.
	expected := "light"
	if idA > idB {
		expected = "dark"
	}
	assert.Equal(t, expected, theme)
}

func TestNestedPathDeleteLeavesTombstone(t *testing.T) {
	_, tree := newTree(t, "t")

	op1, err := tree.NewOperation()
	require.NoError(t, err)
	cfg1, err := subtree.NewKVStore(op1, "config")
	require.NoError(t, err)
	require.NoError(t, cfg1.SetPath([]string{"user", "profile", "email"}, "x@y"))
	commit(t, op1)

	op2, err := tree.NewOperation()
	require.NoError(t, err)
	cfg2, err := subtree.NewKVStore(op2, "config")
	require.NoError(t, err)
	require.NoError(t, cfg2.DeletePath([]string{"user", "profile", "email"}))
	commit(t, op2)

	viewer, err := subtree.NewKVViewer(tree, "config")
	require.NoError(t, err)
	_, err = viewer.GetPath([]string{"user", "profile", "email"})
	assert.True(t, errs.IsNotFound(err))

	// The key survives as a tombstone in the merged canonical state
	all, err := viewer.GetAll()
	require.NoError(t, err)
	user := mustMap(t, all, "user")
	profile := mustMap(t, user, "profile")
	assert.True(t, profile.HasTombstone("email"))
}

func TestTouchedSubtreeStrippedOnCommit(t *testing.T) {
	db, tree := newTree(t, "t")

	op1, err := tree.NewOperation()
	require.NoError(t, err)
	rows, err := subtree.NewRowStore[todo](op1, "todos")
	require.NoError(t, err)
	_, err = rows.Insert(todo{Title: "existing"})
	require.NoError(t, err)
	commit(t, op1)

	op2, err := tree.NewOperation()
	require.NoError(t, err)
	_, err = subtree.NewRowStore[todo](op2, "todos") // touched, never mutated
	require.NoError(t, err)
	cfg, err := subtree.NewKVStore(op2, "config")
	require.NoError(t, err)
	require.NoError(t, cfg.Set("k", "v"))
	id := commit(t, op2)

	committed, err := db.Backend().Get(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"config"}, committed.Subtrees(), "todos was stripped")
}

func TestViewerIsASnapshot(t *testing.T) {
	_, tree := newTree(t, "t")

	op1, err := tree.NewOperation()
	require.NoError(t, err)
	cfg1, err := subtree.NewKVStore(op1, "config")
	require.NoError(t, err)
	require.NoError(t, cfg1.Set("k", "before"))
	commit(t, op1)

	viewer, err := subtree.NewKVViewer(tree, "config")
	require.NoError(t, err)

	op2, err := tree.NewOperation()
	require.NoError(t, err)
	cfg2, err := subtree.NewKVStore(op2, "config")
	require.NoError(t, err)
	require.NoError(t, cfg2.Set("k", "after"))
	commit(t, op2)

	v, err := viewer.GetString("k")
	require.NoError(t, err)
	assert.Equal(t, "before", v, "a viewer reads the tips pinned at construction")
}

func TestReadsSeeStagedWrites(t *testing.T) {
	_, tree := newTree(t, "t")

	op, err := tree.NewOperation()
	require.NoError(t, err)
	cfg, err := subtree.NewKVStore(op, "config")
	require.NoError(t, err)

	_, err = cfg.GetString("k")
	assert.True(t, errs.IsNotFound(err))

	require.NoError(t, cfg.Set("k", "staged"))
	v, err := cfg.GetString("k")
	require.NoError(t, err)
	assert.Equal(t, "staged", v, "uncommitted staged writes are visible through the handle")
}

func mustMap(t *testing.T, kv *crdt.KVNested, key string) *crdt.KVNested {
	t.Helper()
	v, ok := kv.Get(key)
	require.True(t, ok)
	m, ok := v.(*crdt.KVNested)
	require.True(t, ok)
	return m
}
