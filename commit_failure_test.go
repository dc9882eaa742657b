package loom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/backend/memory"
	"github.com/loomdb/loom/crdt"
	"github.com/loomdb/loom/entry"
	"github.com/loomdb/loom/errs"
)

// faultyBackend delegates to a memory backend but fails Put on demand.
type faultyBackend struct {
	*memory.Backend
	failPuts bool
}

func (f *faultyBackend) Put(e *entry.Entry) error {
	if f.failPuts {
		return errs.New(errs.CodeIO, "disk full")
	}
	return f.Backend.Put(e)
}

func TestCommitFailureLeavesTreeUnchanged(t *testing.T) {
	be := &faultyBackend{Backend: memory.New()}
	db := loom.New(be)

	settings := crdt.NewKVNested()
	settings.SetString(loom.NameKey, "atomic")
	tree, err := db.NewTree(settings)
	require.NoError(t, err)

	tipsBefore, err := tree.GetTips()
	require.NoError(t, err)
	sizeBefore := be.Len()

	op, err := tree.NewOperation()
	require.NoError(t, err)
	require.NoError(t, op.Stage("stuff", "{\"data\":{\"k\":\"v\"}}"))

	be.failPuts = true
	_, err = op.Commit()
	require.Error(t, err)
	assert.True(t, errs.IsIO(err))
	be.failPuts = false

	tipsAfter, err := tree.GetTips()
	require.NoError(t, err)
	assert.Equal(t, tipsBefore, tipsAfter, "a failed commit must not move the tips")
	assert.Equal(t, sizeBefore, be.Len(), "no partial entry is ever persisted")

	// The operation is spent even though the commit failed
	_, err = op.Commit()
	assert.True(t, errs.IsInvalidOperation(err))
}
