// Package subtree provides the typed handles through which application code
// reads and writes one named subtree inside an atomic operation.
//
// A handle is not itself a CRDT; it bridges an operation to a CRDT type.
// Reads fold the subtree's pinned history in backend topological order and
// apply the operation's staged data on top, so code sees the state a commit
// would produce. Writes re-serialize the full staged value back into the
// operation. Handles borrow from their operation and must not outlive it.
//
// Viewers are handles bound to an operation that is never committed: a
// read-only snapshot of the tips current at construction.
package subtree

import (
	"github.com/loomdb/loom"
	"github.com/loomdb/loom/crdt"
)

// Handle is the contract shared by all subtree handles: constructible from
// an operation and a name, and able to report the name.
type Handle interface {
	// Name returns the subtree name this handle is bound to.
	Name() string
}

// state returns the merged view a handle reads: the full historical fold up
// to the operation's pinned tips, with the staged payload applied on top.
func state[T any, PT crdt.Ptr[T, PT]](op *loom.Operation, name string) (PT, error) {
	payloads, err := op.HistoryPayloads(name)
	if err != nil {
		var zero PT
		return zero, err
	}
	if staged, ok := op.Staged(name); ok {
		payloads = append(payloads, staged)
	}
	return crdt.Fold[T, PT](payloads)
}

// staged returns only the payload staged in this operation, without
// historical context.
func staged[T any, PT crdt.Ptr[T, PT]](op *loom.Operation, name string) (PT, error) {
	payload, _ := op.Staged(name)
	return crdt.Decode[T, PT](payload)
}
