// Package crdt implements the merge semantics that turn a Merkle-DAG of
// entries into a deterministic database.
//
// Every CRDT here provides a Merge that is commutative, associative and
// idempotent over the set of values a tree produces when its history is
// folded in backend topological order, a canonical serialization that is
// stable for equal logical content, and a distinguished empty value.
//
// "Last writer wins" means: when folding ancestors in topological order
// (height ascending, ID ascending), the operand passed as other at merge
// time overrides the accumulated state.
package crdt

// CRDT is the contract the operation layer folds over. Merge combines the
// receiver (the older value) with other (the newer value) into a new value;
// it never fails on well-typed inputs.
type CRDT[T any] interface {
	// Merge returns the receiver with other applied on top of it.
	Merge(other T) T
}

// Decodable pairs the CRDT contract with JSON decoding, so generic fold
// helpers can deserialize ancestor payloads into fresh values.
type Decodable[T any] interface {
	CRDT[T]
	// UnmarshalJSON restores a serialized value.
	UnmarshalJSON(data []byte) error
}
