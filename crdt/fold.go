package crdt

import (
	"github.com/loomdb/loom/errs"
)

// Ptr constrains PT to be *T implementing the decodable CRDT contract.
// It lets fold helpers allocate fresh values generically.
type Ptr[T any, PT any] interface {
	Decodable[PT]
	*T
}

// Decode deserializes one payload into a fresh value. An empty payload
// yields the empty value.
func Decode[T any, PT Ptr[T, PT]](payload string) (PT, error) {
	value := PT(new(T))
	if payload == "" {
		return value, nil
	}
	if err := value.UnmarshalJSON([]byte(payload)); err != nil {
		var zero PT
		return zero, errs.Wrap(errs.CodeSerialization, "decoding CRDT payload", err)
	}
	return value, nil
}

// Fold merges serialized payloads left to right onto the empty value. The
// caller supplies payloads in backend topological order, which fixes "last
// writer" for the overwrite-family CRDTs.
func Fold[T any, PT Ptr[T, PT]](payloads []string) (PT, error) {
	acc := PT(new(T))
	for _, payload := range payloads {
		if payload == "" {
			continue
		}
		next, err := Decode[T, PT](payload)
		if err != nil {
			var zero PT
			return zero, err
		}
		acc = acc.Merge(next)
	}
	return acc, nil
}
