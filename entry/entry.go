// Package entry defines the fundamental unit of history: an immutable,
// content-addressed Entry forming a Merkle-DAG.
//
// An Entry carries a snapshot of data for the main tree and for any number of
// named subtrees. Its ID is the hex SHA-256 of its canonical serialization,
// so two independently constructed Entries with identical logical content
// hash to the same ID. Construction goes through a Builder; finalized
// Entries expose no mutation.
package entry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"

	"github.com/loomdb/loom/canonical"
	"github.com/loomdb/loom/errs"
)

// ID is a content-addressable identifier: the hex-encoded SHA-256 of an
// Entry's canonical bytes.
type ID = string

// treeNode is the main-tree portion of an Entry.
type treeNode struct {
	// Root is the ID of the tree's root Entry. Empty for a top-level root.
	Root ID
	// Parents holds the parent Entry IDs in the main tree history, sorted.
	Parents []ID
	// Data is the serialized main-tree payload, opaque to this package.
	Data string
	// Metadata is an optional serialized side channel. It is part of the
	// canonical bytes but is never an input to merge logic.
	Metadata string
}

// subTreeNode is one named subtree's portion of an Entry.
type subTreeNode struct {
	// Name of the subtree, analogous to a table name.
	Name string
	// Parents holds the parent Entry IDs within this subtree's history, sorted.
	Parents []ID
	// Data is the serialized subtree payload.
	Data string
}

// Entry is the immutable unit of data. Parent lists are sorted, the subtree
// list is sorted by name with unique names, and the ID is fixed at build
// time. Use a Builder to construct one.
type Entry struct {
	tree     treeNode
	subtrees []subTreeNode

	id        ID
	canonical []byte
}

// ID returns the content-addressable identifier of the entry.
func (e *Entry) ID() ID {
	return e.id
}

// Root returns the ID of the root Entry of the tree this entry belongs to.
// Empty for a top-level root entry.
func (e *Entry) Root() ID {
	return e.tree.Root
}

// IsRoot reports whether this entry is a top-level tree root.
func (e *Entry) IsRoot() bool {
	return e.tree.Root == ""
}

// InTree reports whether this entry belongs to the tree identified by the
// given root ID. A root entry belongs to the tree it starts.
func (e *Entry) InTree(tree ID) bool {
	return e.tree.Root == tree || (e.IsRoot() && e.id == tree)
}

// Parents returns the parent Entry IDs in the main tree history, sorted.
func (e *Entry) Parents() []ID {
	return slices.Clone(e.tree.Parents)
}

// Data returns the serialized main-tree payload.
func (e *Entry) Data() string {
	return e.tree.Data
}

// Metadata returns the serialized metadata side channel, or "" if absent.
func (e *Entry) Metadata() string {
	return e.tree.Metadata
}

// Subtrees returns the names of all subtrees this entry carries data for,
// in sorted order.
func (e *Entry) Subtrees() []string {
	names := make([]string, len(e.subtrees))
	for i, st := range e.subtrees {
		names[i] = st.Name
	}
	return names
}

// InSubtree reports whether this entry carries data for the named subtree.
func (e *Entry) InSubtree(name string) bool {
	_, ok := e.subtree(name)
	return ok
}

// SubtreeData returns the serialized payload of the named subtree.
func (e *Entry) SubtreeData(name string) (string, error) {
	st, ok := e.subtree(name)
	if !ok {
		return "", errs.Newf(errs.CodeNotFound, "subtree %q not found in entry %s", name, e.id)
	}
	return st.Data, nil
}

// SubtreeParents returns the parent Entry IDs within the named subtree's
// history, sorted.
func (e *Entry) SubtreeParents(name string) ([]ID, error) {
	st, ok := e.subtree(name)
	if !ok {
		return nil, errs.Newf(errs.CodeNotFound, "subtree %q not found in entry %s", name, e.id)
	}
	return slices.Clone(st.Parents), nil
}

func (e *Entry) subtree(name string) (*subTreeNode, bool) {
	i, ok := slices.BinarySearchFunc(e.subtrees, name, func(st subTreeNode, n string) int {
		return strings.Compare(st.Name, n)
	})
	if !ok {
		return nil, false
	}
	return &e.subtrees[i], true
}

// CanonicalBytes returns the canonical serialization the ID was derived from.
func (e *Entry) CanonicalBytes() []byte {
	return slices.Clone(e.canonical)
}

// Equal reports observational equality. Two entries with the same ID carry
// the same canonical bytes.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.id == other.id
}

// marshalCanonical produces the canonical serialization: a JSON object with
// fixed field order, parents sorted byte-lexicographic, subtrees sorted by
// name. Metadata is omitted when empty. The ID is not part of the output.
func marshalCanonical(tree treeNode, subtrees []subTreeNode) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, `{"tree":{"root":`...)
	buf = canonical.AppendString(buf, tree.Root)
	buf = append(buf, `,"parents":`...)
	buf = canonical.AppendStrings(buf, tree.Parents)
	buf = append(buf, `,"data":`...)
	buf = canonical.AppendString(buf, tree.Data)
	if tree.Metadata != "" {
		buf = append(buf, `,"metadata":`...)
		buf = canonical.AppendString(buf, tree.Metadata)
	}
	buf = append(buf, `},"subtrees":[`...)
	for i, st := range subtrees {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, `{"name":`...)
		buf = canonical.AppendString(buf, st.Name)
		buf = append(buf, `,"parents":`...)
		buf = canonical.AppendStrings(buf, st.Parents)
		buf = append(buf, `,"data":`...)
		buf = canonical.AppendString(buf, st.Data)
		buf = append(buf, '}')
	}
	buf = append(buf, `]}`...)
	return buf
}

// deriveID hashes canonical bytes into an ID.
func deriveID(canonicalBytes []byte) ID {
	sum := sha256.Sum256(canonicalBytes)
	return hex.EncodeToString(sum[:])
}

// entryJSON mirrors the canonical field layout for decoding.
type entryJSON struct {
	Tree struct {
		Root     ID     `json:"root"`
		Parents  []ID   `json:"parents"`
		Data     string `json:"data"`
		Metadata string `json:"metadata,omitempty"`
	} `json:"tree"`
	Subtrees []struct {
		Name    string `json:"name"`
		Parents []ID   `json:"parents"`
		Data    string `json:"data"`
	} `json:"subtrees"`
}

// MarshalJSON emits the canonical bytes, so persisted entries reproduce
// their ID on reload.
func (e *Entry) MarshalJSON() ([]byte, error) {
	return slices.Clone(e.canonical), nil
}

// UnmarshalJSON decodes a persisted entry and re-derives its ID from the
// canonical form. Orderable fields are re-sorted, so a hand-edited file
// cannot smuggle in an unsorted entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errs.Wrap(errs.CodeSerialization, "decoding entry", err)
	}

	b := NewBuilder(raw.Tree.Root)
	b.SetData(raw.Tree.Data)
	b.SetParents(raw.Tree.Parents)
	b.SetMetadata(raw.Tree.Metadata)
	for _, st := range raw.Subtrees {
		b.setSubtree(st.Name, st.Data, st.Parents)
	}
	// A persisted entry must round-trip its ID, so empty-data subtrees are
	// kept rather than stripped.
	built := b.build(false)
	*e = *built
	return nil
}
