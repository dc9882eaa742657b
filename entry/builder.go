package entry

import (
	"slices"
	"strings"

	"github.com/loomdb/loom/errs"
)

// Builder accumulates the fields of an Entry and finalizes them into an
// immutable value. Finalization sorts every orderable field, strips subtrees
// whose data is empty, computes the canonical bytes and derives the ID.
// A Builder is not safe for concurrent use.
type Builder struct {
	tree     treeNode
	subtrees []subTreeNode
}

// NewBuilder creates a Builder for an entry belonging to the tree with the
// given root ID. Pass an empty root to build a top-level tree root entry.
func NewBuilder(root ID) *Builder {
	return &Builder{tree: treeNode{Root: root}}
}

// SetRoot sets the tree root ID.
func (b *Builder) SetRoot(root ID) *Builder {
	b.tree.Root = root
	return b
}

// Root returns the tree root ID currently staged.
func (b *Builder) Root() ID {
	return b.tree.Root
}

// SetData sets the serialized main-tree payload.
func (b *Builder) SetData(data string) *Builder {
	b.tree.Data = data
	return b
}

// SetMetadata sets the serialized metadata side channel. Metadata
// participates in the canonical bytes but never in merge logic.
func (b *Builder) SetMetadata(metadata string) *Builder {
	b.tree.Metadata = metadata
	return b
}

// SetParents sets the main-tree parent IDs. The list is sorted at build time.
func (b *Builder) SetParents(parents []ID) *Builder {
	b.tree.Parents = slices.Clone(parents)
	return b
}

// Parents returns the staged main-tree parent IDs.
func (b *Builder) Parents() []ID {
	return slices.Clone(b.tree.Parents)
}

// AddSubtree adds data for a named subtree. Returns an ALREADY_EXISTS error
// if the builder already stages that subtree.
func (b *Builder) AddSubtree(name, data string) error {
	if b.hasSubtree(name) {
		return errs.Newf(errs.CodeAlreadyExists, "subtree %q already staged", name)
	}
	b.setSubtree(name, data, nil)
	return nil
}

// SetSubtreeData stages data for a named subtree, creating it if absent.
func (b *Builder) SetSubtreeData(name, data string) *Builder {
	if st := b.findSubtree(name); st != nil {
		st.Data = data
		return b
	}
	b.setSubtree(name, data, nil)
	return b
}

// SetSubtreeParents sets the parent IDs for a named subtree's history.
// No effect if the subtree is not staged.
func (b *Builder) SetSubtreeParents(name string, parents []ID) *Builder {
	if st := b.findSubtree(name); st != nil {
		st.Parents = slices.Clone(parents)
	}
	return b
}

// Subtrees returns the names of all staged subtrees.
func (b *Builder) Subtrees() []string {
	names := make([]string, len(b.subtrees))
	for i, st := range b.subtrees {
		names[i] = st.Name
	}
	return names
}

// HasSubtree reports whether the named subtree is staged.
func (b *Builder) HasSubtree(name string) bool {
	return b.hasSubtree(name)
}

// SubtreeData returns the staged data for a named subtree.
func (b *Builder) SubtreeData(name string) (string, bool) {
	if st := b.findSubtree(name); st != nil {
		return st.Data, true
	}
	return "", false
}

// SubtreeParents returns the staged parent IDs for a named subtree.
func (b *Builder) SubtreeParents(name string) []ID {
	if st := b.findSubtree(name); st != nil {
		return slices.Clone(st.Parents)
	}
	return nil
}

func (b *Builder) hasSubtree(name string) bool {
	return b.findSubtree(name) != nil
}

func (b *Builder) findSubtree(name string) *subTreeNode {
	for i := range b.subtrees {
		if b.subtrees[i].Name == name {
			return &b.subtrees[i]
		}
	}
	return nil
}

// setSubtree upserts a staged subtree record.
func (b *Builder) setSubtree(name, data string, parents []ID) {
	if st := b.findSubtree(name); st != nil {
		st.Data = data
		if parents != nil {
			st.Parents = slices.Clone(parents)
		}
		return
	}
	b.subtrees = append(b.subtrees, subTreeNode{
		Name:    name,
		Data:    data,
		Parents: slices.Clone(parents),
	})
}

// Build finalizes the staged fields into an immutable Entry. Subtrees whose
// data is empty are stripped: an opened-but-untouched subtree never reaches
// the committed entry.
func (b *Builder) Build() *Entry {
	return b.build(true)
}

// build sorts and seals. stripEmpty is false only when reconstructing a
// persisted entry, which must round-trip byte for byte.
func (b *Builder) build(stripEmpty bool) *Entry {
	tree := treeNode{
		Root:     b.tree.Root,
		Parents:  sortedIDs(b.tree.Parents),
		Data:     b.tree.Data,
		Metadata: b.tree.Metadata,
	}

	subtrees := make([]subTreeNode, 0, len(b.subtrees))
	for _, st := range b.subtrees {
		if stripEmpty && st.Data == "" {
			continue
		}
		subtrees = append(subtrees, subTreeNode{
			Name:    st.Name,
			Parents: sortedIDs(st.Parents),
			Data:    st.Data,
		})
	}
	slices.SortFunc(subtrees, func(a, c subTreeNode) int {
		return strings.Compare(a.Name, c.Name)
	})

	canonicalBytes := marshalCanonical(tree, subtrees)
	return &Entry{
		tree:      tree,
		subtrees:  subtrees,
		id:        deriveID(canonicalBytes),
		canonical: canonicalBytes,
	}
}

func sortedIDs(ids []ID) []ID {
	out := slices.Clone(ids)
	slices.Sort(out)
	if out == nil {
		out = []ID{}
	}
	return out
}
