package backend

import (
	"slices"
	"strings"

	"github.com/loomdb/loom/entry"
)

// Graph algorithms over a snapshot of entries, shared by the concrete
// backends. A snapshot maps entry ID to entry; queries restrict it to one
// tree, optionally to one subtree dimension, and order by height.
//
// Height is the length of the longest path from the dimension's sourceless
// entries to the entry. The ordering key is (height ascending, ID
// ascending), which is total and deterministic for a fixed entry set and
// fixes "last writer" for the CRDT merge fold.

// Snapshot is an immutable view of stored entries keyed by ID.
type Snapshot map[entry.ID]*entry.Entry

// inDimension reports whether e belongs to the tree and, when subtree is
// non-empty, contains that subtree.
func inDimension(e *entry.Entry, tree entry.ID, subtree string) bool {
	if !e.InTree(tree) {
		return false
	}
	return subtree == "" || e.InSubtree(subtree)
}

// dimensionParents returns e's parent list in the requested dimension.
func dimensionParents(e *entry.Entry, subtree string) []entry.ID {
	if subtree == "" {
		return e.Parents()
	}
	parents, err := e.SubtreeParents(subtree)
	if err != nil {
		return nil
	}
	return parents
}

// Tips returns the entries of the tree with no child in the tree dimension.
func (s Snapshot) Tips(tree entry.ID) []entry.ID {
	return s.tips(tree, "")
}

// SubtreeTips returns the entries containing the subtree with no child in
// that subtree's dimension.
func (s Snapshot) SubtreeTips(tree entry.ID, subtree string) []entry.ID {
	return s.tips(tree, subtree)
}

func (s Snapshot) tips(tree entry.ID, subtree string) []entry.ID {
	hasChild := make(map[entry.ID]bool)
	for _, e := range s {
		if !inDimension(e, tree, subtree) {
			continue
		}
		for _, p := range dimensionParents(e, subtree) {
			hasChild[p] = true
		}
	}

	var tips []entry.ID
	for id, e := range s {
		if inDimension(e, tree, subtree) && !hasChild[id] {
			tips = append(tips, id)
		}
	}
	slices.Sort(tips)
	return tips
}

// Roots returns every entry whose tree root is the empty sentinel.
func (s Snapshot) Roots() []entry.ID {
	var roots []entry.ID
	for id, e := range s {
		if e.IsRoot() {
			roots = append(roots, id)
		}
	}
	slices.Sort(roots)
	return roots
}

// heights computes the longest-path height of every entry in the dimension
// by a Kahn-style BFS starting from entries with no predecessor there.
// Parents missing from the snapshot are ignored, so a partially replicated
// graph still orders deterministically.
func (s Snapshot) heights(tree entry.ID, subtree string) map[entry.ID]int {
	members := make(map[entry.ID][]entry.ID)
	for id, e := range s {
		if !inDimension(e, tree, subtree) {
			continue
		}
		var parents []entry.ID
		for _, p := range dimensionParents(e, subtree) {
			if pe, ok := s[p]; ok && inDimension(pe, tree, subtree) {
				parents = append(parents, p)
			}
		}
		members[id] = parents
	}

	children := make(map[entry.ID][]entry.ID)
	indegree := make(map[entry.ID]int, len(members))
	for id, parents := range members {
		indegree[id] = len(parents)
		for _, p := range parents {
			children[p] = append(children[p], id)
		}
	}

	heights := make(map[entry.ID]int, len(members))
	var queue []entry.ID
	for id, deg := range indegree {
		if deg == 0 {
			heights[id] = 0
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if h := heights[current] + 1; h > heights[child] {
				heights[child] = h
			}
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	return heights
}

// sortByHeight orders entries by (height ascending, ID ascending).
func sortByHeight(entries []*entry.Entry, heights map[entry.ID]int) {
	slices.SortFunc(entries, func(a, b *entry.Entry) int {
		if d := heights[a.ID()] - heights[b.ID()]; d != 0 {
			return d
		}
		return strings.Compare(a.ID(), b.ID())
	})
}

// TreeEntries returns all entries of the tree, topologically sorted.
func (s Snapshot) TreeEntries(tree entry.ID) []*entry.Entry {
	return s.dimensionEntries(tree, "")
}

// SubtreeEntries returns all entries containing the subtree, sorted by
// subtree-dimension height.
func (s Snapshot) SubtreeEntries(tree entry.ID, subtree string) []*entry.Entry {
	return s.dimensionEntries(tree, subtree)
}

func (s Snapshot) dimensionEntries(tree entry.ID, subtree string) []*entry.Entry {
	var entries []*entry.Entry
	for _, e := range s {
		if inDimension(e, tree, subtree) {
			entries = append(entries, e)
		}
	}
	sortByHeight(entries, s.heights(tree, subtree))
	return entries
}

// TreeEntriesFromTips returns the tree-dimension ancestors of tips
// (inclusive), topologically sorted.
func (s Snapshot) TreeEntriesFromTips(tree entry.ID, tips []entry.ID) []*entry.Entry {
	return s.ancestors(tree, "", tips)
}

// SubtreeEntriesFromTips returns the subtree-dimension ancestors of tips
// (inclusive), topologically sorted.
func (s Snapshot) SubtreeEntriesFromTips(tree entry.ID, subtree string, tips []entry.ID) []*entry.Entry {
	return s.ancestors(tree, subtree, tips)
}

// ancestors walks the dimension's parent relation up from the tips and
// returns the reachable set in topological order.
func (s Snapshot) ancestors(tree entry.ID, subtree string, tips []entry.ID) []*entry.Entry {
	reached := make(map[entry.ID]bool)
	stack := slices.Clone(tips)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[id] {
			continue
		}
		e, ok := s[id]
		if !ok || !inDimension(e, tree, subtree) {
			continue
		}
		reached[id] = true
		stack = append(stack, dimensionParents(e, subtree)...)
	}

	entries := make([]*entry.Entry, 0, len(reached))
	for id := range reached {
		entries = append(entries, s[id])
	}
	sortByHeight(entries, s.heights(tree, subtree))
	return entries
}
