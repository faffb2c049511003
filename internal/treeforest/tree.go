// Package treeforest implements the arena-indexed rooted tree model shared
// by PACE26 instances and candidate agreement forests.
package treeforest

import (
	"fmt"
	"sort"
	"strings"
)

// Node is a single position in a Tree's arena. Index 0 is never used so that
// the zero value of an int can serve as a "no node" sentinel.
type Node struct {
	Parent   int   // 0 for the root
	Children []int // ordered left-to-right, empty for leaves
	Leaf     int   // taxon label if this is a leaf, 0 for internal nodes
}

// Tree is an arena of Nodes plus the index of the root. Nodes are owned by
// the arena; there are no long-lived pointers into it, only indices, so a
// Tree can be copied by copying its Nodes slice.
type Tree struct {
	Nodes []Node // Nodes[0] is unused
	Root  int
}

func (n Node) isLeaf() bool { return n.Leaf != 0 }

// NumNodes returns the number of live nodes in the arena (excluding the
// unused sentinel at index 0).
func (t Tree) NumNodes() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	return len(t.Nodes) - 1
}

// Empty reports whether the tree has no nodes at all.
func (t Tree) Empty() bool { return t.NumNodes() == 0 }

// Leaves returns the sorted set of leaf labels appearing in t.
func Leaves(t Tree) []int {
	out := make([]int, 0, t.NumNodes())
	for i := 1; i < len(t.Nodes); i++ {
		if t.Nodes[i].isLeaf() {
			out = append(out, t.Nodes[i].Leaf)
		}
	}
	sort.Ints(out)
	return out
}

// LeafSet is Leaves(t) as a membership set, useful for repeated lookups.
func LeafSet(t Tree) map[int]bool {
	s := make(map[int]bool, t.NumNodes())
	for i := 1; i < len(t.Nodes); i++ {
		if t.Nodes[i].isLeaf() {
			s[t.Nodes[i].Leaf] = true
		}
	}
	return s
}

// Validate checks the structural invariants of §3: every inner node has at
// least two children, the root exists, and every leaf label is positive.
func Validate(t Tree) error {
	if t.Empty() {
		return fmt.Errorf("tree has no nodes")
	}
	if t.Root < 1 || t.Root >= len(t.Nodes) {
		return fmt.Errorf("root index %d out of range", t.Root)
	}
	seen := map[int]bool{}
	for i := 1; i < len(t.Nodes); i++ {
		n := t.Nodes[i]
		if n.isLeaf() {
			if len(n.Children) != 0 {
				return fmt.Errorf("node %d is both a leaf and has children", i)
			}
			if n.Leaf < 1 {
				return fmt.Errorf("node %d has non-positive leaf label %d", i, n.Leaf)
			}
			if seen[n.Leaf] {
				return fmt.Errorf("duplicate leaf label %d", n.Leaf)
			}
			seen[n.Leaf] = true
		} else if len(n.Children) < 2 {
			return fmt.Errorf("internal node %d has %d children, need >= 2", i, len(n.Children))
		}
	}
	return nil
}

// Restrict returns the tree obtained by keeping only the leaves whose label
// is in keep, suppressing any inner node left with exactly one child, and
// discarding any subtree that becomes leafless. It never mutates t. The
// result is either empty (no leaf of t is in keep), a single leaf, or a
// tree with two or more leaves.
func Restrict(t Tree, keep map[int]bool) Tree {
	if t.Empty() {
		return Tree{}
	}

	var b Builder
	root, has := restrictNode(t, t.Root, keep, &b)
	if !has {
		return Tree{}
	}
	b.SetRoot(root)
	return b.Build()
}

// restrictNode returns (index-in-b, true) if some leaf under t.Nodes[i]
// survives the keep filter, contracting single-child chains along the way.
func restrictNode(t Tree, i int, keep map[int]bool, b *Builder) (int, bool) {
	n := t.Nodes[i]
	if n.isLeaf() {
		if keep[n.Leaf] {
			return b.AddLeaf(n.Leaf), true
		}
		return 0, false
	}

	var kept []int
	for _, c := range n.Children {
		if idx, ok := restrictNode(t, c, keep, b); ok {
			kept = append(kept, idx)
		}
	}
	switch len(kept) {
	case 0:
		return 0, false
	case 1:
		// contract: splice the single surviving child up in place of this node
		return kept[0], true
	default:
		return b.AddInternal(kept), true
	}
}

// Builder accumulates nodes for a new Tree, fixing up parent pointers
// once all children are known.
type Builder struct {
	nodes []Node
	root  int
}

func (b *Builder) AddLeaf(label int) int {
	if b.nodes == nil {
		b.nodes = []Node{{}} // sentinel at index 0
	}
	b.nodes = append(b.nodes, Node{Leaf: label})
	return len(b.nodes) - 1
}

func (b *Builder) AddInternal(children []int) int {
	if b.nodes == nil {
		b.nodes = []Node{{}}
	}
	b.nodes = append(b.nodes, Node{Children: children})
	idx := len(b.nodes) - 1
	for _, c := range children {
		b.nodes[c].Parent = idx
	}
	return idx
}

func (b *Builder) SetRoot(r int) { b.root = r }

func (b *Builder) Build() Tree {
	return Tree{Nodes: b.nodes, Root: b.root}
}

// minLeaf returns the minimum leaf label under node i, used to order
// siblings deterministically for canonical rendering and equality hashing.
func minLeaf(t Tree, i int) int {
	n := t.Nodes[i]
	if n.isLeaf() {
		return n.Leaf
	}
	m := -1
	for _, c := range n.Children {
		v := minLeaf(t, c)
		if m == -1 || v < m {
			m = v
		}
	}
	return m
}

// CanonicalForm renders t deterministically: children of every inner node
// are emitted in ascending order of the minimum leaf label under them.
// A lone leaf renders as its bare label; every other subtree is
// parenthesized. Comments and #s lines are never part of this text.
func CanonicalForm(t Tree) string {
	if t.Empty() {
		return ""
	}
	var sb strings.Builder
	writeCanonical(t, t.Root, &sb)
	return sb.String()
}

func writeCanonical(t Tree, i int, sb *strings.Builder) {
	n := t.Nodes[i]
	if n.isLeaf() {
		fmt.Fprintf(sb, "%d", n.Leaf)
		return
	}

	children := append([]int(nil), n.Children...)
	sort.Slice(children, func(a, b int) bool {
		return minLeaf(t, children[a]) < minLeaf(t, children[b])
	})

	sb.WriteByte('(')
	for idx, c := range children {
		if idx > 0 {
			sb.WriteByte(',')
		}
		writeCanonical(t, c, sb)
	}
	sb.WriteByte(')')
}

// Equal decides tree equality by comparing canonical forms, which per §4.3
// is equivalent to the post-order multiset-of-child-hashes construction:
// two trees are equal iff every level's children, taken as an unordered
// multiset, match recursively and the leaf sets agree.
func Equal(a, b Tree) bool {
	return CanonicalForm(a) == CanonicalForm(b)
}
