// Package trie implements an ordered prefix tree indexing a relation, with
// level-*i* children ordered by the atom at tuple position *i*,
// insert/remove that preserve the trie invariants, and prefix-constrained
// level enumeration via LevelIterator.
//
// The descend-and-cache control flow generalizes a 256-ary byte-keyed
// Merkle trie's getNode/insertNewNode/removeKey-with-pruning structure to
// an arity-per-atom relational trie whose children are ordered by
// atom.Atom.Compare instead of by raw byte.
package trie

import (
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/google/btree"

	"github.com/lftjplus/engine/atom"
	"github.com/lftjplus/engine/internal/xerr"
	"github.com/lftjplus/engine/tuple"
)

type childEntry struct {
	key   atom.Atom
	child *node
}

func childLess(a, b childEntry) bool { return a.key.Compare(b.key) < 0 }

// node is one trie vertex. children is nil until the node's first child is
// inserted (most leaves never need it).
type node struct {
	children *btree.BTreeG[childEntry]
	terminal bool // true iff a tuple ends exactly at this node
}

func newNode() *node { return &node{} }

func (n *node) getChild(a atom.Atom) (*node, bool) {
	if n.children == nil {
		return nil, false
	}
	e, ok := n.children.Get(childEntry{key: a})
	if !ok {
		return nil, false
	}
	return e.child, true
}

func (n *node) setChild(a atom.Atom, c *node) {
	if n.children == nil {
		n.children = btree.NewG(32, childLess)
	}
	n.children.ReplaceOrInsert(childEntry{key: a, child: c})
}

func (n *node) deleteChild(a atom.Atom) {
	if n.children == nil {
		return
	}
	n.children.Delete(childEntry{key: a})
	if n.children.Len() == 0 {
		n.children = nil
	}
}

func (n *node) childCount() int {
	if n.children == nil {
		return 0
	}
	return n.children.Len()
}

// sortedChildAtoms returns the ascending list of child atoms at n.
func (n *node) sortedChildAtoms() []atom.Atom {
	if n.children == nil {
		return nil
	}
	out := make([]atom.Atom, 0, n.children.Len())
	n.children.Ascend(func(e childEntry) bool {
		out = append(out, e.key)
		return true
	})
	return out
}

func (n *node) clone() *node {
	cp := &node{terminal: n.terminal}
	if n.children != nil {
		cp.children = btree.NewG(32, childLess)
		n.children.Ascend(func(e childEntry) bool {
			cp.children.ReplaceOrInsert(childEntry{key: e.key, child: e.child.clone()})
			return true
		})
	}
	return cp
}

// Trie indexes a relation of a fixed arity. Its zero value is not usable;
// construct one with New.
type Trie struct {
	root    *node
	arity   int
	version uint64 // bumped on every insert/remove; used to invalidate factory caches
	guard   debugGuard
}

// New creates an empty trie for tuples of the given arity.
func New(arity int) *Trie {
	xerr.Assert(arity >= 0, "trie: arity must be >= 0, got %d", arity)
	return &Trie{root: newNode(), arity: arity}
}

// Arity returns the fixed tuple arity this trie indexes.
func (t *Trie) Arity() int { return t.arity }

// Version returns the current mutation counter, used by IteratorFactory to
// invalidate memoized sibling-list snapshots.
func (t *Trie) Version() uint64 { return atomic.LoadUint64(&t.version) }

// Insert adds tuple to the relation. Idempotent: inserting an already
// present tuple is a no-op. Panics if tuple.Arity() does not match the
// trie's arity.
func (t *Trie) Insert(tp tuple.Tuple) {
	xerr.Assert(tp.Arity() == t.arity, "trie: Insert: tuple arity %d != trie arity %d", tp.Arity(), t.arity)
	defer t.guard.beginMutate()()
	cur := t.root
	for i := 0; i < tp.Arity(); i++ {
		a := tp.At(i)
		child, ok := cur.getChild(a)
		if !ok {
			child = newNode()
			cur.setChild(a, child)
		}
		cur = child
	}
	cur.terminal = true
	atomic.AddUint64(&t.version, 1)
}

// Remove deletes tuple from the relation if present, pruning every
// ancestor left with no children and no terminal mark. Remove on an
// absent tuple is a no-op and reports false, letting the caller detect an
// upstream ordering violation; the dataflow package's ScanNode treats
// this as fatal.
func (t *Trie) Remove(tp tuple.Tuple) (removed bool) {
	xerr.Assert(tp.Arity() == t.arity, "trie: Remove: tuple arity %d != trie arity %d", tp.Arity(), t.arity)
	defer t.guard.beginMutate()()

	path := make([]*node, tp.Arity()+1)
	path[0] = t.root
	cur := t.root
	for i := 0; i < tp.Arity(); i++ {
		child, ok := cur.getChild(tp.At(i))
		if !ok {
			return false
		}
		path[i+1] = child
		cur = child
	}
	if !cur.terminal {
		return false
	}
	cur.terminal = false

	for i := tp.Arity(); i > 0; i-- {
		n := path[i]
		if n.terminal || n.childCount() > 0 {
			break
		}
		path[i-1].deleteChild(tp.At(i - 1))
	}
	atomic.AddUint64(&t.version, 1)
	return true
}

// Contains reports whether tuple is present in the relation.
func (t *Trie) Contains(tp tuple.Tuple) bool {
	xerr.Assert(tp.Arity() == t.arity, "trie: Contains: tuple arity %d != trie arity %d", tp.Arity(), t.arity)
	cur := t.root
	for i := 0; i < tp.Arity(); i++ {
		child, ok := cur.getChild(tp.At(i))
		if !ok {
			return false
		}
		cur = child
	}
	return cur.terminal
}

// GetSortedAtoms returns, in ascending order, the atoms present at the
// given level as children of the node reached by boundPrefix. boundPrefix
// must have length == level. Returns an empty slice if the node does not
// exist.
func (t *Trie) GetSortedAtoms(level int, boundPrefix tuple.Tuple) []atom.Atom {
	xerr.Assert(boundPrefix.Arity() == level, "trie: GetSortedAtoms: prefix arity %d != level %d", boundPrefix.Arity(), level)
	n := t.descend(boundPrefix)
	if n == nil {
		return nil
	}
	return n.sortedChildAtoms()
}

func (t *Trie) descend(prefix tuple.Tuple) *node {
	cur := t.root
	for i := 0; i < prefix.Arity(); i++ {
		child, ok := cur.getChild(prefix.At(i))
		if !ok {
			return nil
		}
		cur = child
	}
	return cur
}

// Clone returns a deep, independent copy of the trie.
func (t *Trie) Clone() *Trie {
	return &Trie{root: t.root.clone(), arity: t.arity, version: t.Version()}
}

// Count returns the number of tuples currently present, by a full
// traversal. Intended for tests and diagnostics, not the hot path.
func (t *Trie) Count() int {
	return countTerminals(t.root)
}

func countTerminals(n *node) int {
	c := 0
	if n.terminal {
		c++
	}
	if n.children != nil {
		n.children.Ascend(func(e childEntry) bool {
			c += countTerminals(e.child)
			return true
		})
	}
	return c
}

// Info renders a one-line diagnostic summary, using go-humanize for the
// entry count the way a production trie's debug string would.
func (t *Trie) Info() string {
	return fmt.Sprintf("Trie(arity=%d, tuples=%s, version=%d)",
		t.arity, humanize.Comma(int64(t.Count())), t.Version())
}
