package trie

import (
	"sort"

	"github.com/lftjplus/engine/atom"
	"github.com/lftjplus/engine/joinerr"
	"github.com/lftjplus/engine/tuple"
)

// LevelIterator is a cursor over the distinct atoms at a fixed trie level
// under a fixed bound prefix. It borrows its owning trie read-only for the
// span of the enumeration: no LevelIterator may outlive the delta-processing
// call that created it, enforced best-effort by the trie's debugGuard.
type LevelIterator struct {
	atoms  []atom.Atom
	pos    int
	atEnd  bool
	closed bool
	done   func()
}

// NewLevelIterator constructs a LevelIterator over trie t, fixed at the
// given level, under boundPrefix. boundPrefix.Arity() must equal level, or
// construction fails with InvalidPrefix.
func NewLevelIterator(t *Trie, level int, boundPrefix tuple.Tuple) (*LevelIterator, error) {
	if boundPrefix.Arity() != level {
		return nil, joinerr.Local(joinerr.InvalidPrefix,
			"trie: LevelIterator: bound prefix arity %d != level %d", boundPrefix.Arity(), level)
	}
	atoms := t.GetSortedAtoms(level, boundPrefix)
	return newLevelIterator(atoms, t.guard.beginIterate()), nil
}

// newLevelIterator builds a LevelIterator from an already-computed sorted
// atom slice, used by IteratorFactory to hand out a memoized snapshot
// without recomputing it.
func newLevelIterator(atoms []atom.Atom, done func()) *LevelIterator {
	it := &LevelIterator{atoms: atoms, done: done}
	it.SeekGE(nil)
	return it
}

// Close releases the iterator's read borrow on the trie. Callers must call
// Close exactly once when done with the iterator (typically via defer).
func (it *LevelIterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.done()
}

// SeekGE positions the iterator on the smallest atom >= key. SeekGE(nil)
// rewinds to the smallest atom. If the iterator is already AtEnd, it
// remains AtEnd.
func (it *LevelIterator) SeekGE(key *atom.Atom) {
	if len(it.atoms) == 0 {
		it.pos = 0
		it.atEnd = true
		return
	}
	if key == nil {
		it.pos = 0
		it.atEnd = false
		return
	}
	if it.atEnd {
		return
	}
	// sort.Search gives O(log f) positioning against the sorted sibling list.
	idx := sort.Search(len(it.atoms), func(i int) bool {
		return it.atoms[i].Compare(*key) >= 0
	})
	it.pos = idx
	it.atEnd = idx >= len(it.atoms)
}

// Key returns the atom at the current position. Fails with IteratorAtEnd
// if the iterator is positioned past the last atom.
func (it *LevelIterator) Key() (atom.Atom, error) {
	if it.atEnd {
		return atom.Atom{}, joinerr.Local(joinerr.IteratorAtEnd, "trie: LevelIterator.Key called at end")
	}
	return it.atoms[it.pos], nil
}

// Next advances the iterator one position, transitioning to AtEnd if past
// the last atom.
func (it *LevelIterator) Next() {
	if it.atEnd {
		return
	}
	it.pos++
	if it.pos >= len(it.atoms) {
		it.atEnd = true
	}
}

// AtEnd reports whether there are no more atoms under the bound prefix.
func (it *LevelIterator) AtEnd() bool { return it.atEnd }
