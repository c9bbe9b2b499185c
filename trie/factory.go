package trie

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lftjplus/engine/atom"
	"github.com/lftjplus/engine/joinerr"
	"github.com/lftjplus/engine/tuple"
)

const defaultSiblingCacheSize = 4096

// IteratorFactory isolates the join engine from storage: it maps a
// relation name and a (level, bound prefix) pair to a LevelIterator,
// without the join ever touching a *Trie directly.
//
// It memoizes the sorted-sibling-list computation, bounded by an LRU
// (github.com/hashicorp/golang-lru/v2) so a long-running join's cache
// can't grow without bound. The cache key is derived from
// tuple.Tuple.FastHash, a non-cryptographic fingerprint; each entry also
// stores the exact prefix bytes and the trie's mutation version, so a
// hash collision or a stale entry is always detected and falls back to a
// recompute rather than silently returning the wrong sibling list.
type IteratorFactory struct {
	tries map[string]*Trie
	cache *lru.Cache[cacheKey, cacheEntry]
}

type cacheKey struct {
	relation string
	level    int
	hash     uint64
}

type cacheEntry struct {
	version     uint64
	prefixBytes string
	atoms       []atom.Atom
}

// NewIteratorFactory creates an empty factory with a default-sized sibling
// cache.
func NewIteratorFactory() *IteratorFactory {
	c, err := lru.New[cacheKey, cacheEntry](defaultSiblingCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultSiblingCacheSize never is.
		panic(err)
	}
	return &IteratorFactory{tries: make(map[string]*Trie), cache: c}
}

// RegisterTrie binds relationName to trie for every atom spec that
// references it.
func (f *IteratorFactory) RegisterTrie(relationName string, t *Trie) {
	f.tries[relationName] = t
}

// Trie returns the trie registered for relationName, if any.
func (f *IteratorFactory) Trie(relationName string) (*Trie, bool) {
	t, ok := f.tries[relationName]
	return t, ok
}

// MakeIter builds a LevelIterator over relationName's trie, fixed at
// level, under boundPrefix.
func (f *IteratorFactory) MakeIter(relationName string, level int, boundPrefix tuple.Tuple) (*LevelIterator, error) {
	t, ok := f.tries[relationName]
	if !ok {
		return nil, joinerr.Local(joinerr.InvalidPlan, "trie: no trie registered for relation %q", relationName)
	}
	if boundPrefix.Arity() != level {
		return nil, joinerr.Local(joinerr.InvalidPrefix,
			"trie: MakeIter: bound prefix arity %d != level %d", boundPrefix.Arity(), level)
	}

	key := cacheKey{relation: relationName, level: level, hash: boundPrefix.FastHash()}
	prefixBytes := string(boundPrefix.Bytes())
	version := t.Version()

	if entry, ok := f.cache.Get(key); ok && entry.version == version && entry.prefixBytes == prefixBytes {
		return newLevelIterator(entry.atoms, t.guard.beginIterate()), nil
	}

	atoms := t.GetSortedAtoms(level, boundPrefix)
	f.cache.Add(key, cacheEntry{version: version, prefixBytes: prefixBytes, atoms: atoms})
	return newLevelIterator(atoms, t.guard.beginIterate()), nil
}
