package trie_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lftjplus/engine/atom"
	"github.com/lftjplus/engine/tuple"
	"github.com/lftjplus/engine/trie"
)

func t2(a, b int64) tuple.Tuple {
	return tuple.New(atom.NewInteger(a), atom.NewInteger(b))
}

func TestInsertIdempotent(t *testing.T) {
	tr := trie.New(2)
	tp := t2(1, 2)
	tr.Insert(tp)
	tr.Insert(tp)
	require.Equal(t, 1, tr.Count())
	require.True(t, tr.Contains(tp))
}

func TestRemoveIsNoOpOnAbsent(t *testing.T) {
	tr := trie.New(2)
	removed := tr.Remove(t2(1, 2))
	require.False(t, removed)
}

func TestInsertThenRemoveRestoresPriorState(t *testing.T) {
	tr := trie.New(2)
	tp := t2(1, 2)
	tr.Insert(tp)
	removed := tr.Remove(tp)
	require.True(t, removed)
	require.Equal(t, 0, tr.Count())
	require.False(t, tr.Contains(tp))
}

func TestPruningRemovesEmptyBranches(t *testing.T) {
	tr := trie.New(2)
	tr.Insert(t2(1, 2))
	tr.Insert(t2(1, 3))
	require.Equal(t, 2, tr.Count())

	tr.Remove(t2(1, 2))
	// level-0 atom 1 still has one child (3), so it must remain.
	atoms := tr.GetSortedAtoms(0, tuple.Empty)
	require.Len(t, atoms, 1)

	tr.Remove(t2(1, 3))
	atoms = tr.GetSortedAtoms(0, tuple.Empty)
	require.Len(t, atoms, 0)
}

func TestGetSortedAtomsAscending(t *testing.T) {
	tr := trie.New(2)
	tr.Insert(t2(5, 1))
	tr.Insert(t2(1, 1))
	tr.Insert(t2(3, 1))

	atoms := tr.GetSortedAtoms(0, tuple.Empty)
	require.Len(t, atoms, 3)
	require.Equal(t, -1, atoms[0].Compare(atoms[1]))
	require.Equal(t, -1, atoms[1].Compare(atoms[2]))
}

func TestGetSortedAtomsEmptyForMissingNode(t *testing.T) {
	tr := trie.New(2)
	tr.Insert(t2(1, 1))
	atoms := tr.GetSortedAtoms(2, t2(1, 1).Slice(1).Append(atom.NewInteger(99)))
	require.Empty(t, atoms)
}

func TestLevelIteratorBasics(t *testing.T) {
	tr := trie.New(1)
	tr.Insert(tuple.New(atom.NewInteger(1)))
	tr.Insert(tuple.New(atom.NewInteger(3)))
	tr.Insert(tuple.New(atom.NewInteger(5)))

	it, err := trie.NewLevelIterator(tr, 0, tuple.Empty)
	require.NoError(t, err)
	defer it.Close()

	require.False(t, it.AtEnd())
	k, err := it.Key()
	require.NoError(t, err)
	require.Equal(t, int64(1), k.Int())

	one := atom.NewInteger(3)
	it.SeekGE(&one)
	k, err = it.Key()
	require.NoError(t, err)
	require.Equal(t, int64(3), k.Int())

	it.Next()
	k, err = it.Key()
	require.NoError(t, err)
	require.Equal(t, int64(5), k.Int())

	it.Next()
	require.True(t, it.AtEnd())
	_, err = it.Key()
	require.Error(t, err)
}

func TestLevelIteratorInvalidPrefix(t *testing.T) {
	tr := trie.New(2)
	_, err := trie.NewLevelIterator(tr, 1, tuple.Empty)
	require.Error(t, err)
}

func TestLevelIteratorSeekGEMonotonicity(t *testing.T) {
	tr := trie.New(1)
	for _, v := range []int64{2, 4, 6, 8, 10} {
		tr.Insert(tuple.New(atom.NewInteger(v)))
	}
	it, err := trie.NewLevelIterator(tr, 0, tuple.Empty)
	require.NoError(t, err)
	defer it.Close()

	seen := []int64{}
	for _, seek := range []int64{1, 3, 3, 7, 20} {
		k := atom.NewInteger(seek)
		it.SeekGE(&k)
		if it.AtEnd() {
			break
		}
		got, _ := it.Key()
		seen = append(seen, got.Int())
	}
	for i := 1; i < len(seen); i++ {
		require.LessOrEqual(t, seen[i-1], seen[i])
	}
}

func TestFactoryRoundTrip(t *testing.T) {
	tr := trie.New(2)
	tr.Insert(t2(1, 2))
	tr.Insert(t2(1, 3))

	f := trie.NewIteratorFactory()
	f.RegisterTrie("R", tr)

	it, err := f.MakeIter("R", 1, t2(1, 0).Slice(1))
	require.NoError(t, err)
	defer it.Close()
	k, err := it.Key()
	require.NoError(t, err)
	require.Equal(t, int64(2), k.Int())
}

func TestFactoryUnknownRelation(t *testing.T) {
	f := trie.NewIteratorFactory()
	_, err := f.MakeIter("missing", 0, tuple.Empty)
	require.Error(t, err)
}

func TestFactoryCacheInvalidatedOnMutation(t *testing.T) {
	tr := trie.New(1)
	tr.Insert(tuple.New(atom.NewInteger(1)))

	f := trie.NewIteratorFactory()
	f.RegisterTrie("R", tr)

	it1, err := f.MakeIter("R", 0, tuple.Empty)
	require.NoError(t, err)
	k, _ := it1.Key()
	require.Equal(t, int64(1), k.Int())
	it1.Close()

	tr.Insert(tuple.New(atom.NewInteger(0)))

	it2, err := f.MakeIter("R", 0, tuple.Empty)
	require.NoError(t, err)
	defer it2.Close()
	k2, _ := it2.Key()
	require.Equal(t, int64(0), k2.Int())
}

func TestCloneIsIndependent(t *testing.T) {
	tr := trie.New(1)
	tr.Insert(tuple.New(atom.NewInteger(1)))
	clone := tr.Clone()
	tr.Insert(tuple.New(atom.NewInteger(2)))
	require.Equal(t, 2, tr.Count())
	require.Equal(t, 1, clone.Count())
}

func TestInfoDoesNotPanic(t *testing.T) {
	tr := trie.New(2)
	tr.Insert(t2(1, 2))
	require.NotEmpty(t, tr.Info())
}
