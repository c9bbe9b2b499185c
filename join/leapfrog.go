package join

import (
	"bytes"
	"sort"

	"github.com/lftjplus/engine/atom"
	"github.com/lftjplus/engine/delta"
	"github.com/lftjplus/engine/internal/xerr"
	"github.com/lftjplus/engine/joinerr"
	"github.com/lftjplus/engine/plan"
	"github.com/lftjplus/engine/trie"
	"github.com/lftjplus/engine/tuple"
	"github.com/lftjplus/engine/witness"
)

// sigmaSlot holds the discovered (or pre-bound) value for one
// variable-order level during a single source-tuple probe.
type sigmaSlot struct {
	val   atom.Atom
	bound bool
}

// ProcessDelta runs a delta probe for the atom at sourceAtomIndex,
// producing the output delta and mutating the witness table.
func (j *JoinNode) ProcessDelta(sourceAtomIndex int, d *delta.Delta) (*delta.Delta, error) {
	if sourceAtomIndex < 0 || sourceAtomIndex >= j.plan.NumAtoms() {
		return nil, joinerr.Local(joinerr.InvalidPlan, "join %s: source atom index %d out of range [0,%d)", j.ID(), sourceAtomIndex, j.plan.NumAtoms())
	}
	out := delta.New()

	for _, t := range sortByVOProjection(d.Adds(), j.plan, sourceAtomIndex) {
		if err := j.processSourceTuple(sourceAtomIndex, t, witness.Positive, out); err != nil {
			return nil, err
		}
	}
	for _, t := range sortByVOProjection(d.Removes(), j.plan, sourceAtomIndex) {
		if err := j.processSourceTuple(sourceAtomIndex, t, witness.Negative, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// processSourceTuple binds the source prefix from t, then recursively
// leapfrogs the remaining atoms, applying sign to every full binding
// discovered and folding any emitted event into out.
func (j *JoinNode) processSourceTuple(sourceAtom int, t tuple.Tuple, sign witness.Sign, out *delta.Delta) error {
	n := j.plan.NumLevels()
	sigma := make([]sigmaSlot, n)

	spec := j.plan.AtomSpecs[sourceAtom]
	for col, v := range spec.Variables {
		lvl, _ := j.plan.VarLevel(v)
		val := t.At(col)
		if sigma[lvl].bound && !sigma[lvl].val.Equal(val) {
			// Same variable bound to different atoms by two columns of
			// its own source atom: t cannot join, contributes nothing.
			return nil
		}
		sigma[lvl] = sigmaSlot{val: val, bound: true}
	}

	return j.recurse(0, sourceAtom, sigma, func(full tuple.Tuple) error {
		ev, err := j.witness.Apply(full, sign, sourceAtom)
		if err != nil {
			return err
		}
		switch ev.Kind {
		case witness.EmitAdd:
			out.AddTuple(ev.Tuple)
		case witness.EmitRemove:
			out.RemoveTuple(ev.Tuple)
		}
		return nil
	})
}

// groupMember is one non-source atom constraining the variable at the
// current level, along with the column at which the variable first
// appears in that atom.
type groupMember struct {
	atomIndex int
	column    int
}

func (j *JoinNode) levelMembers(level, sourceAtom int) []groupMember {
	g := j.plan.LevelGroup(level)
	members := make([]groupMember, 0, len(g.AtomIndices))
	for idx, ai := range g.AtomIndices {
		if ai == sourceAtom {
			continue
		}
		members = append(members, groupMember{atomIndex: ai, column: g.Columns[idx][0]})
	}
	return members
}

// recurse implements the level loop of section 4.4.3: at each level,
// either verify an already-bound value against every remaining
// constraining atom, or leapfrog-intersect those atoms' iterators to
// discover it, then recurse to the next level. At the last level it
// emits the completed binding.
func (j *JoinNode) recurse(level, sourceAtom int, sigma []sigmaSlot, emit func(tuple.Tuple) error) error {
	n := j.plan.NumLevels()
	if level == n {
		return emit(buildOutputTuple(sigma))
	}

	members := j.levelMembers(level, sourceAtom)

	if sigma[level].bound {
		for _, m := range members {
			ok, err := j.checkMemberAgrees(m, level, sigma)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		return j.recurse(level+1, sourceAtom, sigma, emit)
	}

	// The variable order construction guarantees this level has at
	// least one constraining atom whenever it isn't already bound by
	// the source atom: a variable absent from every other atom is, by
	// definition, present only in the source atom and therefore already
	// bound above.
	xerr.Assert(len(members) > 0, "join: level %d is unbound with no constraining atom", level)

	iters := make([]*trie.LevelIterator, len(members))
	defer func() {
		for _, it := range iters {
			if it != nil {
				it.Close()
			}
		}
	}()
	for idx, m := range members {
		it, err := j.openMemberIterator(m, sigma)
		if err != nil {
			return err
		}
		iters[idx] = it
	}

	for {
		key, ok, err := leapfrogIntersect(iters)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		sigma[level] = sigmaSlot{val: key, bound: true}
		if err := j.recurse(level+1, sourceAtom, sigma, emit); err != nil {
			return err
		}
		iters[0].Next()
		if iters[0].AtEnd() {
			break
		}
	}
	sigma[level] = sigmaSlot{}
	return nil
}

// leapfrogIntersect runs the classic leapfrog procedure over iters,
// which must already be positioned (each freshly opened iterator starts
// rewound). It returns the next common key across all iterators, or
// ok=false once any iterator is exhausted.
func leapfrogIntersect(iters []*trie.LevelIterator) (atom.Atom, bool, error) {
	for {
		var maxKey atom.Atom
		for i, it := range iters {
			if it.AtEnd() {
				return atom.Atom{}, false, nil
			}
			k, err := it.Key()
			if err != nil {
				return atom.Atom{}, false, err
			}
			if i == 0 || k.Compare(maxKey) > 0 {
				maxKey = k
			}
		}
		allEqual := true
		for _, it := range iters {
			k, err := it.Key()
			if err != nil {
				return atom.Atom{}, false, err
			}
			if k.Compare(maxKey) != 0 {
				allEqual = false
				it.SeekGE(&maxKey)
				if it.AtEnd() {
					return atom.Atom{}, false, nil
				}
			}
		}
		if allEqual {
			return maxKey, true, nil
		}
	}
}

func (j *JoinNode) openMemberIterator(m groupMember, sigma []sigmaSlot) (*trie.LevelIterator, error) {
	prefix, err := j.prefixForAtom(m.atomIndex, m.column, sigma)
	if err != nil {
		return nil, err
	}
	relation := j.plan.AtomSpecs[m.atomIndex].RelationName
	return j.factory.MakeIter(relation, m.column, prefix)
}

func (j *JoinNode) checkMemberAgrees(m groupMember, level int, sigma []sigmaSlot) (bool, error) {
	it, err := j.openMemberIterator(m, sigma)
	if err != nil {
		return false, err
	}
	defer it.Close()
	want := sigma[level].val
	it.SeekGE(&want)
	if it.AtEnd() {
		return false, nil
	}
	got, err := it.Key()
	if err != nil {
		return false, err
	}
	return got.Equal(want), nil
}

// prefixForAtom builds the bound-prefix tuple for atomIndex up to (but
// excluding) column, in that atom's own column order, from sigma values
// already discovered.
func (j *JoinNode) prefixForAtom(atomIndex, column int, sigma []sigmaSlot) (tuple.Tuple, error) {
	vars := j.plan.AtomSpecs[atomIndex].Variables[:column]
	atoms := make([]atom.Atom, len(vars))
	for i, v := range vars {
		lvl, _ := j.plan.VarLevel(v)
		xerr.Assert(sigma[lvl].bound, "join: prefix column %d of atom %d needs variable %q not yet bound", i, atomIndex, v)
		atoms[i] = sigma[lvl].val
	}
	return tuple.New(atoms...), nil
}

func buildOutputTuple(sigma []sigmaSlot) tuple.Tuple {
	atoms := make([]atom.Atom, len(sigma))
	for i, s := range sigma {
		xerr.Assert(s.bound, "join: level %d unbound at full assignment", i)
		atoms[i] = s.val
	}
	return tuple.New(atoms...)
}

// sortByVOProjection orders tuples by the lexicographic order of their
// projection onto the variable order, using only the variables of the
// source atom at sourceAtomIndex, so the leapfrog recursion's trie walks
// cluster on shared prefixes. Ties are broken by byte encoding.
func sortByVOProjection(tuples []tuple.Tuple, p *plan.Plan, sourceAtomIndex int) []tuple.Tuple {
	if len(tuples) < 2 {
		return tuples
	}
	spec := p.AtomSpecs[sourceAtomIndex]
	levels := make([]int, len(spec.Variables))
	for i, v := range spec.Variables {
		lvl, _ := p.VarLevel(v)
		levels[i] = lvl
	}
	order := make([]int, len(spec.Variables))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return levels[order[i]] < levels[order[j]] })

	projection := func(t tuple.Tuple) tuple.Tuple {
		atoms := make([]atom.Atom, len(order))
		for i, col := range order {
			atoms[i] = t.At(col)
		}
		return tuple.New(atoms...)
	}

	sorted := append([]tuple.Tuple(nil), tuples...)
	sort.SliceStable(sorted, func(i, k int) bool {
		c := projection(sorted[i]).Compare(projection(sorted[k]))
		if c != 0 {
			return c < 0
		}
		return bytes.Compare(sorted[i].Bytes(), sorted[k].Bytes()) < 0
	})
	return sorted
}
