// Package delta implements the unit of change propagated through the
// dataflow graph: a pair of disjoint tuple sets, adds and removes. Set
// identity is by tuple bytes, implemented here with
// github.com/deckarep/golang-set/v2 rather than a hand-rolled
// map[string]struct{}.
package delta

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/lftjplus/engine/tuple"
)

// Delta is a pair of disjoint tuple sets: tuples added and tuples removed.
// Tuples are keyed by their canonical byte encoding (tuple.Tuple.Key).
type Delta struct {
	adds    mapset.Set[string]
	removes mapset.Set[string]
	byKey   map[string]tuple.Tuple
}

// New returns an empty delta.
func New() *Delta {
	return &Delta{
		adds:    mapset.NewThreadUnsafeSet[string](),
		removes: mapset.NewThreadUnsafeSet[string](),
		byKey:   make(map[string]tuple.Tuple),
	}
}

// AddTuple marks t as added. Panics if t is already marked removed — a
// delta's adds and removes must stay disjoint at every point a caller can
// observe it.
func (d *Delta) AddTuple(t tuple.Tuple) {
	k := t.Key()
	if d.removes.Contains(k) {
		panic("delta: tuple is already marked removed; adds and removes must be disjoint")
	}
	d.adds.Add(k)
	d.byKey[k] = t
}

// RemoveTuple marks t as removed. Panics if t is already marked added.
func (d *Delta) RemoveTuple(t tuple.Tuple) {
	k := t.Key()
	if d.adds.Contains(k) {
		panic("delta: tuple is already marked added; adds and removes must be disjoint")
	}
	d.removes.Add(k)
	d.byKey[k] = t
}

// Adds returns the tuples marked as added, in no particular order.
func (d *Delta) Adds() []tuple.Tuple { return d.tuples(d.adds) }

// Removes returns the tuples marked as removed, in no particular order.
func (d *Delta) Removes() []tuple.Tuple { return d.tuples(d.removes) }

func (d *Delta) tuples(s mapset.Set[string]) []tuple.Tuple {
	out := make([]tuple.Tuple, 0, s.Cardinality())
	for k := range s.Iter() {
		out = append(out, d.byKey[k])
	}
	return out
}

// IsEmpty reports whether both adds and removes are empty.
func (d *Delta) IsEmpty() bool {
	return d.adds.Cardinality() == 0 && d.removes.Cardinality() == 0
}

// Disjoint reports whether adds and removes share no tuple — an invariant
// that must hold at all times; exposed for tests.
func (d *Delta) Disjoint() bool {
	return d.adds.Intersect(d.removes).Cardinality() == 0
}

// Merge folds another delta's adds/removes into this one. Panics, like
// AddTuple and RemoveTuple, if that would break disjointness.
func (d *Delta) Merge(o *Delta) {
	for _, t := range o.Adds() {
		d.AddTuple(t)
	}
	for _, t := range o.Removes() {
		d.RemoveTuple(t)
	}
}
