// Package join implements the LFTJ+ engine: the JoinNode that runs a
// delta probe per changed atom, intersecting the remaining atoms level
// by level via leapfrog triejoin, and coalescing duplicate derivations
// through a witness multiplicity table into a multiset-stable output
// delta.
package join

import (
	"github.com/lftjplus/engine/dataflow"
	"github.com/lftjplus/engine/delta"
	"github.com/lftjplus/engine/joinerr"
	"github.com/lftjplus/engine/plan"
	"github.com/lftjplus/engine/trie"
	"github.com/lftjplus/engine/witness"
)

// JoinNode is a dataflow node evaluating one conjunctive query plan
// incrementally. Each of its inputs must be mapped to exactly one atom
// index with MapInputToAtom before any delta flows.
type JoinNode struct {
	dataflow.Base

	plan    *plan.Plan
	factory *trie.IteratorFactory
	witness *witness.Table

	inputToAtom map[string]int
	atomToInput []dataflow.Node
}

// New constructs a JoinNode over p, resolving atom iterators through
// factory. Fails with InvalidPlan if p or factory is nil; p's own
// construction already rejects an empty variable order, empty atom
// specs, or a VO variable absent from every atom.
func New(p *plan.Plan, factory *trie.IteratorFactory) (*JoinNode, error) {
	if p == nil {
		return nil, joinerr.Local(joinerr.InvalidPlan, "join: plan must not be nil")
	}
	if factory == nil {
		return nil, joinerr.Local(joinerr.InvalidPlan, "join: iterator factory must not be nil")
	}
	j := &JoinNode{
		Base:        dataflow.NewBase(),
		plan:        p,
		factory:     factory,
		inputToAtom: make(map[string]int),
		atomToInput: make([]dataflow.Node, p.NumAtoms()),
	}
	j.witness = witness.New(j.ID())
	return j, nil
}

// MapInputToAtom binds input as the source of atom-spec index atomIndex.
// Each atom index may be mapped exactly once.
func (j *JoinNode) MapInputToAtom(input dataflow.Node, atomIndex int) error {
	if atomIndex < 0 || atomIndex >= j.plan.NumAtoms() {
		return joinerr.Local(joinerr.InvalidPlan, "join %s: atom index %d out of range [0,%d)", j.ID(), atomIndex, j.plan.NumAtoms())
	}
	if j.atomToInput[atomIndex] != nil {
		return joinerr.Local(joinerr.InvalidPlan, "join %s: atom %d is already mapped to an input", j.ID(), atomIndex)
	}
	j.atomToInput[atomIndex] = input
	j.inputToAtom[input.ID()] = atomIndex
	j.AddInput(input)
	return nil
}

// OnDeltaReceived resolves source to its mapped atom index, runs
// ProcessDelta, and forwards the resulting delta to every output.
func (j *JoinNode) OnDeltaReceived(source dataflow.Node, d *delta.Delta) error {
	atomIndex, ok := j.inputToAtom[source.ID()]
	if !ok {
		return joinerr.Local(joinerr.UnmappedInput, "join %s: delta received from unmapped input %s", j.ID(), source.ID())
	}
	out, err := j.ProcessDelta(atomIndex, d)
	if err != nil {
		return err
	}
	return dataflow.Forward(j, j.Outputs(), out)
}

// Reset clears the witness table, used for replays or teardown.
func (j *JoinNode) Reset() { j.witness.Reset() }

// WitnessSize exposes the witness table's current entry count, for tests
// and diagnostics.
func (j *JoinNode) WitnessSize() int { return j.witness.Size() }
