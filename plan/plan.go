// Package plan describes the shape of a conjunctive query a JoinNode
// evaluates: a variable order and a list of atom specs naming the
// relations and columns that participate. Planning itself — choosing the
// variable order, picking which atoms to join — is out of scope; a Plan
// is an input the engine is handed already built.
package plan

import (
	"github.com/lftjplus/engine/joinerr"
)

// AtomSpec names one conjunct of the query: a relation, and the VO
// variables its trie columns carry, in column order.
type AtomSpec struct {
	RelationName string
	Variables    []string
}

// Arity is the number of columns (and thus the trie arity) this atom
// requires.
func (a AtomSpec) Arity() int { return len(a.Variables) }

// LevelGroup is the precomputed set of atoms mentioning a given VO
// variable, along with the column position(s) at which it appears in
// each.
type LevelGroup struct {
	// AtomIndices lists, in atom-spec order, the atoms that mention this
	// variable.
	AtomIndices []int
	// Columns[i] holds the column positions within AtomIndices[i] at
	// which the variable appears (usually a single position; more than
	// one means the atom repeats the variable across columns).
	Columns [][]int
}

// Plan is a validated (variable order, atom specs) pair, with level
// groups precomputed.
type Plan struct {
	VariableOrder []string
	AtomSpecs     []AtomSpec

	varIndex    map[string]int
	levelGroups []LevelGroup
}

// New validates and constructs a Plan. It fails with InvalidPlan if
// variableOrder or atomSpecs is empty, if variableOrder has a duplicate
// name, or if any VO variable never appears in any atom.
func New(variableOrder []string, atomSpecs []AtomSpec) (*Plan, error) {
	if len(variableOrder) == 0 {
		return nil, joinerr.Local(joinerr.InvalidPlan, "plan: variable order must not be empty")
	}
	if len(atomSpecs) == 0 {
		return nil, joinerr.Local(joinerr.InvalidPlan, "plan: atom specs must not be empty")
	}

	varIndex := make(map[string]int, len(variableOrder))
	for i, v := range variableOrder {
		if _, dup := varIndex[v]; dup {
			return nil, joinerr.Local(joinerr.InvalidPlan, "plan: duplicate variable %q in variable order", v)
		}
		varIndex[v] = i
	}

	// Each atom's own column order must be non-decreasing in variable-order
	// position: the trie for that atom is addressed column by column as
	// the join's level loop advances through the variable order, so an
	// earlier column can never depend on a variable bound at a later
	// level. A repeated variable within one atom (an equality constraint
	// internal to that atom) is allowed — it simply repeats the level.
	for ai, spec := range atomSpecs {
		lastLevel := -1
		for _, v := range spec.Variables {
			lvl, ok := varIndex[v]
			if !ok {
				return nil, joinerr.Local(joinerr.InvalidPlan,
					"plan: atom %d (%s) references variable %q not in variable order", ai, spec.RelationName, v)
			}
			if lvl < lastLevel {
				return nil, joinerr.Local(joinerr.InvalidPlan,
					"plan: atom %d (%s): column order must be non-decreasing in variable-order position, got %q out of order",
					ai, spec.RelationName, v)
			}
			lastLevel = lvl
		}
	}

	levelGroups := make([]LevelGroup, len(variableOrder))
	for i, v := range variableOrder {
		var g LevelGroup
		for ai, spec := range atomSpecs {
			var cols []int
			for col, sv := range spec.Variables {
				if sv == v {
					cols = append(cols, col)
				}
			}
			if len(cols) > 0 {
				g.AtomIndices = append(g.AtomIndices, ai)
				g.Columns = append(g.Columns, cols)
			}
		}
		if len(g.AtomIndices) == 0 {
			return nil, joinerr.Local(joinerr.InvalidPlan,
				"plan: variable %q appears in the variable order but in no atom", v)
		}
		levelGroups[i] = g
	}

	return &Plan{
		VariableOrder: append([]string(nil), variableOrder...),
		AtomSpecs:     append([]AtomSpec(nil), atomSpecs...),
		varIndex:      varIndex,
		levelGroups:   levelGroups,
	}, nil
}

// VarLevel returns the VO level (index) of variable name, and whether it
// is part of this plan's variable order.
func (p *Plan) VarLevel(name string) (int, bool) {
	i, ok := p.varIndex[name]
	return i, ok
}

// LevelGroup returns the precomputed group of atoms mentioning the
// variable at VO level i.
func (p *Plan) LevelGroup(i int) LevelGroup { return p.levelGroups[i] }

// NumLevels is the number of VO variables (n in the level loop).
func (p *Plan) NumLevels() int { return len(p.VariableOrder) }

// NumAtoms is the number of atom specs in the plan.
func (p *Plan) NumAtoms() int { return len(p.AtomSpecs) }

// ColumnsOfVar returns the column positions within atomIndex's spec at
// which variable name appears (possibly empty, possibly more than one).
func (p *Plan) ColumnsOfVar(atomIndex int, name string) []int {
	var cols []int
	for col, v := range p.AtomSpecs[atomIndex].Variables {
		if v == name {
			cols = append(cols, col)
		}
	}
	return cols
}
