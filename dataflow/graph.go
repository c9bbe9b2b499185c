package dataflow

import (
	"github.com/lftjplus/engine/joinerr"
)

// Graph is a tiny composition helper: register every node in a plan,
// wire outputs, and check for a cycle before any delta is allowed to
// flow. Valid plans have none; a plan that accidentally wires a join's
// output back into one of its own ancestors fails fast here instead of
// recursing forever on the first delta.
type Graph struct {
	nodes []Node
}

// NewGraph creates an empty graph.
func NewGraph() *Graph { return &Graph{} }

// Register adds n to the graph. Wiring (AddOutput) may happen before or
// after registration; Validate only needs every participating node
// registered once.
func (g *Graph) Register(n Node) {
	for _, m := range g.nodes {
		if m.ID() == n.ID() {
			return
		}
	}
	g.nodes = append(g.nodes, n)
}

// Wire connects from's output to to, and registers both if not already
// present.
func (g *Graph) Wire(from, to Node) {
	from.AddOutput(to)
	g.Register(from)
	g.Register(to)
}

// Validate runs a DFS over the outbound edges of every registered node
// and fails with CyclicPlan if a cycle is reachable.
func (g *Graph) Validate() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))

	var visit func(n Node) error
	visit = func(n Node) error {
		switch color[n.ID()] {
		case gray:
			return joinerr.Local(joinerr.CyclicPlan, "dataflow: cycle detected at node %s", n.ID())
		case black:
			return nil
		}
		color[n.ID()] = gray
		for _, out := range n.Outputs() {
			if err := visit(out); err != nil {
				return err
			}
		}
		color[n.ID()] = black
		return nil
	}

	for _, n := range g.nodes {
		if color[n.ID()] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
