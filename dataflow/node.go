// Package dataflow implements the graph of nodes deltas propagate through:
// a stable-identified vertex with ordered inputs and outputs, fire-and-
// forget synchronous delta passing, and the two leaf node kinds
// (ScanNode, OutputNode) that bracket a plan of JoinNodes.
package dataflow

import (
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/lftjplus/engine/delta"
	"github.com/lftjplus/engine/joinerr"
)

// Node is the dataflow vertex contract. Every node has a stable id, an
// ordered list of inputs, and an ordered list of outputs.
// OnDeltaReceived is the single inbound message; it resolves the sender,
// runs the node's own transform, and forwards the result to every output
// synchronously, so a delta is fully processed leaf-to-root before
// control returns to the caller that injected it.
type Node interface {
	ID() string
	Inputs() []Node
	Outputs() []Node
	AddOutput(n Node)
	OnDeltaReceived(source Node, d *delta.Delta) error
}

// Base holds the identity and wiring shared by every node kind. Embed it
// and implement OnDeltaReceived on top.
type Base struct {
	id      string
	inputs  []Node
	outputs []Node
}

// NewBase creates node bookkeeping with a fresh stable id.
func NewBase(inputs ...Node) Base {
	return Base{id: uuid.NewString(), inputs: append([]Node(nil), inputs...)}
}

func (b *Base) ID() string       { return b.id }
func (b *Base) Inputs() []Node   { return b.inputs }
func (b *Base) Outputs() []Node  { return b.outputs }
func (b *Base) AddOutput(n Node) { b.outputs = append(b.outputs, n) }
func (b *Base) AddInput(n Node)  { b.inputs = append(b.inputs, n) }

// Forward synchronously delivers d to every output, with self as the
// reported source. Ownership runs downstream: a node never reaches back
// into the node that forwarded to it except to resolve "who sent this".
func Forward(self Node, outputs []Node, d *delta.Delta) error {
	if d.IsEmpty() {
		return nil
	}
	for _, out := range outputs {
		glog.V(2).Infof("dataflow: %s -> %s: %d adds, %d removes", self.ID(), out.ID(), len(d.Adds()), len(d.Removes()))
		if err := out.OnDeltaReceived(self, d); err != nil {
			return err
		}
	}
	return nil
}

// inputIndex finds source's position among inputs, or reports ok=false
// so the caller can raise its own error. JoinNode does not use it; it
// resolves senders through its own input-to-atom map.
func inputIndex(inputs []Node, source Node) (int, bool) {
	for i, in := range inputs {
		if in.ID() == source.ID() {
			return i, true
		}
	}
	return -1, false
}

// errUnresolvedSource is a small local helper so ScanNode (which has no
// real use for an atom mapping) can still reject an unknown sender.
func errUnresolvedSource(nodeID string, source Node) error {
	return joinerr.Local(joinerr.UnmappedInput, "dataflow: node %s received a delta from unrecognized source %s", nodeID, source.ID())
}
