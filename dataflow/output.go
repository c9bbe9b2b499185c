package dataflow

import (
	"github.com/lftjplus/engine/delta"
)

// Event is one arrival recorded by an OutputNode: a delta and the node
// that sent it.
type Event struct {
	Source Node
	Delta  *delta.Delta
}

// OutputNode is a terminal sink: it collects every delta it receives, in
// arrival order, for inspection or hand-off to the outside world. It has
// no outputs of its own.
type OutputNode struct {
	Base
	events []Event
}

// NewOutputNode creates an OutputNode wired to the given inputs.
func NewOutputNode(inputs ...Node) *OutputNode {
	return &OutputNode{Base: NewBase(inputs...)}
}

// OnDeltaReceived records the event. source must be one of this node's
// registered inputs.
func (o *OutputNode) OnDeltaReceived(source Node, d *delta.Delta) error {
	if _, ok := inputIndex(o.Inputs(), source); !ok {
		return errUnresolvedSource(o.ID(), source)
	}
	o.events = append(o.events, Event{Source: source, Delta: d})
	return nil
}

// Events returns every (source, delta) pair received so far, in arrival
// order.
func (o *OutputNode) Events() []Event { return o.events }

// Last returns the most recently received delta, or nil if none has
// arrived yet.
func (o *OutputNode) Last() *delta.Delta {
	if len(o.events) == 0 {
		return nil
	}
	return o.events[len(o.events)-1].Delta
}
