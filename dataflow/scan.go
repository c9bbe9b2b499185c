package dataflow

import (
	"github.com/golang/glog"

	"github.com/lftjplus/engine/delta"
	"github.com/lftjplus/engine/joinerr"
	"github.com/lftjplus/engine/trie"
	"github.com/lftjplus/engine/tuple"
)

// ScanNode wraps exactly one base relation's trie and surfaces that
// relation's deltas into the graph. Push is the relation's ingestion
// point: it mutates the trie first, then forwards the resulting delta
// unchanged to every output, preserving the "trie mutates before the
// scan pushes" contract by owning both steps itself instead of trusting
// an external caller to sequence them correctly.
type ScanNode struct {
	Base
	relationName string
	trie         *trie.Trie
}

// NewScanNode creates a ScanNode over t for the named relation.
func NewScanNode(relationName string, t *trie.Trie) *ScanNode {
	return &ScanNode{Base: NewBase(), relationName: relationName, trie: t}
}

// RelationName returns the name this scan surfaces.
func (s *ScanNode) RelationName() string { return s.relationName }

// Trie returns the underlying trie, for wiring into an IteratorFactory.
func (s *ScanNode) Trie() *trie.Trie { return s.trie }

// Push applies adds/removes to the underlying trie and forwards the
// resulting delta to every output. A remove naming a tuple the trie
// never had is an upstream ordering violation: the caller claims a
// change that never happened, which the trie's own Remove return value
// catches cheaply, well before it could ever underflow a witness count
// downstream.
func (s *ScanNode) Push(adds []tuple.Tuple, removes []tuple.Tuple) error {
	d := delta.New()
	for _, t := range adds {
		s.trie.Insert(t)
		d.AddTuple(t)
	}
	for _, t := range removes {
		removed := s.trie.Remove(t)
		if !removed {
			return joinerr.Fatal(joinerr.UpstreamOrderingViolation, s.ID(), -1, t.Bytes(),
				"scan %q: remove of tuple not present in the trie", s.relationName)
		}
		d.RemoveTuple(t)
	}
	glog.V(2).Infof("dataflow: scan %q pushed %d adds, %d removes", s.relationName, len(adds), len(removes))
	return Forward(s, s.Outputs(), d)
}

// OnDeltaReceived is never expected to fire on a ScanNode — it has no
// inputs — but is implemented to satisfy Node and to fail loudly rather
// than silently if some future wiring mistake routes a delta to it.
func (s *ScanNode) OnDeltaReceived(source Node, d *delta.Delta) error {
	return errUnresolvedSource(s.ID(), source)
}
