// Package witness implements the multiplicity table a JoinNode uses to
// coalesce duplicate derivations of the same output tuple into a
// multiset-stable delta: a tuple is reported as added only on its first
// witness and removed only on its last.
package witness

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/lftjplus/engine/internal/xerr"
	"github.com/lftjplus/engine/joinerr"
	"github.com/lftjplus/engine/tuple"
)

// Sign is the direction of a single witness contribution.
type Sign int

const (
	Positive Sign = 1
	Negative Sign = -1
)

// EventKind classifies what, if anything, a witness update produces.
type EventKind int

const (
	NoEvent EventKind = iota
	EmitAdd
	EmitRemove
)

// Event is the outcome of one Apply call.
type Event struct {
	Kind  EventKind
	Tuple tuple.Tuple
}

// Table maps each output tuple's byte encoding to a non-negative witness
// count. Entries with count 0 are erased rather than kept around at zero.
type Table struct {
	nodeID string
	counts map[string]int
	tuples map[string]tuple.Tuple
}

// New creates an empty table. nodeID is carried into any WitnessUnderflow
// error so the caller can tell which join failed.
func New(nodeID string) *Table {
	return &Table{
		nodeID: nodeID,
		counts: make(map[string]int),
		tuples: make(map[string]tuple.Tuple),
	}
}

// Apply records one witness contribution of the given sign for t and
// reports the resulting event. A negative transition that would drive the
// count below zero is fatal: it signals an upstream invariant violation
// rather than anything Apply itself can repair.
func (tb *Table) Apply(t tuple.Tuple, sign Sign, atomIndex int) (Event, error) {
	key := t.Key()
	switch sign {
	case Positive:
		before := tb.counts[key]
		after := before + 1
		tb.counts[key] = after
		tb.tuples[key] = t
		if before == 0 && after == 1 {
			return Event{Kind: EmitAdd, Tuple: t}, nil
		}
		return Event{Kind: NoEvent}, nil
	case Negative:
		before := tb.counts[key]
		after := before - 1
		if after < 0 {
			return Event{}, joinerr.Fatal(joinerr.WitnessUnderflow, tb.nodeID, atomIndex, t.Bytes(),
				"witness: count for tuple would go negative (currently %d)", before)
		}
		if after == 0 {
			delete(tb.counts, key)
			delete(tb.tuples, key)
			return Event{Kind: EmitRemove, Tuple: t}, nil
		}
		tb.counts[key] = after
		return Event{Kind: NoEvent}, nil
	default:
		xerr.Assert(false, "witness: unknown sign %d", sign)
		panic("unreachable")
	}
}

// Size returns the number of entries with a strictly positive count, i.e.
// the number of distinct tuples currently in the materialized result.
func (tb *Table) Size() int { return len(tb.counts) }

// Reset erases every entry, as done on JoinNode teardown or replay.
func (tb *Table) Reset() {
	tb.counts = make(map[string]int)
	tb.tuples = make(map[string]tuple.Tuple)
}

// Count returns the current witness count for t, for tests and diagnostics.
func (tb *Table) Count(t tuple.Tuple) int { return tb.counts[t.Key()] }

// Info renders a one-line diagnostic summary.
func (tb *Table) Info() string {
	return fmt.Sprintf("Table(node=%s, entries=%s)", tb.nodeID, humanize.Comma(int64(tb.Size())))
}
