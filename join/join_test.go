package join_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/lftjplus/engine/atom"
	"github.com/lftjplus/engine/dataflow"
	"github.com/lftjplus/engine/join"
	"github.com/lftjplus/engine/joinerr"
	"github.com/lftjplus/engine/plan"
	"github.com/lftjplus/engine/trie"
	"github.com/lftjplus/engine/tuple"
)

func id(s string) atom.Atom         { return atom.NewId([]byte(s)) }
func str(s string) atom.Atom        { return atom.NewString(s) }
func num(v int64) atom.Atom         { return atom.NewInteger(v) }
func tp(a ...atom.Atom) tuple.Tuple { return tuple.New(a...) }

// byCompare lets cmp.Diff treat two tuple slices as equal regardless of
// enumeration order, since neither the trie nor the leapfrog recursion
// promises one; tuple.Tuple satisfies cmp's Equal-method convention
// directly, so no field-level comparer is needed beside this ordering.
var byCompare = cmpopts.SortSlices(func(a, b tuple.Tuple) bool { return a.Compare(b) < 0 })

// requireTuples asserts got holds exactly the tuples in want, as a set,
// printing a structural diff (rather than a bare mismatch) on failure.
func requireTuples(t *testing.T, want, got []tuple.Tuple) {
	t.Helper()
	if diff := cmp.Diff(want, got, byCompare); diff != "" {
		t.Fatalf("tuple set mismatch (-want +got):\n%s", diff)
	}
}

// twoWayFixture wires Users(user_id, name) join Orders(user_id, order_id, amount)
// over VO [user_id, name, order_id, amount]. Orders' trie column order is
// [user_id, order_id, amount] — the variable order restricted to Orders,
// not its natural relation-schema column order — because a join atom's
// trie must be addressable in the order the level loop discovers values.
type twoWayFixture struct {
	usersTrie  *trie.Trie
	ordersTrie *trie.Trie
	usersScan  *dataflow.ScanNode
	ordersScan *dataflow.ScanNode
	joinNode   *join.JoinNode
	out        *dataflow.OutputNode
}

func newTwoWayFixture(t *testing.T) *twoWayFixture {
	usersTrie := trie.New(2)
	ordersTrie := trie.New(3)

	p, err := plan.New(
		[]string{"user_id", "name", "order_id", "amount"},
		[]plan.AtomSpec{
			{RelationName: "Users", Variables: []string{"user_id", "name"}},
			{RelationName: "Orders", Variables: []string{"user_id", "order_id", "amount"}},
		},
	)
	require.NoError(t, err)

	factory := trie.NewIteratorFactory()
	factory.RegisterTrie("Users", usersTrie)
	factory.RegisterTrie("Orders", ordersTrie)

	jn, err := join.New(p, factory)
	require.NoError(t, err)

	usersScan := dataflow.NewScanNode("Users", usersTrie)
	ordersScan := dataflow.NewScanNode("Orders", ordersTrie)
	require.NoError(t, jn.MapInputToAtom(usersScan, 0))
	require.NoError(t, jn.MapInputToAtom(ordersScan, 1))
	usersScan.AddOutput(jn)
	ordersScan.AddOutput(jn)

	out := dataflow.NewOutputNode(jn)
	jn.AddOutput(out)

	return &twoWayFixture{
		usersTrie: usersTrie, ordersTrie: ordersTrie,
		usersScan: usersScan, ordersScan: ordersScan,
		joinNode: jn, out: out,
	}
}

func TestS1InsertUsersThenOrders(t *testing.T) {
	f := newTwoWayFixture(t)

	err := f.usersScan.Push([]tuple.Tuple{
		tp(id("u1"), str("Alice")),
		tp(id("u2"), str("Bob")),
	}, nil)
	require.NoError(t, err)
	require.Len(t, f.out.Events(), 0, "no orders yet, nothing should be emitted")

	err = f.ordersScan.Push([]tuple.Tuple{
		tp(id("u1"), id("o1"), num(100)),
		tp(id("u1"), id("o2"), num(200)),
	}, nil)
	require.NoError(t, err)

	require.Len(t, f.out.Events(), 1)
	last := f.out.Last()
	require.Len(t, last.Removes(), 0)
	requireTuples(t, []tuple.Tuple{
		tp(id("u1"), str("Alice"), id("o1"), num(100)),
		tp(id("u1"), str("Alice"), id("o2"), num(200)),
	}, last.Adds())
}

func TestS2RemoveUserWithOrders(t *testing.T) {
	f := newTwoWayFixture(t)
	require.NoError(t, f.usersScan.Push([]tuple.Tuple{tp(id("u1"), str("Alice"))}, nil))
	require.NoError(t, f.ordersScan.Push([]tuple.Tuple{
		tp(id("u1"), id("o1"), num(100)),
		tp(id("u1"), id("o2"), num(200)),
	}, nil))

	err := f.usersScan.Push(nil, []tuple.Tuple{tp(id("u1"), str("Alice"))})
	require.NoError(t, err)

	last := f.out.Last()
	require.Len(t, last.Adds(), 0)
	requireTuples(t, []tuple.Tuple{
		tp(id("u1"), str("Alice"), id("o1"), num(100)),
		tp(id("u1"), str("Alice"), id("o2"), num(200)),
	}, last.Removes())
}

func TestS4DuplicateInsertYieldsEmptyDelta(t *testing.T) {
	f := newTwoWayFixture(t)
	require.NoError(t, f.usersScan.Push([]tuple.Tuple{tp(id("u1"), str("Alice"))}, nil))
	initialEvents := len(f.out.Events())

	require.NoError(t, f.usersScan.Push([]tuple.Tuple{tp(id("u1"), str("Alice"))}, nil))
	// With no Orders present, the join finds nothing to join against
	// either time; this only exercises ScanNode.Push's own idempotent
	// re-add, not witness coalescing. See
	// TestS4DuplicateInsertWithMatchingOrderCoalesces below for the
	// case that actually drives a witness count 1 -> 2.
	require.Equal(t, initialEvents, len(f.out.Events()))
}

func TestS4DuplicateInsertWithMatchingOrderCoalesces(t *testing.T) {
	f := newTwoWayFixture(t)
	require.NoError(t, f.ordersScan.Push([]tuple.Tuple{tp(id("u1"), id("o1"), num(100))}, nil))

	require.NoError(t, f.usersScan.Push([]tuple.Tuple{tp(id("u1"), str("Alice"))}, nil))
	require.Len(t, f.out.Events(), 1, "first insert must emit the joined tuple")
	requireTuples(t, []tuple.Tuple{tp(id("u1"), str("Alice"), id("o1"), num(100))}, f.out.Last().Adds())
	require.Equal(t, 1, f.joinNode.WitnessSize())

	eventsAfterFirst := len(f.out.Events())
	// ScanNode.Push always re-adds to its own delta, so the join re-runs
	// the full probe; the witness count going 1 -> 2 is what must
	// suppress a second EmitAdd, not an empty incoming delta.
	require.NoError(t, f.usersScan.Push([]tuple.Tuple{tp(id("u1"), str("Alice"))}, nil))
	require.Equal(t, eventsAfterFirst, len(f.out.Events()), "duplicate insert must not re-emit while a prior witness is still live")
	require.Equal(t, 1, f.joinNode.WitnessSize())
}

func TestS5RemoveOfNeverInsertedIsUpstreamOrderingViolation(t *testing.T) {
	f := newTwoWayFixture(t)
	err := f.usersScan.Push(nil, []tuple.Tuple{tp(id("ghost"), str("Nobody"))})
	require.Error(t, err)
	require.True(t, joinerr.Is(err, joinerr.UpstreamOrderingViolation))
}

func TestS3ThreeWayJoin(t *testing.T) {
	usersTrie := trie.New(2)
	productsTrie := trie.New(3)
	ordersTrie := trie.New(3)

	p, err := plan.New(
		[]string{"user_id", "name", "order_id", "product_id", "product_name", "price"},
		[]plan.AtomSpec{
			{RelationName: "Users", Variables: []string{"user_id", "name"}},
			{RelationName: "Products", Variables: []string{"product_id", "product_name", "price"}},
			{RelationName: "Orders", Variables: []string{"user_id", "order_id", "product_id"}},
		},
	)
	require.NoError(t, err)

	factory := trie.NewIteratorFactory()
	factory.RegisterTrie("Users", usersTrie)
	factory.RegisterTrie("Products", productsTrie)
	factory.RegisterTrie("Orders", ordersTrie)

	jn, err := join.New(p, factory)
	require.NoError(t, err)

	usersScan := dataflow.NewScanNode("Users", usersTrie)
	productsScan := dataflow.NewScanNode("Products", productsTrie)
	ordersScan := dataflow.NewScanNode("Orders", ordersTrie)
	require.NoError(t, jn.MapInputToAtom(usersScan, 0))
	require.NoError(t, jn.MapInputToAtom(productsScan, 1))
	require.NoError(t, jn.MapInputToAtom(ordersScan, 2))
	usersScan.AddOutput(jn)
	productsScan.AddOutput(jn)
	ordersScan.AddOutput(jn)

	out := dataflow.NewOutputNode(jn)
	jn.AddOutput(out)

	require.NoError(t, usersScan.Push([]tuple.Tuple{tp(id("u1"), str("Alice"))}, nil))
	require.NoError(t, productsScan.Push([]tuple.Tuple{tp(id("p1"), str("Laptop"), num(1000))}, nil))

	err = ordersScan.Push([]tuple.Tuple{tp(id("u1"), id("o1"), id("p1"))}, nil)
	require.NoError(t, err)

	last := out.Last()
	requireTuples(t, []tuple.Tuple{
		tp(id("u1"), str("Alice"), id("o1"), id("p1"), str("Laptop"), num(1000)),
	}, last.Adds())
}

func TestS6SelfJoin(t *testing.T) {
	edgeTrie := trie.New(2)

	p, err := plan.New(
		[]string{"x", "y", "z"},
		[]plan.AtomSpec{
			{RelationName: "Edge", Variables: []string{"x", "y"}},
			{RelationName: "Edge", Variables: []string{"y", "z"}},
		},
	)
	require.NoError(t, err)

	factory := trie.NewIteratorFactory()
	factory.RegisterTrie("Edge", edgeTrie)

	jn, err := join.New(p, factory)
	require.NoError(t, err)

	edgeScanLeft := dataflow.NewScanNode("Edge", edgeTrie)
	edgeScanRight := dataflow.NewScanNode("Edge", edgeTrie)
	require.NoError(t, jn.MapInputToAtom(edgeScanLeft, 0))
	require.NoError(t, jn.MapInputToAtom(edgeScanRight, 1))
	edgeScanLeft.AddOutput(jn)
	edgeScanRight.AddOutput(jn)

	out := dataflow.NewOutputNode(jn)
	jn.AddOutput(out)

	// Each occurrence of Edge in the query is a distinct join input even
	// though both back onto the same trie; every edge must be announced
	// to both occurrences independently.
	edges := []tuple.Tuple{tp(num(1), num(2)), tp(num(2), num(3)), tp(num(2), num(4))}
	require.NoError(t, edgeScanLeft.Push(edges, nil))
	require.NoError(t, edgeScanRight.Push(edges, nil))

	last := out.Last()
	requireTuples(t, []tuple.Tuple{
		tp(num(1), num(2), num(3)),
		tp(num(1), num(2), num(4)),
	}, last.Adds())
}
