package trie

import (
	"fmt"
	"sync/atomic"

	"github.com/petermattis/goid"
	"github.com/sasha-s/go-deadlock"
)

// debugGuard is a best-effort detector for a misbehaving caller mutating a
// trie while one of its iterators is still open. The engine's contract is
// serial execution with no concurrent writer touching a trie while its
// iterators are live; debugGuard turns a violation of that contract into
// an immediate, diagnosable panic instead of silent corruption, the same
// fail-loud posture the engine takes for every other fatal condition.
type debugGuard struct {
	mu        deadlock.RWMutex
	iterating int32
}

// beginIterate registers one open LevelIterator and returns a function to
// call when that iterator is done (its borrow ends).
func (g *debugGuard) beginIterate() func() {
	g.mu.RLock()
	atomic.AddInt32(&g.iterating, 1)
	return func() {
		atomic.AddInt32(&g.iterating, -1)
		g.mu.RUnlock()
	}
}

// beginMutate must be called before insert/remove. It panics immediately
// (without blocking, so it never races with go-deadlock's own timeout
// detector) if any LevelIterator is currently open, then takes the
// exclusive lock for the duration of the mutation.
func (g *debugGuard) beginMutate() func() {
	if n := atomic.LoadInt32(&g.iterating); n > 0 {
		panic(fmt.Sprintf(
			"trie: mutation attempted on goroutine %d while %d LevelIterator(s) are still open; "+
				"an iterator must not outlive the process_delta call that created it",
			goid.Get(), n))
	}
	g.mu.Lock()
	return g.mu.Unlock
}
