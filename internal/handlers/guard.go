package handlers

import "sync"

// treeGuard tracks a generation per tree root so a tree assembled before a
// mutation is never committed to the cache after it. Readers take the
// root's generation before assembling; writers bump it on every
// invalidation; a commit whose generation moved is refused.
type treeGuard struct {
	mu   sync.Mutex
	gens map[uint]uint64
}

func newTreeGuard() *treeGuard {
	return &treeGuard{gens: make(map[uint]uint64)}
}

// begin returns the root's current generation.
func (g *treeGuard) begin(id uint) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[id]
}

// invalidate bumps the root's generation, failing any in-flight commit
// that started before the mutation.
func (g *treeGuard) invalidate(id uint) {
	g.mu.Lock()
	g.gens[id]++
	g.mu.Unlock()
}

// commit runs set under the guard's lock, but only when no invalidation
// landed since begin. Reports whether set ran.
func (g *treeGuard) commit(id uint, gen uint64, set func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gens[id] != gen {
		return false
	}
	set()
	return true
}
