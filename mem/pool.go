package mem

import (
	"sync"

	"ember/kernel"
)

// Pool is a fixed set of equally sized workspaces, all allocated up front.
type Pool struct {
	mu    sync.Mutex
	size  int
	free  []*kernel.Workspace
	owned map[*kernel.Workspace]bool
	stats Stats
}

// NewPool returns a pool of n workspaces with size bytes of stack each.
func NewPool(size, n int) *Pool {
	p := &Pool{
		size:  size,
		owned: make(map[*kernel.Workspace]bool, n),
	}
	for i := 0; i < n; i++ {
		ws := kernel.NewWorkspace(size)
		p.owned[ws] = false
		p.free = append(p.free, ws)
	}
	return p
}

// ObjectSize returns the stack size of every workspace in the pool.
func (p *Pool) ObjectSize() int { return p.size }

// Alloc returns a free workspace, or nil when the pool is exhausted.
func (p *Pool) Alloc() *kernel.Workspace {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		p.stats.Failures++
		return nil
	}
	ws := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.owned[ws] = true
	p.stats.Allocs++
	return ws
}

// Free puts ws back in the pool.
func (p *Pool) Free(ws *kernel.Workspace) {
	p.mu.Lock()
	defer p.mu.Unlock()

	inUse, ok := p.owned[ws]
	if !ok || !inUse {
		panic("mem: pool free of a foreign or already freed workspace")
	}
	p.owned[ws] = false
	p.free = append(p.free, ws)
	p.stats.Frees++
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Capacity = len(p.owned) * p.size
	s.InUse = (len(p.owned) - len(p.free)) * p.size
	return s
}
