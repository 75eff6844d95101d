// Package mem provides the workspace allocators used by dynamic kernel
// threads: a byte-budgeted heap and a fixed-size pool.
package mem

import (
	"sync"

	"ember/kernel"
)

// Stats counts allocator activity.
type Stats struct {
	Capacity int
	InUse    int
	Allocs   int
	Frees    int
	Failures int
}

// Heap hands out workspaces of any size within a total stack budget.
type Heap struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	live     map[*kernel.Workspace]int
	stats    Stats
}

// NewHeap returns a heap holding at most capacity bytes of stack.
func NewHeap(capacity int) *Heap {
	return &Heap{
		capacity: capacity,
		live:     make(map[*kernel.Workspace]int),
	}
}

// Alloc returns a workspace with a stack of size bytes, or nil when the
// budget would be exceeded.
func (h *Heap) Alloc(size int) *kernel.Workspace {
	h.mu.Lock()
	defer h.mu.Unlock()

	if size < kernel.MinStackSize || h.inUse+size > h.capacity {
		h.stats.Failures++
		return nil
	}
	ws := kernel.NewWorkspace(size)
	h.live[ws] = size
	h.inUse += size
	h.stats.Allocs++
	return ws
}

// Free returns ws to the heap. Freeing a workspace the heap does not own
// panics.
func (h *Heap) Free(ws *kernel.Workspace) {
	h.mu.Lock()
	defer h.mu.Unlock()

	size, ok := h.live[ws]
	if !ok {
		panic("mem: heap free of a foreign or already freed workspace")
	}
	delete(h.live, ws)
	h.inUse -= size
	h.stats.Frees++
}

// Stats returns a snapshot of the counters.
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.Capacity = h.capacity
	s.InUse = h.inUse
	return s
}
